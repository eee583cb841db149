package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codebench/internal/api"
	"codebench/internal/app/service"
	"codebench/internal/common/security"
	"codebench/internal/domain/repository"
	"codebench/internal/judge"
	"codebench/internal/platform/cache"
	"codebench/internal/platform/config"
	"codebench/internal/platform/database"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	// 4. Initialize Redis
	cache.ConnectRedis()
	defer cache.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)

	// 6. Initialize Judge Pipeline
	judgeClient := judge.NewClient(
		config.AppConfig.JudgeBaseURL,
		config.AppConfig.JudgeAPIKey,
		config.AppConfig.JudgeAPIHost,
		nil,
	)
	pipeline := judge.NewPipeline(
		judgeClient,
		time.Duration(config.AppConfig.JudgePollIntervalMs)*time.Millisecond,
		config.AppConfig.JudgeMaxPollRounds,
	)

	// 7. Initialize Services
	authService := service.NewAuthService(userRepo, cache.RDB)
	problemService := service.NewProblemService(problemRepo, pipeline, database.DB)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, pipeline, database.DB)

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(authService, problemService, submissionService)

	server := &http.Server{
		Addr:        ":" + config.AppConfig.APIPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Grading holds the response open while results are polled, so the
		// write timeout has to cover the whole poll budget.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
