package api

import (
	"net/http"
	"time"

	"codebench/internal/api/handler"
	authmw "codebench/internal/api/middleware"
	"codebench/internal/app/service"
	"codebench/internal/common"
	"codebench/internal/common/security"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	problemService *service.ProblemService,
	submissionService *service.SubmissionService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// The request timeout has to outlast the grading poll budget, otherwise
	// submissions would be cut off mid-poll under a slow executor.
	r.Use(middleware.Timeout(3 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(jwtauth.Verifier(security.TokenAuth))

	authn := authmw.Authenticator(authService)

	authHandler := handler.NewAuthHandler(authService)
	problemHandler := handler.NewProblemHandler(problemService, submissionService)
	submissionHandler := handler.NewSubmissionHandler(submissionService)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/user", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authn)
	})
	r.Route("/problem", func(r chi.Router) {
		problemHandler.RegisterRoutes(r, authn)
	})
	r.Route("/submission", func(r chi.Router) {
		submissionHandler.RegisterRoutes(r, authn)
	})

	return r
}
