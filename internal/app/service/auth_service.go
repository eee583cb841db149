package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codebench/internal/common"
	"codebench/internal/common/security"
	"codebench/internal/domain/model"
	"codebench/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type AuthService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
}

func NewAuthService(userRepo repository.UserRepository, rdb *redis.Client) *AuthService {
	return &AuthService{userRepo: userRepo, rdb: rdb}
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	LoginField string `json:"login_field"` // Can be username or email
	Password   string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	return s.signup(ctx, req, model.RoleUser)
}

// SignupAdmin registers an admin account; callers must already be admins.
func (s *AuthService) SignupAdmin(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	return s.signup(ctx, req, model.RoleAdmin)
}

func (s *AuthService) signup(ctx context.Context, req SignupRequest, role string) (*AuthResponse, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           role,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo might return common.ErrConflict
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := security.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.LoginField == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	var user *model.User
	var err error

	// Try finding by email first, then by username
	user, err = s.userRepo.FindByEmail(ctx, req.LoginField)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			user, err = s.userRepo.FindByUsername(ctx, req.LoginField)
		}
	}

	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}

	token, err := security.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Token: token}, nil
}

// Logout blocklists the raw token until its natural expiry, after which the
// key falls out of Redis on its own.
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		return common.ErrBadRequest
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // Already expired, nothing to block
	}
	if err := s.rdb.Set(ctx, blocklistKey(token), "blocked", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blocklist token: %w", err)
	}
	return nil
}

// IsTokenBlocked reports whether a token was invalidated by logout.
func (s *AuthService) IsTokenBlocked(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, blocklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blocklist: %w", err)
	}
	return n > 0, nil
}

func blocklistKey(token string) string {
	return "token:" + token
}
