// Package service coordinates authentication: credential checks, token
// issuance and validation.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/RonTitans/BillFlow/internal/domain/auth/repository"
)

var (
	// ErrInvalidCredentials covers both unknown username and wrong
	// password, so login responses never reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountInactive is returned when a user has been disabled.
	ErrAccountInactive = errors.New("account is deactivated")
)

// LoginResult is produced after a successful login.
type LoginResult struct {
	User  *repository.User
	Token string
}

// AuthService coordinates authentication business logic.
type AuthService struct {
	repo         repository.UserRepository
	tokenManager TokenManager
	logger       *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(repo repository.UserRepository, tokenManager TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
		logger:       logger,
	}
}

// Login authenticates a user against stored credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if !ComparePassword(user.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenManager.GenerateAccessToken(user.ID.String(), user.Username)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", slog.Any("error", err))
	}

	return &LoginResult{User: user, Token: token}, nil
}

// Verify validates an access token and resolves its user.
func (s *AuthService) Verify(ctx context.Context, token string) (*repository.User, error) {
	claims, err := s.tokenManager.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword checks a plaintext password against its bcrypt hash.
func ComparePassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
