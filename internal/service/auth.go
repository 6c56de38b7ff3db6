package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmanjupriya-lang/inventory-management/internal/auth"
	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/internal/repository"
	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/middleware"
)

const (
	msgInvalidCredentials = "invalid username or password"
	msgInvalidRefresh     = "invalid or expired refresh token"
	msgInvalidAccess      = "invalid or expired access token"
)

// AuthService implements registration and the token lifecycle.
type AuthService struct {
	users  repository.UserRepository
	tokens repository.RefreshTokenRepository
	jwt    *auth.JWTManager
	hasher *auth.PasswordHasher
	logger *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	jwtManager *auth.JWTManager,
	hasher *auth.PasswordHasher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		jwt:    jwtManager,
		hasher: hasher,
		logger: logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Username string
	Password string
}

// Register creates a user with the plain "user" role.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if err := auth.ValidatePasswordStrength(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.AlreadyExists("user", "username", username)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("look up username: %w", err)
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: digest,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	// The unique index still catches a concurrent registration of the same name.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login authenticates a user and issues a fresh token pair. Unknown users and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.TokenPair, error) {
	if input.Username == "" || input.Password == "" {
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	pair, refreshExpiry, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Upsert(ctx, user.ID, hashToken(pair.RefreshToken), refreshExpiry); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The stored token is
// swapped atomically, so a token can be redeemed once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized(msgInvalidRefresh)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidRefresh)
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	pair, refreshExpiry, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	rotated, err := s.tokens.Rotate(ctx, user.ID, hashToken(refreshToken), hashToken(pair.RefreshToken), refreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		s.logger.WarnContext(ctx, "refresh token reuse or revoked token rejected",
			slog.String("user_id", user.ID),
		)
		return nil, apperrors.Unauthorized(msgInvalidRefresh)
	}

	return pair, nil
}

// Logout revokes the user's refresh token. Access tokens stay valid until
// they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// ValidateAccess resolves a bearer token to the caller's identity. It
// satisfies middleware.TokenValidator.
func (s *AuthService) ValidateAccess(_ context.Context, token string) (*middleware.Identity, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(msgInvalidAccess)
	}
	return &middleware.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

func (s *AuthService) issue(user *domain.User) (*domain.TokenPair, time.Time, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("generate access token: %w", err)
	}
	refresh, expiresAt, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenTypeBearer,
	}, expiresAt, nil
}

// hashToken returns the hex SHA-256 digest stored in place of a refresh token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
