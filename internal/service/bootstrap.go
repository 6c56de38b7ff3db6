package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tmanjupriya-lang/inventory-management/internal/auth"
	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/internal/repository"
	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
)

// EnsureAdmin creates the default Admin account unless some user already
// holds the Admin role. It is safe to run on every start, including from
// several instances at once.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, hasher *auth.PasswordHasher, username, password string, logger *slog.Logger) error {
	exists, err := users.ExistsWithRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("check for admin: %w", err)
	}
	if exists {
		return nil
	}

	digest, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: digest,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			logger.InfoContext(ctx, "admin account already exists", slog.String("username", username))
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	logger.InfoContext(ctx, "default admin account created",
		slog.String("user_id", admin.ID),
		slog.String("username", username),
	)
	return nil
}
