package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/internal/repository"
	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
)

// ErrCannotModifyAdmin is returned when a role change targets an Admin.
var ErrCannotModifyAdmin = apperrors.InvalidInput("cannot modify an admin")

// AdminService implements user administration.
type AdminService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(users repository.UserRepository, logger *slog.Logger) *AdminService {
	return &AdminService{users: users, logger: logger}
}

// AssignRole promotes targetUserID to role. Admins cannot be modified and no
// other user can be moved to an equal or lower role.
func (s *AdminService) AssignRole(ctx context.Context, actorID, targetUserID, role string) (*domain.User, error) {
	if !domain.IsValidRole(role) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", role))
	}

	target, err := s.users.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.Role == domain.RoleAdmin {
		return nil, ErrCannotModifyAdmin
	}
	if !domain.IsEscalation(target.Role, role) {
		return nil, apperrors.InvalidInput(fmt.Sprintf(
			"roles can only be escalated: user already holds %q", target.Role))
	}

	updated, err := s.users.UpdateRole(ctx, targetUserID, role)
	if err != nil {
		// Users are never deleted, so a miss here means the target was
		// promoted to Admin after the read.
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrCannotModifyAdmin
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "role assigned",
		slog.String("actor_id", actorID),
		slog.String("target_user_id", targetUserID),
		slog.String("from_role", target.Role),
		slog.String("to_role", role),
	)
	return updated, nil
}

// ListUsers returns one page of users. An empty page is NotFound.
func (s *AdminService) ListUsers(ctx context.Context, params pagination.Params) (*pagination.Result[domain.User], error) {
	users, total, err := s.users.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return nil, apperrors.NotFoundMessage("no users found")
	}
	result := pagination.NewResult(users, total, params)
	return &result, nil
}
