package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/pkg/httputil"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
)

// AdminService is the part of service.AdminService the handlers use.
type AdminService interface {
	AssignRole(ctx context.Context, actorID, targetUserID, role string) (*domain.User, error)
	ListUsers(ctx context.Context, params pagination.Params) (*pagination.Result[domain.User], error)
}

// AdminHandler handles HTTP requests for Admin endpoints.
type AdminHandler struct {
	service AdminService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, logger: logger}
}

// AssignRoleRequest is the body of PATCH /admin/assign-role.
type AssignRoleRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=Admin inventory_manager"`
}

// UserRefRequest names a target user.
type UserRefRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// AssignRole handles PATCH /admin/assign-role
func (h *AdminHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.assign(w, r, req.UserID, req.Role)
}

// CreateInventoryManager handles PATCH /admin/create-inventory-manager
func (h *AdminHandler) CreateInventoryManager(w http.ResponseWriter, r *http.Request) {
	var req UserRefRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.assign(w, r, req.UserID, domain.RoleInventoryManager)
}

func (h *AdminHandler) assign(w http.ResponseWriter, r *http.Request, targetID, role string) {
	user, err := h.service.AssignRole(r.Context(), identity(r).UserID, targetID, role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// ViewUsers handles GET /admin/view-users?page=&limit=
func (h *AdminHandler) ViewUsers(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}
