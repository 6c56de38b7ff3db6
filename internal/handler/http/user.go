package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/internal/service"
	"github.com/tmanjupriya-lang/inventory-management/pkg/httputil"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
)

// LedgerService is the part of service.LedgerService the handlers use.
type LedgerService interface {
	AddToCart(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, error)
	RemoveFromCart(ctx context.Context, userID string, names []string) error
	UpdateCartQuantity(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, error)
	DisplayCart(ctx context.Context, userID string, params pagination.Params) (*domain.CartPage, error)
	Checkout(ctx context.Context, userID string) (*domain.CheckoutResult, error)
	PurchaseHistory(ctx context.Context, q service.HistoryQuery) ([]domain.PurchaseRecord, error)
}

// UserHandler handles HTTP requests for cart and purchase endpoints.
type UserHandler struct {
	service LedgerService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc LedgerService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CartItemRequest is one product in a cart batch.
type CartItemRequest struct {
	ProductName string `json:"product_name" validate:"required,max=100"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

// CartBatchRequest is the body of createcart and updatecartquantity.
type CartBatchRequest struct {
	Items []CartItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// RemoveItemsRequest is the body of DELETE /user/remove_item.
type RemoveItemsRequest struct {
	ProductNames []string `json:"product_names" validate:"required,min=1,max=100,dive,required,max=100"`
}

// PurchaseHistoryRequest is the body of POST /user/displaypurchasehistory.
type PurchaseHistoryRequest struct {
	UserID string `json:"user_id" validate:"omitempty,uuid"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (b CartBatchRequest) toItems() []domain.CartItem {
	items := make([]domain.CartItem, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, domain.CartItem{Name: it.ProductName, Quantity: it.Quantity})
	}
	return items
}

// --- Handlers ---

// CreateCart handles POST /user/createcart
func (h *UserHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req CartBatchRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	lines, err := h.service.AddToCart(r.Context(), identity(r).UserID, req.toItems())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, lines)
}

// RemoveItem handles DELETE /user/remove_item
func (h *UserHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var req RemoveItemsRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.RemoveFromCart(r.Context(), identity(r).UserID, req.ProductNames); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "items removed from cart")
}

// UpdateCartQuantity handles PATCH /user/updatecartquantity
func (h *UserHandler) UpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req CartBatchRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	lines, err := h.service.UpdateCartQuantity(r.Context(), identity(r).UserID, req.toItems())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, lines)
}

// DisplayCart handles GET /user/displaycartitems?page=&limit=
func (h *UserHandler) DisplayCart(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, err := h.service.DisplayCart(r.Context(), identity(r).UserID, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, page)
}

// Checkout handles GET /user/cartcheckout
func (h *UserHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Checkout(r.Context(), identity(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// PurchaseHistory handles POST /user/displaypurchasehistory
func (h *UserHandler) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	var req PurchaseHistoryRequest
	// An absent body means "my own history, all dates".
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	id := identity(r)
	records, err := h.service.PurchaseHistory(r.Context(), service.HistoryQuery{
		RequesterID:   id.UserID,
		RequesterRole: id.Role,
		TargetUserID:  req.UserID,
		Date:          req.Date,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, records)
}
