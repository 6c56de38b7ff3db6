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

// ProductService is the part of service.ProductService the handlers use.
type ProductService interface {
	Create(ctx context.Context, input service.CreateProductInput) (*domain.Product, error)
	Remove(ctx context.Context, productID string) error
	UpdatePrice(ctx context.Context, productID string, price int64) (*domain.Product, error)
	UpdateStock(ctx context.Context, productID string, delta int) (*domain.Product, error)
	List(ctx context.Context, params pagination.Params) (*pagination.Result[domain.Product], error)
}

// ManagerHandler handles HTTP requests for inventory manager endpoints.
type ManagerHandler struct {
	service ProductService
	logger  *slog.Logger
}

// NewManagerHandler creates a new manager HTTP handler.
func NewManagerHandler(svc ProductService, logger *slog.Logger) *ManagerHandler {
	return &ManagerHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateProductRequest is the body of POST /manager/create-product.
type CreateProductRequest struct {
	Name          string `json:"name" validate:"required,max=100,productname"`
	Price         int64  `json:"price" validate:"gt=0"`
	StockQuantity int    `json:"stock_quantity" validate:"gt=0"`
}

// ProductRefRequest names a product.
type ProductRefRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// UpdateStockRequest carries a signed stock delta.
type UpdateStockRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// UpdatePriceRequest carries a new unit price in cents.
type UpdatePriceRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Price     int64  `json:"price" validate:"gt=0"`
}

// --- Handlers ---

// CreateProduct handles POST /manager/create-product
func (h *ManagerHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.Create(r.Context(), service.CreateProductInput{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}

// RemoveProduct handles DELETE /manager/remove-product
func (h *ManagerHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRefRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.Remove(r.Context(), req.ProductID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "product removed successfully")
}

// UpdateStock handles PATCH /manager/update-stockqty
func (h *ManagerHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req UpdateStockRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.UpdateStock(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// UpdatePrice handles PATCH /manager/update-price
func (h *ManagerHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req UpdatePriceRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.UpdatePrice(r.Context(), req.ProductID, req.Price)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// ViewProducts handles GET /manager/view-products?page=&limit=
func (h *ManagerHandler) ViewProducts(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.List(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}
