package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/internal/repository"
	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
	"github.com/tmanjupriya-lang/inventory-management/pkg/validator"
)

// StockObserver is told about stock levels left by committed writes.
// alert.Dispatcher implements it.
type StockObserver interface {
	StockChanged(ctx context.Context, levels []domain.StockLevel)
}

// ProductService implements catalogue management for inventory managers.
type ProductService struct {
	products repository.ProductRepository
	observer StockObserver
	logger   *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(products repository.ProductRepository, observer StockObserver, logger *slog.Logger) *ProductService {
	return &ProductService{products: products, observer: observer, logger: logger}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name          string `json:"name" validate:"required,max=100,productname"`
	Price         int64  `json:"price" validate:"gt=0"`
	StockQuantity int    `json:"stock_quantity" validate:"gt=0"`
}

// Create adds a product to the catalogue.
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	exists, err := s.products.ExistsByName(ctx, input.Name)
	if err != nil {
		return nil, fmt.Errorf("check product name: %w", err)
	}
	if exists {
		return nil, apperrors.AlreadyExists("product", "name", input.Name)
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:            uuid.New().String(),
		Name:          input.Name,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("name", product.Name),
		slog.Int("stock_quantity", product.StockQuantity),
	)
	s.observer.StockChanged(ctx, []domain.StockLevel{product.LevelOf()})
	return product, nil
}

// Remove deletes a product. Cart lines holding it go with it; purchase
// history keeps the frozen name and prices.
func (s *ProductService) Remove(ctx context.Context, productID string) error {
	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "product removed", slog.String("product_id", productID))
	return nil
}

// UpdatePrice sets a new unit price. Carts pick it up at checkout.
func (s *ProductService) UpdatePrice(ctx context.Context, productID string, price int64) (*domain.Product, error) {
	if price <= 0 {
		return nil, apperrors.InvalidInput("price must be greater than zero")
	}

	product, err := s.products.UpdatePrice(ctx, productID, price)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product price updated",
		slog.String("product_id", productID),
		slog.Int64("price", price),
	)
	return product, nil
}

// UpdateStock adds delta (which may be negative) to a product's stock.
func (s *ProductService) UpdateStock(ctx context.Context, productID string, delta int) (product *domain.Product, err error) {
	defer func() { observe("update_stock", err) }()

	if delta == 0 {
		return nil, apperrors.InvalidInput("quantity change must not be zero")
	}

	product, err = s.products.AdjustStock(ctx, productID, delta)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product stock adjusted",
		slog.String("product_id", productID),
		slog.Int("delta", delta),
		slog.Int("stock_quantity", product.StockQuantity),
	)
	s.observer.StockChanged(ctx, []domain.StockLevel{product.LevelOf()})
	return product, nil
}

// List returns one page of the catalogue. An empty page is NotFound.
func (s *ProductService) List(ctx context.Context, params pagination.Params) (*pagination.Result[domain.Product], error) {
	products, total, err := s.products.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		return nil, apperrors.NotFoundMessage("no products found")
	}
	result := pagination.NewResult(products, total, params)
	return &result, nil
}
