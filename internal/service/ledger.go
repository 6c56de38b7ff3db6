package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/internal/repository"
	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
)

// CheckoutPublisher announces completed checkouts. event.Producer implements it.
type CheckoutPublisher interface {
	PublishCheckoutCompleted(ctx context.Context, userID string, result *domain.CheckoutResult) error
}

// LedgerService implements the cart, checkout and purchase history operations.
type LedgerService struct {
	ledger   repository.LedgerRepository
	observer StockObserver
	events   CheckoutPublisher
	logger   *slog.Logger
}

// NewLedgerService creates a new ledger service. events may be nil.
func NewLedgerService(ledger repository.LedgerRepository, observer StockObserver, events CheckoutPublisher, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		ledger:   ledger,
		observer: observer,
		events:   events,
		logger:   logger,
	}
}

// HistoryQuery describes a purchase history request.
type HistoryQuery struct {
	RequesterID   string
	RequesterRole string
	TargetUserID  string
	Date          string
}

// AddToCart reserves stock for every item and adds the items to the user's
// cart. Either every item is added or none is.
func (s *LedgerService) AddToCart(ctx context.Context, userID string, items []domain.CartItem) (lines []domain.CartLine, err error) {
	defer func() { observe("add_to_cart", err) }()

	items, err = normalizeItems(items)
	if err != nil {
		return nil, err
	}

	lines, levels, err := s.ledger.AddToCart(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "items added to cart",
		slog.String("user_id", userID),
		slog.Int("items", len(items)),
	)
	s.observer.StockChanged(ctx, levels)
	return lines, nil
}

// RemoveFromCart deletes the named products from the user's cart and
// returns their quantities to stock.
func (s *LedgerService) RemoveFromCart(ctx context.Context, userID string, names []string) (err error) {
	defer func() { observe("remove_from_cart", err) }()

	names, err = normalizeNames(names)
	if err != nil {
		return err
	}

	levels, err := s.ledger.RemoveFromCart(ctx, userID, names)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "items removed from cart",
		slog.String("user_id", userID),
		slog.Int("items", len(names)),
	)
	s.observer.StockChanged(ctx, levels)
	return nil
}

// UpdateCartQuantity sets new quantities on lines already in the cart.
func (s *LedgerService) UpdateCartQuantity(ctx context.Context, userID string, items []domain.CartItem) (lines []domain.CartLine, err error) {
	defer func() { observe("update_cart_quantity", err) }()

	items, err = normalizeItems(items)
	if err != nil {
		return nil, err
	}

	lines, levels, err := s.ledger.UpdateCartQuantity(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart quantities updated",
		slog.String("user_id", userID),
		slog.Int("items", len(items)),
	)
	s.observer.StockChanged(ctx, levels)
	return lines, nil
}

// DisplayCart returns one page of the user's cart with line and grand
// totals at current prices. An empty cart is not an error.
func (s *LedgerService) DisplayCart(ctx context.Context, userID string, params pagination.Params) (*domain.CartPage, error) {
	lines, total, err := s.ledger.ListCart(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	page := domain.NewCartPage(lines, total, params.Page, params.Limit)
	return &page, nil
}

// Checkout turns the whole cart into purchase records at current prices.
func (s *LedgerService) Checkout(ctx context.Context, userID string) (result *domain.CheckoutResult, err error) {
	defer func() { observe("checkout", err) }()

	records, err := s.ledger.Checkout(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := domain.NewCheckoutResult(records)
	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("user_id", userID),
		slog.Int("lines", len(records)),
		slog.Int64("grand_total", res.GrandTotal),
	)

	if s.events != nil {
		if err := s.events.PublishCheckoutCompleted(ctx, userID, &res); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish checkout.completed event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return &res, nil
}

// PurchaseHistory lists purchases. Plain users always see their own
// history; managers and admins may name another user.
func (s *LedgerService) PurchaseHistory(ctx context.Context, q HistoryQuery) ([]domain.PurchaseRecord, error) {
	filter := domain.HistoryFilter{UserID: q.RequesterID}
	if domain.CanActForOthers(q.RequesterRole) && strings.TrimSpace(q.TargetUserID) != "" {
		filter.UserID = strings.TrimSpace(q.TargetUserID)
	}

	if q.Date != "" {
		day, err := time.Parse(domain.DateLayout, q.Date)
		if err != nil {
			return nil, apperrors.InvalidInput("date must be in YYYY-MM-DD format")
		}
		filter.Date = &day
	}

	records, err := s.ledger.PurchaseHistory(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("purchase history: %w", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NotFoundMessage("no purchase history found")
	}
	return records, nil
}

func normalizeItems(items []domain.CartItem) ([]domain.CartItem, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("product name is required")
		}
		if it.Quantity <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("quantity for '%s' must be greater than zero", name))
		}
		if _, dup := seen[name]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("product '%s' is listed more than once", name))
		}
		seen[name] = struct{}{}
		out = append(out, domain.CartItem{Name: name, Quantity: it.Quantity})
	}
	return out, nil
}

func normalizeNames(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, apperrors.InvalidInput("at least one product name is required")
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		name := strings.TrimSpace(n)
		if name == "" {
			return nil, apperrors.InvalidInput("product name is required")
		}
		if _, dup := seen[name]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("product '%s' is listed more than once", name))
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
