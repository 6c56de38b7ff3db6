package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, id, role string) (*domain.User, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, params pagination.Params) ([]domain.User, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

func (m *mockUserRepository) ExistsWithRole(ctx context.Context, role string) (bool, error) {
	args := m.Called(ctx, role)
	return args.Bool(0), args.Error(1)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Upsert(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) Rotate(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, userID, oldHash, newHash, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Product Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProductRepository) UpdatePrice(ctx context.Context, id string, price int64) (*domain.Product, error) {
	args := m.Called(ctx, id, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	args := m.Called(ctx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, params pagination.Params) ([]domain.Product, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

// --- Mock Ledger Repository ---

type mockLedgerRepository struct {
	mock.Mock
}

func (m *mockLedgerRepository) AddToCart(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, []domain.StockLevel, error) {
	args := m.Called(ctx, userID, items)
	lines, _ := args.Get(0).([]domain.CartLine)
	levels, _ := args.Get(1).([]domain.StockLevel)
	return lines, levels, args.Error(2)
}

func (m *mockLedgerRepository) RemoveFromCart(ctx context.Context, userID string, names []string) ([]domain.StockLevel, error) {
	args := m.Called(ctx, userID, names)
	levels, _ := args.Get(0).([]domain.StockLevel)
	return levels, args.Error(1)
}

func (m *mockLedgerRepository) UpdateCartQuantity(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, []domain.StockLevel, error) {
	args := m.Called(ctx, userID, items)
	lines, _ := args.Get(0).([]domain.CartLine)
	levels, _ := args.Get(1).([]domain.StockLevel)
	return lines, levels, args.Error(2)
}

func (m *mockLedgerRepository) ListCart(ctx context.Context, userID string, params pagination.Params) ([]domain.CartLine, int, error) {
	args := m.Called(ctx, userID, params)
	lines, _ := args.Get(0).([]domain.CartLine)
	return lines, args.Int(1), args.Error(2)
}

func (m *mockLedgerRepository) Checkout(ctx context.Context, userID string) ([]domain.PurchaseRecord, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]domain.PurchaseRecord)
	return records, args.Error(1)
}

func (m *mockLedgerRepository) PurchaseHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.PurchaseRecord, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]domain.PurchaseRecord)
	return records, args.Error(1)
}

// --- Recording stock observer ---

type recordingObserver struct {
	mu     sync.Mutex
	levels []domain.StockLevel
}

func (o *recordingObserver) StockChanged(_ context.Context, levels []domain.StockLevel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.levels = append(o.levels, levels...)
}

func (o *recordingObserver) seen() []domain.StockLevel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.StockLevel(nil), o.levels...)
}

// --- Mock checkout publisher ---

type mockCheckoutPublisher struct {
	mock.Mock
}

func (m *mockCheckoutPublisher) PublishCheckoutCompleted(ctx context.Context, userID string, result *domain.CheckoutResult) error {
	args := m.Called(ctx, userID, result)
	return args.Error(0)
}
