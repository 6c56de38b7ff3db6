package repository

import (
	"context"
	"time"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A taken username yields an AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// UpdateRole changes the role of a non-Admin user and returns the updated row.
	UpdateRole(ctx context.Context, id, role string) (*domain.User, error)

	// List returns one page of users ordered by creation time, plus the total count.
	List(ctx context.Context, params pagination.Params) ([]domain.User, int, error)

	// ExistsWithRole reports whether any user holds role.
	ExistsWithRole(ctx context.Context, role string) (bool, error)
}

// RefreshTokenRepository persists the single refresh credential of each user.
type RefreshTokenRepository interface {
	// Upsert stores tokenHash as the user's refresh token, replacing any previous one.
	Upsert(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// Rotate replaces oldHash with newHash only if oldHash is the stored,
	// unexpired token. It reports whether the swap happened.
	Rotate(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) (bool, error)

	// DeleteByUser removes the user's refresh token. Deleting nothing is not an error.
	DeleteByUser(ctx context.Context, userID string) error
}

// ProductRepository defines the interface for product catalogue operations.
type ProductRepository interface {
	// Create inserts a new product. A taken name yields an AlreadyExists error.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// ExistsByName reports whether a product with name exists.
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Delete removes a product. Cart lines cascade; purchase records keep a null reference.
	Delete(ctx context.Context, id string) error

	// UpdatePrice sets the unit price and returns the updated row.
	UpdatePrice(ctx context.Context, id string, price int64) (*domain.Product, error)

	// AdjustStock adds delta to the stock under a row lock. A result below
	// zero is rejected with an Unprocessable error and nothing changes.
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)

	// List returns one page of products ordered by name, plus the total count.
	List(ctx context.Context, params pagination.Params) ([]domain.Product, int, error)
}

// LedgerRepository runs the cart and checkout transactions. Every mutating
// method executes in a single transaction and either applies the whole batch
// or nothing. Mutations also return the stock levels they left behind.
type LedgerRepository interface {
	// AddToCart reserves stock for each item and adds it to the user's cart.
	AddToCart(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, []domain.StockLevel, error)

	// RemoveFromCart deletes the user's lines for the named products and restores their stock.
	RemoveFromCart(ctx context.Context, userID string, names []string) ([]domain.StockLevel, error)

	// UpdateCartQuantity sets new quantities on existing lines, moving the difference to or from stock.
	UpdateCartQuantity(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, []domain.StockLevel, error)

	// ListCart returns one page of the user's cart, plus the total number of lines.
	ListCart(ctx context.Context, userID string, params pagination.Params) ([]domain.CartLine, int, error)

	// Checkout converts every cart line into a purchase record and empties the cart.
	Checkout(ctx context.Context, userID string) ([]domain.PurchaseRecord, error)

	// PurchaseHistory lists purchase records matching filter, newest first.
	PurchaseHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.PurchaseRecord, error)
}
