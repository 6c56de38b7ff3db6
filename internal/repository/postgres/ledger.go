package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/pkg/database"
	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/pagination"
)

// Products are always locked in primary-key order so that two batches
// touching overlapping products queue instead of deadlocking.
const (
	lockProductsByNameSQL = `
		SELECT id, name, price, stock_quantity
		FROM products
		WHERE name = ANY($1)
		ORDER BY id
		FOR UPDATE`

	lockCartLinesSQL = `
		SELECT id, product_id, quantity, created_at, updated_at
		FROM cart_lines
		WHERE user_id = $1 AND product_id = ANY($2)
		ORDER BY product_id
		FOR UPDATE`

	setStockSQL = `UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`

	upsertCartLineSQL = `
		INSERT INTO cart_lines (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = cart_lines.quantity + EXCLUDED.quantity,
			updated_at = NOW()
		RETURNING id, quantity, created_at, updated_at`

	updateCartLineSQL = `
		UPDATE cart_lines SET quantity = $3, updated_at = NOW()
		WHERE user_id = $1 AND product_id = $2
		RETURNING updated_at`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2`

	lockCheckoutLinesSQL = `
		SELECT c.product_id, p.name, c.quantity, p.price
		FROM cart_lines c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY p.id
		FOR UPDATE OF c, p`

	insertPurchaseSQL = `
		INSERT INTO purchase_records
			(id, user_id, product_id, product_name, quantity, unit_price, total_price, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	clearCartSQL = `DELETE FROM cart_lines WHERE user_id = $1`
)

// LedgerRepository implements repository.LedgerRepository. Each mutating
// method runs in one READ COMMITTED transaction with the rows it reads
// locked FOR UPDATE, and rolls back entirely on any failure.
type LedgerRepository struct {
	pool database.TxBeginner
}

// NewLedgerRepository creates a new PostgreSQL-backed ledger repository.
func NewLedgerRepository(pool database.TxBeginner) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) inTx(ctx context.Context, operation, statement string, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	ctx, end := database.TraceQuery(ctx, operation, statement)
	defer func() { end(err) }()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// lockProducts locks the named products and returns them keyed by name. The
// first requested name that does not exist is reported as not found.
func lockProducts(ctx context.Context, tx pgx.Tx, names []string) (map[string]*domain.Product, error) {
	rows, err := tx.Query(ctx, lockProductsByNameSQL, names)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*domain.Product, len(names))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity); err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		byName[p.Name] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}

	for _, name := range names {
		if _, ok := byName[name]; !ok {
			return nil, apperrors.NotFoundMessage(fmt.Sprintf("product '%s' not found", name))
		}
	}
	return byName, nil
}

type lockedLine struct {
	id        string
	quantity  int
	createdAt time.Time
	updatedAt time.Time
}

// lockCartLines locks the user's lines for products and returns them keyed
// by product id. The first product without a line is reported as not found.
func lockCartLines(ctx context.Context, tx pgx.Tx, userID string, names []string, products map[string]*domain.Product) (map[string]lockedLine, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, products[name].ID)
	}

	rows, err := tx.Query(ctx, lockCartLinesSQL, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	byProduct := make(map[string]lockedLine, len(ids))
	for rows.Next() {
		var (
			productID string
			l         lockedLine
		)
		if err := rows.Scan(&l.id, &productID, &l.quantity, &l.createdAt, &l.updatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		byProduct[productID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	for _, name := range names {
		if _, ok := byProduct[products[name].ID]; !ok {
			return nil, apperrors.NotFoundMessage(fmt.Sprintf("product '%s' not found in cart", name))
		}
	}
	return byProduct, nil
}

func insufficientStock(p *domain.Product) error {
	return apperrors.Unprocessable(fmt.Sprintf("insufficient stock for '%s'. available quantity: %d", p.Name, p.StockQuantity))
}

func itemNames(items []domain.CartItem) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return names
}

// AddToCart reserves stock for every item and merges it into the cart.
func (r *LedgerRepository) AddToCart(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, []domain.StockLevel, error) {
	var (
		lines  []domain.CartLine
		levels []domain.StockLevel
	)

	err := r.inTx(ctx, "AddToCart", lockProductsByNameSQL, func(ctx context.Context, tx pgx.Tx) error {
		products, err := lockProducts(ctx, tx, itemNames(items))
		if err != nil {
			return err
		}

		// Validate the whole batch before writing anything.
		for _, it := range items {
			if p := products[it.Name]; it.Quantity > p.StockQuantity {
				return insufficientStock(p)
			}
		}

		for _, it := range items {
			p := products[it.Name]
			p.StockQuantity -= it.Quantity
			if _, err := tx.Exec(ctx, setStockSQL, p.ID, p.StockQuantity); err != nil {
				return fmt.Errorf("reserve stock for %s: %w", p.Name, err)
			}

			line := domain.CartLine{
				UserID:      userID,
				ProductID:   p.ID,
				ProductName: p.Name,
				UnitPrice:   p.Price,
			}
			err := tx.QueryRow(ctx, upsertCartLineSQL, uuid.NewString(), userID, p.ID, it.Quantity).
				Scan(&line.ID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt)
			if err != nil {
				return fmt.Errorf("upsert cart line for %s: %w", p.Name, err)
			}
			line.TotalPrice = int64(line.Quantity) * line.UnitPrice

			lines = append(lines, line)
			levels = append(levels, p.LevelOf())
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return lines, levels, nil
}

// RemoveFromCart deletes the user's lines for names and returns their stock.
func (r *LedgerRepository) RemoveFromCart(ctx context.Context, userID string, names []string) ([]domain.StockLevel, error) {
	var levels []domain.StockLevel

	err := r.inTx(ctx, "RemoveFromCart", lockCartLinesSQL, func(ctx context.Context, tx pgx.Tx) error {
		products, err := lockProducts(ctx, tx, names)
		if err != nil {
			return err
		}
		lines, err := lockCartLines(ctx, tx, userID, names, products)
		if err != nil {
			return err
		}

		for _, name := range names {
			p := products[name]
			p.StockQuantity += lines[p.ID].quantity
			if _, err := tx.Exec(ctx, setStockSQL, p.ID, p.StockQuantity); err != nil {
				return fmt.Errorf("restore stock for %s: %w", p.Name, err)
			}
			if _, err := tx.Exec(ctx, deleteCartLineSQL, userID, p.ID); err != nil {
				return fmt.Errorf("delete cart line for %s: %w", p.Name, err)
			}
			levels = append(levels, p.LevelOf())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// UpdateCartQuantity sets absolute quantities on existing lines. Growing a
// line draws the difference from stock; shrinking it gives the difference
// back.
func (r *LedgerRepository) UpdateCartQuantity(ctx context.Context, userID string, items []domain.CartItem) ([]domain.CartLine, []domain.StockLevel, error) {
	var (
		lines  []domain.CartLine
		levels []domain.StockLevel
	)

	err := r.inTx(ctx, "UpdateCartQuantity", lockCartLinesSQL, func(ctx context.Context, tx pgx.Tx) error {
		names := itemNames(items)
		products, err := lockProducts(ctx, tx, names)
		if err != nil {
			return err
		}
		held, err := lockCartLines(ctx, tx, userID, names, products)
		if err != nil {
			return err
		}

		for _, it := range items {
			p := products[it.Name]
			if delta := it.Quantity - held[p.ID].quantity; delta > p.StockQuantity {
				return insufficientStock(p)
			}
		}

		for _, it := range items {
			p := products[it.Name]
			current := held[p.ID]
			line := domain.CartLine{
				ID:          current.id,
				UserID:      userID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				UnitPrice:   p.Price,
				TotalPrice:  int64(it.Quantity) * p.Price,
				CreatedAt:   current.createdAt,
				UpdatedAt:   current.updatedAt,
			}

			if delta := it.Quantity - current.quantity; delta != 0 {
				p.StockQuantity -= delta
				if _, err := tx.Exec(ctx, setStockSQL, p.ID, p.StockQuantity); err != nil {
					return fmt.Errorf("adjust stock for %s: %w", p.Name, err)
				}
				if err := tx.QueryRow(ctx, updateCartLineSQL, userID, p.ID, it.Quantity).Scan(&line.UpdatedAt); err != nil {
					return fmt.Errorf("update cart line for %s: %w", p.Name, err)
				}
			}

			lines = append(lines, line)
			levels = append(levels, p.LevelOf())
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return lines, levels, nil
}

// ListCart returns one page of the user's cart joined with current prices.
func (r *LedgerRepository) ListCart(ctx context.Context, userID string, params pagination.Params) ([]domain.CartLine, int, error) {
	query := `
		SELECT c.id, c.product_id, p.name, c.quantity, p.price, c.created_at, c.updated_at,
			   count(*) OVER() AS total_count
		FROM cart_lines c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	var (
		lines []domain.CartLine
		total int
	)
	for rows.Next() {
		l := domain.CartLine{UserID: userID}
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.CreatedAt, &l.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate cart lines: %w", err)
	}

	return lines, total, nil
}

// Checkout turns every cart line into a purchase record priced at the
// current unit price, then empties the cart. Stock is untouched because it
// was reserved when the lines were created.
func (r *LedgerRepository) Checkout(ctx context.Context, userID string) ([]domain.PurchaseRecord, error) {
	var records []domain.PurchaseRecord

	err := r.inTx(ctx, "Checkout", lockCheckoutLinesSQL, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockCheckoutLinesSQL, userID)
		if err != nil {
			return fmt.Errorf("lock cart for checkout: %w", err)
		}

		purchasedAt := time.Now().UTC()
		for rows.Next() {
			var (
				productID string
				rec       = domain.PurchaseRecord{UserID: userID, PurchasedAt: purchasedAt}
			)
			if err := rows.Scan(&productID, &rec.ProductName, &rec.Quantity, &rec.UnitPrice); err != nil {
				rows.Close()
				return fmt.Errorf("scan checkout line: %w", err)
			}
			rec.ID = uuid.NewString()
			rec.ProductID = &productID
			rec.TotalPrice = int64(rec.Quantity) * rec.UnitPrice
			records = append(records, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate checkout lines: %w", err)
		}

		if len(records) == 0 {
			return apperrors.NotFoundMessage("cart is empty")
		}

		for _, rec := range records {
			_, err := tx.Exec(ctx, insertPurchaseSQL,
				rec.ID, rec.UserID, *rec.ProductID, rec.ProductName,
				rec.Quantity, rec.UnitPrice, rec.TotalPrice, rec.PurchasedAt,
			)
			if err != nil {
				return fmt.Errorf("insert purchase record for %s: %w", rec.ProductName, err)
			}
		}

		if _, err := tx.Exec(ctx, clearCartSQL, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PurchaseHistory lists the purchase records of filter.UserID, newest first.
func (r *LedgerRepository) PurchaseHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.PurchaseRecord, error) {
	query := `
		SELECT id, user_id, product_id, product_name, quantity, unit_price, total_price, purchased_at
		FROM purchase_records
		WHERE user_id = $1`
	args := []any{filter.UserID}

	if filter.Date != nil {
		query += ` AND (purchased_at AT TIME ZONE 'UTC')::date = $2::date`
		args = append(args, filter.Date.UTC().Format(domain.DateLayout))
	}
	query += ` ORDER BY purchased_at DESC, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase history: %w", err)
	}
	defer rows.Close()

	var records []domain.PurchaseRecord
	for rows.Next() {
		var rec domain.PurchaseRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.ProductID,
			&rec.ProductName,
			&rec.Quantity,
			&rec.UnitPrice,
			&rec.TotalPrice,
			&rec.PurchasedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase records: %w", err)
	}

	return records, nil
}
