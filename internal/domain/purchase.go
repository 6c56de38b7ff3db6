package domain

import "time"

// PurchaseRecord is an immutable line of purchase history. ProductID becomes
// nil once the product is removed; name and prices are frozen at checkout.
type PurchaseRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   *string   `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	TotalPrice  int64     `json:"total_price"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// CheckoutResult summarizes a completed checkout.
type CheckoutResult struct {
	Purchases  []PurchaseRecord `json:"purchases"`
	GrandTotal int64            `json:"grand_total"`
}

// NewCheckoutResult sums the frozen totals of records.
func NewCheckoutResult(records []PurchaseRecord) CheckoutResult {
	var total int64
	for _, r := range records {
		total += r.TotalPrice
	}
	return CheckoutResult{Purchases: records, GrandTotal: total}
}

// HistoryFilter narrows a purchase history query. Date, when set, matches
// the UTC calendar date of the purchase.
type HistoryFilter struct {
	UserID string
	Date   *time.Time
}

// DateLayout is the accepted format of history date filters.
const DateLayout = "2006-01-02"
