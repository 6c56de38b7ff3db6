package domain

import "time"

// CartItem is one requested product in a cart batch, addressed by name.
type CartItem struct {
	Name     string
	Quantity int
}

// CartLine is a product held in a user's cart. Creating a line deducts the
// product's stock; removing it restores the stock.
type CartLine struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	TotalPrice  int64     `json:"total_price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartPage is one page of a cart together with the page's grand total.
type CartPage struct {
	Items      []CartLine `json:"items"`
	GrandTotal int64      `json:"grand_total"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
}

// NewCartPage fills in line totals and the grand total.
func NewCartPage(lines []CartLine, totalCount, page, limit int) CartPage {
	if lines == nil {
		lines = []CartLine{}
	}
	var grand int64
	for i := range lines {
		lines[i].TotalPrice = int64(lines[i].Quantity) * lines[i].UnitPrice
		grand += lines[i].TotalPrice
	}
	return CartPage{Items: lines, GrandTotal: grand, TotalCount: totalCount, Page: page, Limit: limit}
}
