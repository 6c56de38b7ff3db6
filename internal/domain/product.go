package domain

import "time"

// Product is a sellable item. Price is in minor currency units (cents).
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockLevel is the stock of one product as left by a committed write.
type StockLevel struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"stock_quantity"`
}

// LevelOf returns the stock level of p.
func (p *Product) LevelOf() StockLevel {
	return StockLevel{ProductID: p.ID, Name: p.Name, Quantity: p.StockQuantity}
}
