package model

import "time"

// Product mirrors the `products` table.  Prices are kept in cents.
type Product struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	ImageURL      string    `json:"image"`
	ImagePublicID string    `json:"-"`
	Category      string    `json:"category"`
	IsFeatured    bool      `json:"is_featured"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CartProduct is a product joined with the quantity held in a cart.
type CartProduct struct {
	Product
	Quantity int `json:"quantity"`
}
