package model

import "time"

// Order is a paid checkout.  StripeSessionID is unique, which makes
// order creation idempotent per checkout session.
type Order struct {
	ID               uint64      `json:"id"`
	UserID           uint64      `json:"user_id"`
	Items            []OrderItem `json:"items"`
	TotalAmountCents int64       `json:"total_amount_cents"`
	StripeSessionID  string      `json:"stripe_session_id"`
	CreatedAt        time.Time   `json:"created_at"`
}

// OrderItem snapshots the unit price at purchase time.
type OrderItem struct {
	ProductID  uint64 `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}
