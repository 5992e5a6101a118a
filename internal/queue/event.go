// Package queue defines the order events exchanged over RabbitMQ and the
// consumer that records them.
package queue

// OrderPlacedQueue is the durable queue order events are published to.
const OrderPlacedQueue = "order.placed"

// OrderPlacedEvent is published once an order has been created from a paid
// checkout session.  It carries enough for downstream consumers to log or
// notify without querying the database.
type OrderPlacedEvent struct {
	OrderID          uint64           `json:"order_id"`
	UserID           uint64           `json:"user_id"`
	UserEmail        string           `json:"user_email"`
	StripeSessionID  string           `json:"stripe_session_id"`
	CouponCode       string           `json:"coupon_code,omitempty"`
	Items            []OrderEventItem `json:"items"`
	TotalAmountCents int64            `json:"total_amount_cents"`
	PlacedAt         string           `json:"placed_at"`
}

type OrderEventItem struct {
	ProductID  uint64 `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}
