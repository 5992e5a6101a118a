package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/storefront-backend/internal/model"
)

// OrderRepo persists paid orders and their line items.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

// GetBySession returns the order created for a checkout session.
func (r *OrderRepo) GetBySession(ctx context.Context, sessionID string) (model.Order, error) {
	var o model.Order
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,total_amount_cents,stripe_session_id,created_at FROM orders WHERE stripe_session_id=? LIMIT 1",
		sessionID).Scan(&o.ID, &o.UserID, &o.TotalAmountCents, &o.StripeSessionID, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Create inserts the order and its items in one transaction.  A second
// order for the same session yields ErrConflict.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO orders (user_id, total_amount_cents, stripe_session_id) VALUES (?,?,?)",
		o.UserID, o.TotalAmountCents, o.StripeSessionID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, price_cents) VALUES (?,?,?,?)",
			id, it.ProductID, it.Quantity, it.PriceCents); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	o.ID = uint64(id)
	return nil
}
