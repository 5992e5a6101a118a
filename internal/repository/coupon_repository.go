package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/storefront-backend/internal/model"
)

// CouponRepo stores one coupon per user.
type CouponRepo struct{ DB *sql.DB }

func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{DB: db} }

const couponColumns = "id,code,discount_percentage,expiration_date,is_active,user_id,created_at"

func scanCoupon(row *sql.Row) (model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.ExpirationDate, &c.IsActive, &c.UserID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Coupon{}, ErrCouponNotFound
	}
	if err != nil {
		return model.Coupon{}, fmt.Errorf("scan coupon: %w", err)
	}
	return c, nil
}

// GetActiveForUser returns the user's active coupon.
func (r *CouponRepo) GetActiveForUser(ctx context.Context, userID uint64) (model.Coupon, error) {
	return scanCoupon(r.DB.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE user_id=? AND is_active=1 LIMIT 1", userID))
}

// GetActiveByCode returns an active coupon owned by userID.
func (r *CouponRepo) GetActiveByCode(ctx context.Context, code string, userID uint64) (model.Coupon, error) {
	return scanCoupon(r.DB.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE code=? AND user_id=? AND is_active=1 LIMIT 1",
		strings.TrimSpace(code), userID))
}

// Deactivate marks a coupon used or expired.  Unknown codes are ignored.
func (r *CouponRepo) Deactivate(ctx context.Context, code string, userID uint64) error {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE coupons SET is_active=0 WHERE code=? AND user_id=?", strings.TrimSpace(code), userID); err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}
	return nil
}

// ReplaceForUser drops the user's previous coupon and stores c.
func (r *CouponRepo) ReplaceForUser(ctx context.Context, c *model.Coupon) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace coupon: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM coupons WHERE user_id=?", c.UserID); err != nil {
		return fmt.Errorf("delete old coupon: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO coupons (code, discount_percentage, expiration_date, is_active, user_id) VALUES (?,?,?,?,?)",
		c.Code, c.DiscountPercentage, c.ExpirationDate.UTC(), true, c.UserID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit coupon: %w", err)
	}
	c.ID = uint64(id)
	c.IsActive = true
	c.CreatedAt = time.Now().UTC()
	return nil
}
