package model

import "time"

// Coupon is a per-user percentage discount.  A user holds at most one.
type Coupon struct {
	ID                 uint64    `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discount_percentage"`
	ExpirationDate     time.Time `json:"expiration_date"`
	IsActive           bool      `json:"is_active"`
	UserID             uint64    `json:"user_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// Expired reports whether the coupon is past its expiration date at now.
func (c Coupon) Expired(now time.Time) bool {
	return !now.Before(c.ExpirationDate)
}
