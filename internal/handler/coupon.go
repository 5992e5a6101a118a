package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
)

type CouponReader interface {
	GetActiveForUser(ctx context.Context, userID uint64) (model.Coupon, error)
	GetActiveByCode(ctx context.Context, code string, userID uint64) (model.Coupon, error)
	Deactivate(ctx context.Context, code string, userID uint64) error
}

type CouponHandler struct {
	Coupons CouponReader
	now     func() time.Time
}

func NewCouponHandler(coupons CouponReader) *CouponHandler {
	return &CouponHandler{Coupons: coupons, now: time.Now}
}

// Get returns the caller's active coupon, or null.
func (h *CouponHandler) Get(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cp, err := h.Coupons.GetActiveForUser(ctx, u.ID)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return c.JSON(http.StatusOK, nil)
	}
	if err != nil {
		return upstreamFailure(c, "coupons.get", err)
	}
	return c.JSON(http.StatusOK, cp)
}

// Validate checks a code the caller owns.  An expired coupon is
// deactivated on the way out.
func (h *CouponHandler) Validate(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return jsonError(c, http.StatusBadRequest, "code is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cp, err := h.Coupons.GetActiveByCode(ctx, req.Code, u.ID)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return jsonError(c, http.StatusNotFound, "coupon not found")
	}
	if err != nil {
		return upstreamFailure(c, "coupons.validate", err)
	}
	if cp.Expired(h.now()) {
		if err := h.Coupons.Deactivate(ctx, cp.Code, u.ID); err != nil {
			zap.L().Warn("deactivate expired coupon failed", zap.String("code", cp.Code), zap.Error(err))
		}
		return jsonError(c, http.StatusNotFound, "coupon expired")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":             "coupon is valid",
		"code":                cp.Code,
		"discount_percentage": cp.DiscountPercentage,
	})
}
