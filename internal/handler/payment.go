package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/queue"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/service"
)

const (
	giftThresholdCents = 20000
	giftDiscountPct    = 10
	giftValidity       = 30 * 24 * time.Hour
	publishTimeout     = 5 * time.Second
)

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (service.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (service.CheckoutSession, error)
}

type CouponStore interface {
	GetActiveByCode(ctx context.Context, code string, userID uint64) (model.Coupon, error)
	Deactivate(ctx context.Context, code string, userID uint64) error
	ReplaceForUser(ctx context.Context, c *model.Coupon) error
}

type OrderStore interface {
	GetBySession(ctx context.Context, sessionID string) (model.Order, error)
	Create(ctx context.Context, o *model.Order) error
}

type PriceLookup interface {
	GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Product, error)
}

type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error
}

// PaymentHandler runs Stripe hosted checkout.  Gateway is nil when no
// Stripe key is configured; Publisher may be nil.
type PaymentHandler struct {
	Gateway   PaymentGateway
	Products  PriceLookup
	Coupons   CouponStore
	Orders    OrderStore
	Publisher OrderPublisher
	ClientURL string
	now       func() time.Time
}

func NewPaymentHandler(gw PaymentGateway, products PriceLookup, coupons CouponStore, orders OrderStore, pub OrderPublisher, clientURL string) *PaymentHandler {
	return &PaymentHandler{
		Gateway:   gw,
		Products:  products,
		Coupons:   coupons,
		Orders:    orders,
		Publisher: pub,
		ClientURL: strings.TrimRight(clientURL, "/"),
		now:       time.Now,
	}
}

type checkoutProduct struct {
	ID       uint64 `json:"id"`
	Quantity int    `json:"quantity"`
}

type checkoutReq struct {
	Products   []checkoutProduct `json:"products"`
	CouponCode string            `json:"coupon_code"`
}

// sessionLine is the order line carried in the Stripe session metadata.
type sessionLine struct {
	ID       uint64 `json:"id"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// CreateCheckoutSession prices the cart from the catalog, applies the
// caller's coupon and opens a Stripe checkout.  Large orders earn a gift
// coupon for the next purchase.
func (h *PaymentHandler) CreateCheckoutSession(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	if h.Gateway == nil {
		return jsonError(c, http.StatusServiceUnavailable, "payments are not configured")
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil || len(req.Products) == 0 {
		return jsonError(c, http.StatusBadRequest, "invalid or empty products array")
	}
	ids := make([]uint64, 0, len(req.Products))
	for _, p := range req.Products {
		if p.ID == 0 || p.Quantity < 1 {
			return jsonError(c, http.StatusBadRequest, "each product needs an id and a positive quantity")
		}
		ids = append(ids, p.ID)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	catalog, err := h.Products.GetByIDs(ctx, ids)
	if err != nil {
		return upstreamFailure(c, "checkout.prices", err)
	}
	var (
		total int64
		lines = make([]service.CheckoutLine, 0, len(req.Products))
		meta  = make([]sessionLine, 0, len(req.Products))
	)
	for _, item := range req.Products {
		p, ok := catalog[item.ID]
		if !ok {
			return jsonError(c, http.StatusBadRequest, fmt.Sprintf("unknown product %d", item.ID))
		}
		total += p.PriceCents * int64(item.Quantity)
		lines = append(lines, service.CheckoutLine{
			Name:            p.Name,
			ImageURL:        p.ImageURL,
			UnitAmountCents: p.PriceCents,
			Quantity:        int64(item.Quantity),
		})
		meta = append(meta, sessionLine{ID: p.ID, Quantity: item.Quantity, Price: p.PriceCents})
	}
	subtotal := total

	discount := 0
	couponCode := strings.TrimSpace(req.CouponCode)
	if couponCode != "" {
		cp, err := h.Coupons.GetActiveByCode(ctx, couponCode, u.ID)
		switch {
		case err == nil && !cp.Expired(h.now()):
			discount = cp.DiscountPercentage
			total -= int64(math.Round(float64(total) * float64(discount) / 100))
		case err == nil, errors.Is(err, repository.ErrCouponNotFound):
			couponCode = ""
		default:
			return upstreamFailure(c, "checkout.coupon", err)
		}
	}

	productsJSON, err := json.Marshal(meta)
	if err != nil {
		return upstreamFailure(c, "checkout.metadata", err)
	}
	sess, err := h.Gateway.CreateCheckoutSession(ctx, service.CheckoutRequest{
		Lines:           lines,
		DiscountPercent: discount,
		SuccessURL:      h.ClientURL + "/purchase-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       h.ClientURL + "/purchase-cancel",
		Metadata: map[string]string{
			"user_id":     strconv.FormatUint(u.ID, 10),
			"coupon_code": couponCode,
			"products":    string(productsJSON),
		},
	})
	if err != nil {
		return h.gatewayFailure(c, "checkout.create_session", err)
	}

	if subtotal >= giftThresholdCents {
		h.issueGiftCoupon(ctx, u.ID)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                 sess.ID,
		"url":                sess.URL,
		"total_amount_cents": total,
	})
}

func (h *PaymentHandler) issueGiftCoupon(ctx context.Context, userID uint64) {
	cp := &model.Coupon{
		Code:               "GIFT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6]),
		DiscountPercentage: giftDiscountPct,
		ExpirationDate:     h.now().Add(giftValidity),
		IsActive:           true,
		UserID:             userID,
	}
	if err := h.Coupons.ReplaceForUser(ctx, cp); err != nil {
		zap.L().Error("issue gift coupon failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
}

// CheckoutSuccess turns a paid session into an order.  Replays of the same
// session return the order created the first time.
func (h *PaymentHandler) CheckoutSuccess(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	if h.Gateway == nil {
		return jsonError(c, http.StatusServiceUnavailable, "payments are not configured")
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		return jsonError(c, http.StatusBadRequest, "session_id is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	sess, err := h.Gateway.GetCheckoutSession(ctx, strings.TrimSpace(req.SessionID))
	if err != nil {
		return h.gatewayFailure(c, "checkout_success.get_session", err)
	}
	if !sess.Paid {
		return jsonError(c, http.StatusBadRequest, "payment not completed")
	}
	if sess.Metadata["user_id"] != strconv.FormatUint(u.ID, 10) {
		return jsonError(c, http.StatusForbidden, "checkout session belongs to another user")
	}

	existing, err := h.Orders.GetBySession(ctx, sess.ID)
	if err == nil {
		return orderCreated(c, existing.ID)
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return upstreamFailure(c, "checkout_success.lookup_order", err)
	}

	couponCode := sess.Metadata["coupon_code"]
	if couponCode != "" {
		if err := h.Coupons.Deactivate(ctx, couponCode, u.ID); err != nil {
			zap.L().Error("deactivate used coupon failed", zap.String("code", couponCode), zap.Error(err))
		}
	}

	var lines []sessionLine
	if err := json.Unmarshal([]byte(sess.Metadata["products"]), &lines); err != nil {
		return upstreamFailure(c, "checkout_success.decode_products", err)
	}
	order := model.Order{
		UserID:           u.ID,
		TotalAmountCents: sess.AmountTotalCents,
		StripeSessionID:  sess.ID,
		Items:            make([]model.OrderItem, len(lines)),
	}
	for i, l := range lines {
		order.Items[i] = model.OrderItem{ProductID: l.ID, Quantity: l.Quantity, PriceCents: l.Price}
	}
	if err := h.Orders.Create(ctx, &order); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if existing, lerr := h.Orders.GetBySession(ctx, sess.ID); lerr == nil {
				return orderCreated(c, existing.ID)
			}
		}
		return upstreamFailure(c, "checkout_success.create_order", err)
	}
	metrics.OrdersCreated.Inc()
	h.publishOrder(ctx, u, couponCode, order)
	return orderCreated(c, order.ID)
}

func (h *PaymentHandler) publishOrder(ctx context.Context, u *model.User, couponCode string, o model.Order) {
	if h.Publisher == nil {
		return
	}
	ev := queue.OrderPlacedEvent{
		OrderID:          o.ID,
		UserID:           u.ID,
		UserEmail:        u.Email,
		StripeSessionID:  o.StripeSessionID,
		CouponCode:       couponCode,
		TotalAmountCents: o.TotalAmountCents,
		PlacedAt:         h.now().UTC().Format(time.RFC3339),
		Items:            make([]queue.OrderEventItem, len(o.Items)),
	}
	for i, it := range o.Items {
		ev.Items[i] = queue.OrderEventItem{ProductID: it.ProductID, Quantity: it.Quantity, PriceCents: it.PriceCents}
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.Publisher.PublishOrderPlaced(pctx, ev); err != nil {
		zap.L().Warn("publish order.placed failed", zap.Uint64("order_id", o.ID), zap.Error(err))
	}
}

func orderCreated(c echo.Context, orderID uint64) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"message":  "Payment successful, order created, and coupon deactivated if used.",
		"order_id": orderID,
	})
}

func (h *PaymentHandler) gatewayFailure(c echo.Context, op string, err error) error {
	if errors.Is(err, service.ErrPaymentRejected) {
		zap.L().Warn("payment request rejected", zap.String("op", op), zap.Error(err))
		return jsonError(c, http.StatusBadRequest, "payment request rejected")
	}
	return upstreamFailure(c, op, err)
}
