package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

var (
	// ErrPaymentRejected means Stripe refused the request itself.
	ErrPaymentRejected = errors.New("payment rejected")
	// ErrPaymentProviderDown means Stripe could not be reached or failed.
	ErrPaymentProviderDown = errors.New("payment provider unavailable")
)

// CheckoutLine is one priced line of a hosted checkout.
type CheckoutLine struct {
	Name            string
	ImageURL        string
	UnitAmountCents int64
	Quantity        int64
}

// CheckoutRequest describes a hosted checkout session.  DiscountPercent
// greater than zero attaches a one-off Stripe coupon.
type CheckoutRequest struct {
	Lines           []CheckoutLine
	DiscountPercent int
	SuccessURL      string
	CancelURL       string
	Metadata        map[string]string
}

// CheckoutSession is the subset of a Stripe checkout session the
// storefront needs.
type CheckoutSession struct {
	ID               string
	URL              string
	Paid             bool
	AmountTotalCents int64
	Metadata         map[string]string
}

// StripeGateway talks to Stripe through a per-instance client rather than
// the package-level globals.
type StripeGateway struct {
	client *client.API
}

// NewStripeGateway builds a gateway for apiKey.  backendURL overrides the
// Stripe API base (stripe-mock, tests); empty means api.stripe.com.
func NewStripeGateway(apiKey, backendURL string) *StripeGateway {
	sc := &client.API{}
	var backends *stripe.Backends
	if backendURL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:               stripe.String(backendURL),
				MaxNetworkRetries: stripe.Int64(0),
			}),
		}
	}
	sc.Init(apiKey, backends)
	return &StripeGateway{client: sc}
}

// CreateCheckoutSession opens a card-payment session for req.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if len(req.Lines) == 0 {
		return CheckoutSession{}, fmt.Errorf("%w: no line items", ErrPaymentRejected)
	}
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	for _, l := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(l.Name)}
		if l.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{l.ImageURL})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				ProductData: product,
				UnitAmount:  stripe.Int64(l.UnitAmountCents),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}
	if req.DiscountPercent > 0 {
		couponID, err := g.createCoupon(ctx, req.DiscountPercent)
		if err != nil {
			return CheckoutSession{}, err
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(couponID)}}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, mapStripeError(err)
	}
	return toCheckoutSession(s), nil
}

// GetCheckoutSession fetches a session by id.
func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.client.CheckoutSessions.Get(id, params)
	if err != nil {
		return CheckoutSession{}, mapStripeError(err)
	}
	return toCheckoutSession(s), nil
}

// createCoupon makes a single-use percentage coupon and returns its id.
func (g *StripeGateway) createCoupon(ctx context.Context, percentOff int) (string, error) {
	params := &stripe.CouponParams{
		PercentOff: stripe.Float64(float64(percentOff)),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx
	c, err := g.client.Coupons.New(params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return c.ID, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) CheckoutSession {
	return CheckoutSession{
		ID:               s.ID,
		URL:              s.URL,
		Paid:             s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotalCents: s.AmountTotal,
		Metadata:         s.Metadata,
	}
}

// mapStripeError keeps stripe-go types out of the handlers.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrPaymentProviderDown, stripeErr.Msg)
		}
		return fmt.Errorf("%w: %s", ErrPaymentRejected, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrPaymentProviderDown, err)
}
