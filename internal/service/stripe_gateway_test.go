package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeGatewayCreateCheckoutSession(t *testing.T) {
	var couponCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/coupons":
			couponCalls++
			assert.NotEmpty(t, r.PostForm.Get("percent_off"))
			assert.Equal(t, "once", r.PostForm.Get("duration"))
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "co_1", "object": "coupon"})
		case "/v1/checkout/sessions":
			assert.Equal(t, "2500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
			assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))
			assert.Equal(t, "co_1", r.PostForm.Get("discounts[0][coupon]"))
			assert.Equal(t, "7", r.PostForm.Get("metadata[user_id]"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "cs_test_1", "object": "checkout.session", "url": "https://checkout.stripe.test/cs_test_1",
				"payment_status": "unpaid", "amount_total": 4500,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	gw := NewStripeGateway("sk_test_x", srv.URL)
	s, err := gw.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Lines:           []CheckoutLine{{Name: "Hoodie", UnitAmountCents: 2500, Quantity: 2}},
		DiscountPercent: 10,
		SuccessURL:      "http://localhost/success",
		CancelURL:       "http://localhost/cancel",
		Metadata:        map[string]string{"user_id": "7"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, couponCalls)
	require.Equal(t, "cs_test_1", s.ID)
	require.False(t, s.Paid)
	require.Equal(t, int64(4500), s.AmountTotalCents)
}

func TestStripeGatewayGetCheckoutSessionMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/checkout/sessions/cs_paid":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "cs_paid", "object": "checkout.session", "payment_status": "paid",
				"amount_total": 1000, "metadata": map[string]string{"user_id": "3"},
			})
		case "/v1/checkout/sessions/cs_missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"down"}}`))
		}
	}))
	defer srv.Close()
	gw := NewStripeGateway("sk_test_x", srv.URL)
	ctx := context.Background()

	s, err := gw.GetCheckoutSession(ctx, "cs_paid")
	require.NoError(t, err)
	require.True(t, s.Paid)
	require.Equal(t, "3", s.Metadata["user_id"])

	_, err = gw.GetCheckoutSession(ctx, "cs_missing")
	require.ErrorIs(t, err, ErrPaymentRejected)

	_, err = gw.GetCheckoutSession(ctx, "cs_other")
	require.ErrorIs(t, err, ErrPaymentProviderDown)
}

func TestStripeGatewayRejectsEmptyCheckout(t *testing.T) {
	gw := NewStripeGateway("sk_test_x", "http://127.0.0.1:1")
	_, err := gw.CreateCheckoutSession(context.Background(), CheckoutRequest{})
	require.ErrorIs(t, err, ErrPaymentRejected)
}
