// Package metrics declares the service's prometheus collectors.  They are
// registered on the default registry and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthRejections counts session gate and refresh rejections by reason.
	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_auth_rejections_total",
			Help: "Rejected authentications by reason",
		},
		[]string{"reason"},
	)

	TokenOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_token_operations_total",
			Help: "Token service operations by kind and outcome",
		},
		[]string{"op", "outcome"},
	)

	FeaturedCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_featured_cache_lookups_total",
			Help: "Featured product cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders created from paid checkout sessions",
		},
	)
)
