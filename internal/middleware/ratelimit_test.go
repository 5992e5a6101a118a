package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-backend/internal/config"
)

func testRateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func hitLogin(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newLimitedEcho(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.POST("/api/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	return e
}

func TestTokenBucketRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	e := newLimitedEcho(NewTokenBucket(testRateConfig(), rdb))

	require.Equal(t, http.StatusOK, hitLogin(e, "10.0.0.1").Code)
	second := hitLogin(e, "10.0.0.1")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	blocked := hitLogin(e, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.Equal(t, "60", blocked.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, hitLogin(e, "10.0.0.2").Code)
	require.True(t, mr.Exists("rl:ip:10.0.0.1:route:POST /api/auth/login"))
}

func TestTokenBucketFallsBackWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	e := newLimitedEcho(NewTokenBucket(testRateConfig(), rdb))

	require.Equal(t, http.StatusOK, hitLogin(e, "10.0.0.1").Code)
	require.Equal(t, http.StatusOK, hitLogin(e, "10.0.0.1").Code)
	blocked := hitLogin(e, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestTokenBucketWithoutRedis(t *testing.T) {
	e := newLimitedEcho(NewTokenBucket(testRateConfig(), nil))
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, hitLogin(e, "10.0.0.9").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, hitLogin(e, "10.0.0.9").Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := testRateConfig()
	cfg.Enabled = false
	e := newLimitedEcho(NewTokenBucket(cfg, nil))
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, hitLogin(e, "10.0.0.9").Code)
	}
}

func TestLocalLimiterRefills(t *testing.T) {
	l := newLocalLimiter(testRateConfig())
	now := time.Unix(1_700_000_000, 0)

	require.True(t, l.take("k", now).allowed)
	require.True(t, l.take("k", now).allowed)
	blocked := l.take("k", now)
	require.False(t, blocked.allowed)
	require.InDelta(t, time.Minute.Seconds(), blocked.retry.Seconds(), 0.01)

	require.True(t, l.take("k", now.Add(2*time.Minute)).allowed)
}
