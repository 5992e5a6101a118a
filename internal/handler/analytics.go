package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-backend/internal/model"
)

const (
	defaultAnalyticsDays = 7
	maxAnalyticsDays     = 366
)

type AnalyticsStore interface {
	Totals(ctx context.Context) (model.AnalyticsTotals, error)
	DailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error)
}

type AnalyticsHandler struct {
	Store AnalyticsStore
	now   func() time.Time
}

func NewAnalyticsHandler(store AnalyticsStore) *AnalyticsHandler {
	return &AnalyticsHandler{Store: store, now: time.Now}
}

// Get returns store totals and a zero-filled daily series.  start and end
// are YYYY-MM-DD and inclusive; the default is the last 7 days.
func (h *AnalyticsHandler) Get(c echo.Context) error {
	end := h.now().UTC()
	if v := c.QueryParam("end"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "end must be YYYY-MM-DD")
		}
		end = t
	}
	start := end.AddDate(0, 0, -(defaultAnalyticsDays - 1))
	if v := c.QueryParam("start"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "start must be YYYY-MM-DD")
		}
		start = t
	}
	if start.After(end) {
		return jsonError(c, http.StatusBadRequest, "start must not be after end")
	}
	if end.Sub(start) > maxAnalyticsDays*24*time.Hour {
		return jsonError(c, http.StatusBadRequest, "date range too large")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	totals, err := h.Store.Totals(ctx)
	if err != nil {
		return upstreamFailure(c, "analytics.totals", err)
	}
	daily, err := h.Store.DailySales(ctx, start, end)
	if err != nil {
		return upstreamFailure(c, "analytics.daily", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"totals":      totals,
		"dailySeries": daily,
	})
}
