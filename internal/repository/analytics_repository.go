package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/storefront-backend/internal/model"
)

// AnalyticsRepo runs the aggregate queries behind the admin dashboard.
type AnalyticsRepo struct{ DB *sql.DB }

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{DB: db} }

// Totals counts users, products, orders and revenue in one round trip.
func (r *AnalyticsRepo) Totals(ctx context.Context) (model.AnalyticsTotals, error) {
	var t model.AnalyticsTotals
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM products),
			COUNT(*),
			COALESCE(SUM(total_amount_cents), 0)
		FROM orders`).Scan(&t.Users, &t.Products, &t.TotalSales, &t.TotalRevenueCents)
	if err != nil {
		return model.AnalyticsTotals{}, fmt.Errorf("analytics totals: %w", err)
	}
	return t, nil
}

// DailySales returns one point per UTC day in [from, to] inclusive.  Days
// without orders are zero-filled.
func (r *AnalyticsRepo) DailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error) {
	start := truncateDay(from)
	end := truncateDay(to).AddDate(0, 0, 1)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DATE_FORMAT(created_at, '%Y-%m-%d') AS day, COUNT(*), COALESCE(SUM(total_amount_cents), 0)
		FROM orders
		WHERE created_at >= ? AND created_at < ?
		GROUP BY day
		ORDER BY day`, start, end)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	found := map[string]model.DailySales{}
	for rows.Next() {
		var d model.DailySales
		if err := rows.Scan(&d.Date, &d.Sales, &d.RevenueCents); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		found[d.Date] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	return FillDays(from, to, found), nil
}

// FillDays lays found onto every day from..to, zero where missing.
func FillDays(from, to time.Time, found map[string]model.DailySales) []model.DailySales {
	out := []model.DailySales{}
	for d := truncateDay(from); !d.After(truncateDay(to)); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		if v, ok := found[key]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, model.DailySales{Date: key})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
