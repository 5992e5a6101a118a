package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-backend/internal/model"
)

func TestFillDays(t *testing.T) {
	from := time.Date(2026, 2, 8, 15, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 10, 1, 0, 0, 0, time.UTC)
	found := map[string]model.DailySales{
		"2026-02-09": {Date: "2026-02-09", Sales: 3, RevenueCents: 30000},
	}

	got := FillDays(from, to, found)
	require.Equal(t, []model.DailySales{
		{Date: "2026-02-08"},
		{Date: "2026-02-09", Sales: 3, RevenueCents: 30000},
		{Date: "2026-02-10"},
	}, got)
}

func TestAnalyticsRepoTotals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepo(db)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"u", "p", "s", "r"}).AddRow(5, 12, 3, 45000))

	got, err := repo.Totals(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.AnalyticsTotals{Users: 5, Products: 12, TotalSales: 3, TotalRevenueCents: 45000}, got)
}

func TestAnalyticsRepoDailySales(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepo(db)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM orders").
		WithArgs(from, from.AddDate(0, 0, 2)).
		WillReturnRows(sqlmock.NewRows([]string{"day", "sales", "revenue"}).AddRow("2026-01-02", 1, 2500))

	got, err := repo.DailySales(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, []model.DailySales{
		{Date: "2026-01-01"},
		{Date: "2026-01-02", Sales: 1, RevenueCents: 2500},
	}, got)
}
