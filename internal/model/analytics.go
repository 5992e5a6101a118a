package model

// AnalyticsTotals are the store-wide counters shown on the admin dashboard.
type AnalyticsTotals struct {
	Users             int64 `json:"users"`
	Products          int64 `json:"products"`
	TotalSales        int64 `json:"total_sales"`
	TotalRevenueCents int64 `json:"total_revenue_cents"`
}

// DailySales is one point of the daily series.  Date is YYYY-MM-DD (UTC).
type DailySales struct {
	Date         string `json:"date"`
	Sales        int64  `json:"sales"`
	RevenueCents int64  `json:"revenue_cents"`
}
