package analytics

import (
	"context"

	"github.com/invoicedesk/invoicedesk/internal/analytics/db"
)

// Repository exposes the aggregate queries the extractors rely on.
type Repository interface {
	FinancialTotals(ctx context.Context, arg analyticsdb.RangeParams) (analyticsdb.FinancialTotalsRow, error)
	PaymentsByMethod(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.PaymentMethodRow, error)
	SalesByDay(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.SalesByDayRow, error)
	TopProducts(ctx context.Context, arg analyticsdb.TopParams) ([]analyticsdb.TopProductRow, error)
	TopCustomers(ctx context.Context, arg analyticsdb.TopParams) ([]analyticsdb.TopCustomerRow, error)
	PaymentsByType(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.PaymentTypeRow, error)
	DailyPayments(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.DailyPaymentRow, error)
	TenantCounts(ctx context.Context, userID string) (analyticsdb.TenantCountsRow, error)
	InvoiceStats(ctx context.Context, arg analyticsdb.RangeParams) (analyticsdb.InvoiceStatsRow, error)
}

// SnapshotStore persists one snapshot row per (user, period).
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, arg analyticsdb.GetSnapshotParams) (analyticsdb.SnapshotRow, error)
	UpsertSnapshot(ctx context.Context, arg analyticsdb.UpsertSnapshotParams) (analyticsdb.SnapshotRow, error)
	DeleteSnapshotsByUser(ctx context.Context, userID string) (int64, error)
	ListSnapshotUsers(ctx context.Context) ([]string, error)
}

func rangeParams(userID string, rng DateRange) analyticsdb.RangeParams {
	return analyticsdb.RangeParams{UserID: userID, StartDate: rng.StartDate, EndDate: rng.EndDate}
}

func topParams(userID string, rng DateRange) analyticsdb.TopParams {
	return analyticsdb.TopParams{UserID: userID, StartDate: rng.StartDate, EndDate: rng.EndDate, Limit: topLimit}
}
