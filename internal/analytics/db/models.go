package analyticsdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RangeParams scopes a query to one tenant and a created/payment date window.
type RangeParams struct {
	UserID    string
	StartDate time.Time
	EndDate   time.Time
}

// TopParams adds a row cap to RangeParams.
type TopParams struct {
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int32
}

type FinancialTotalsRow struct {
	TotalSales     decimal.Decimal
	TotalPurchases decimal.Decimal
	TotalExpenses  decimal.Decimal
}

type PaymentMethodRow struct {
	Method string
	Total  decimal.Decimal
	Count  int64
}

type SalesByDayRow struct {
	Day    string
	Sales  decimal.Decimal
	Orders int64
}

type TopProductRow struct {
	Description   string
	TotalQuantity decimal.Decimal
	TotalAmount   decimal.Decimal
	OrderCount    int64
}

type TopCustomerRow struct {
	CustomerName  string
	TotalAmount   decimal.Decimal
	InvoiceCount  int64
	AvgOrderValue decimal.Decimal
}

type PaymentTypeRow struct {
	PaymentType string
	Total       decimal.Decimal
	Count       int64
}

type DailyPaymentRow struct {
	Day      string
	Received decimal.Decimal
	Paid     decimal.Decimal
}

type InvoiceStatsRow struct {
	InvoiceCount  int64
	AvgOrderValue decimal.Decimal
}

type TenantCountsRow struct {
	Customers int64
	Items     int64
}

// SnapshotRow is one persisted analytics snapshot. Payload holds the metric body as JSON.
type SnapshotRow struct {
	ID          uuid.UUID
	UserID      string
	Period      string
	StartDate   time.Time
	EndDate     time.Time
	Payload     []byte
	LastUpdated time.Time
	CreatedAt   time.Time
}

type GetSnapshotParams struct {
	UserID string
	Period string
}

type UpsertSnapshotParams struct {
	ID          uuid.UUID
	UserID      string
	Period      string
	StartDate   time.Time
	EndDate     time.Time
	Payload     []byte
	LastUpdated time.Time
}
