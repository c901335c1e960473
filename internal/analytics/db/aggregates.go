package analyticsdb

import (
	"context"
	"fmt"
)

const financialTotals = `
SELECT
    (SELECT COALESCE(SUM(total_amount), 0) FROM invoices
      WHERE user_id = $1 AND created_at BETWEEN $2 AND $3) AS total_sales,
    (SELECT COALESCE(SUM(total_amount), 0) FROM purchases
      WHERE user_id = $1 AND created_at BETWEEN $2 AND $3) AS total_purchases,
    (SELECT COALESCE(SUM(amount), 0) FROM expenses
      WHERE user_id = $1 AND created_at BETWEEN $2 AND $3) AS total_expenses`

// FinancialTotals sums invoice, purchase and expense amounts created in the window.
func (q *Queries) FinancialTotals(ctx context.Context, arg RangeParams) (FinancialTotalsRow, error) {
	var row FinancialTotalsRow
	err := q.db.QueryRow(ctx, financialTotals, arg.UserID, arg.StartDate, arg.EndDate).
		Scan(&row.TotalSales, &row.TotalPurchases, &row.TotalExpenses)
	if err != nil {
		return FinancialTotalsRow{}, fmt.Errorf("analyticsdb: financial totals: %w", err)
	}
	return row, nil
}

const paymentsByMethod = `
SELECT COALESCE(payment_method, '') AS method, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
FROM payments
WHERE user_id = $1 AND payment_date BETWEEN $2 AND $3
GROUP BY 1
ORDER BY total DESC, method`

// PaymentsByMethod groups window payments by method.
func (q *Queries) PaymentsByMethod(ctx context.Context, arg RangeParams) ([]PaymentMethodRow, error) {
	rows, err := q.db.Query(ctx, paymentsByMethod, arg.UserID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: payments by method: %w", err)
	}
	defer rows.Close()

	var items []PaymentMethodRow
	for rows.Next() {
		var i PaymentMethodRow
		if err := rows.Scan(&i.Method, &i.Total, &i.Count); err != nil {
			return nil, fmt.Errorf("analyticsdb: payments by method: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: payments by method: %w", err)
	}
	return items, nil
}

const salesByDay = `
SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
       COALESCE(SUM(total_amount), 0) AS sales,
       COUNT(*) AS orders
FROM invoices
WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
GROUP BY day
ORDER BY day`

// SalesByDay groups window invoices by UTC calendar day.
func (q *Queries) SalesByDay(ctx context.Context, arg RangeParams) ([]SalesByDayRow, error) {
	rows, err := q.db.Query(ctx, salesByDay, arg.UserID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: sales by day: %w", err)
	}
	defer rows.Close()

	var items []SalesByDayRow
	for rows.Next() {
		var i SalesByDayRow
		if err := rows.Scan(&i.Day, &i.Sales, &i.Orders); err != nil {
			return nil, fmt.Errorf("analyticsdb: sales by day: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: sales by day: %w", err)
	}
	return items, nil
}

const topProducts = `
SELECT COALESCE(it.description, '') AS description,
       COALESCE(SUM(it.quantity), 0) AS total_quantity,
       COALESCE(SUM(it.total), 0) AS total_amount,
       COUNT(*) AS order_count
FROM invoices i
CROSS JOIN LATERAL jsonb_to_recordset(COALESCE(i.items, '[]'::jsonb))
    AS it(description text, quantity numeric, total numeric)
WHERE i.user_id = $1 AND i.created_at BETWEEN $2 AND $3
GROUP BY 1
ORDER BY total_amount DESC, description
LIMIT $4`

// TopProducts unnests invoice lines and ranks descriptions by line total.
func (q *Queries) TopProducts(ctx context.Context, arg TopParams) ([]TopProductRow, error) {
	rows, err := q.db.Query(ctx, topProducts, arg.UserID, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: top products: %w", err)
	}
	defer rows.Close()

	var items []TopProductRow
	for rows.Next() {
		var i TopProductRow
		if err := rows.Scan(&i.Description, &i.TotalQuantity, &i.TotalAmount, &i.OrderCount); err != nil {
			return nil, fmt.Errorf("analyticsdb: top products: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: top products: %w", err)
	}
	return items, nil
}

const topCustomers = `
SELECT COALESCE(customer_name, '') AS customer_name,
       COALESCE(SUM(total_amount), 0) AS total_amount,
       COUNT(*) AS invoice_count,
       COALESCE(AVG(total_amount), 0) AS avg_order_value
FROM invoices
WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
GROUP BY 1
ORDER BY total_amount DESC, customer_name
LIMIT $4`

// TopCustomers ranks customer display names by invoiced amount.
func (q *Queries) TopCustomers(ctx context.Context, arg TopParams) ([]TopCustomerRow, error) {
	rows, err := q.db.Query(ctx, topCustomers, arg.UserID, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: top customers: %w", err)
	}
	defer rows.Close()

	var items []TopCustomerRow
	for rows.Next() {
		var i TopCustomerRow
		if err := rows.Scan(&i.CustomerName, &i.TotalAmount, &i.InvoiceCount, &i.AvgOrderValue); err != nil {
			return nil, fmt.Errorf("analyticsdb: top customers: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: top customers: %w", err)
	}
	return items, nil
}

const paymentsByType = `
SELECT COALESCE(payment_type, '') AS payment_type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
FROM payments
WHERE user_id = $1 AND payment_date BETWEEN $2 AND $3
GROUP BY 1`

// PaymentsByType partitions window payments into received and paid totals.
func (q *Queries) PaymentsByType(ctx context.Context, arg RangeParams) ([]PaymentTypeRow, error) {
	rows, err := q.db.Query(ctx, paymentsByType, arg.UserID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: payments by type: %w", err)
	}
	defer rows.Close()

	var items []PaymentTypeRow
	for rows.Next() {
		var i PaymentTypeRow
		if err := rows.Scan(&i.PaymentType, &i.Total, &i.Count); err != nil {
			return nil, fmt.Errorf("analyticsdb: payments by type: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: payments by type: %w", err)
	}
	return items, nil
}

const dailyPayments = `
SELECT to_char(payment_date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
       COALESCE(SUM(amount) FILTER (WHERE payment_type = 'Received'), 0) AS received,
       COALESCE(SUM(amount) FILTER (WHERE payment_type = 'Paid'), 0) AS paid
FROM payments
WHERE user_id = $1 AND payment_date BETWEEN $2 AND $3
GROUP BY day
ORDER BY day`

// DailyPayments splits window payments per UTC day into received and paid sums.
func (q *Queries) DailyPayments(ctx context.Context, arg RangeParams) ([]DailyPaymentRow, error) {
	rows, err := q.db.Query(ctx, dailyPayments, arg.UserID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: daily payments: %w", err)
	}
	defer rows.Close()

	var items []DailyPaymentRow
	for rows.Next() {
		var i DailyPaymentRow
		if err := rows.Scan(&i.Day, &i.Received, &i.Paid); err != nil {
			return nil, fmt.Errorf("analyticsdb: daily payments: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyticsdb: daily payments: %w", err)
	}
	return items, nil
}

const tenantCounts = `
SELECT
    (SELECT COUNT(*) FROM customers WHERE user_id = $1) AS customers,
    (SELECT COUNT(*) FROM items WHERE user_id = $1) AS items`

// TenantCounts counts customers and catalogue items regardless of window.
func (q *Queries) TenantCounts(ctx context.Context, userID string) (TenantCountsRow, error) {
	var row TenantCountsRow
	if err := q.db.QueryRow(ctx, tenantCounts, userID).Scan(&row.Customers, &row.Items); err != nil {
		return TenantCountsRow{}, fmt.Errorf("analyticsdb: tenant counts: %w", err)
	}
	return row, nil
}

const invoiceStats = `
SELECT COUNT(*) AS invoice_count, COALESCE(AVG(total_amount), 0) AS avg_order_value
FROM invoices
WHERE user_id = $1 AND created_at BETWEEN $2 AND $3`

// InvoiceStats returns the window invoice count and mean invoice total.
func (q *Queries) InvoiceStats(ctx context.Context, arg RangeParams) (InvoiceStatsRow, error) {
	var row InvoiceStatsRow
	err := q.db.QueryRow(ctx, invoiceStats, arg.UserID, arg.StartDate, arg.EndDate).
		Scan(&row.InvoiceCount, &row.AvgOrderValue)
	if err != nil {
		return InvoiceStatsRow{}, fmt.Errorf("analyticsdb: invoice stats: %w", err)
	}
	return row, nil
}
