package analytics

import (
	"context"
	"sort"
	"strings"
)

const (
	topLimit        = 10
	unknownMethod   = "Unknown"
	paymentReceived = "Received"
	paymentPaid     = "Paid"
)

// fragment writes one extractor's result into a snapshot.
type fragment func(*Snapshot)

type extractor struct {
	name string
	run  func(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error)
}

func defaultExtractors() []extractor {
	return []extractor{
		{name: "financial_overview", run: extractFinancialOverview},
		{name: "payment_methods", run: extractPaymentMethods},
		{name: "sales_trends", run: extractSalesTrends},
		{name: "top_products", run: extractTopProducts},
		{name: "top_customers", run: extractTopCustomers},
		{name: "payment_flow", run: extractPaymentFlow},
		{name: "daily_payments", run: extractDailyPayments},
		{name: "kpis", run: extractKPIs},
	}
}

func extractFinancialOverview(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	row, err := repo.FinancialTotals(ctx, rangeParams(userID, rng))
	if err != nil {
		return nil, err
	}
	sales := row.TotalSales.InexactFloat64()
	purchases := row.TotalPurchases.InexactFloat64()
	expenses := row.TotalExpenses.InexactFloat64()
	return func(s *Snapshot) {
		s.TotalSales = sales
		s.TotalPurchases = purchases
		s.TotalExpenses = expenses
	}, nil
}

func extractPaymentMethods(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	rows, err := repo.PaymentsByMethod(ctx, rangeParams(userID, rng))
	if err != nil {
		return nil, err
	}
	stats := make([]PaymentMethodStat, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		method := strings.TrimSpace(row.Method)
		if method == "" {
			method = unknownMethod
		}
		if i, ok := index[method]; ok {
			stats[i].Total += row.Total.InexactFloat64()
			stats[i].Count += row.Count
			continue
		}
		index[method] = len(stats)
		stats = append(stats, PaymentMethodStat{Method: method, Total: row.Total.InexactFloat64(), Count: row.Count})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Total > stats[j].Total })
	return func(s *Snapshot) { s.PaymentMethods = stats }, nil
}

func extractSalesTrends(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	rows, err := repo.SalesByDay(ctx, rangeParams(userID, rng))
	if err != nil {
		return nil, err
	}
	points := make([]SalesPoint, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		if i, ok := index[row.Day]; ok {
			points[i].Sales += row.Sales.InexactFloat64()
			points[i].Orders += row.Orders
			continue
		}
		index[row.Day] = len(points)
		points = append(points, SalesPoint{Date: row.Day, Sales: row.Sales.InexactFloat64(), Orders: row.Orders})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return func(s *Snapshot) { s.SalesByDate = points }, nil
}

func extractTopProducts(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	rows, err := repo.TopProducts(ctx, topParams(userID, rng))
	if err != nil {
		return nil, err
	}
	products := make([]ProductStat, 0, len(rows))
	for _, row := range rows {
		products = append(products, ProductStat{
			ProductName:   row.Description,
			TotalQuantity: row.TotalQuantity.InexactFloat64(),
			TotalAmount:   row.TotalAmount.InexactFloat64(),
			OrderCount:    row.OrderCount,
		})
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].TotalAmount > products[j].TotalAmount })
	if len(products) > topLimit {
		products = products[:topLimit]
	}
	for i := range products {
		products[i].Rank = i + 1
	}
	return func(s *Snapshot) { s.TopProducts = products }, nil
}

func extractTopCustomers(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	rows, err := repo.TopCustomers(ctx, topParams(userID, rng))
	if err != nil {
		return nil, err
	}
	customers := make([]CustomerStat, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, CustomerStat{
			CustomerName:  row.CustomerName,
			TotalAmount:   row.TotalAmount.InexactFloat64(),
			InvoiceCount:  row.InvoiceCount,
			AvgOrderValue: row.AvgOrderValue.InexactFloat64(),
		})
	}
	sort.SliceStable(customers, func(i, j int) bool { return customers[i].TotalAmount > customers[j].TotalAmount })
	if len(customers) > topLimit {
		customers = customers[:topLimit]
	}
	for i := range customers {
		customers[i].Rank = i + 1
	}
	return func(s *Snapshot) { s.TopCustomers = customers }, nil
}

func extractPaymentFlow(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	rows, err := repo.PaymentsByType(ctx, rangeParams(userID, rng))
	if err != nil {
		return nil, err
	}
	var flow PaymentFlow
	for _, row := range rows {
		switch row.PaymentType {
		case paymentReceived:
			flow.MoneyIn.Total += row.Total.InexactFloat64()
			flow.MoneyIn.Count += row.Count
		case paymentPaid:
			flow.MoneyOut.Total += row.Total.InexactFloat64()
			flow.MoneyOut.Count += row.Count
		}
	}
	return func(s *Snapshot) { s.PaymentFlow = flow }, nil
}

func extractDailyPayments(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	rows, err := repo.DailyPayments(ctx, rangeParams(userID, rng))
	if err != nil {
		return nil, err
	}
	days := make([]DailyPayment, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		if i, ok := index[row.Day]; ok {
			days[i].Received += row.Received.InexactFloat64()
			days[i].Paid += row.Paid.InexactFloat64()
			continue
		}
		index[row.Day] = len(days)
		days = append(days, DailyPayment{Date: row.Day, Received: row.Received.InexactFloat64(), Paid: row.Paid.InexactFloat64()})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return func(s *Snapshot) { s.DailyPayments = days }, nil
}

// extractKPIs mixes tenant-wide counts with window-scoped invoice figures.
// Conversion rate has no defined source and stays 0.
func extractKPIs(ctx context.Context, repo Repository, userID string, rng DateRange) (fragment, error) {
	counts, err := repo.TenantCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := repo.InvoiceStats(ctx, rangeParams(userID, rng))
	if err != nil {
		return nil, err
	}
	kpis := KPIs{
		TotalCustomers: counts.Customers,
		TotalProducts:  counts.Items,
		TotalInvoices:  stats.InvoiceCount,
		AvgOrderValue:  stats.AvgOrderValue.InexactFloat64(),
	}
	return func(s *Snapshot) { s.KPIs = kpis }, nil
}
