package analytichttp

import (
	"time"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
)

type groupTotal struct {
	ID    string  `json:"_id"`
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

type overviewResponse struct {
	TotalSales     float64      `json:"totalSales"`
	TotalPurchases float64      `json:"totalPurchases"`
	TotalExpenses  float64      `json:"totalExpenses"`
	NetProfit      float64      `json:"netProfit"`
	PaymentMethods []groupTotal `json:"paymentMethods"`
	SalesByDate    []groupTotal `json:"salesByDate"`
	LastUpdated    time.Time    `json:"lastUpdated"`
}

type topProductResponse struct {
	ID            string  `json:"_id"`
	TotalQuantity float64 `json:"totalQuantity"`
	TotalAmount   float64 `json:"totalAmount"`
	Count         int64   `json:"count"`
}

type topCustomerResponse struct {
	ID            string  `json:"_id"`
	TotalAmount   float64 `json:"totalAmount"`
	InvoiceCount  int64   `json:"invoiceCount"`
	AvgOrderValue float64 `json:"avgOrderValue"`
}

type dailyPaymentResponse struct {
	ID       string  `json:"_id"`
	Received float64 `json:"received"`
	Paid     float64 `json:"paid"`
}

type paymentsResponse struct {
	PaymentFlow    []groupTotal           `json:"paymentFlow"`
	PaymentMethods []groupTotal           `json:"paymentMethods"`
	DailyPayments  []dailyPaymentResponse `json:"dailyPayments"`
}

type financialOverview struct {
	TotalSales     float64 `json:"totalSales"`
	TotalPurchases float64 `json:"totalPurchases"`
	TotalExpenses  float64 `json:"totalExpenses"`
	NetProfit      float64 `json:"netProfit"`
}

type dashboardResponse struct {
	Overview       financialOverview             `json:"overview"`
	KPIs           analytics.KPIs                `json:"kpis"`
	TopProducts    []analytics.ProductStat       `json:"topProducts"`
	TopCustomers   []analytics.CustomerStat      `json:"topCustomers"`
	PaymentMethods []analytics.PaymentMethodStat `json:"paymentMethods"`
	SalesTrends    []analytics.SalesPoint        `json:"salesTrends"`
	PaymentFlow    analytics.PaymentFlow         `json:"paymentFlow"`
	DailyPayments  []analytics.DailyPayment      `json:"dailyPayments"`
	LastUpdated    time.Time                     `json:"lastUpdated"`
}

type updateResponse struct {
	Message     string    `json:"message"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type clearResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

func methodTotals(stats []analytics.PaymentMethodStat) []groupTotal {
	out := make([]groupTotal, 0, len(stats))
	for _, m := range stats {
		out = append(out, groupTotal{ID: m.Method, Total: m.Total, Count: m.Count})
	}
	return out
}

func newOverview(s *analytics.Snapshot) overviewResponse {
	sales := make([]groupTotal, 0, len(s.SalesByDate))
	for _, p := range s.SalesByDate {
		sales = append(sales, groupTotal{ID: p.Date, Total: p.Sales, Count: p.Orders})
	}
	return overviewResponse{
		TotalSales:     s.TotalSales,
		TotalPurchases: s.TotalPurchases,
		TotalExpenses:  s.TotalExpenses,
		NetProfit:      s.NetProfit,
		PaymentMethods: methodTotals(s.PaymentMethods),
		SalesByDate:    sales,
		LastUpdated:    s.LastUpdated,
	}
}

func newTopProducts(s *analytics.Snapshot) []topProductResponse {
	out := make([]topProductResponse, 0, len(s.TopProducts))
	for _, p := range s.TopProducts {
		out = append(out, topProductResponse{
			ID:            p.ProductName,
			TotalQuantity: p.TotalQuantity,
			TotalAmount:   p.TotalAmount,
			Count:         p.OrderCount,
		})
	}
	return out
}

func newTopCustomers(s *analytics.Snapshot) []topCustomerResponse {
	out := make([]topCustomerResponse, 0, len(s.TopCustomers))
	for _, c := range s.TopCustomers {
		out = append(out, topCustomerResponse{
			ID:            c.CustomerName,
			TotalAmount:   c.TotalAmount,
			InvoiceCount:  c.InvoiceCount,
			AvgOrderValue: c.AvgOrderValue,
		})
	}
	return out
}

func newPayments(s *analytics.Snapshot) paymentsResponse {
	daily := make([]dailyPaymentResponse, 0, len(s.DailyPayments))
	for _, d := range s.DailyPayments {
		daily = append(daily, dailyPaymentResponse{ID: d.Date, Received: d.Received, Paid: d.Paid})
	}
	return paymentsResponse{
		PaymentFlow: []groupTotal{
			{ID: "Received", Total: s.PaymentFlow.MoneyIn.Total, Count: s.PaymentFlow.MoneyIn.Count},
			{ID: "Paid", Total: s.PaymentFlow.MoneyOut.Total, Count: s.PaymentFlow.MoneyOut.Count},
		},
		PaymentMethods: methodTotals(s.PaymentMethods),
		DailyPayments:  daily,
	}
}

func newDashboard(s *analytics.Snapshot) dashboardResponse {
	return dashboardResponse{
		Overview: financialOverview{
			TotalSales:     s.TotalSales,
			TotalPurchases: s.TotalPurchases,
			TotalExpenses:  s.TotalExpenses,
			NetProfit:      s.NetProfit,
		},
		KPIs:           s.KPIs,
		TopProducts:    s.TopProducts,
		TopCustomers:   s.TopCustomers,
		PaymentMethods: s.PaymentMethods,
		SalesTrends:    s.SalesByDate,
		PaymentFlow:    s.PaymentFlow,
		DailyPayments:  s.DailyPayments,
		LastUpdated:    s.LastUpdated,
	}
}
