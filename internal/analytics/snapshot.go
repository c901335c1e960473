package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the materialised rollup of one tenant and period.
type Snapshot struct {
	ID             uuid.UUID           `json:"id"`
	UserID         string              `json:"userId"`
	TotalSales     float64             `json:"totalSales"`
	TotalPurchases float64             `json:"totalPurchases"`
	TotalExpenses  float64             `json:"totalExpenses"`
	NetProfit      float64             `json:"netProfit"`
	PaymentMethods []PaymentMethodStat `json:"paymentMethods"`
	SalesByDate    []SalesPoint        `json:"salesByDate"`
	TopProducts    []ProductStat       `json:"topProducts"`
	TopCustomers   []CustomerStat      `json:"topCustomers"`
	PaymentFlow    PaymentFlow         `json:"paymentFlow"`
	DailyPayments  []DailyPayment      `json:"dailyPayments"`
	KPIs           KPIs                `json:"kpis"`
	DateRange      DateRange           `json:"dateRange"`
	LastUpdated    time.Time           `json:"lastUpdated"`
	CreatedAt      time.Time           `json:"createdAt"`
}

type PaymentMethodStat struct {
	Method     string  `json:"method"`
	Total      float64 `json:"total"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type SalesPoint struct {
	Date   string  `json:"date"`
	Sales  float64 `json:"sales"`
	Orders int64   `json:"orders"`
}

type ProductStat struct {
	ProductName   string  `json:"productName"`
	TotalQuantity float64 `json:"totalQuantity"`
	TotalAmount   float64 `json:"totalAmount"`
	OrderCount    int64   `json:"orderCount"`
	Rank          int     `json:"rank"`
}

type CustomerStat struct {
	CustomerName  string  `json:"customerName"`
	TotalAmount   float64 `json:"totalAmount"`
	InvoiceCount  int64   `json:"invoiceCount"`
	AvgOrderValue float64 `json:"avgOrderValue"`
	Rank          int     `json:"rank"`
}

// FlowTotals is one side of the payment flow.
type FlowTotals struct {
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

type PaymentFlow struct {
	MoneyIn  FlowTotals `json:"moneyIn"`
	MoneyOut FlowTotals `json:"moneyOut"`
}

type DailyPayment struct {
	Date     string  `json:"date"`
	Received float64 `json:"received"`
	Paid     float64 `json:"paid"`
}

type KPIs struct {
	TotalCustomers int64   `json:"totalCustomers"`
	TotalProducts  int64   `json:"totalProducts"`
	TotalInvoices  int64   `json:"totalInvoices"`
	AvgOrderValue  float64 `json:"avgOrderValue"`
	ConversionRate float64 `json:"conversionRate"`
}

// NewSnapshot returns an all-zero snapshot for the tenant and period.
func NewSnapshot(userID string, period Period) *Snapshot {
	s := &Snapshot{ID: uuid.New(), UserID: userID}
	s.Reset()
	s.DateRange.Period = period
	return s
}

// Reset zeroes every metric field while keeping identity and timestamps.
func (s *Snapshot) Reset() {
	s.TotalSales = 0
	s.TotalPurchases = 0
	s.TotalExpenses = 0
	s.NetProfit = 0
	s.PaymentMethods = []PaymentMethodStat{}
	s.SalesByDate = []SalesPoint{}
	s.TopProducts = []ProductStat{}
	s.TopCustomers = []CustomerStat{}
	s.PaymentFlow = PaymentFlow{}
	s.DailyPayments = []DailyPayment{}
	s.KPIs = KPIs{}
}

// CalculateNetProfit derives NetProfit from the three financial totals.
func (s *Snapshot) CalculateNetProfit() {
	s.NetProfit = s.TotalSales - s.TotalPurchases - s.TotalExpenses
}

// CalculatePaymentPercentages fills each method's share of the summed totals.
func (s *Snapshot) CalculatePaymentPercentages() {
	var sum float64
	for _, m := range s.PaymentMethods {
		sum += m.Total
	}
	for i := range s.PaymentMethods {
		if sum > 0 {
			s.PaymentMethods[i].Percentage = s.PaymentMethods[i].Total / sum * 100
		} else {
			s.PaymentMethods[i].Percentage = 0
		}
	}
}
