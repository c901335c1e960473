package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/analytics/db"
)

type lineRec struct {
	description string
	quantity    float64
	total       float64
}

type invoiceRec struct {
	userID    string
	customer  string
	lines     []lineRec
	total     float64
	createdAt time.Time
}

type paymentRec struct {
	userID string
	method string
	kind   string
	amount float64
	date   time.Time
}

type amountRec struct {
	userID    string
	amount    float64
	createdAt time.Time
}

// fakeLedger aggregates raw records the way the SQL queries do.
type fakeLedger struct {
	mu        sync.Mutex
	invoices  []invoiceRec
	payments  []paymentRec
	expenses  []amountRec
	purchases []amountRec
	customers map[string]int64
	items     map[string]int64
	fail      map[string]error
	panicOn   string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		customers: map[string]int64{},
		items:     map[string]int64{},
		fail:      map[string]error{},
	}
}

func (f *fakeLedger) addInvoice(inv invoiceRec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, inv)
}

func (f *fakeLedger) addPayment(p paymentRec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, p)
}

func (f *fakeLedger) guard(name string) error {
	if f.panicOn == name {
		panic("boom: " + name)
	}
	return f.fail[name]
}

func within(t time.Time, userID string, arg analyticsdb.RangeParams) bool {
	return userID == arg.UserID && !t.Before(arg.StartDate) && !t.After(arg.EndDate)
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func day(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (f *fakeLedger) FinancialTotals(ctx context.Context, arg analyticsdb.RangeParams) (analyticsdb.FinancialTotalsRow, error) {
	if err := f.guard("FinancialTotals"); err != nil {
		return analyticsdb.FinancialTotalsRow{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var sales, purchases, expenses float64
	for _, inv := range f.invoices {
		if within(inv.createdAt, inv.userID, arg) {
			sales += inv.total
		}
	}
	for _, p := range f.purchases {
		if within(p.createdAt, p.userID, arg) {
			purchases += p.amount
		}
	}
	for _, e := range f.expenses {
		if within(e.createdAt, e.userID, arg) {
			expenses += e.amount
		}
	}
	return analyticsdb.FinancialTotalsRow{TotalSales: dec(sales), TotalPurchases: dec(purchases), TotalExpenses: dec(expenses)}, nil
}

func (f *fakeLedger) PaymentsByMethod(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.PaymentMethodRow, error) {
	if err := f.guard("PaymentsByMethod"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	groups := map[string]*analyticsdb.PaymentMethodRow{}
	for _, p := range f.payments {
		if !within(p.date, p.userID, arg) {
			continue
		}
		g, ok := groups[p.method]
		if !ok {
			g = &analyticsdb.PaymentMethodRow{Method: p.method}
			groups[p.method] = g
		}
		g.Total = g.Total.Add(dec(p.amount))
		g.Count++
	}
	var rows []analyticsdb.PaymentMethodRow
	for _, g := range groups {
		rows = append(rows, *g)
	}
	return rows, nil
}

func (f *fakeLedger) SalesByDay(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.SalesByDayRow, error) {
	if err := f.guard("SalesByDay"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	groups := map[string]*analyticsdb.SalesByDayRow{}
	for _, inv := range f.invoices {
		if !within(inv.createdAt, inv.userID, arg) {
			continue
		}
		key := day(inv.createdAt)
		g, ok := groups[key]
		if !ok {
			g = &analyticsdb.SalesByDayRow{Day: key}
			groups[key] = g
		}
		g.Sales = g.Sales.Add(dec(inv.total))
		g.Orders++
	}
	var rows []analyticsdb.SalesByDayRow
	for _, g := range groups {
		rows = append(rows, *g)
	}
	return rows, nil
}

func (f *fakeLedger) TopProducts(ctx context.Context, arg analyticsdb.TopParams) ([]analyticsdb.TopProductRow, error) {
	if err := f.guard("TopProducts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rng := analyticsdb.RangeParams{UserID: arg.UserID, StartDate: arg.StartDate, EndDate: arg.EndDate}
	groups := map[string]*analyticsdb.TopProductRow{}
	for _, inv := range f.invoices {
		if !within(inv.createdAt, inv.userID, rng) {
			continue
		}
		for _, line := range inv.lines {
			g, ok := groups[line.description]
			if !ok {
				g = &analyticsdb.TopProductRow{Description: line.description}
				groups[line.description] = g
			}
			g.TotalQuantity = g.TotalQuantity.Add(dec(line.quantity))
			g.TotalAmount = g.TotalAmount.Add(dec(line.total))
			g.OrderCount++
		}
	}
	var rows []analyticsdb.TopProductRow
	for _, g := range groups {
		rows = append(rows, *g)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TotalAmount.GreaterThan(rows[j].TotalAmount) })
	if len(rows) > int(arg.Limit) {
		rows = rows[:arg.Limit]
	}
	return rows, nil
}

func (f *fakeLedger) TopCustomers(ctx context.Context, arg analyticsdb.TopParams) ([]analyticsdb.TopCustomerRow, error) {
	if err := f.guard("TopCustomers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rng := analyticsdb.RangeParams{UserID: arg.UserID, StartDate: arg.StartDate, EndDate: arg.EndDate}
	groups := map[string]*analyticsdb.TopCustomerRow{}
	for _, inv := range f.invoices {
		if !within(inv.createdAt, inv.userID, rng) {
			continue
		}
		g, ok := groups[inv.customer]
		if !ok {
			g = &analyticsdb.TopCustomerRow{CustomerName: inv.customer}
			groups[inv.customer] = g
		}
		g.TotalAmount = g.TotalAmount.Add(dec(inv.total))
		g.InvoiceCount++
	}
	var rows []analyticsdb.TopCustomerRow
	for _, g := range groups {
		g.AvgOrderValue = g.TotalAmount.Div(decimal.NewFromInt(g.InvoiceCount))
		rows = append(rows, *g)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TotalAmount.GreaterThan(rows[j].TotalAmount) })
	if len(rows) > int(arg.Limit) {
		rows = rows[:arg.Limit]
	}
	return rows, nil
}

func (f *fakeLedger) PaymentsByType(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.PaymentTypeRow, error) {
	if err := f.guard("PaymentsByType"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	groups := map[string]*analyticsdb.PaymentTypeRow{}
	for _, p := range f.payments {
		if !within(p.date, p.userID, arg) {
			continue
		}
		g, ok := groups[p.kind]
		if !ok {
			g = &analyticsdb.PaymentTypeRow{PaymentType: p.kind}
			groups[p.kind] = g
		}
		g.Total = g.Total.Add(dec(p.amount))
		g.Count++
	}
	var rows []analyticsdb.PaymentTypeRow
	for _, g := range groups {
		rows = append(rows, *g)
	}
	return rows, nil
}

func (f *fakeLedger) DailyPayments(ctx context.Context, arg analyticsdb.RangeParams) ([]analyticsdb.DailyPaymentRow, error) {
	if err := f.guard("DailyPayments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	groups := map[string]*analyticsdb.DailyPaymentRow{}
	for _, p := range f.payments {
		if !within(p.date, p.userID, arg) {
			continue
		}
		key := day(p.date)
		g, ok := groups[key]
		if !ok {
			g = &analyticsdb.DailyPaymentRow{Day: key}
			groups[key] = g
		}
		switch p.kind {
		case "Received":
			g.Received = g.Received.Add(dec(p.amount))
		case "Paid":
			g.Paid = g.Paid.Add(dec(p.amount))
		}
	}
	var rows []analyticsdb.DailyPaymentRow
	for _, g := range groups {
		rows = append(rows, *g)
	}
	return rows, nil
}

func (f *fakeLedger) TenantCounts(ctx context.Context, userID string) (analyticsdb.TenantCountsRow, error) {
	if err := f.guard("TenantCounts"); err != nil {
		return analyticsdb.TenantCountsRow{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return analyticsdb.TenantCountsRow{Customers: f.customers[userID], Items: f.items[userID]}, nil
}

func (f *fakeLedger) InvoiceStats(ctx context.Context, arg analyticsdb.RangeParams) (analyticsdb.InvoiceStatsRow, error) {
	if err := f.guard("InvoiceStats"); err != nil {
		return analyticsdb.InvoiceStatsRow{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var row analyticsdb.InvoiceStatsRow
	var sum float64
	for _, inv := range f.invoices {
		if within(inv.createdAt, inv.userID, arg) {
			row.InvoiceCount++
			sum += inv.total
		}
	}
	if row.InvoiceCount > 0 {
		row.AvgOrderValue = dec(sum / float64(row.InvoiceCount))
	}
	return row, nil
}

// memStore keeps snapshot rows keyed by (user, period).
type memStore struct {
	mu        sync.Mutex
	rows      map[string]analyticsdb.SnapshotRow
	upsertErr error
	upserts   int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]analyticsdb.SnapshotRow{}}
}

func storeKey(userID, period string) string { return userID + "|" + period }

func (m *memStore) GetSnapshot(ctx context.Context, arg analyticsdb.GetSnapshotParams) (analyticsdb.SnapshotRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[storeKey(arg.UserID, arg.Period)]
	if !ok {
		return analyticsdb.SnapshotRow{}, analyticsdb.ErrNotFound
	}
	return row, nil
}

func (m *memStore) UpsertSnapshot(ctx context.Context, arg analyticsdb.UpsertSnapshotParams) (analyticsdb.SnapshotRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return analyticsdb.SnapshotRow{}, m.upsertErr
	}
	m.upserts++
	key := storeKey(arg.UserID, arg.Period)
	row, ok := m.rows[key]
	if !ok {
		row = analyticsdb.SnapshotRow{ID: arg.ID, UserID: arg.UserID, Period: arg.Period, CreatedAt: arg.LastUpdated}
	}
	row.StartDate = arg.StartDate
	row.EndDate = arg.EndDate
	row.Payload = append([]byte(nil), arg.Payload...)
	row.LastUpdated = arg.LastUpdated
	m.rows[key] = row
	return row, nil
}

func (m *memStore) DeleteSnapshotsByUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for key, row := range m.rows {
		if row.UserID == userID {
			delete(m.rows, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) ListSnapshotUsers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var users []string
	for _, row := range m.rows {
		if !seen[row.UserID] {
			seen[row.UserID] = true
			users = append(users, row.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// eventRecorder subscribes to a bus and keeps every event.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(bus Bus) *eventRecorder {
	r := &eventRecorder{}
	bus.Subscribe(func(ctx context.Context, evt Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, evt)
	})
	return r
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
