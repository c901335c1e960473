package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

type memStore struct {
	mu        sync.Mutex
	invoices  []Invoice
	payments  []Payment
	expenses  []Expense
	purchases []Purchase
	customers []Customer
	items     []Item
	keys      map[string]bool
	err       error
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[string]bool)}
}

func (m *memStore) claim(key string) error {
	if m.err != nil {
		return m.err
	}
	if key == "" {
		return nil
	}
	if m.keys[key] {
		return httpx.ErrDuplicate
	}
	m.keys[key] = true
	return nil
}

func (m *memStore) CreateInvoice(_ context.Context, inv Invoice, key string) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.claim(key); err != nil {
		return Invoice{}, err
	}
	m.invoices = append(m.invoices, inv)
	return inv, nil
}

func (m *memStore) CreatePayment(_ context.Context, p Payment, key string) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.claim(key); err != nil {
		return Payment{}, err
	}
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *memStore) CreateExpense(_ context.Context, e Expense, key string) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.claim(key); err != nil {
		return Expense{}, err
	}
	m.expenses = append(m.expenses, e)
	return e, nil
}

func (m *memStore) CreatePurchase(_ context.Context, p Purchase, key string) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.claim(key); err != nil {
		return Purchase{}, err
	}
	m.purchases = append(m.purchases, p)
	return p, nil
}

func (m *memStore) CreateCustomer(_ context.Context, c Customer, key string) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.claim(key); err != nil {
		return Customer{}, err
	}
	m.customers = append(m.customers, c)
	return c, nil
}

func (m *memStore) CreateItem(_ context.Context, it Item, key string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.claim(key); err != nil {
		return Item{}, err
	}
	m.items = append(m.items, it)
	return it, nil
}

type recordingTrigger struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingTrigger) SourceChanged(_ context.Context, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func (r *recordingTrigger) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.users...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService() (*Service, *memStore, *recordingTrigger) {
	store := newMemStore()
	trigger := &recordingTrigger{}
	svc := NewService(store, trigger, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return svc, store, trigger
}

func TestComputeTotals(t *testing.T) {
	inv := Invoice{
		Items: []LineItem{
			{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("50"), Total: dec("1")},
			{Description: "Gadget", Quantity: dec("1.5"), UnitPrice: dec("10")},
		},
		TaxRate: dec("10"),
	}
	inv.ComputeTotals()
	require.True(t, inv.Items[0].Total.Equal(dec("100")))
	require.True(t, inv.Items[1].Total.Equal(dec("15")))
	require.True(t, inv.Subtotal.Equal(dec("115")))
	require.True(t, inv.TaxAmount.Equal(dec("11.5")))
	require.True(t, inv.TotalAmount.Equal(dec("126.5")))
}

func TestCreateInvoiceTriggersRecompute(t *testing.T) {
	svc, store, trigger := newTestService()

	inv, err := svc.CreateInvoice(context.Background(), "user-1", "", CreateInvoiceRequest{
		CustomerName: " Acme ",
		Items:        []LineItem{{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("50")}},
		DueDate:      time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "Acme", inv.CustomerName)
	require.Equal(t, "draft", inv.Status)
	require.True(t, inv.TotalAmount.Equal(dec("100")))
	require.Len(t, store.invoices, 1)
	require.Equal(t, []string{"user-1"}, trigger.calls())
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, store, trigger := newTestService()

	_, err := svc.CreateInvoice(context.Background(), "user-1", "", CreateInvoiceRequest{CustomerName: "Acme"})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "items")

	_, err = svc.CreateInvoice(context.Background(), "user-1", "", CreateInvoiceRequest{
		CustomerName: "Acme",
		Items:        []LineItem{{Description: "Widget", Quantity: dec("-1"), UnitPrice: dec("5")}},
		DueDate:      time.Now(),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "quantity")

	_, err = svc.CreateInvoice(context.Background(), "", "", CreateInvoiceRequest{})
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	require.Empty(t, store.invoices)
	require.Empty(t, trigger.calls())
}

func TestCreatePaymentDefaults(t *testing.T) {
	svc, store, trigger := newTestService()

	p, err := svc.CreatePayment(context.Background(), "user-1", "", CreatePaymentRequest{
		Amount:        dec("250"),
		PaymentMethod: "Bank Transfer",
		PaymentType:   "Received",
	})
	require.NoError(t, err)
	require.Equal(t, svc.now(), p.PaymentDate)
	require.Equal(t, "manual", p.ReferenceType)
	require.Len(t, store.payments, 1)
	require.Equal(t, []string{"user-1"}, trigger.calls())
}

func TestCreatePaymentRejectsUnknownType(t *testing.T) {
	svc, _, trigger := newTestService()

	_, err := svc.CreatePayment(context.Background(), "user-1", "", CreatePaymentRequest{
		Amount:      dec("10"),
		PaymentType: "Refunded",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreatePayment(context.Background(), "user-1", "", CreatePaymentRequest{
		Amount:      dec("0"),
		PaymentType: "Paid",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, trigger.calls())
}

func TestCreateExpenseAndPurchaseTrigger(t *testing.T) {
	svc, store, trigger := newTestService()
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, "user-1", "", CreateExpenseRequest{Amount: dec("40"), Category: "Rent"})
	require.NoError(t, err)

	purchase, err := svc.CreatePurchase(ctx, "user-1", "", CreatePurchaseRequest{
		VendorName: "Supplier",
		Items:      []LineItem{{Description: "Stock", Quantity: dec("3"), UnitPrice: dec("20")}},
	})
	require.NoError(t, err)
	require.True(t, purchase.TotalAmount.Equal(dec("60")))

	require.Len(t, store.expenses, 1)
	require.Len(t, store.purchases, 1)
	require.Equal(t, []string{"user-1", "user-1"}, trigger.calls())
}

func TestCustomerAndItemDoNotTrigger(t *testing.T) {
	svc, store, trigger := newTestService()
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, "user-1", "", CreateCustomerRequest{Name: "Acme", Email: "OPS@Acme.test"})
	require.NoError(t, err)
	require.Equal(t, "ops@acme.test", store.customers[0].Email)

	item, err := svc.CreateItem(ctx, "user-1", "", CreateItemRequest{ItemName: "Widget", SellingPrice: dec("9.99")})
	require.NoError(t, err)
	require.Equal(t, "product", item.ItemType)
	require.Empty(t, trigger.calls())
}

func TestStoreFailureSkipsTrigger(t *testing.T) {
	svc, store, trigger := newTestService()
	store.err = errors.New("ledger: create expense: conn reset")

	_, err := svc.CreateExpense(context.Background(), "user-1", "", CreateExpenseRequest{Amount: dec("5"), Category: "Misc"})
	require.Error(t, err)
	require.Empty(t, trigger.calls())
}

func TestIdempotentRetryIsDuplicate(t *testing.T) {
	svc, store, trigger := newTestService()
	ctx := context.Background()
	req := CreateExpenseRequest{Amount: dec("5"), Category: "Misc"}

	_, err := svc.CreateExpense(ctx, "user-1", "key-1", req)
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, "user-1", "key-1", req)
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	require.Len(t, store.expenses, 1)
	require.Len(t, trigger.calls(), 1)
}

func TestNilTriggerIsAllowed(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil)
	_, err := svc.CreateExpense(context.Background(), "user-1", "", CreateExpenseRequest{Amount: dec("5"), Category: "Misc"})
	require.NoError(t, err)
}
