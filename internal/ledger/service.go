package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

// Service validates source documents, stores them and notifies analytics.
type Service struct {
	store     Store
	trigger   analytics.Trigger
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the ledger service. trigger may be nil.
func NewService(store Store, trigger analytics.Trigger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		trigger:   trigger,
		validator: newValidator(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func (s *Service) validate(userID string, req any) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id required", httpx.ErrUnauthorized)
	}
	if err := s.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("%w: invalid %s", httpx.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (s *Service) sourceChanged(ctx context.Context, userID string) {
	if s.trigger == nil {
		return
	}
	s.trigger.SourceChanged(ctx, userID)
}

// CreateInvoice stores an invoice with computed totals and schedules a recompute.
func (s *Service) CreateInvoice(ctx context.Context, userID, key string, req CreateInvoiceRequest) (Invoice, error) {
	if err := s.validate(userID, req); err != nil {
		return Invoice{}, err
	}
	status := req.Status
	if status == "" {
		status = "draft"
	}
	inv := Invoice{
		ID:            uuid.New(),
		UserID:        userID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		Items:         append([]LineItem(nil), req.Items...),
		TaxRate:       req.TaxRate,
		Status:        status,
		DueDate:       req.DueDate,
		CreatedAt:     s.now(),
	}
	inv.ComputeTotals()
	created, err := s.store.CreateInvoice(ctx, inv, key)
	if err != nil {
		return Invoice{}, err
	}
	s.sourceChanged(ctx, userID)
	return created, nil
}

// CreatePayment stores a payment and schedules a recompute.
func (s *Service) CreatePayment(ctx context.Context, userID, key string, req CreatePaymentRequest) (Payment, error) {
	if err := s.validate(userID, req); err != nil {
		return Payment{}, err
	}
	now := s.now()
	p := Payment{
		ID:            uuid.New(),
		UserID:        userID,
		PaymentNumber: strings.TrimSpace(req.PaymentNumber),
		PaymentDate:   req.PaymentDate,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		PaymentType:   req.PaymentType,
		ReferenceType: req.ReferenceType,
		Description:   strings.TrimSpace(req.Description),
		CreatedAt:     now,
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now
	}
	if p.ReferenceType == "" {
		p.ReferenceType = "manual"
	}
	created, err := s.store.CreatePayment(ctx, p, key)
	if err != nil {
		return Payment{}, err
	}
	s.sourceChanged(ctx, userID)
	return created, nil
}

// CreateExpense stores an expense and schedules a recompute.
func (s *Service) CreateExpense(ctx context.Context, userID, key string, req CreateExpenseRequest) (Expense, error) {
	if err := s.validate(userID, req); err != nil {
		return Expense{}, err
	}
	now := s.now()
	e := Expense{
		ID:            uuid.New(),
		UserID:        userID,
		ExpenseNumber: strings.TrimSpace(req.ExpenseNumber),
		Amount:        req.Amount,
		Category:      strings.TrimSpace(req.Category),
		Description:   strings.TrimSpace(req.Description),
		ExpenseDate:   req.ExpenseDate,
		CreatedAt:     now,
	}
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = now
	}
	created, err := s.store.CreateExpense(ctx, e, key)
	if err != nil {
		return Expense{}, err
	}
	s.sourceChanged(ctx, userID)
	return created, nil
}

// CreatePurchase stores a purchase and schedules a recompute.
func (s *Service) CreatePurchase(ctx context.Context, userID, key string, req CreatePurchaseRequest) (Purchase, error) {
	if err := s.validate(userID, req); err != nil {
		return Purchase{}, err
	}
	now := s.now()
	p := Purchase{
		ID:             uuid.New(),
		UserID:         userID,
		PurchaseNumber: strings.TrimSpace(req.PurchaseNumber),
		VendorName:     strings.TrimSpace(req.VendorName),
		Items:          append([]LineItem(nil), req.Items...),
		PurchaseDate:   req.PurchaseDate,
		CreatedAt:      now,
	}
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = now
	}
	p.ComputeTotal()
	created, err := s.store.CreatePurchase(ctx, p, key)
	if err != nil {
		return Purchase{}, err
	}
	s.sourceChanged(ctx, userID)
	return created, nil
}

// CreateCustomer stores a customer. Customer and item writes do not trigger
// a recompute; the next document write or read refreshes the counts.
func (s *Service) CreateCustomer(ctx context.Context, userID, key string, req CreateCustomerRequest) (Customer, error) {
	if err := s.validate(userID, req); err != nil {
		return Customer{}, err
	}
	return s.store.CreateCustomer(ctx, Customer{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.now(),
	}, key)
}

// CreateItem stores a catalogue item.
func (s *Service) CreateItem(ctx context.Context, userID, key string, req CreateItemRequest) (Item, error) {
	if err := s.validate(userID, req); err != nil {
		return Item{}, err
	}
	itemType := req.ItemType
	if itemType == "" {
		itemType = "product"
	}
	return s.store.CreateItem(ctx, Item{
		ID:           uuid.New(),
		UserID:       userID,
		ItemName:     strings.TrimSpace(req.ItemName),
		ItemType:     itemType,
		SellingPrice: req.SellingPrice,
		TaxPercent:   req.TaxPercent,
		CreatedAt:    s.now(),
	}, key)
}
