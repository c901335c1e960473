package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItem is one row of an invoice or purchase.
type LineItem struct {
	Description string          `json:"description" validate:"required,max=200"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Total       decimal.Decimal `json:"total"`
}

type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"userId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status"`
	DueDate       time.Time       `json:"dueDate"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ComputeTotals derives line totals, subtotal, tax and grand total from
// quantities, unit prices and the tax rate.
func (inv *Invoice) ComputeTotals() {
	inv.Subtotal = decimal.Zero
	for i := range inv.Items {
		inv.Items[i].Total = inv.Items[i].Quantity.Mul(inv.Items[i].UnitPrice)
		inv.Subtotal = inv.Subtotal.Add(inv.Items[i].Total)
	}
	inv.TaxAmount = inv.Subtotal.Mul(inv.TaxRate).Div(hundred)
	inv.TotalAmount = inv.Subtotal.Add(inv.TaxAmount)
}

type CreateInvoiceRequest struct {
	InvoiceNumber string          `json:"invoiceNumber" validate:"omitempty,max=50"`
	CustomerName  string          `json:"customerName" validate:"required,max=200"`
	CustomerEmail string          `json:"customerEmail" validate:"omitempty,email"`
	Items         []LineItem      `json:"items" validate:"required,min=1,dive"`
	TaxRate       decimal.Decimal `json:"taxRate" validate:"gte=0,lte=100"`
	Status        string          `json:"status" validate:"omitempty,oneof=draft sent paid pending cancelled overdue"`
	DueDate       time.Time       `json:"dueDate" validate:"required"`
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"userId"`
	PaymentNumber string          `json:"paymentNumber"`
	PaymentDate   time.Time       `json:"paymentDate"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentType   string          `json:"paymentType"`
	ReferenceType string          `json:"referenceType"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type CreatePaymentRequest struct {
	PaymentNumber string          `json:"paymentNumber" validate:"omitempty,max=50"`
	PaymentDate   time.Time       `json:"paymentDate"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentMethod string          `json:"paymentMethod" validate:"omitempty,oneof=Cash UPI 'Bank Transfer' Cheque 'Credit Card' Other"`
	PaymentType   string          `json:"paymentType" validate:"required,oneof=Received Paid"`
	ReferenceType string          `json:"referenceType" validate:"omitempty,oneof=invoice purchase manual refund"`
	Description   string          `json:"description" validate:"omitempty,max=500"`
}

type Expense struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"userId"`
	ExpenseNumber string          `json:"expenseNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	ExpenseDate   time.Time       `json:"expenseDate"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type CreateExpenseRequest struct {
	ExpenseNumber string          `json:"expenseNumber" validate:"omitempty,max=50"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Category      string          `json:"category" validate:"required,max=100"`
	Description   string          `json:"description" validate:"omitempty,max=500"`
	ExpenseDate   time.Time       `json:"expenseDate"`
}

type Purchase struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"userId"`
	PurchaseNumber string          `json:"purchaseNumber"`
	VendorName     string          `json:"vendorName"`
	Items          []LineItem      `json:"items"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PurchaseDate   time.Time       `json:"purchaseDate"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// ComputeTotal sums the line totals into the purchase total.
func (p *Purchase) ComputeTotal() {
	p.TotalAmount = decimal.Zero
	for i := range p.Items {
		p.Items[i].Total = p.Items[i].Quantity.Mul(p.Items[i].UnitPrice)
		p.TotalAmount = p.TotalAmount.Add(p.Items[i].Total)
	}
}

type CreatePurchaseRequest struct {
	PurchaseNumber string     `json:"purchaseNumber" validate:"omitempty,max=50"`
	VendorName     string     `json:"vendorName" validate:"required,max=200"`
	Items          []LineItem `json:"items" validate:"required,min=1,dive"`
	PurchaseDate   time.Time  `json:"purchaseDate"`
}

type Customer struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateCustomerRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=50"`
}

type Item struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"userId"`
	ItemName     string          `json:"itemName"`
	ItemType     string          `json:"itemType"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	TaxPercent   decimal.Decimal `json:"taxPercent"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type CreateItemRequest struct {
	ItemName     string          `json:"itemName" validate:"required,max=200"`
	ItemType     string          `json:"itemType" validate:"omitempty,oneof=product service consultation other"`
	SellingPrice decimal.Decimal `json:"sellingPrice" validate:"gte=0"`
	TaxPercent   decimal.Decimal `json:"taxPercent" validate:"gte=0,lte=100"`
}
