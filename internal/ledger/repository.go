package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	platformdb "github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Store persists source documents. A non-empty idempotency key is recorded
// in the same transaction as the row it guards.
type Store interface {
	CreateInvoice(ctx context.Context, inv Invoice, key string) (Invoice, error)
	CreatePayment(ctx context.Context, p Payment, key string) (Payment, error)
	CreateExpense(ctx context.Context, e Expense, key string) (Expense, error)
	CreatePurchase(ctx context.Context, p Purchase, key string) (Purchase, error)
	CreateCustomer(ctx context.Context, c Customer, key string) (Customer, error)
	CreateItem(ctx context.Context, it Item, key string) (Item, error)
}

// Repository is the PostgreSQL Store.
type Repository struct {
	db          platformdb.TxBeginner
	idempotency *shared.IdempotencyStore
}

// NewRepository constructs a repository on a pool.
func NewRepository(db platformdb.TxBeginner, idempotency *shared.IdempotencyStore) *Repository {
	return &Repository{db: db, idempotency: idempotency}
}

func (r *Repository) write(ctx context.Context, scope, userID, key string, fn func(pgx.Tx) error) error {
	err := platformdb.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if key != "" && r.idempotency != nil {
			if err := r.idempotency.WithTx(tx).CheckAndInsert(ctx, key, scope+":"+userID); err != nil {
				return err
			}
		}
		return fn(tx)
	})
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return fmt.Errorf("%w: %v", httpx.ErrDuplicate, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s already exists", httpx.ErrDuplicate, scope)
	case err != nil:
		return fmt.Errorf("ledger: create %s: %w", scope, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nextNumber(ctx context.Context, tx pgx.Tx, table, prefix, userID string) (string, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, table)
	if err := tx.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, count+1), nil
}

const insertInvoice = `
INSERT INTO invoices (id, user_id, invoice_number, customer_name, customer_email, items,
    subtotal, tax_rate, tax_amount, total_amount, status, due_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// CreateInvoice inserts an invoice with its items as jsonb.
func (r *Repository) CreateInvoice(ctx context.Context, inv Invoice, key string) (Invoice, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return Invoice{}, fmt.Errorf("ledger: encode invoice items: %w", err)
	}
	err = r.write(ctx, "invoice", inv.UserID, key, func(tx pgx.Tx) error {
		if inv.InvoiceNumber == "" {
			if inv.InvoiceNumber, err = nextNumber(ctx, tx, "invoices", "INV", inv.UserID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, insertInvoice,
			inv.ID, inv.UserID, inv.InvoiceNumber, inv.CustomerName, inv.CustomerEmail, items,
			inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.TotalAmount, inv.Status, inv.DueDate, inv.CreatedAt,
		)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

const insertPayment = `
INSERT INTO payments (id, user_id, payment_number, payment_date, amount, payment_method,
    payment_type, reference_type, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// CreatePayment inserts a received or paid payment.
func (r *Repository) CreatePayment(ctx context.Context, p Payment, key string) (Payment, error) {
	err := r.write(ctx, "payment", p.UserID, key, func(tx pgx.Tx) error {
		if p.PaymentNumber == "" {
			var err error
			if p.PaymentNumber, err = nextNumber(ctx, tx, "payments", "PAY", p.UserID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, insertPayment,
			p.ID, p.UserID, p.PaymentNumber, p.PaymentDate, p.Amount, p.PaymentMethod,
			p.PaymentType, p.ReferenceType, p.Description, p.CreatedAt,
		)
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

const insertExpense = `
INSERT INTO expenses (id, user_id, expense_number, amount, category, description, expense_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// CreateExpense inserts an expense.
func (r *Repository) CreateExpense(ctx context.Context, e Expense, key string) (Expense, error) {
	err := r.write(ctx, "expense", e.UserID, key, func(tx pgx.Tx) error {
		if e.ExpenseNumber == "" {
			var err error
			if e.ExpenseNumber, err = nextNumber(ctx, tx, "expenses", "EXP", e.UserID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, insertExpense,
			e.ID, e.UserID, e.ExpenseNumber, e.Amount, e.Category, e.Description, e.ExpenseDate, e.CreatedAt,
		)
		return err
	})
	if err != nil {
		return Expense{}, err
	}
	return e, nil
}

const insertPurchase = `
INSERT INTO purchases (id, user_id, purchase_number, vendor_name, items, total_amount, purchase_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// CreatePurchase inserts a purchase with its items as jsonb.
func (r *Repository) CreatePurchase(ctx context.Context, p Purchase, key string) (Purchase, error) {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return Purchase{}, fmt.Errorf("ledger: encode purchase items: %w", err)
	}
	err = r.write(ctx, "purchase", p.UserID, key, func(tx pgx.Tx) error {
		if p.PurchaseNumber == "" {
			if p.PurchaseNumber, err = nextNumber(ctx, tx, "purchases", "PUR", p.UserID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, insertPurchase,
			p.ID, p.UserID, p.PurchaseNumber, p.VendorName, items, p.TotalAmount, p.PurchaseDate, p.CreatedAt,
		)
		return err
	})
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

const insertCustomer = `
INSERT INTO customers (id, user_id, name, email, phone, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// CreateCustomer inserts a customer record.
func (r *Repository) CreateCustomer(ctx context.Context, c Customer, key string) (Customer, error) {
	err := r.write(ctx, "customer", c.UserID, key, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertCustomer, c.ID, c.UserID, c.Name, c.Email, c.Phone, c.CreatedAt)
		return err
	})
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

const insertItem = `
INSERT INTO items (id, user_id, item_name, item_type, selling_price, tax_percent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// CreateItem inserts a catalogue item.
func (r *Repository) CreateItem(ctx context.Context, it Item, key string) (Item, error) {
	err := r.write(ctx, "item", it.UserID, key, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertItem, it.ID, it.UserID, it.ItemName, it.ItemType, it.SellingPrice, it.TaxPercent, it.CreatedAt)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

var _ Store = (*Repository)(nil)
