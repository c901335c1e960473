package ledger

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// IdempotencyHeader carries the client-chosen key that makes a create safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the source document create endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers the create endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Post("/invoices", h.handleCreateInvoice)
	r.Post("/payments", h.handleCreatePayment)
	r.Post("/expenses", h.handleCreateExpense)
	r.Post("/purchases", h.handleCreatePurchase)
	r.Post("/customers", h.handleCreateCustomer)
	r.Post("/items", h.handleCreateItem)
}

// create decodes a Req body, runs fn and answers 201 with the stored document.
func create[Req any, Doc any](h *Handler, w http.ResponseWriter, r *http.Request, kind string, fn func(userID, key string, req Req) (Doc, error)) {
	var req Req
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := fn(shared.UserFromContext(r.Context()), strings.TrimSpace(r.Header.Get(IdempotencyHeader)), req)
	if err != nil {
		h.logger.Warn("ledger create failed", slog.String("kind", kind), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "invoice", func(userID, key string, req CreateInvoiceRequest) (Invoice, error) {
		return h.service.CreateInvoice(r.Context(), userID, key, req)
	})
}

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "payment", func(userID, key string, req CreatePaymentRequest) (Payment, error) {
		return h.service.CreatePayment(r.Context(), userID, key, req)
	})
}

func (h *Handler) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "expense", func(userID, key string, req CreateExpenseRequest) (Expense, error) {
		return h.service.CreateExpense(r.Context(), userID, key, req)
	})
}

func (h *Handler) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "purchase", func(userID, key string, req CreatePurchaseRequest) (Purchase, error) {
		return h.service.CreatePurchase(r.Context(), userID, key, req)
	})
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "customer", func(userID, key string, req CreateCustomerRequest) (Customer, error) {
		return h.service.CreateCustomer(r.Context(), userID, key, req)
	})
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "item", func(userID, key string, req CreateItemRequest) (Item, error) {
		return h.service.CreateItem(r.Context(), userID, key, req)
	})
}
