package analytichttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

const defaultHeartbeat = 30 * time.Second

// AnalyticsService is the slice of analytics.Service the handlers use.
type AnalyticsService interface {
	GetAnalytics(ctx context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error)
	StoredAnalytics(ctx context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error)
	UpdateAnalytics(ctx context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error)
	ClearAnalytics(ctx context.Context, userID string) (int64, error)
}

// Handler serves the analytics REST endpoints and the live update stream.
type Handler struct {
	logger    *slog.Logger
	service   AnalyticsService
	bus       analytics.Bus
	metrics   *observability.Metrics
	validator *validator.Validate
	heartbeat time.Duration
	now       func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, bus analytics.Bus, metrics *observability.Metrics, heartbeat time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Handler{
		logger:    logger,
		service:   service,
		bus:       bus,
		metrics:   metrics,
		validator: validator.New(),
		heartbeat: heartbeat,
		now:       time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type periodInput struct {
	Period string `json:"period" validate:"omitempty,oneof=7days 30days 90days 1year custom"`
}

type validationError struct {
	field string
}

func (e validationError) Error() string {
	return fmt.Sprintf("invalid %s", e.field)
}

func (e validationError) Unwrap() error {
	return httpx.ErrValidation
}

func (h *Handler) parsePeriod(raw string) (analytics.Period, error) {
	in := periodInput{Period: strings.TrimSpace(raw)}
	if err := h.validator.Struct(in); err != nil {
		return "", validationError{field: "period"}
	}
	return analytics.ParsePeriod(in.Period)
}

func (h *Handler) loadSnapshot(w http.ResponseWriter, r *http.Request, action string) (*analytics.Snapshot, bool) {
	period, err := h.parsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	snap, err := h.service.GetAnalytics(r.Context(), shared.UserFromContext(r.Context()), period)
	if err != nil {
		h.handleServiceError(w, action, err)
		return nil, false
	}
	return snap, true
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r, "fetch analytics overview")
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newOverview(snap))
}

func (h *Handler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r, "fetch top products")
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newTopProducts(snap))
}

func (h *Handler) handleTopCustomers(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r, "fetch top customers")
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newTopCustomers(snap))
}

func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r, "fetch payment analytics")
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newPayments(snap))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r, "fetch dashboard analytics")
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newDashboard(snap))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in periodInput
	if err := httpx.DecodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.parsePeriod(in.Period)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.UpdateAnalytics(r.Context(), shared.UserFromContext(r.Context()), period)
	if err != nil {
		h.handleServiceError(w, "update analytics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updateResponse{
		Message:     "Analytics updated successfully",
		LastUpdated: snap.LastUpdated,
	})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.ClearAnalytics(r.Context(), shared.UserFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, "clear analytics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, clearResponse{
		Message:      "Analytics cache cleared successfully. Analytics will be recalculated on next request.",
		DeletedCount: deleted,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, analytics.ErrUserRequired):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err))
	case errors.Is(err, analytics.ErrInvalidPeriod):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, analytics.ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	default:
		h.logError(action, err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "Error while trying to "+action)
	}
}

func (h *Handler) logError(action string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Error("analytics handler error", slog.String("action", action), slog.Any("error", err))
}
