package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	analytichttp "github.com/invoicedesk/invoicedesk/internal/analytics/http"
	"github.com/invoicedesk/invoicedesk/internal/ledger"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AnalyticsHandler *analytichttp.Handler
	LedgerHandler    *ledger.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with InvoiceDesk defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	userHeader := ""
	if params.Config != nil {
		userHeader = params.Config.UserHeader
	}
	r.Route("/api", func(api chi.Router) {
		api.Use(RequireUser(userHeader, logger))
		api.Group(func(g chi.Router) {
			g.Use(RequestTimeout(params.Config))
			g.Use(chimw.Compress(5))
			params.AnalyticsHandler.MountRoutes(g)
			params.LedgerHandler.MountRoutes(g)
		})
		api.Group(func(g chi.Router) {
			params.AnalyticsHandler.MountStream(g)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
