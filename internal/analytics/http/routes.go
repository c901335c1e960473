package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// MountRoutes registers the request/response analytics endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "analytics recompute limit reached")
		}),
	)

	r.Get("/analytics/overview", h.handleOverview)
	r.Get("/analytics/top-products", h.handleTopProducts)
	r.Get("/analytics/top-customers", h.handleTopCustomers)
	r.Get("/analytics/payments", h.handlePayments)
	r.Get("/analytics/dashboard", h.handleDashboard)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/analytics/update", h.handleUpdate)
		gr.Delete("/analytics/clear", h.handleClear)
	})
}

// MountStream registers the server-sent events endpoint. It must sit outside
// request timeouts and response compression.
func (h *Handler) MountStream(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/analytics/stream", h.handleStream)
}

func rateLimitKey(r *http.Request) (string, error) {
	if user := shared.UserFromContext(r.Context()); user != "" {
		return "user:" + user, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
