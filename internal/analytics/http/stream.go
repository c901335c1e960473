package analytichttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// streamBuffer bounds pending notifications per client; extra events are dropped.
const streamBuffer = 16

type snapshotEvent struct {
	Period    analytics.Period    `json:"period"`
	Analytics *analytics.Snapshot `json:"analytics"`
}

type updateEvent struct {
	Period      analytics.Period    `json:"period"`
	Analytics   *analytics.Snapshot `json:"analytics"`
	LastUpdated time.Time           `json:"lastUpdated"`
}

type errorEvent struct {
	Message string `json:"message"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := shared.UserFromContext(ctx)
	period, err := h.parsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := h.logger.With(
		slog.String("client_id", uuid.NewString()),
		slog.String("user_id", userID),
		slog.String("period", string(period)),
	)
	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()
	logger.Info("analytics stream opened")
	defer logger.Info("analytics stream closed")

	snap, err := h.service.GetAnalytics(ctx, userID, period)
	if err != nil {
		logger.Error("load initial analytics snapshot", slog.Any("error", err))
		err = writeEvent(w, flusher, "error", errorEvent{Message: "Failed to load initial analytics snapshot"})
	} else {
		err = writeEvent(w, flusher, "snapshot", snapshotEvent{Period: period, Analytics: snap})
	}
	if err != nil {
		return
	}

	updates := make(chan analytics.Event, streamBuffer)
	unsubscribe := h.bus.Subscribe(func(_ context.Context, evt analytics.Event) {
		if evt.UserID != userID || !evt.Covers(period) {
			return
		}
		select {
		case updates <- evt:
		default:
			logger.Warn("analytics stream buffer full, dropping event", slog.String("kind", string(evt.Kind)))
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-updates:
			fresh, err := h.refresh(ctx, userID, period)
			if err != nil {
				logger.Error("refresh analytics", slog.Any("error", err))
				err = writeEvent(w, flusher, "error", errorEvent{Message: "Failed to refresh analytics"})
			} else {
				err = writeEvent(w, flusher, "update", updateEvent{Period: period, Analytics: fresh, LastUpdated: h.now()})
			}
			if err != nil {
				return
			}
		}
	}
}

// refresh reads the snapshot an event announced. Recomputing here would
// publish another event and feed the stream its own echo.
func (h *Handler) refresh(ctx context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error) {
	snap, err := h.service.StoredAnalytics(ctx, userID, period)
	if errors.Is(err, analytics.ErrNotFound) {
		return h.service.GetAnalytics(ctx, userID, period)
	}
	return snap, err
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
