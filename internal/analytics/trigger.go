package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Trigger is told when a tenant's source data changed. Implementations must
// not block the caller's write and never report failures back to it.
type Trigger interface {
	SourceChanged(ctx context.Context, userID string)
}

// Updater recomputes the standard periods of a tenant.
type Updater interface {
	TriggerUpdate(ctx context.Context, userID string) error
}

// DefaultTriggerTimeout bounds one detached recompute.
const DefaultTriggerTimeout = 30 * time.Second

// AsyncTrigger runs TriggerUpdate on a detached goroutine.
type AsyncTrigger struct {
	updater Updater
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewAsyncTrigger builds an in-process trigger.
func NewAsyncTrigger(updater Updater, timeout time.Duration, logger *slog.Logger) *AsyncTrigger {
	if timeout <= 0 {
		timeout = DefaultTriggerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncTrigger{updater: updater, timeout: timeout, logger: logger}
}

// SourceChanged schedules a recompute that outlives the caller's context.
func (t *AsyncTrigger) SourceChanged(ctx context.Context, userID string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		if err := t.updater.TriggerUpdate(runCtx, userID); err != nil {
			t.logger.Error("analytics trigger update failed",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		}
	}()
}

// Wait blocks until every scheduled recompute returned.
func (t *AsyncTrigger) Wait() {
	t.wg.Wait()
}

var _ Trigger = (*AsyncTrigger)(nil)
