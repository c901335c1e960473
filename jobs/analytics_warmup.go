package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
)

const defaultTenantTimeout = time.Minute

// TenantLister returns tenants that already own analytics snapshots.
type TenantLister interface {
	Tenants(ctx context.Context) ([]string, error)
}

// AnalyticsWarmupJob recomputes every known tenant so the first read of the
// day finds fresh snapshots.
type AnalyticsWarmupJob struct {
	Tenants       TenantLister
	Updater       analytics.Updater
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
	TenantTimeout time.Duration
	clock         func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(tenants TenantLister, updater analytics.Updater, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Tenants:       tenants,
		Updater:       updater,
		Logger:        logger,
		Metrics:       metrics,
		TenantTimeout: defaultTenantTimeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks. A failing tenant does not stop the
// run; the task fails afterwards so asynq records it.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Tenants == nil || j.Updater == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("analytics warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskAnalyticsWarmup)
	logger.Info("starting analytics warmup")

	tenants, err := j.Tenants.Tenants(ctx)
	if err != nil {
		logger.Error("load warmup tenants", slog.Any("error", err))
		return fmt.Errorf("analytics warmup: list tenants: %w", err)
	}
	if payload.Limit > 0 && len(tenants) > payload.Limit {
		tenants = tenants[:payload.Limit]
	}
	if len(tenants) == 0 {
		logger.Info("no tenants discovered for warmup")
		return nil
	}

	start := j.now()
	warmed, failed := 0, 0
	for _, userID := range tenants {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.warmTenant(ctx, userID); err != nil {
			failed++
			logger.Error("warm tenant", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		warmed++
	}
	metrics.AddTenants(TaskAnalyticsWarmup, "success", warmed)
	metrics.AddTenants(TaskAnalyticsWarmup, "failure", failed)

	logger.Info("completed analytics warmup",
		slog.Int("tenants", warmed),
		slog.Int("failed", failed),
		slog.Duration("duration", j.now().Sub(start)),
	)
	if failed > 0 {
		return fmt.Errorf("analytics warmup: %d of %d tenants failed", failed, len(tenants))
	}
	return nil
}

func (j *AnalyticsWarmupJob) warmTenant(ctx context.Context, userID string) error {
	timeout := j.TenantTimeout
	if timeout <= 0 {
		timeout = defaultTenantTimeout
	}
	tenantCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return j.Updater.TriggerUpdate(tenantCtx, userID)
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
