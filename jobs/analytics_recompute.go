package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
	jobmetrics "github.com/invoicedesk/invoicedesk/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AnalyticsRecomputeJob runs a bulk recompute for the tenant named in the task.
type AnalyticsRecomputeJob struct {
	Updater analytics.Updater
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAnalyticsRecomputeJob wires dependencies for the recompute handler.
func NewAnalyticsRecomputeJob(updater analytics.Updater, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsRecomputeJob {
	return &AnalyticsRecomputeJob{Updater: updater, Logger: logger, Metrics: metrics}
}

// Handle processes analytics recompute tasks.
func (j *AnalyticsRecomputeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Updater == nil {
		return errors.New("analytics recompute: handler not configured")
	}
	var payload AnalyticsRecomputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("analytics recompute: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	payload.UserID = strings.TrimSpace(payload.UserID)
	if payload.UserID == "" {
		return fmt.Errorf("analytics recompute: user id missing: %w", asynq.SkipRetry)
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskAnalyticsRecompute)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskAnalyticsRecompute).With(slog.String("user_id", payload.UserID))
	if err := j.Updater.TriggerUpdate(ctx, payload.UserID); err != nil {
		metrics.AddTenants(TaskAnalyticsRecompute, "failure", 1)
		logger.Error("analytics recompute failed", slog.Any("error", err))
		return err
	}
	metrics.AddTenants(TaskAnalyticsRecompute, "success", 1)
	logger.Info("analytics recompute completed")
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
