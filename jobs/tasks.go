package jobs

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalyticsRecompute rebuilds every standard period for one tenant.
	TaskAnalyticsRecompute = "analytics:recompute"
	// TaskAnalyticsWarmup recomputes every tenant that already has snapshots.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
)

const (
	recomputeMaxRetry = 3
	recomputeTimeout  = 2 * time.Minute
)

// AnalyticsRecomputePayload identifies the tenant whose snapshots are stale.
type AnalyticsRecomputePayload struct {
	UserID string `json:"userId"`
}

// NewAnalyticsRecomputeTask builds a recompute task for the tenant. Tasks are
// never deduplicated: a write landing while a recompute is active must still
// get a run of its own.
func NewAnalyticsRecomputeTask(userID string) (*asynq.Task, error) {
	body, err := json.Marshal(AnalyticsRecomputePayload{UserID: strings.TrimSpace(userID)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsRecompute, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(recomputeMaxRetry),
		asynq.Timeout(recomputeTimeout),
	), nil
}

// AnalyticsWarmupPayload configures a warmup run.
type AnalyticsWarmupPayload struct {
	Limit int `json:"limit,omitempty"`
}

// NewAnalyticsWarmupTask builds the scheduled warmup task.
func NewAnalyticsWarmupTask(payload AnalyticsWarmupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// IdempotencyCleanupPayload sets how long keys are retained.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewIdempotencyCleanupTask builds the key pruning task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
