package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
)

// NewAnalyticsService builds the analytics service with the configured read policy.
func NewAnalyticsService(cfg *Config, repo analytics.Repository, store analytics.SnapshotStore, bus analytics.Bus, logger *slog.Logger, metrics *analytics.Metrics) (*analytics.Service, error) {
	policy, err := analytics.ParseReadPolicy(cfg.AnalyticsReadPolicy, cfg.AnalyticsReadTTL)
	if err != nil {
		return nil, fmt.Errorf("app: analytics read policy: %w", err)
	}
	return analytics.NewService(repo, store, bus,
		analytics.WithLogger(logger),
		analytics.WithMetrics(metrics),
		analytics.WithReadPolicy(policy),
	), nil
}

// NewEventBus returns the Redis-backed bus when configured, listening until
// ctx ends, and the in-process bus otherwise.
func NewEventBus(ctx context.Context, cfg *Config, client *redis.Client, logger *slog.Logger) (analytics.Bus, error) {
	if !cfg.UseRedisBus() {
		return analytics.NewLocalBus(logger), nil
	}
	if client == nil {
		return nil, fmt.Errorf("app: redis event bus requires a redis client")
	}
	bus := analytics.NewRedisBus(client, cfg.AnalyticsEventChannel, logger)
	if err := bus.Listen(ctx); err != nil {
		return nil, fmt.Errorf("app: listen analytics events: %w", err)
	}
	return bus, nil
}

// AsynqRedisOpt maps the Redis settings onto asynq's connection options.
func (c *Config) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
