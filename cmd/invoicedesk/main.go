package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
	analyticsdb "github.com/invoicedesk/invoicedesk/internal/analytics/db"
	analytichttp "github.com/invoicedesk/invoicedesk/internal/analytics/http"
	"github.com/invoicedesk/invoicedesk/internal/app"
	"github.com/invoicedesk/invoicedesk/internal/ledger"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/internal/platform/cache"
	platformdb "github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/shared"
	"github.com/invoicedesk/invoicedesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := platformdb.New(ctx, cfg.PGDSN, platformdb.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if cfg.UseRedisBus() || cfg.QueueTriggers() {
		redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	bus, err := app.NewEventBus(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Error("init analytics event bus", slog.Any("error", err))
		os.Exit(1)
	}

	queries := analyticsdb.New(dbpool)
	analyticsService, err := app.NewAnalyticsService(cfg, queries, queries, bus, logger, analytics.NewMetrics(metrics.Registerer()))
	if err != nil {
		logger.Error("init analytics", slog.Any("error", err))
		os.Exit(1)
	}
	analyticsHandler := analytichttp.NewHandler(logger, analyticsService, bus, metrics, cfg.AnalyticsSSEHeartbeat)

	var (
		trigger      analytics.Trigger
		inlineWaiter *analytics.AsyncTrigger
		jobHandler   *jobs.Handler
	)
	if cfg.QueueTriggers() {
		jobClient := jobs.NewClient(cfg.AsynqRedisOpt(), logger)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		trigger = jobClient

		inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		inlineWaiter = analytics.NewAsyncTrigger(analyticsService, cfg.AnalyticsTriggerTimeout, logger)
		trigger = inlineWaiter
	}

	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	ledgerRepo := ledger.NewRepository(dbpool, idempotencyStore)
	ledgerService := ledger.NewService(ledgerRepo, trigger, logger)
	ledgerHandler := ledger.NewHandler(ledgerService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analyticsHandler,
		LedgerHandler:    ledgerHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if inlineWaiter != nil {
		waitOrTimeout(shutdownCtx, inlineWaiter.Wait, logger)
	}
}

// waitOrTimeout blocks until fn returns or ctx expires.
func waitOrTimeout(ctx context.Context, fn func(), logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("analytics recomputes still running at shutdown")
	}
}
