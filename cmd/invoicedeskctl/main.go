// Command invoicedeskctl runs analytics maintenance against the database and job queue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/invoicedesk/invoicedesk/cmd/invoicedeskctl/cli"
	"github.com/invoicedesk/invoicedesk/internal/analytics"
	analyticsdb "github.com/invoicedesk/invoicedesk/internal/analytics/db"
	"github.com/invoicedesk/invoicedesk/internal/app"
	"github.com/invoicedesk/invoicedesk/internal/platform/cache"
	platformdb "github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/jobs"
)

var (
	cfg    *app.Config
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "invoicedeskctl",
	Short:         "InvoiceDesk analytics maintenance",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = app.NewLogger(cfg)
		return nil
	},
}

func init() {
	recomputeCmd.Flags().String("user", "", "tenant user id")
	recomputeCmd.Flags().String("period", string(analytics.DefaultPeriod), "period to rebuild (7days, 30days, 90days, 1year, custom or all)")
	triggerCmd.Flags().String("user", "", "tenant user id")
	triggerCmd.Flags().String("job", jobs.TaskAnalyticsRecompute, "job type to enqueue")
	clearCmd.Flags().String("user", "", "tenant user id")
	queueCmd.Flags().Int("scheduled", 0, "also list this many scheduled tasks")

	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(queueCmd)
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute analytics snapshots in-process",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		period, _ := cmd.Flags().GetString("period")
		return withAnalytics(cmd, func(c *cli.AnalyticsCLI) error {
			return c.Recompute(cmd.Context(), user, period)
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every analytics snapshot of a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		return withAnalytics(cmd, func(c *cli.AnalyticsCLI) error {
			return c.Clear(cmd.Context(), user)
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Enqueue an analytics job for the worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		job, _ := cmd.Flags().GetString("job")
		jobsCLI := cli.NewJobsCLI(cfg.AsynqRedisOpt())
		defer jobsCLI.Close()

		info, err := jobsCLI.Trigger(cmd.Context(), job, user)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show job queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		scheduled, _ := cmd.Flags().GetInt("scheduled")
		jobsCLI := cli.NewJobsCLI(cfg.AsynqRedisOpt())
		defer jobsCLI.Close()

		stats, err := jobsCLI.InspectQueue(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return err
		}
		if scheduled <= 0 {
			return nil
		}
		tasks, err := jobsCLI.ListScheduled(cmd.Context(), scheduled)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

// withAnalytics wires an analytics service on a short-lived pool. When the
// Redis bus is configured, recompute events still reach open streams.
func withAnalytics(cmd *cobra.Command, fn func(*cli.AnalyticsCLI) error) error {
	ctx := cmd.Context()
	pool, err := platformdb.New(ctx, cfg.PGDSN, platformdb.Options{MaxConns: 4})
	if err != nil {
		return err
	}
	defer pool.Close()

	var bus analytics.Bus = analytics.NewLocalBus(logger)
	if cfg.UseRedisBus() {
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer client.Close()
		bus = analytics.NewRedisBus(client, cfg.AnalyticsEventChannel, logger)
	}

	queries := analyticsdb.New(pool)
	service, err := app.NewAnalyticsService(cfg, queries, queries, bus, logger, nil)
	if err != nil {
		return err
	}
	return fn(cli.NewAnalyticsCLI(service, cmd.OutOrStdout()))
}
