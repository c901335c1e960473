package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
)

// AnalyticsRunner is the part of analytics.Service the CLI drives directly.
type AnalyticsRunner interface {
	UpdateAnalytics(ctx context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error)
	TriggerUpdate(ctx context.Context, userID string) error
	ClearAnalytics(ctx context.Context, userID string) (int64, error)
}

// AnalyticsCLI runs recompute and clear operations in-process.
type AnalyticsCLI struct {
	runner AnalyticsRunner
	out    io.Writer
}

// NewAnalyticsCLI constructs the helper writing results to out.
func NewAnalyticsCLI(runner AnalyticsRunner, out io.Writer) *AnalyticsCLI {
	return &AnalyticsCLI{runner: runner, out: out}
}

type recomputeResult struct {
	UserID      string           `json:"userId"`
	Period      analytics.Period `json:"period,omitempty"`
	TotalSales  float64          `json:"totalSales"`
	NetProfit   float64          `json:"netProfit"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// Recompute rebuilds one period, or every standard period when period is "all".
func (c *AnalyticsCLI) Recompute(ctx context.Context, userID, period string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("analytics cli: --user is required")
	}
	if period == "all" {
		if err := c.runner.TriggerUpdate(ctx, userID); err != nil {
			return err
		}
		return c.write(map[string]any{"userId": userID, "periods": analytics.StandardPeriods})
	}
	p, err := analytics.ParsePeriod(period)
	if err != nil {
		return err
	}
	snap, err := c.runner.UpdateAnalytics(ctx, userID, p)
	if err != nil {
		return err
	}
	return c.write(recomputeResult{
		UserID:      userID,
		Period:      p,
		TotalSales:  snap.TotalSales,
		NetProfit:   snap.NetProfit,
		LastUpdated: snap.LastUpdated,
	})
}

// Clear deletes every snapshot of the user.
func (c *AnalyticsCLI) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("analytics cli: --user is required")
	}
	deleted, err := c.runner.ClearAnalytics(ctx, userID)
	if err != nil {
		return err
	}
	return c.write(map[string]any{"userId": userID, "deletedCount": deleted})
}

func (c *AnalyticsCLI) write(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("analytics cli: write output: %w", err)
	}
	return nil
}
