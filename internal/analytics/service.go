package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/invoicedesk/invoicedesk/internal/analytics/db"
)

// Service recomputes, persists and serves analytics snapshots.
type Service struct {
	repo       Repository
	store      SnapshotStore
	bus        Bus
	logger     *slog.Logger
	metrics    *Metrics
	policy     ReadPolicy
	extractors []extractor
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReadPolicy overrides the read path policy.
func WithReadPolicy(p ReadPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the aggregate repository, snapshot store and event bus.
func NewService(repo Repository, store SnapshotStore, bus Bus, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		store:      store,
		bus:        bus,
		logger:     slog.Default(),
		policy:     ReadPolicy{Mode: ReadAlways},
		extractors: defaultExtractors(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateAnalytics recomputes the snapshot of one tenant and period, persists
// it and publishes a recompute-completed event. Extractor failures leave
// their fields at zero; only a persistence failure is returned.
func (s *Service) UpdateAnalytics(ctx context.Context, userID string, period Period) (snap *Snapshot, err error) {
	if err := checkRequest(userID, period); err != nil {
		return nil, err
	}
	began := time.Now()
	defer func() { s.metrics.observeRecompute(period, time.Since(began), err) }()
	start := s.now()

	logger := s.logger.With(slog.String("user_id", userID), slog.String("period", string(period)))
	logger.Debug("recomputing analytics")

	snap, err = s.load(ctx, userID, period)
	if err != nil {
		logger.Warn("load analytics snapshot", slog.Any("error", err))
	}
	if snap == nil {
		snap = NewSnapshot(userID, period)
	} else {
		snap.Reset()
	}
	snap.DateRange = ResolveRange(period, start)

	s.runExtractors(ctx, logger, snap)
	snap.CalculateNetProfit()
	snap.CalculatePaymentPercentages()
	snap.LastUpdated = s.now()

	if err := s.save(ctx, snap); err != nil {
		logger.Error("persist analytics snapshot", slog.Any("error", err))
		return nil, err
	}

	s.publish(ctx, Event{
		Kind:        EventRecomputeCompleted,
		UserID:      userID,
		Period:      period,
		LastUpdated: snap.LastUpdated,
	})
	return snap, nil
}

func (s *Service) runExtractors(ctx context.Context, logger *slog.Logger, snap *Snapshot) {
	fragments := make([]fragment, len(s.extractors))
	var g errgroup.Group
	for i, ex := range s.extractors {
		g.Go(func() error {
			apply, err := s.runExtractor(ctx, ex, snap.UserID, snap.DateRange)
			if err != nil {
				s.metrics.extractorFailed(ex.name)
				logger.Error("analytics extractor failed",
					slog.String("extractor", ex.name),
					slog.Any("error", err),
				)
				return nil
			}
			fragments[i] = apply
			return nil
		})
	}
	_ = g.Wait()

	for _, apply := range fragments {
		if apply != nil {
			apply(snap)
		}
	}
}

func (s *Service) runExtractor(ctx context.Context, ex extractor, userID string, rng DateRange) (apply fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			apply = nil
			err = fmt.Errorf("analytics: extractor %s panicked: %v", ex.name, r)
		}
	}()
	return ex.run(ctx, s.repo, userID, rng)
}

// TriggerUpdate recomputes every standard period concurrently and publishes a
// bulk event once all of them succeeded.
func (s *Service) TriggerUpdate(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	var g errgroup.Group
	for _, period := range StandardPeriods {
		g.Go(func() error {
			_, err := s.UpdateAnalytics(ctx, userID, period)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("analytics: trigger update: %w", err)
	}
	s.publish(ctx, Event{
		Kind:        EventBulkRecomputeCompleted,
		UserID:      userID,
		Periods:     append([]Period(nil), StandardPeriods...),
		LastUpdated: s.now(),
	})
	return nil
}

// GetAnalytics serves the snapshot of one tenant and period. Failures to
// recompute fall back to an all-zero snapshot; only a missing user or an
// unsupported period is an error.
func (s *Service) GetAnalytics(ctx context.Context, userID string, period Period) (*Snapshot, error) {
	if err := checkRequest(userID, period); err != nil {
		return nil, err
	}
	logger := s.logger.With(slog.String("user_id", userID), slog.String("period", string(period)))

	if s.policy.Mode == ReadTTL {
		stored, err := s.load(ctx, userID, period)
		if err != nil {
			logger.Warn("load analytics snapshot", slog.Any("error", err))
		}
		if stored != nil && s.policy.Fresh(stored.LastUpdated, s.now()) {
			return stored, nil
		}
	}

	snap, err := s.UpdateAnalytics(ctx, userID, period)
	if err == nil {
		return snap, nil
	}
	logger.Error("recompute on read failed, serving empty analytics", slog.Any("error", err))

	empty, err := s.CreateEmptyAnalytics(ctx, userID, period)
	if err != nil {
		logger.Error("create empty analytics", slog.Any("error", err))
		empty = NewSnapshot(userID, period)
		empty.DateRange = ResolveRange(period, s.now())
		empty.LastUpdated = s.now()
	}
	return empty, nil
}

// StoredAnalytics returns the persisted snapshot without recomputing. It
// returns ErrNotFound when the tenant has none for the period.
func (s *Service) StoredAnalytics(ctx context.Context, userID string, period Period) (*Snapshot, error) {
	if err := checkRequest(userID, period); err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrNotFound
	}
	return snap, nil
}

// CreateEmptyAnalytics persists and returns an all-zero snapshot.
func (s *Service) CreateEmptyAnalytics(ctx context.Context, userID string, period Period) (*Snapshot, error) {
	if err := checkRequest(userID, period); err != nil {
		return nil, err
	}
	snap := NewSnapshot(userID, period)
	snap.DateRange = ResolveRange(period, s.now())
	snap.LastUpdated = s.now()
	if err := s.save(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ClearAnalytics deletes every snapshot of the tenant.
func (s *Service) ClearAnalytics(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserRequired
	}
	deleted, err := s.store.DeleteSnapshotsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("analytics: clear snapshots: %w", err)
	}
	s.logger.Info("analytics cleared", slog.String("user_id", userID), slog.Int64("deleted", deleted))
	return deleted, nil
}

// Tenants lists users that own at least one snapshot.
func (s *Service) Tenants(ctx context.Context) ([]string, error) {
	users, err := s.store.ListSnapshotUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: list tenants: %w", err)
	}
	return users, nil
}

func checkRequest(userID string, period Period) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	if !period.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, string(period))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, evt)
	s.metrics.eventPublished(evt.Kind, err)
	if err != nil {
		s.logger.Warn("publish analytics event",
			slog.String("kind", string(evt.Kind)),
			slog.String("user_id", evt.UserID),
			slog.Any("error", err),
		)
	}
}

// snapshotBody is the JSON payload column; identity and timestamps live in
// their own columns.
type snapshotBody struct {
	TotalSales     float64             `json:"totalSales"`
	TotalPurchases float64             `json:"totalPurchases"`
	TotalExpenses  float64             `json:"totalExpenses"`
	NetProfit      float64             `json:"netProfit"`
	PaymentMethods []PaymentMethodStat `json:"paymentMethods"`
	SalesByDate    []SalesPoint        `json:"salesByDate"`
	TopProducts    []ProductStat       `json:"topProducts"`
	TopCustomers   []CustomerStat      `json:"topCustomers"`
	PaymentFlow    PaymentFlow         `json:"paymentFlow"`
	DailyPayments  []DailyPayment      `json:"dailyPayments"`
	KPIs           KPIs                `json:"kpis"`
}

func (s *Service) load(ctx context.Context, userID string, period Period) (*Snapshot, error) {
	row, err := s.store.GetSnapshot(ctx, analyticsdb.GetSnapshotParams{UserID: userID, Period: string(period)})
	if errors.Is(err, analyticsdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshotFromRow(row)
}

func (s *Service) save(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snapshotBody{
		TotalSales:     snap.TotalSales,
		TotalPurchases: snap.TotalPurchases,
		TotalExpenses:  snap.TotalExpenses,
		NetProfit:      snap.NetProfit,
		PaymentMethods: snap.PaymentMethods,
		SalesByDate:    snap.SalesByDate,
		TopProducts:    snap.TopProducts,
		TopCustomers:   snap.TopCustomers,
		PaymentFlow:    snap.PaymentFlow,
		DailyPayments:  snap.DailyPayments,
		KPIs:           snap.KPIs,
	})
	if err != nil {
		return fmt.Errorf("analytics: encode snapshot: %w", err)
	}
	row, err := s.store.UpsertSnapshot(ctx, analyticsdb.UpsertSnapshotParams{
		ID:          snap.ID,
		UserID:      snap.UserID,
		Period:      string(snap.DateRange.Period),
		StartDate:   snap.DateRange.StartDate,
		EndDate:     snap.DateRange.EndDate,
		Payload:     payload,
		LastUpdated: snap.LastUpdated,
	})
	if err != nil {
		return fmt.Errorf("analytics: save snapshot: %w", err)
	}
	snap.ID = row.ID
	snap.CreatedAt = row.CreatedAt
	return nil
}

func snapshotFromRow(row analyticsdb.SnapshotRow) (*Snapshot, error) {
	snap := NewSnapshot(row.UserID, Period(row.Period))
	if len(row.Payload) > 0 {
		var body snapshotBody
		if err := json.Unmarshal(row.Payload, &body); err != nil {
			return nil, fmt.Errorf("analytics: decode snapshot %s: %w", row.ID, err)
		}
		snap.TotalSales = body.TotalSales
		snap.TotalPurchases = body.TotalPurchases
		snap.TotalExpenses = body.TotalExpenses
		snap.NetProfit = body.NetProfit
		snap.PaymentFlow = body.PaymentFlow
		snap.KPIs = body.KPIs
		if body.PaymentMethods != nil {
			snap.PaymentMethods = body.PaymentMethods
		}
		if body.SalesByDate != nil {
			snap.SalesByDate = body.SalesByDate
		}
		if body.TopProducts != nil {
			snap.TopProducts = body.TopProducts
		}
		if body.TopCustomers != nil {
			snap.TopCustomers = body.TopCustomers
		}
		if body.DailyPayments != nil {
			snap.DailyPayments = body.DailyPayments
		}
	}
	snap.ID = row.ID
	snap.DateRange = DateRange{Period: Period(row.Period), StartDate: row.StartDate, EndDate: row.EndDate}
	snap.LastUpdated = row.LastUpdated
	snap.CreatedAt = row.CreatedAt
	return snap, nil
}
