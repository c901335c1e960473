package analytics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments recomputes, extractor failures and published events.
type Metrics struct {
	recomputes        *prometheus.HistogramVec
	extractorFailures *prometheus.CounterVec
	events            *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics registers the analytics collectors. A nil registerer uses the
// default Prometheus registerer, registered once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func (m *Metrics) observeRecompute(period Period, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.recomputes.WithLabelValues(string(period), status).Observe(elapsed.Seconds())
}

func (m *Metrics) extractorFailed(name string) {
	if m == nil {
		return
	}
	m.extractorFailures.WithLabelValues(name).Inc()
}

func (m *Metrics) eventPublished(kind EventKind, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.events.WithLabelValues(string(kind), status).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	recomputes := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicedesk_analytics_recompute_duration_seconds",
		Help:    "Duration of analytics snapshot recomputes by period and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"period", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedesk_analytics_extractor_failures_total",
		Help: "Metric extractor failures isolated during recompute.",
	}, []string{"extractor"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedesk_analytics_events_published_total",
		Help: "Analytics events handed to the event bus.",
	}, []string{"kind", "status"})
	registerer.MustRegister(recomputes, failures, events)
	return &Metrics{recomputes: recomputes, extractorFailures: failures, events: events}
}
