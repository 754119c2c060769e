package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	// Feed metrics
	Snapshots            *prometheus.CounterVec
	DuplicatesSuppressed *prometheus.CounterVec

	// Aggregation metrics
	OrdersFolded *prometheus.CounterVec
	FoldFailures *prometheus.CounterVec
	FoldLatency  *prometheus.HistogramVec

	// Alert metrics
	Alerts *prometheus.CounterVec

	// Reset metrics
	Resets        *prometheus.CounterVec
	OrdersDeleted *prometheus.CounterVec

	// Archive metrics
	ArchivedOrders  *prometheus.CounterVec
	ArchiveFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Snapshots: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_snapshots_total",
				Help:      "Order-list snapshots delivered by the ledger subscription",
			},
			[]string{"shop"},
		),
		DuplicatesSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_orders_suppressed_total",
				Help:      "New-order events suppressed because the order was already processed",
			},
			[]string{"shop"},
		),
		OrdersFolded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_folded_total",
				Help:      "Orders folded into the daily/monthly accumulators",
			},
			[]string{"shop"},
		),
		FoldFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fold_failures_total",
				Help:      "Failed accumulator folds",
			},
			[]string{"shop"},
		),
		FoldLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fold_latency_seconds",
				Help:      "Latency of the atomic fold against the ledger",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"shop"},
		),
		Alerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_alerts_total",
				Help:      "New-order alerts published",
			},
			[]string{"shop"},
		),
		Resets: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resets_total",
				Help:      "Reset operations performed",
			},
			[]string{"shop"},
		),
		OrdersDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_deleted_total",
				Help:      "Orders removed by reset operations",
			},
			[]string{"shop"},
		),
		ArchivedOrders: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archived_orders_total",
				Help:      "Orders appended to the warehouse archive",
			},
			[]string{"shop"},
		),
		ArchiveFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_failures_total",
				Help:      "Failed archive appends",
			},
			[]string{"shop"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSnapshot records one subscription delivery.
func (m *Metrics) RecordSnapshot(shop string) {
	m.Snapshots.WithLabelValues(shop).Inc()
}

// RecordDuplicateSuppressed records a suppressed replay.
func (m *Metrics) RecordDuplicateSuppressed(shop string) {
	m.DuplicatesSuppressed.WithLabelValues(shop).Inc()
}

// RecordOrderFolded records a successful fold and its latency.
func (m *Metrics) RecordOrderFolded(shop string, latency time.Duration) {
	m.OrdersFolded.WithLabelValues(shop).Inc()
	m.FoldLatency.WithLabelValues(shop).Observe(latency.Seconds())
}

// RecordFoldFailure records a failed fold.
func (m *Metrics) RecordFoldFailure(shop string) {
	m.FoldFailures.WithLabelValues(shop).Inc()
}

// RecordAlert records a published new-order alert.
func (m *Metrics) RecordAlert(shop string) {
	m.Alerts.WithLabelValues(shop).Inc()
}

// RecordReset records a reset and how many orders it removed.
func (m *Metrics) RecordReset(shop string, deleted int) {
	m.Resets.WithLabelValues(shop).Inc()
	m.OrdersDeleted.WithLabelValues(shop).Add(float64(deleted))
}

// RecordArchivedOrder records an archive append.
func (m *Metrics) RecordArchivedOrder(shop string) {
	m.ArchivedOrders.WithLabelValues(shop).Inc()
}

// RecordArchiveFailure records a failed archive append.
func (m *Metrics) RecordArchiveFailure(shop string) {
	m.ArchiveFailures.WithLabelValues(shop).Inc()
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
