package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the session Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "beryllium").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the collectors updated by a Manager.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	created       prometheus.Counter
	refreshed     prometheus.Counter
	deleted       prometheus.Counter
	swept         prometheus.Counter
	live          prometheus.Gauge
	sweepDuration prometheus.Histogram
}

// NewMetrics registers the session collectors.
//
// Metrics collected:
//   - beryllium_session_created_total
//   - beryllium_session_refreshed_total
//   - beryllium_session_deleted_total
//   - beryllium_session_swept_total: sessions removed by CleanExpired
//   - beryllium_session_stored: sessions currently in the store
//   - beryllium_session_sweep_duration_seconds
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "beryllium",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	const subsystem = "session"

	return &Metrics{
		created: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        "created_total",
			Help:        "Total number of sessions created",
			ConstLabels: config.ConstLabels,
		}),
		refreshed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        "refreshed_total",
			Help:        "Total number of sliding-window refreshes",
			ConstLabels: config.ConstLabels,
		}),
		deleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        "deleted_total",
			Help:        "Total number of explicitly deleted sessions",
			ConstLabels: config.ConstLabels,
		}),
		swept: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        "swept_total",
			Help:        "Total number of expired sessions removed by the sweep",
			ConstLabels: config.ConstLabels,
		}),
		live: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        "stored",
			Help:        "Number of sessions currently held in the store",
			ConstLabels: config.ConstLabels,
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        "sweep_duration_seconds",
			Help:        "Duration of expired-session sweeps in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
	}
}

func (m *Metrics) recordCreate() {
	if m == nil {
		return
	}
	m.created.Inc()
	m.live.Inc()
}

func (m *Metrics) recordRefresh() {
	if m == nil {
		return
	}
	m.refreshed.Inc()
}

func (m *Metrics) recordDelete() {
	if m == nil {
		return
	}
	m.deleted.Inc()
	m.live.Dec()
}

func (m *Metrics) recordSweep(removed int, took time.Duration) {
	if m == nil {
		return
	}
	m.swept.Add(float64(removed))
	m.live.Sub(float64(removed))
	m.sweepDuration.Observe(took.Seconds())
}
