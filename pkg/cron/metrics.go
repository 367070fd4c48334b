package cron

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduler collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	panics   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the scheduler collectors with registry under namespace.
// A nil registry uses prometheus.DefaultRegisterer.
//
// Metrics collected:
//   - <namespace>_cron_runs_total{task}
//   - <namespace>_cron_panics_total{task}
//   - <namespace>_cron_run_duration_seconds{task}
func NewMetrics(registry prometheus.Registerer, namespace string) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "runs_total",
			Help:      "Total number of timer task runs",
		}, []string{"task"}),
		panics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "panics_total",
			Help:      "Total number of timer task runs that panicked",
		}, []string{"task"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "run_duration_seconds",
			Help:      "Timer task run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
	}
}

func (m *Metrics) recordRun(task string, took time.Duration, panicked bool) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(task).Inc()
	m.duration.WithLabelValues(task).Observe(took.Seconds())
	if panicked {
		m.panics.WithLabelValues(task).Inc()
	}
}
