package beryllium

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config configures a Context.
type Config struct {
	// Session configures the session manager and its sweep.
	Session SessionConfig

	// Metrics configures Prometheus collectors. A nil Registerer disables them.
	Metrics MetricsConfig

	// Logger is the structured logger for the application.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// TracerProvider is used for scheduler spans.
	// If nil, the global otel provider is used.
	TracerProvider trace.TracerProvider
}

// SessionConfig configures session behavior.
type SessionConfig struct {
	// TTL is the lifetime applied when a caller passes no explicit TTL.
	// Default: 1 hour.
	TTL time.Duration

	// SweepInterval is the delay between expired-session sweeps, measured
	// from the end of the previous sweep.
	// Default: 1 minute.
	SweepInterval time.Duration

	// KeySuffixLength is the number of random letters appended to each key.
	// Default: 10.
	KeySuffixLength int
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	// Registerer receives the session and scheduler collectors.
	Registerer prometheus.Registerer

	// Namespace prefixes metric names. Default: "beryllium".
	Namespace string
}

// DefaultSessionConfig returns the default session settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:             time.Hour,
		SweepInterval:   time.Minute,
		KeySuffixLength: 10,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultSessionConfig()
	if c.Session.TTL <= 0 {
		c.Session.TTL = d.TTL
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = d.SweepInterval
	}
	if c.Session.KeySuffixLength <= 0 {
		c.Session.KeySuffixLength = d.KeySuffixLength
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "beryllium"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
