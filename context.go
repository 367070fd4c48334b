// Package beryllium wires the session subsystem together.
//
// A Context owns one session manager and one scheduler and registers the
// expired-session sweep on the scheduler. The request layer reaches the
// manager through Sessions:
//
//	app, err := beryllium.New(beryllium.Config{
//	    Session: beryllium.SessionConfig{TTL: time.Hour, SweepInterval: time.Minute},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	binder, _ := binding.New(app.Sessions(), binding.Config{Signer: signer})
//	http.ListenAndServe(":8080", binder.Middleware(mux))
package beryllium

import (
	"fmt"
	"log/slog"

	"github.com/beryllium-dev/beryllium/pkg/cron"
	"github.com/beryllium-dev/beryllium/pkg/session"
)

// SweepTaskName labels the sweep in scheduler logs, spans and metrics.
const SweepTaskName = "session_sweep"

// Context is the composition root for sessions.
type Context struct {
	sessions  *session.Manager
	scheduler *cron.Scheduler
	config    Config
	logger    *slog.Logger
}

// New builds a Context and registers the sweep task. The scheduler is not
// started until Start.
func New(cfg Config) (*Context, error) {
	cfg.applyDefaults()
	logger := cfg.Logger

	var sessionMetrics *session.Metrics
	var cronMetrics *cron.Metrics
	if cfg.Metrics.Registerer != nil {
		sessionMetrics = session.NewMetrics(
			session.WithNamespace(cfg.Metrics.Namespace),
			session.WithRegistry(cfg.Metrics.Registerer),
		)
		cronMetrics = cron.NewMetrics(cfg.Metrics.Registerer, cfg.Metrics.Namespace)
	}

	managerConfig := session.DefaultManagerConfig()
	managerConfig.DefaultTTL = cfg.Session.TTL
	managerConfig.KeySuffixLength = cfg.Session.KeySuffixLength
	managerConfig.Metrics = sessionMetrics

	c := &Context{
		sessions: session.NewManager(session.NewStore(), managerConfig, logger),
		scheduler: cron.New(
			cron.WithLogger(logger),
			cron.WithMetrics(cronMetrics),
			cron.WithTracerProvider(cfg.TracerProvider),
		),
		config: cfg,
		logger: logger,
	}

	if err := c.scheduler.AddTimerTask(SweepTaskName, c.sweep, cfg.Session.SweepInterval); err != nil {
		return nil, fmt.Errorf("beryllium: register sweep: %w", err)
	}
	return c, nil
}

func (c *Context) sweep() {
	c.sessions.CleanExpired()
}

// Sessions returns the session manager.
func (c *Context) Sessions() *session.Manager {
	return c.sessions
}

// Scheduler returns the scheduler running the sweep. Callers may register
// their own tasks on it.
func (c *Context) Scheduler() *cron.Scheduler {
	return c.scheduler
}

// Start starts the scheduler.
func (c *Context) Start() error {
	if err := c.scheduler.Start(); err != nil {
		return fmt.Errorf("beryllium: start: %w", err)
	}
	c.logger.Info("session sweep started",
		"ttl", c.config.Session.TTL,
		"sweep_interval", c.config.Session.SweepInterval)
	return nil
}

// Shutdown stops the scheduler, waits for its worker to exit and releases
// its timers. A sweep in progress finishes first. Sessions stay in memory
// until the Context is dropped.
func (c *Context) Shutdown() error {
	if err := c.scheduler.Stop(); err != nil {
		return fmt.Errorf("beryllium: shutdown: %w", err)
	}
	if err := c.scheduler.Join(); err != nil {
		return fmt.Errorf("beryllium: shutdown: %w", err)
	}
	if err := c.scheduler.Close(); err != nil {
		return fmt.Errorf("beryllium: shutdown: %w", err)
	}
	c.logger.Info("session sweep stopped", "sessions", c.sessions.Store().Len())
	return nil
}
