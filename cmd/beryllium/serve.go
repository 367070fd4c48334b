package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/beryllium-dev/beryllium"
	"github.com/beryllium-dev/beryllium/internal/config"
	"github.com/beryllium-dev/beryllium/internal/errors"
	"github.com/beryllium-dev/beryllium/pkg/auth"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and the expired-session sweep.

The server shuts down gracefully on SIGINT or SIGTERM: in-flight
requests finish, then the sweep stops.

Examples:
  beryllium serve
  beryllium serve --addr :9000
  beryllium serve -c /etc/beryllium/beryllium.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, os.Stderr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")

	return cmd
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// newRegistry returns a registry with the Go runtime and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serve runs the server until ctx is done, then shuts it down.
func serve(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	auth.DebugMode = logger.Enabled(ctx, slog.LevelDebug)

	if path := cfg.Path(); path != "" {
		logger.Info("config loaded", "path", path)
	}
	for _, key := range cfg.UnknownKeys() {
		logger.Warn("unknown config key", "key", key)
	}

	reg := newRegistry()
	appConfig := beryllium.Config{
		Session: beryllium.SessionConfig{
			TTL:             cfg.Session.TTL.Std(),
			SweepInterval:   cfg.Session.SweepInterval.Std(),
			KeySuffixLength: cfg.Session.KeySuffixLength,
		},
		Metrics: beryllium.MetricsConfig{Namespace: cfg.Metrics.Namespace},
		Logger:  logger,
	}
	if cfg.Metrics.Enabled {
		appConfig.Metrics.Registerer = reg
	}

	app, err := beryllium.New(appConfig)
	if err != nil {
		return errors.New("E200").Wrap(err)
	}
	handler, err := newHandler(cfg, app, reg, logger)
	if err != nil {
		return errors.New("E200").Wrap(err)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		if stderrors.Is(err, syscall.EADDRINUSE) {
			return errors.New("E201").
				Wrap(err).
				WithSuggestion("Stop the other process or pick another address with --addr")
		}
		return errors.New("E200").Wrap(err)
	}

	if err := app.Start(); err != nil {
		ln.Close()
		return errors.New("E300").Wrap(err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Std(),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	logger.Info("server listening", "addr", ln.Addr().String())

	var runErr error
	select {
	case err := <-serveErr:
		if !stderrors.Is(err, http.ErrServerClosed) {
			runErr = errors.New("E200").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.Std())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			if stderrors.Is(err, context.DeadlineExceeded) {
				runErr = errors.New("E202").Wrap(err)
			} else {
				runErr = errors.New("E200").Wrap(err)
			}
			srv.Close()
		}
	}

	if err := app.Shutdown(); err != nil && runErr == nil {
		runErr = errors.New("E300").Wrap(err)
	}
	if runErr == nil {
		logger.Info("server stopped")
	}
	return runErr
}
