package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beryllium-dev/beryllium"
	"github.com/beryllium-dev/beryllium/internal/config"
	"github.com/beryllium-dev/beryllium/pkg/auth"
	"github.com/beryllium-dev/beryllium/pkg/binding"
	"github.com/beryllium-dev/beryllium/pkg/middleware"
	"github.com/beryllium-dev/beryllium/pkg/session"
)

const visitsKey = "visits"

// newHandler builds the router. reg serves the metrics endpoint and, when
// metrics are enabled, receives the HTTP collectors.
func newHandler(cfg *config.Config, app *beryllium.Context, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, error) {
	signer, err := binding.NewHMACSigner([]byte(cfg.Session.Secret))
	if err != nil {
		return nil, err
	}
	sameSite, _ := cfg.Session.SameSiteMode()
	binder, err := binding.New(app.Sessions(), binding.Config{
		Signer:         signer,
		CookieName:     cfg.Session.CookieName,
		CookiePath:     cfg.Session.CookiePath,
		CookieDomain:   cfg.Session.CookieDomain,
		SecureCookies:  cfg.Session.SecureCookies,
		SameSite:       sameSite,
		TTL:            cfg.Session.TTL.Std(),
		TrustedProxies: cfg.Server.TrustedProxies,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	metricsPath := cfg.Metrics.Path
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.OpenTelemetry(
		middleware.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != metricsPath
		}),
	))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Prometheus(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(reg),
		))
	}
	r.Use(chimw.RequestLogger(&requestLogger{logger: logger}))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
		}))
	}

	h := &handlers{binder: binder}
	r.Group(func(r chi.Router) {
		r.Use(binder.Middleware)
		r.Get("/", h.visit)
		r.Get("/whoami", h.whoami)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.With(auth.RequireAuth).Get("/me", h.me)
	})

	return r, nil
}

type handlers struct {
	binder *binding.Binder
}

// visit counts requests made within the caller's session.
func (h *handlers) visit(w http.ResponseWriter, r *http.Request) {
	sess := binding.FromContext(r.Context())
	visits, _ := session.Value[int](sess, visitsKey)
	visits++
	sess.Set(visitsKey, visits)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "visits: %d\n", visits)
}

type whoamiResponse struct {
	session.Info
	KeyTime time.Time `json:"key_time"`
}

// whoami reports the caller's session without its key.
func (h *handlers) whoami(w http.ResponseWriter, r *http.Request) {
	sess := binding.FromContext(r.Context())
	info := sess.Info()
	keyTime, _ := session.KeyTime(info.Key)
	info.Key = ""

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(whoamiResponse{Info: info, KeyTime: keyTime})
}

// login binds the session to the user named in the form. It trusts the
// caller; put it behind a real identity check before exposing it.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	user := r.FormValue("user")
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	auth.Set(binding.FromContext(r.Context()), user, user)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.Get[string](binding.FromContext(r.Context()))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, user)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.binder.Logout(w, r); err != nil {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestLogger adapts slog to chi's request logging.
type requestLogger struct {
	logger *slog.Logger
}

func (l *requestLogger) NewLogEntry(r *http.Request) chimw.LogEntry {
	return &requestLogEntry{
		logger: l.logger.With(
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
		),
	}
}

type requestLogEntry struct {
	logger *slog.Logger
}

func (e *requestLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	e.logger.Log(context.Background(), level, "request",
		"status", status,
		"bytes", bytes,
		"duration", elapsed)
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("handler panic", "panic", v, "stack", string(stack))
}
