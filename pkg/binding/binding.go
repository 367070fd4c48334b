package binding

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/beryllium-dev/beryllium/pkg/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/beryllium-dev/beryllium/pkg/binding"

// DefaultCookieName is the cookie carrying the signed session token.
const DefaultCookieName = "beryllium_session"

// Reasons reported for a binding decision.
const (
	ReasonResumed          = "resumed"
	ReasonNoCookie         = "no_cookie"
	ReasonInvalidSignature = "invalid_signature"
	ReasonUnknown          = "unknown_session"
	ReasonExpired          = "expired"
	ReasonIPMismatch       = "ip_mismatch"
	ReasonCanceled         = "canceled"
)

// Config configures a Binder.
type Config struct {
	// Signer signs and verifies cookie tokens. Required.
	Signer Signer

	// CookieName is the session cookie name. Default: DefaultCookieName.
	CookieName string

	// CookiePath is the cookie path. Default: "/".
	CookiePath string

	// CookieDomain is the cookie domain. Empty means host-only.
	CookieDomain string

	// SecureCookies forces the Secure flag. The flag is also set on
	// requests that arrived over TLS.
	SecureCookies bool

	// SameSite is the cookie SameSite mode. Default: http.SameSiteLaxMode.
	SameSite http.SameSite

	// TTL is the sliding lifetime applied on create and refresh.
	// Zero uses the manager default.
	TTL time.Duration

	// TrustedProxies lists proxy IPs or CIDRs whose Forwarded and
	// X-Forwarded-For headers are honored.
	TrustedProxies []string

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger

	// TracerProvider creates the session.bind spans.
	// Default: the global otel provider.
	TracerProvider trace.TracerProvider
}

// Binder binds each HTTP request to a session.
//
// A request presenting a valid token for a live session created from the
// same client IP resumes that session and slides its expiry. Anything else
// gets a new session bound to the request's IP and a new cookie. The
// session is leased for the duration of the request.
type Binder struct {
	manager *session.Manager
	config  Config
	trusted *proxyMatcher
	logger  *slog.Logger
	tracer  trace.Tracer
}

type contextKey struct{}

// New creates a Binder over manager.
func New(manager *session.Manager, config Config) (*Binder, error) {
	if manager == nil {
		return nil, errors.New("binding: nil session manager")
	}
	if config.Signer == nil {
		return nil, ErrNoSecret
	}
	if config.CookieName == "" {
		config.CookieName = DefaultCookieName
	}
	if config.CookiePath == "" {
		config.CookiePath = "/"
	}
	if config.SameSite == 0 {
		config.SameSite = http.SameSiteLaxMode
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session_binding")
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Binder{
		manager: manager,
		config:  config,
		trusted: newProxyMatcher(config.TrustedProxies, logger),
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
	}, nil
}

// FromContext returns the session bound to the request context, or nil.
func FromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(contextKey{}).(*session.Session)
	return sess
}

// Middleware binds the request, runs next, then writes the session back.
// A request whose context ends while it waits for its session's lease is
// dropped without a response.
func (b *Binder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, b.trusted)

		ctx, span := b.tracer.Start(r.Context(), "session.bind")
		sess, reason := b.bind(ctx, r, ip)
		span.SetAttributes(
			attribute.String("session.reason", reason),
			attribute.Bool("session.resumed", reason == ReasonResumed),
		)
		span.End()
		if sess == nil {
			b.logger.Debug("request gave up waiting for its session", "ip", ip, "error", r.Context().Err())
			return
		}
		defer b.manager.Release(sess)

		if reason != ReasonResumed {
			b.logger.Debug("session created",
				"session_id", sess.Key(),
				"ip", ip,
				"reason", reason)
		}
		http.SetCookie(w, b.cookie(r, sess))

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, sess)))

		if err := b.manager.Save(sess); err != nil {
			// Deleted during the request, e.g. by Logout.
			b.logger.Debug("session not written back", "session_id", sess.Key(), "error", err)
		}
	})
}

// bind returns a leased session for the request and why it was chosen.
// The session is nil only when ctx ended first.
func (b *Binder) bind(ctx context.Context, r *http.Request, ip string) (*session.Session, string) {
	sess, reason := b.resume(ctx, r, ip)
	if sess != nil || reason == ReasonCanceled {
		return sess, reason
	}
	sess = b.manager.CreateAcquired(map[string]any{
		session.ValueOriginIP: ip,
	}, b.config.TTL)
	return sess, reason
}

// resume leases and refreshes the session named by the request's cookie.
// It returns nil and the reason when that session can't be reused.
func (b *Binder) resume(ctx context.Context, r *http.Request, ip string) (*session.Session, string) {
	cookie, err := r.Cookie(b.config.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ReasonNoCookie
	}
	key, err := b.config.Signer.Verify(cookie.Value)
	if err != nil {
		return nil, ReasonInvalidSignature
	}
	sess, err := b.manager.AcquireContext(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ReasonCanceled
		}
		return nil, ReasonUnknown
	}
	if sess.Expired() {
		b.manager.Release(sess)
		return nil, ReasonExpired
	}
	if sess.OriginIP() != ip {
		b.manager.Release(sess)
		b.logger.Info("session presented from a different IP",
			"session_id", key,
			"origin_ip", sess.OriginIP(),
			"ip", ip)
		return nil, ReasonIPMismatch
	}
	if err := b.manager.Refresh(key, b.config.TTL); err != nil {
		b.manager.Release(sess)
		return nil, ReasonUnknown
	}
	return sess, ReasonResumed
}

func (b *Binder) cookie(r *http.Request, sess *session.Session) *http.Cookie {
	return &http.Cookie{
		Name:     b.config.CookieName,
		Value:    b.config.Signer.Sign(sess.Key()),
		Path:     b.config.CookiePath,
		Domain:   b.config.CookieDomain,
		Expires:  sess.ExpireTime(),
		HttpOnly: true,
		Secure:   b.config.SecureCookies || isRequestSecure(r, b.trusted),
		SameSite: b.config.SameSite,
	}
}

// Logout deletes the request's session and clears the cookie.
// It must be called inside Middleware, before the response body is written.
func (b *Binder) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := FromContext(r.Context())
	if sess == nil {
		return session.ErrNotFound
	}
	http.SetCookie(w, &http.Cookie{
		Name:     b.config.CookieName,
		Value:    "",
		Path:     b.config.CookiePath,
		Domain:   b.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   b.config.SecureCookies || isRequestSecure(r, b.trusted),
		SameSite: b.config.SameSite,
	})
	return b.manager.Delete(sess.Key())
}
