package binding

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/beryllium-dev/beryllium/pkg/session"
)

// spanRecorder keeps the spans its tracers start on top of the noop
// implementation.
type spanRecorder struct {
	trace.TracerProvider
	mu    sync.Mutex
	spans []*recordedSpan
}

type recordingTracer struct {
	trace.Tracer
	p *spanRecorder
}

type recordedSpan struct {
	noop.Span
	name   string
	reason string
	ended  bool
}

func newSpanRecorder() *spanRecorder {
	return &spanRecorder{TracerProvider: noop.NewTracerProvider()}
}

func (p *spanRecorder) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{Tracer: p.TracerProvider.Tracer(name, opts...), p: p}
}

func (t *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recordedSpan{name: name}
	t.p.mu.Lock()
	t.p.spans = append(t.p.spans, s)
	t.p.mu.Unlock()
	return trace.ContextWithSpan(ctx, s), s
}

func (s *recordedSpan) End(...trace.SpanEndOption) { s.ended = true }
func (s *recordedSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		if a.Key == "session.reason" {
			s.reason = a.Value.AsString()
		}
	}
}

type testEnv struct {
	manager *session.Manager
	binder  *Binder
	signer  *HMACSigner
	handler http.Handler
}

func newTestEnv(t *testing.T, config Config, h http.HandlerFunc) *testEnv {
	t.Helper()
	signer, err := NewHMACSigner([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	config.Signer = signer
	config.Logger = slog.Default()

	manager := session.NewManager(session.NewStore(), session.DefaultManagerConfig(), slog.Default())
	binder, err := New(manager, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if h == nil {
		h = func(w http.ResponseWriter, r *http.Request) {}
	}
	return &testEnv{
		manager: manager,
		binder:  binder,
		signer:  signer,
		handler: binder.Middleware(h),
	}
}

// do sends a request from ip, optionally carrying cookie, and returns the
// session cookie the response set.
func (e *testEnv) do(t *testing.T, ip string, cookie *http.Cookie) *http.Cookie {
	t.Helper()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = ip + ":4000"
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)

	for _, c := range w.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatal("response did not set the session cookie")
	return nil
}

func (e *testEnv) keyOf(t *testing.T, c *http.Cookie) string {
	t.Helper()
	key, err := e.signer.Verify(c.Value)
	if err != nil {
		t.Fatalf("cookie does not verify: %v", err)
	}
	return key
}

func TestMiddlewareCreatesSession(t *testing.T) {
	var seen *session.Session
	env := newTestEnv(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	})

	c := env.do(t, "192.0.2.1", nil)

	if seen == nil {
		t.Fatal("handler saw no session")
	}
	if seen.OriginIP() != "192.0.2.1" {
		t.Errorf("OriginIP = %q, want 192.0.2.1", seen.OriginIP())
	}
	if got := env.keyOf(t, c); got != seen.Key() {
		t.Errorf("cookie key %q != session key %q", got, seen.Key())
	}
	if !c.HttpOnly || c.Path != "/" || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("unexpected cookie attributes: %+v", c)
	}
	if env.manager.Store().Len() != 1 {
		t.Errorf("store has %d entries, want 1", env.manager.Store().Len())
	}
}

func TestMiddlewareResumesSession(t *testing.T) {
	env := newTestEnv(t, Config{TTL: time.Minute}, func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		n, _ := session.Value[int](sess, "visits")
		sess.Set("visits", n+1)
	})

	c := env.do(t, "192.0.2.1", nil)
	key := env.keyOf(t, c)
	sess, _ := env.manager.Get(key)
	firstExpiry := sess.ExpireTime()

	time.Sleep(5 * time.Millisecond)
	c = env.do(t, "192.0.2.1", c)
	c = env.do(t, "192.0.2.1", c)

	if got := env.keyOf(t, c); got != key {
		t.Fatalf("session not resumed: key %q, want %q", got, key)
	}
	if visits, _ := session.Value[int](sess, "visits"); visits != 3 {
		t.Errorf("visits = %d, want 3", visits)
	}
	if !sess.ExpireTime().After(firstExpiry) {
		t.Error("resume did not slide the expiry")
	}
	if env.manager.Store().Len() != 1 {
		t.Errorf("store has %d entries, want 1", env.manager.Store().Len())
	}
}

func TestMiddlewareIPMismatchCreatesNewSession(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	c := env.do(t, "192.0.2.1", nil)
	original := env.keyOf(t, c)

	c2 := env.do(t, "198.51.100.7", c)
	replacement := env.keyOf(t, c2)

	if replacement == original {
		t.Fatal("session reused from a different IP")
	}
	sess, err := env.manager.Get(replacement)
	if err != nil {
		t.Fatal(err)
	}
	if sess.OriginIP() != "198.51.100.7" {
		t.Errorf("new session OriginIP = %q", sess.OriginIP())
	}
	if _, err := env.manager.Get(original); err != nil {
		t.Errorf("original session should be left for the sweep: %v", err)
	}
}

func TestMiddlewareRejectsTamperedCookie(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	c := env.do(t, "192.0.2.1", nil)
	original := env.keyOf(t, c)

	tampered := &http.Cookie{Name: DefaultCookieName, Value: c.Value + "x"}
	c2 := env.do(t, "192.0.2.1", tampered)

	if env.keyOf(t, c2) == original {
		t.Fatal("tampered cookie resumed the session")
	}
}

func TestMiddlewareUnknownKey(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	forged := &http.Cookie{Name: DefaultCookieName, Value: env.signer.Sign("no-such-key")}
	c := env.do(t, "192.0.2.1", forged)

	if env.keyOf(t, c) == "no-such-key" {
		t.Fatal("unknown key was accepted")
	}
}

func TestMiddlewareExpiredSession(t *testing.T) {
	env := newTestEnv(t, Config{TTL: time.Millisecond}, nil)

	c := env.do(t, "192.0.2.1", nil)
	original := env.keyOf(t, c)
	time.Sleep(10 * time.Millisecond)

	c2 := env.do(t, "192.0.2.1", c)
	if env.keyOf(t, c2) == original {
		t.Fatal("expired session resumed")
	}
}

func TestLogout(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		if err := env.binder.Logout(w, r); err != nil {
			t.Errorf("Logout failed: %v", err)
		}
	})

	r := httptest.NewRequest("GET", "/logout", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	if env.manager.Store().Len() != 0 {
		t.Error("session still stored after Logout")
	}
	cookies := w.Result().Cookies()
	last := cookies[len(cookies)-1]
	if last.Name != DefaultCookieName || last.MaxAge >= 0 {
		t.Errorf("last cookie does not clear the session: %+v", last)
	}
}

func TestLogoutOutsideMiddleware(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	r := httptest.NewRequest("GET", "/logout", nil)
	if err := env.binder.Logout(httptest.NewRecorder(), r); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMiddlewareSerializesRequestsPerSession(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	env := newTestEnv(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			close(entered)
			<-release
		}
	})

	c := env.do(t, "192.0.2.1", nil)

	go func() {
		r := httptest.NewRequest("GET", "/slow", nil)
		r.RemoteAddr = "192.0.2.1:4000"
		r.AddCookie(c)
		env.handler.ServeHTTP(httptest.NewRecorder(), r)
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.1:4000"
		r.AddCookie(c)
		env.handler.ServeHTTP(httptest.NewRecorder(), r)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second request ran while the first held the session")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second request never ran")
	}
}

func TestMiddlewareHandlerSpanParent(t *testing.T) {
	tp := newSpanRecorder()
	var inner trace.Span
	env := newTestEnv(t, Config{TracerProvider: tp}, func(w http.ResponseWriter, r *http.Request) {
		inner = trace.SpanFromContext(r.Context())
	})

	env.do(t, "192.0.2.1", nil)

	if len(tp.spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(tp.spans))
	}
	bind := tp.spans[0]
	if bind.name != "session.bind" || !bind.ended {
		t.Errorf("bind span = %q ended=%v", bind.name, bind.ended)
	}
	if bind.reason != ReasonNoCookie {
		t.Errorf("session.reason = %q, want %q", bind.reason, ReasonNoCookie)
	}
	if inner == trace.Span(bind) {
		t.Error("handler context carries the ended session.bind span")
	}
}

func TestMiddlewareGivesUpWhenRequestEnds(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	env := newTestEnv(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		if r.URL.Path == "/slow" {
			close(entered)
			<-release
		}
	})

	c := env.do(t, "192.0.2.1", nil)

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		r := httptest.NewRequest("GET", "/slow", nil)
		r.RemoteAddr = "192.0.2.1:4000"
		r.AddCookie(c)
		env.handler.ServeHTTP(httptest.NewRecorder(), r)
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	r.RemoteAddr = "192.0.2.1:4000"
	r.AddCookie(c)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	if len(w.Result().Cookies()) != 0 {
		t.Error("abandoned request set a cookie")
	}
	if n := env.manager.Store().Len(); n != 1 {
		t.Errorf("store has %d sessions, want 1", n)
	}

	close(release)
	<-slowDone
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("handler ran %d times, want 2", calls)
	}
}

func TestNewRequiresSigner(t *testing.T) {
	manager := session.NewManager(nil, session.DefaultManagerConfig(), nil)
	if _, err := New(manager, Config{}); !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
	if _, err := New(nil, Config{}); err == nil {
		t.Error("expected error for nil manager")
	}
}
