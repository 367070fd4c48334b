package auth_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/beryllium-dev/beryllium/pkg/auth"
	"github.com/beryllium-dev/beryllium/pkg/binding"
	"github.com/beryllium-dev/beryllium/pkg/session"
)

type testUser struct {
	ID   string
	Role string
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	m := session.NewManager(session.NewStore(), session.DefaultManagerConfig(), slog.Default())
	return m.Create(nil, 0)
}

func TestSetGetClear(t *testing.T) {
	sess := newSession(t)

	if auth.IsAuthenticated(sess) {
		t.Fatal("new session is authenticated")
	}
	if _, err := auth.Require[*testUser](sess); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("Require = %v, want ErrUnauthorized", err)
	}

	user := &testUser{ID: "u1"}
	auth.Set(sess, user.ID, user)

	if sess.UserID() != "u1" {
		t.Errorf("UserID = %q, want u1", sess.UserID())
	}
	got, ok := auth.Get[*testUser](sess)
	if !ok || got != user {
		t.Errorf("Get = %v, %v", got, ok)
	}
	if _, ok := auth.Get[testUser](sess); ok {
		t.Error("Get with a value type matched a stored pointer")
	}

	auth.Clear(sess)
	if auth.IsAuthenticated(sess) {
		t.Error("session still authenticated after Clear")
	}
	if _, ok := sess.Get(auth.SessionKey); ok {
		t.Error("Clear left the user in the value bag")
	}
}

func TestGetLogsTypeMismatchInDebugMode(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() {
		slog.SetDefault(prev)
		auth.DebugMode = false
	})

	sess := newSession(t)
	auth.Set(sess, "u1", testUser{ID: "u1"})

	auth.DebugMode = false
	auth.Get[*testUser](sess)
	if buf.Len() != 0 {
		t.Errorf("mismatch logged outside debug mode: %s", buf.String())
	}

	auth.DebugMode = true
	if _, ok := auth.Get[*testUser](sess); ok {
		t.Fatal("Get with a pointer type matched a stored value")
	}
	out := buf.String()
	if !strings.Contains(out, "auth: type mismatch") || !strings.Contains(out, "*auth_test.testUser") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestNilSession(t *testing.T) {
	auth.Set[*testUser](nil, "u1", nil)
	auth.Clear(nil)
	if auth.IsAuthenticated(nil) {
		t.Error("nil session is authenticated")
	}
	if _, ok := auth.Get[*testUser](nil); ok {
		t.Error("Get on nil session succeeded")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
		ok   bool
	}{
		{nil, 0, false},
		{auth.ErrUnauthorized, http.StatusUnauthorized, true},
		{auth.ErrForbidden, http.StatusForbidden, true},
		{errors.New("other"), 0, false},
	}
	for _, tt := range tests {
		code, ok := auth.StatusCode(tt.err)
		if code != tt.code || ok != tt.ok {
			t.Errorf("StatusCode(%v) = %d, %v", tt.err, code, ok)
		}
		if auth.IsAuthError(tt.err) != tt.ok {
			t.Errorf("IsAuthError(%v) = %v", tt.err, !tt.ok)
		}
	}
}

// newAuthServer serves /login?role=... and two protected routes.
func newAuthServer(t *testing.T) http.Handler {
	t.Helper()
	signer, err := binding.NewHMACSigner([]byte("auth-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	m := session.NewManager(session.NewStore(), session.DefaultManagerConfig(), slog.Default())
	binder, err := binding.New(m, binding.Config{Signer: signer})
	if err != nil {
		t.Fatal(err)
	}

	r := chi.NewRouter()
	r.Use(binder.Middleware)
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		user := &testUser{ID: "u1", Role: r.URL.Query().Get("role")}
		auth.Set(binding.FromContext(r.Context()), user.ID, user)
	})
	r.With(auth.RequireAuth).Get("/account", func(w http.ResponseWriter, r *http.Request) {})
	r.With(auth.RequireRole(func(u *testUser) bool {
		return u.Role == "admin"
	})).Get("/admin", func(w http.ResponseWriter, r *http.Request) {})
	return r
}

func serve(h http.Handler, method, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func login(t *testing.T, h http.Handler, role string) *http.Cookie {
	t.Helper()
	w := serve(h, http.MethodPost, "/login?role="+role, nil)
	for _, c := range w.Result().Cookies() {
		if c.Name == binding.DefaultCookieName {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func TestRequireAuth(t *testing.T) {
	h := newAuthServer(t)

	if w := serve(h, http.MethodGet, "/account", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", w.Code)
	}

	cookie := login(t, h, "user")
	if w := serve(h, http.MethodGet, "/account", cookie); w.Code != http.StatusOK {
		t.Errorf("logged in: status = %d, want 200", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	h := newAuthServer(t)

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"user", login(t, h, "user"), http.StatusForbidden},
		{"admin", login(t, h, "admin"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(h, http.MethodGet, "/admin", tt.cookie); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
