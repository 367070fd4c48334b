package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/beryllium-dev/beryllium/pkg/binding"
	"github.com/beryllium-dev/beryllium/pkg/session"
)

// SessionKey is the session value holding the authenticated user.
const SessionKey = "beryllium_auth_user"

// DebugMode logs type mismatches in Get. The serve command sets it when
// the log level is debug.
var DebugMode bool

// ErrUnauthorized is returned when authentication is required but not present.
var ErrUnauthorized = errors.New("unauthorized: authentication required")

// ErrForbidden is returned when authentication is present but insufficient.
var ErrForbidden = errors.New("forbidden: insufficient permissions")

// Set binds sess to the principal id and stores user in its value bag.
//
//	auth.Set(binding.FromContext(r.Context()), acct.ID, acct)
func Set[T any](sess *session.Session, id string, user T) {
	if sess == nil {
		return
	}
	sess.SetUserID(id)
	sess.Set(SessionKey, user)
}

// Get returns the authenticated user stored in sess.
//
// In debug mode, a stored value of a different type is logged, which
// catches the common value/pointer mismatch.
func Get[T any](sess *session.Session) (T, bool) {
	var zero T
	if !IsAuthenticated(sess) {
		return zero, false
	}
	val, ok := sess.Get(SessionKey)
	if !ok {
		return zero, false
	}
	if user, ok := val.(T); ok {
		return user, true
	}

	if DebugMode {
		requested := reflect.TypeOf((*T)(nil)).Elem()
		slog.Warn("auth: type mismatch",
			"stored_type", reflect.TypeOf(val),
			"requested_type", requested,
			"hint", "Did you store a struct (User) but request a pointer (*User)?",
		)
	}
	return zero, false
}

// Require returns the authenticated user or ErrUnauthorized.
func Require[T any](sess *session.Session) (T, error) {
	user, ok := Get[T](sess)
	if !ok {
		return user, ErrUnauthorized
	}
	return user, nil
}

// Clear removes the principal and the stored user from sess. The session
// itself stays alive.
func Clear(sess *session.Session) {
	if sess == nil {
		return
	}
	sess.SetUserID("")
	sess.Delete(SessionKey)
}

// IsAuthenticated reports whether sess is bound to a principal.
func IsAuthenticated(sess *session.Session) bool {
	return sess != nil && sess.UserID() != ""
}

// StatusCode returns the HTTP status code for an auth error.
// Returns (statusCode, true) for auth errors, (0, false) otherwise.
func StatusCode(err error) (int, bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	default:
		return 0, false
	}
}

// IsAuthError returns true if the error is an authentication or authorization error.
func IsAuthError(err error) bool {
	_, ok := StatusCode(err)
	return ok
}

// RequireAuth rejects requests whose bound session has no principal.
// It must run inside binding.Binder.Middleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(binding.FromContext(r.Context())) {
			writeError(w, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that passes only users for which check
// returns true.
//
//	r.With(auth.RequireRole(func(u *Account) bool {
//	    return u.Role == "admin"
//	})).Delete("/sessions/{id}", h.evict)
func RequireRole[T any](check func(T) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := Require[T](binding.FromContext(r.Context()))
			if err == nil && !check(user) {
				err = ErrForbidden
			}
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, _ := StatusCode(err)
	http.Error(w, http.StatusText(code), code)
}
