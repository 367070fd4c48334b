package session

import (
	"context"
	"sync"
	"time"
)

// Well-known value names. Create, Get, Set and Delete map them onto the
// typed fields when the value is a string.
const (
	ValueOriginIP = "origin_ip"
	ValueUserID   = "user_id"
)

// Session is server-side state for one visitor.
//
// The key is fixed at creation. The expiration time only moves through
// ResetExpireTime. Values are owned by whoever holds the session's lease
// (see Manager.Acquire); the accessors are still safe for concurrent use.
type Session struct {
	key       string
	createdAt time.Time
	clock     func() time.Time

	// lease serializes request processing on this key.
	lease lease

	mu         sync.RWMutex
	expireTime time.Time
	originIP   string
	userID     string
	values     map[string]any
}

func newSession(key string, createdAt, expireTime time.Time, values map[string]any, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	s := &Session{
		key:        key,
		createdAt:  createdAt,
		clock:      clock,
		lease:      make(lease, 1),
		expireTime: expireTime,
		values:     make(map[string]any, len(values)),
	}
	for k, v := range values {
		switch k {
		case ValueOriginIP:
			if ip, ok := v.(string); ok {
				s.originIP = ip
				continue
			}
		case ValueUserID:
			if id, ok := v.(string); ok {
				s.userID = id
				continue
			}
		}
		s.values[k] = v
	}
	return s
}

// Key returns the store key of the session.
func (s *Session) Key() string {
	return s.key
}

// CreatedAt returns when the session was created (UTC).
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// ExpireTime returns the absolute UTC expiration time.
func (s *Session) ExpireTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expireTime
}

// Expired reports whether the current UTC time is past the expiration time.
func (s *Session) Expired() bool {
	return s.expiredAt(s.clock().UTC())
}

func (s *Session) expiredAt(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.After(s.expireTime)
}

// ResetExpireTime overwrites the expiration time. No monotonicity check.
func (s *Session) ResetExpireTime(t time.Time) {
	s.mu.Lock()
	s.expireTime = t.UTC()
	s.mu.Unlock()
}

// OriginIP returns the client IP the session was created for.
func (s *Session) OriginIP() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.originIP
}

// SetOriginIP records the client IP the session is bound to.
func (s *Session) SetOriginIP(ip string) {
	s.mu.Lock()
	s.originIP = ip
	s.mu.Unlock()
}

// UserID returns the authenticated principal, or "" for anonymous visitors.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetUserID binds the session to an authenticated principal.
func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

// Get returns the value stored under name.
func (s *Session) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f := s.field(name); f != nil && *f != "" {
		return *f, true
	}
	v, ok := s.values[name]
	return v, ok
}

// Set stores a value under name. A string stored under a well-known name
// goes to the matching typed field.
func (s *Session) Set(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.field(name); f != nil {
		if str, ok := v.(string); ok {
			*f = str
			delete(s.values, name)
			return
		}
		*f = ""
	}
	s.values[name] = v
}

// Delete removes the value stored under name.
func (s *Session) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.field(name); f != nil {
		*f = ""
	}
	delete(s.values, name)
}

// field returns the typed field behind a well-known name. Callers hold mu.
func (s *Session) field(name string) *string {
	switch name {
	case ValueOriginIP:
		return &s.originIP
	case ValueUserID:
		return &s.userID
	}
	return nil
}

// Values returns a copy of the value bag.
func (s *Session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Value returns the value stored under name if it has type T.
//
//	visits, _ := session.Value[int](sess, "visits")
func Value[T any](s *Session, name string) (T, bool) {
	var zero T
	v, ok := s.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// lease is a one-slot semaphore. Unlike sync.Mutex, a wait for it can be
// abandoned.
type lease chan struct{}

func (l lease) lock() {
	l <- struct{}{}
}

func (l lease) lockContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l lease) tryLock() bool {
	select {
	case l <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l lease) unlock() {
	select {
	case <-l:
	default:
		panic("session: release of a session that is not leased")
	}
}
