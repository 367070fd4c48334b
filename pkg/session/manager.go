package session

import (
	"context"
	"log/slog"
	"time"
)

// Manager is the only component that mutates a Store.
// It creates, refreshes, deletes and sweeps sessions, and owns the key policy.
type Manager struct {
	store   *Store
	config  ManagerConfig
	metrics *Metrics
	logger  *slog.Logger

	// Overrideable for tests.
	now      func() time.Time
	randIntn func(n int) int
}

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// DefaultTTL is the lifetime used when a caller passes ttl <= 0.
	// Default: 1 hour.
	DefaultTTL time.Duration

	// KeySuffixLength is the number of random letters in a generated key.
	// Default: 10.
	KeySuffixLength int

	// Metrics receives lifecycle counters. Nil disables metrics.
	Metrics *Metrics
}

// DefaultManagerConfig returns a ManagerConfig with sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DefaultTTL:      time.Hour,
		KeySuffixLength: DefaultKeySuffixLength,
	}
}

// ManagerStats contains session manager statistics.
type ManagerStats struct {
	// Total is the number of entries in the store.
	Total int

	// Live is the number of entries that have not expired.
	Live int

	// Expired is the number of entries waiting for the next sweep.
	Expired int
}

// NewManager creates a manager over store. A nil store gets a fresh one.
func NewManager(store *Store, config ManagerConfig, logger *slog.Logger) *Manager {
	if store == nil {
		store = NewStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultManagerConfig()
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = defaults.DefaultTTL
	}
	if config.KeySuffixLength <= 0 {
		config.KeySuffixLength = defaults.KeySuffixLength
	}

	return &Manager{
		store:    store,
		config:   config,
		metrics:  config.Metrics,
		logger:   logger.With("component", "session_manager"),
		now:      time.Now,
		randIntn: defaultIntn,
	}
}

// Store returns the store the manager operates on.
func (m *Manager) Store() *Store {
	return m.store
}

// DefaultTTL returns the lifetime applied when callers omit one.
func (m *Manager) DefaultTTL() time.Duration {
	return m.config.DefaultTTL
}

func (m *Manager) clock() time.Time {
	return m.now()
}

func (m *Manager) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return m.config.DefaultTTL
	}
	return ttl
}

// Create stores a new session expiring ttl from now and returns it.
// A nil values map yields an empty bag; ttl <= 0 uses the default TTL.
// Key collisions are retried until a free key is found.
func (m *Manager) Create(values map[string]any, ttl time.Duration) *Session {
	return m.create(values, ttl, false)
}

// CreateAcquired is Create, but the returned session is already leased
// to the caller, who must call Release.
func (m *Manager) CreateAcquired(values map[string]any, ttl time.Duration) *Session {
	return m.create(values, ttl, true)
}

func (m *Manager) create(values map[string]any, ttl time.Duration, leased bool) *Session {
	now := m.now().UTC()
	expireTime := now.Add(m.ttl(ttl))

	for {
		key := newKey(now, m.config.KeySuffixLength, m.randIntn)
		sess := newSession(key, now, expireTime, values, m.clock)
		if leased {
			sess.lease.lock()
		}
		if m.store.insertIfAbsent(sess) {
			m.metrics.recordCreate()
			m.logger.Debug("session created",
				"session_id", key,
				"expires_at", expireTime)
			return sess
		}
		if leased {
			sess.lease.unlock()
		}
		m.logger.Debug("session key collision, retrying", "session_id", key)
	}
}

// Get returns the session stored under key, expired or not.
func (m *Manager) Get(key string) (*Session, error) {
	sess, ok := m.store.Get(key)
	if !ok {
		return nil, notFound("get", key)
	}
	return sess, nil
}

// Refresh moves the expiration of the session under key to now + ttl.
// ttl <= 0 uses the default TTL.
func (m *Manager) Refresh(key string, ttl time.Duration) error {
	expireTime := m.now().UTC().Add(m.ttl(ttl))
	ok := m.store.update(key, func(sess *Session) {
		sess.ResetExpireTime(expireTime)
	})
	if !ok {
		return notFound("refresh", key)
	}
	m.metrics.recordRefresh()
	return nil
}

// Delete removes the session under key.
func (m *Manager) Delete(key string) error {
	if !m.store.delete(key) {
		return notFound("delete", key)
	}
	m.metrics.recordDelete()
	m.logger.Debug("session deleted", "session_id", key)
	return nil
}

// Acquire leases the session under key for one read-modify-write cycle.
// It blocks while another holder has the lease. The caller must Release.
func (m *Manager) Acquire(key string) (*Session, error) {
	return m.AcquireContext(context.Background(), key)
}

// AcquireContext is Acquire, but gives up with ctx.Err() when ctx is done
// before the lease is free.
func (m *Manager) AcquireContext(ctx context.Context, key string) (*Session, error) {
	sess, ok := m.store.Get(key)
	if !ok {
		return nil, notFound("acquire", key)
	}
	if err := sess.lease.lockContext(ctx); err != nil {
		return nil, err
	}
	// Deleted or swept while we waited.
	if !m.store.contains(sess) {
		sess.lease.unlock()
		return nil, notFound("acquire", key)
	}
	return sess, nil
}

// Release ends a lease taken by Acquire or CreateAcquired.
func (m *Manager) Release(sess *Session) {
	sess.lease.unlock()
}

// Save writes a leased session back. Changes are applied in place, so Save
// only confirms the key still maps to sess. A session deleted while it was
// leased is not resurrected.
func (m *Manager) Save(sess *Session) error {
	if !m.store.contains(sess) {
		return notFound("save", sess.key)
	}
	return nil
}

// CleanExpired removes every session that was expired when the sweep
// snapshot was taken and has not been refreshed since. Leased sessions
// are left for a later sweep. It returns the number of sessions removed.
func (m *Manager) CleanExpired() int {
	start := time.Now()
	now := m.now().UTC()
	removed, busy := m.sweep(now, m.store.Snapshot())

	m.metrics.recordSweep(removed, time.Since(start))
	if removed > 0 || busy > 0 {
		m.logger.Debug("cleaned up expired sessions",
			"count", removed,
			"busy", busy,
			"remaining", m.store.Len())
	}
	return removed
}

// sweep removes the sessions in snapshot that are still stored, unleased
// and expired at now. The expiry is checked again under the store lock, so
// a refresh that lands after the snapshot keeps the session.
func (m *Manager) sweep(now time.Time, snapshot map[string]*Session) (removed, busy int) {
	for _, sess := range snapshot {
		if !sess.expiredAt(now) {
			continue
		}
		if m.store.DeleteIf(sess, m.sweepable(now, &busy)) {
			removed++
		}
	}
	return removed, busy
}

// sweepable reports whether s may be removed by a sweep running at now.
// Leased sessions are counted in busy and kept.
func (m *Manager) sweepable(now time.Time, busy *int) func(*Session) bool {
	return func(s *Session) bool {
		if !s.lease.tryLock() {
			*busy++
			return false
		}
		defer s.lease.unlock()
		return s.expiredAt(now)
	}
}

// Stats returns manager statistics.
func (m *Manager) Stats() ManagerStats {
	now := m.now().UTC()
	snapshot := m.store.Snapshot()

	stats := ManagerStats{Total: len(snapshot)}
	for _, sess := range snapshot {
		if sess.expiredAt(now) {
			stats.Expired++
		} else {
			stats.Live++
		}
	}
	return stats
}
