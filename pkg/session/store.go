package session

import "sync"

// Store maps session keys to sessions.
// It is safe for concurrent use. Only Manager mutates it.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Get returns the session stored under key.
func (st *Store) Get(key string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[key]
	return s, ok
}

// Len returns the number of stored sessions, live or not.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Snapshot returns a copy of the current entries.
// Later mutations of the store are not reflected in it.
func (st *Store) Snapshot() map[string]*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]*Session, len(st.sessions))
	for k, s := range st.sessions {
		out[k] = s
	}
	return out
}

// insertIfAbsent stores s under its key unless the key is taken.
func (st *Store) insertIfAbsent(s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, taken := st.sessions[s.key]; taken {
		return false
	}
	st.sessions[s.key] = s
	return true
}

// contains reports whether key currently maps to exactly s.
func (st *Store) contains(s *Session) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[s.key] == s
}

// update runs fn on the session under key while holding the write lock.
func (st *Store) update(key string, fn func(*Session)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	if !ok {
		return false
	}
	fn(s)
	return true
}

func (st *Store) delete(key string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[key]; !ok {
		return false
	}
	delete(st.sessions, key)
	return true
}

// DeleteIf removes s if its key still maps to s and remove(s) returns true.
// The check and the removal happen under one critical section.
func (st *Store) DeleteIf(s *Session, remove func(*Session) bool) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sessions[s.key] != s {
		return false
	}
	if !remove(s) {
		return false
	}
	delete(st.sessions, s.key)
	return true
}
