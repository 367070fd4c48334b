package session

import "time"

// Info is the JSON-serializable view of a session.
type Info struct {
	// Key is the store key. Callers exposing Info to clients should clear it.
	Key string `json:"key,omitempty"`

	// OriginIP is the client IP the session is bound to.
	OriginIP string `json:"origin_ip,omitempty"`

	// UserID is the authenticated principal, if any.
	UserID string `json:"user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Values is a copy of the value bag.
	Values map[string]any `json:"values,omitempty"`
}

// Info returns a point-in-time copy of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return Info{
		Key:       s.key,
		OriginIP:  s.originIP,
		UserID:    s.userID,
		CreatedAt: s.createdAt,
		ExpiresAt: s.expireTime,
		Values:    values,
	}
}
