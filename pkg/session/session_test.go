package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionResetExpireTimeNotMonotonic(t *testing.T) {
	now := time.Now().UTC()
	s := newSession("k", now, now.Add(time.Hour), nil, time.Now)

	s.ResetExpireTime(now.Add(-time.Minute))
	if !s.Expired() {
		t.Error("shortened session should be expired")
	}
}

func TestSessionValues(t *testing.T) {
	s := newSession("k", time.Now(), time.Now().Add(time.Hour), nil, time.Now)

	s.Set("count", 2)
	s.Set("name", "ada")

	if n, ok := Value[int](s, "count"); !ok || n != 2 {
		t.Errorf("count = %v, %v", n, ok)
	}
	if _, ok := Value[string](s, "count"); ok {
		t.Error("Value[string] accepted an int")
	}
	if _, ok := Value[int](s, "missing"); ok {
		t.Error("Value found a missing name")
	}

	values := s.Values()
	values["count"] = 99
	if n, _ := Value[int](s, "count"); n != 2 {
		t.Error("Values() returned an alias of the bag")
	}

	s.Delete("name")
	if _, ok := s.Get("name"); ok {
		t.Error("Delete did not remove name")
	}
}

func TestSessionWellKnownValues(t *testing.T) {
	s := newSession("k", time.Now(), time.Now().Add(time.Hour), map[string]any{
		ValueOriginIP: "192.0.2.1",
	}, time.Now)

	if ip, ok := Value[string](s, ValueOriginIP); !ok || ip != "192.0.2.1" {
		t.Errorf("Value(origin_ip) = %q, %v", ip, ok)
	}

	s.Set(ValueOriginIP, "198.51.100.7")
	if s.OriginIP() != "198.51.100.7" {
		t.Errorf("OriginIP = %q after Set", s.OriginIP())
	}
	if ip, _ := Value[string](s, ValueOriginIP); ip != s.OriginIP() {
		t.Errorf("Value(origin_ip) = %q, OriginIP = %q", ip, s.OriginIP())
	}

	s.SetUserID("ada")
	if id, _ := Value[string](s, ValueUserID); id != "ada" {
		t.Errorf("Value(user_id) = %q after SetUserID", id)
	}
	if _, ok := s.Values()[ValueUserID]; ok {
		t.Error("typed field leaked into the value bag")
	}

	s.Delete(ValueUserID)
	if s.UserID() != "" {
		t.Errorf("UserID = %q after Delete", s.UserID())
	}
	if _, ok := s.Get(ValueUserID); ok {
		t.Error("Get found a deleted user_id")
	}

	// Non-string values stay in the bag and clear the field.
	s.Set(ValueOriginIP, 42)
	if s.OriginIP() != "" {
		t.Errorf("OriginIP = %q after a non-string Set", s.OriginIP())
	}
	if n, ok := Value[int](s, ValueOriginIP); !ok || n != 42 {
		t.Errorf("Value[int](origin_ip) = %v, %v", n, ok)
	}
}

func TestSessionInfoJSON(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := newSession("k", created, created.Add(time.Hour), map[string]any{
		ValueOriginIP: "192.0.2.1",
		"visits":      1,
	}, time.Now)
	s.SetUserID("u-1")

	data, err := json.Marshal(s.Info())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got["origin_ip"] != "192.0.2.1" || got["user_id"] != "u-1" {
		t.Errorf("unexpected info: %s", data)
	}
	if got["expires_at"] != "2024-03-01T01:00:00Z" {
		t.Errorf("expires_at = %v", got["expires_at"])
	}
}
