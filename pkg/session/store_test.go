package session

import (
	"testing"
	"time"
)

func testSession(key string, expireTime time.Time) *Session {
	return newSession(key, expireTime.Add(-time.Hour), expireTime, nil, time.Now)
}

func TestStoreInsertIfAbsent(t *testing.T) {
	st := NewStore()
	a := testSession("k", time.Now().Add(time.Hour))
	b := testSession("k", time.Now().Add(time.Hour))

	if !st.insertIfAbsent(a) {
		t.Fatal("first insert rejected")
	}
	if st.insertIfAbsent(b) {
		t.Fatal("second insert under the same key accepted")
	}
	if got, _ := st.Get("k"); got != a {
		t.Error("store no longer maps k to the first session")
	}
}

func TestStoreSnapshotIsStable(t *testing.T) {
	st := NewStore()
	st.insertIfAbsent(testSession("a", time.Now()))
	snap := st.Snapshot()

	st.insertIfAbsent(testSession("b", time.Now()))
	st.delete("a")

	if len(snap) != 1 {
		t.Fatalf("snapshot has %d entries, want 1", len(snap))
	}
	if _, ok := snap["a"]; !ok {
		t.Error("snapshot lost entry a")
	}
	if st.Len() != 1 {
		t.Errorf("store has %d entries, want 1", st.Len())
	}
}

func TestStoreDeleteIf(t *testing.T) {
	st := NewStore()
	a := testSession("a", time.Now())
	st.insertIfAbsent(a)

	if st.DeleteIf(a, func(*Session) bool { return false }) {
		t.Fatal("DeleteIf removed an entry the predicate kept")
	}
	if st.Len() != 1 {
		t.Fatal("entry missing after rejected DeleteIf")
	}

	// A different session under the same key is never removed.
	other := testSession("a", time.Now())
	if st.DeleteIf(other, func(*Session) bool { return true }) {
		t.Fatal("DeleteIf removed an entry it did not match")
	}

	if !st.DeleteIf(a, func(*Session) bool { return true }) {
		t.Fatal("DeleteIf did not remove a matching entry")
	}
	if st.Len() != 0 {
		t.Error("store not empty")
	}
}

func TestStoreUpdate(t *testing.T) {
	st := NewStore()
	st.insertIfAbsent(testSession("a", time.Now()))

	later := time.Now().Add(time.Hour)
	if !st.update("a", func(s *Session) { s.ResetExpireTime(later) }) {
		t.Fatal("update of present key failed")
	}
	s, _ := st.Get("a")
	if !s.ExpireTime().Equal(later.UTC()) {
		t.Errorf("ExpireTime = %v, want %v", s.ExpireTime(), later)
	}
	if st.update("missing", func(*Session) {}) {
		t.Error("update of missing key succeeded")
	}
}
