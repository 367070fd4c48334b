// Package session provides server-side, in-memory session management.
//
// A Session holds a value bag, a key and an absolute expiration time. The
// Store maps keys to sessions and is shared between request handlers and the
// background sweep, so every mutation goes through a Manager.
//
// # Lifecycle
//
//	store := session.NewStore()
//	manager := session.NewManager(store, session.DefaultManagerConfig(), logger)
//
//	sess := manager.Create(map[string]any{session.ValueOriginIP: ip}, 0)
//	_ = manager.Refresh(sess.Key(), 0) // sliding window
//	_ = manager.Delete(sess.Key())
//
// Expired sessions are removed by CleanExpired, usually driven by a
// cron.Scheduler:
//
//	sched.AddTimerTask(func() { manager.CleanExpired() }, time.Minute)
//
// # Leases
//
// A request that reads and then writes a session takes a lease on it:
//
//	sess, err := manager.Acquire(key)
//	if err != nil {
//	    // session.ErrNotFound: fall back to Create
//	}
//	defer manager.Release(sess)
//	sess.Set("visits", n+1)
//	err = manager.Save(sess)
//
// AcquireContext does the same but stops waiting when its context ends.
// The sweep never removes a leased session, and Save never resurrects a
// session that was deleted while leased.
//
// # Metrics
//
// NewMetrics registers Prometheus collectors; pass them in ManagerConfig.
package session
