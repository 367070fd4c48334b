// Package cron runs recurring tasks on a dedicated goroutine.
//
// A task registered with AddTimerTask first runs once its interval has
// elapsed, then re-arms for another interval measured from the end of each
// run. Runs of all tasks are sequential.
//
//	sched := cron.New(cron.WithLogger(logger))
//	if err := sched.AddTimerTask("sweep", func() { manager.CleanExpired() }, time.Minute); err != nil {
//	    return err
//	}
//	sched.Start()
//
//	// Shutdown is always stop, join, close:
//	sched.Stop()
//	sched.Join()
//	sched.Close()
//
// A panicking task is recovered, logged and re-armed.
package cron
