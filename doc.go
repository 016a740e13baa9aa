// Package threadpool provides a process-wide, lazily created pool of worker
// goroutines that runs immediate and time-scheduled tasks.
//
// It is meant to be the shared execution substrate for background work,
// retries and timers inside a larger library, without callers managing
// goroutines themselves.
//
// # Quick Start
//
//	threadpool.Spawn(4)
//	defer lifecycle.RunExitHooks() // joins and releases the pool
//
//	threadpool.Post(func() {
//		// runs as soon as a worker is free
//	})
//	threadpool.PostDelayed(func() {
//		// runs no earlier than 100ms from now
//	}, 100*time.Millisecond)
//
// # Scheduling
//
// Every task carries the time it becomes eligible. Workers always take the
// eligible task with the earliest time; tasks with the same time run in the
// order they were posted. A task never runs before its time and never runs
// twice.
//
// # Shutdown
//
// Join stops the pool: workers finish every task that is already eligible,
// then exit. Tasks scheduled in the future are left unexecuted and Join does
// not wait for them. Join is idempotent, and Spawn brings a joined pool back.
//
// The process-wide pool registers an exit hook with the lifecycle package
// when it is created, so it is joined exactly once before the process exits
// through lifecycle.Exit or lifecycle.Run, even if nobody calls Join.
//
// # Failures
//
// Tasks are plain func() values. A panicking task is not recovered unless a
// PanicHandler is configured with WithPanicHandler; by default the panic
// terminates the process.
package threadpool
