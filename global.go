package threadpool

import (
	"sync"
	"time"

	"github.com/Swind/go-threadpool/core"
	"github.com/Swind/go-threadpool/lifecycle"
)

// =============================================================================
// Process-wide Thread Pool (Singleton)
// =============================================================================

const instanceHookName = "threadpool.instance"

var (
	globalPool *ThreadPool
	globalOpts []Option
	globalMu   sync.Mutex
)

// ConfigureInstance sets the options used when the process-wide pool is
// created. It returns ErrAlreadyInitialized once Instance has been called.
func ConfigureInstance(opts ...Option) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		return ErrAlreadyInitialized
	}
	globalOpts = append([]Option(nil), opts...)
	return nil
}

// Instance returns the process-wide pool, creating it on first use.
//
// Creation registers an exit hook with the lifecycle package. When the hook
// runs (lifecycle.RunExitHooks, lifecycle.Exit or the end of lifecycle.Run)
// the pool is joined, its remaining tasks are discarded, and the instance is
// released; a later Instance call creates a fresh pool.
func Instance() *ThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil {
		p := New(globalOpts...)
		globalPool = p
		lifecycle.BeforeExit(instanceHookName, func() {
			releaseInstance(p)
		})
	}
	return globalPool
}

// releaseInstance runs at most once per instance, from its exit hook.
// The pool is detached first so that no caller obtains it while it is
// being closed; a Spawn racing with the release gets ErrPoolClosed.
func releaseInstance(p *ThreadPool) {
	globalMu.Lock()
	if globalPool == p {
		globalPool = nil
	}
	globalMu.Unlock()

	// closed outside globalMu: draining tasks may still call Instance
	_ = p.Close()
}

// Spawn adds n workers to the process-wide pool.
func Spawn(n int) error {
	return Instance().Spawn(n)
}

// Count returns the worker count of the process-wide pool.
func Count() int {
	return Instance().Count()
}

// Join stops the process-wide pool and waits for its workers.
func Join() {
	Instance().Join()
}

// Post runs task on the process-wide pool as soon as a worker is free.
func Post(task core.Task) {
	Instance().Post(task)
}

// PostDelayed runs task on the process-wide pool no earlier than delay from now.
func PostDelayed(task core.Task, delay time.Duration) {
	Instance().PostDelayed(task, delay)
}

// PostAt runs task on the process-wide pool no earlier than at.
func PostAt(task core.Task, at time.Time) {
	Instance().PostAt(task, at)
}
