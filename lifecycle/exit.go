// Package lifecycle provides the process-exit hook registry used to tear down
// process-wide state, such as the shared thread pool, exactly once before the
// process terminates.
//
// Go has no atexit. Hooks registered here run when RunExitHooks is called:
// directly, through Exit, or when Run returns.
package lifecycle

import (
	"os"
	"sync"
)

// osExit is replaced in tests.
var osExit = os.Exit

type hook struct {
	id   uint64
	name string
	fn   func()
}

// Registry is an ordered set of exit hooks. Hooks run in reverse
// registration order and each runs at most once.
type Registry struct {
	mu     sync.Mutex
	hooks  []hook
	nextID uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// BeforeExit registers fn to run when the registry is run. The returned
// func removes the hook if it has not run yet.
func (r *Registry) BeforeExit(name string, fn func()) (unregister func()) {
	if fn == nil {
		return func() {}
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.hooks = append(r.hooks, hook{id: id, name: name, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, h := range r.hooks {
			if h.id == id {
				r.hooks = append(r.hooks[:i], r.hooks[i+1:]...)
				return
			}
		}
	}
}

// Run executes every registered hook, most recent first. Hooks are removed
// before they execute, so concurrent or repeated calls never run one twice.
// Hooks registered while Run is in progress are run as well.
func (r *Registry) Run() {
	for {
		r.mu.Lock()
		n := len(r.hooks)
		if n == 0 {
			r.mu.Unlock()
			return
		}
		h := r.hooks[n-1]
		r.hooks = r.hooks[:n-1]
		r.mu.Unlock()

		h.fn()
	}
}

// Len returns the number of pending hooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Names returns the names of pending hooks in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.hooks))
	for i, h := range r.hooks {
		names[i] = h.name
	}
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// BeforeExit registers fn on the process-wide registry.
func BeforeExit(name string, fn func()) (unregister func()) {
	return defaultRegistry.BeforeExit(name, fn)
}

// RunExitHooks runs the process-wide hooks.
func RunExitHooks() {
	defaultRegistry.Run()
}

// Exit runs the process-wide hooks and terminates the process with code.
// Use it instead of os.Exit so that registered teardown is not skipped.
func Exit(code int) {
	RunExitHooks()
	osExit(code)
}
