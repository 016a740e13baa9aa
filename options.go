package threadpool

import (
	"github.com/jonboulle/clockwork"

	"github.com/Swind/go-threadpool/config"
	"github.com/Swind/go-threadpool/core"
)

const defaultPoolName = "threadpool"

// Option configures a ThreadPool.
type Option func(*options)

type options struct {
	name         string
	logger       core.Logger
	metrics      core.Metrics
	panicHandler core.PanicHandler
	exitHook     core.ThreadExitHook
	clock        clockwork.Clock
	lockOSThread bool
}

func defaultOptions() options {
	return options{
		name:    defaultPoolName,
		logger:  core.NewDefaultLogger(),
		metrics: &core.NilMetrics{},
		clock:   clockwork.NewRealClock(),
	}
}

// WithName sets the pool name used in logs, metrics and Stats.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Nil is ignored.
func WithMetrics(metrics core.Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithPanicHandler makes workers recover task panics and report them to h.
// Without it (the default) a panicking task crashes the process.
func WithPanicHandler(h core.PanicHandler) Option {
	return func(o *options) {
		o.panicHandler = h
	}
}

// WithThreadExitHook sets a function every worker calls once right before
// it terminates.
func WithThreadExitHook(hook core.ThreadExitHook) Option {
	return func(o *options) {
		o.exitHook = hook
	}
}

// WithClock sets the clock used for scheduling. Nil is ignored.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLockOSThread pins each worker goroutine to its own OS thread for its
// whole life. The thread exit hook then runs on that thread, and the thread
// is retired when the worker exits.
func WithLockOSThread(lock bool) Option {
	return func(o *options) {
		o.lockOSThread = lock
	}
}

// OptionsFromConfig maps the pool-level settings of cfg to options.
// The worker count is applied by NewFromConfig.
func OptionsFromConfig(cfg config.Config) []Option {
	return []Option{
		WithName(cfg.Name),
		WithLockOSThread(cfg.LockOSThread),
	}
}
