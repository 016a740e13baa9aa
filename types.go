package threadpool

import "github.com/Swind/go-threadpool/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the threadpool package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// ThreadExitHook runs on a worker right before it terminates
type ThreadExitHook = core.ThreadExitHook

// Logger is the structured logging interface used by the pool
type Logger = core.Logger

// Metrics collects pool execution metrics
type Metrics = core.Metrics

// PanicHandler opts into recovering task panics
type PanicHandler = core.PanicHandler

// PoolStats is a point-in-time snapshot of a pool
type PoolStats = core.PoolStats

// Convenience constructors
var (
	F                = core.F
	NewZapLogger     = core.NewZapLogger
	NewNoOpLogger    = core.NewNoOpLogger
	NewDefaultLogger = core.NewDefaultLogger
)
