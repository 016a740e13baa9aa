package core

import (
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
//
// A pool without a PanicHandler does not recover task panics at all: the
// panic unwinds the worker goroutine and terminates the process. Installing
// a handler opts into per-task containment, and the worker keeps running.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - poolName: The name of the pool whose worker ran the task
	// - workerID: The ID of the worker
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(poolName string, workerID int, panicInfo any, stackTrace []byte)
}

// LoggingPanicHandler reports recovered panics through a Logger.
type LoggingPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack at error level.
func (h *LoggingPanicHandler) HandlePanic(poolName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("pool", poolName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, OpenTelemetry, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(poolName string, duration time.Duration)

	// RecordTaskLateness records how long after its scheduled time a task
	// started running.
	RecordTaskLateness(poolName string, lateness time.Duration)

	// RecordTaskPanic records that a task panicked and was recovered.
	RecordTaskPanic(poolName string, panicInfo any)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(poolName string, depth int)

	// RecordTasksDiscarded records tasks dropped when a pool was released
	// before they became eligible.
	RecordTasksDiscarded(poolName string, count int)

	// RecordWorkers records the current worker count.
	RecordWorkers(poolName string, workers int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(poolName string, duration time.Duration) {}

// RecordTaskLateness is a no-op.
func (m *NilMetrics) RecordTaskLateness(poolName string, lateness time.Duration) {}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int) {}

// RecordTasksDiscarded is a no-op.
func (m *NilMetrics) RecordTasksDiscarded(poolName string, count int) {}

// RecordWorkers is a no-op.
func (m *NilMetrics) RecordWorkers(poolName string, workers int) {}

// MultiMetrics fans every record out to each sink in order.
type MultiMetrics []Metrics

// RecordTaskDuration implements Metrics.
func (m MultiMetrics) RecordTaskDuration(poolName string, duration time.Duration) {
	for _, s := range m {
		s.RecordTaskDuration(poolName, duration)
	}
}

// RecordTaskLateness implements Metrics.
func (m MultiMetrics) RecordTaskLateness(poolName string, lateness time.Duration) {
	for _, s := range m {
		s.RecordTaskLateness(poolName, lateness)
	}
}

// RecordTaskPanic implements Metrics.
func (m MultiMetrics) RecordTaskPanic(poolName string, panicInfo any) {
	for _, s := range m {
		s.RecordTaskPanic(poolName, panicInfo)
	}
}

// RecordQueueDepth implements Metrics.
func (m MultiMetrics) RecordQueueDepth(poolName string, depth int) {
	for _, s := range m {
		s.RecordQueueDepth(poolName, depth)
	}
}

// RecordTasksDiscarded implements Metrics.
func (m MultiMetrics) RecordTasksDiscarded(poolName string, count int) {
	for _, s := range m {
		s.RecordTasksDiscarded(poolName, count)
	}
}

// RecordWorkers implements Metrics.
func (m MultiMetrics) RecordWorkers(poolName string, workers int) {
	for _, s := range m {
		s.RecordWorkers(poolName, workers)
	}
}
