package core

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (*ZapLogger, *observer.ObservedLogs) {
	zcore, logs := observer.New(level)
	return NewZapLogger(zap.New(zcore)), logs
}

func TestZapLogger_Fields(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.DebugLevel)

	logger.Debug("debug", F("worker", 1))
	logger.Info("info")
	logger.Warn("warn", F("pool", "io"))
	logger.Error("error")

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[0].LoggerName != "threadpool" {
		t.Errorf("LoggerName = %q, want threadpool", entries[0].LoggerName)
	}
	if got := entries[0].ContextMap()["worker"]; got != int64(1) {
		t.Errorf("worker field = %v, want 1", got)
	}
	if got := entries[2].ContextMap()["pool"]; got != "io" {
		t.Errorf("pool field = %v, want io", got)
	}
	if entries[3].Level != zapcore.ErrorLevel {
		t.Errorf("Level = %v, want error", entries[3].Level)
	}
}

func TestZapLogger_LevelFilter(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	if logs.Len() != 1 {
		t.Fatalf("entries = %d, want 1", logs.Len())
	}
}

func TestLoggingPanicHandler(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.DebugLevel)
	h := &LoggingPanicHandler{Logger: logger}

	h.HandlePanic("io", 3, "boom", []byte("stack"))

	entries := logs.FilterMessage("task panicked").AllUntimed()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["pool"] != "io" || fields["panic"] != "boom" || fields["stack"] != "stack" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLoggingPanicHandler_NilLogger(t *testing.T) {
	h := &LoggingPanicHandler{}
	h.HandlePanic("io", 0, "boom", nil)
}

func TestNilMetrics(t *testing.T) {
	var m Metrics = &NilMetrics{}
	m.RecordTaskDuration("io", time.Second)
	m.RecordTaskLateness("io", time.Second)
	m.RecordTaskPanic("io", nil)
	m.RecordQueueDepth("io", 1)
	m.RecordTasksDiscarded("io", 1)
	m.RecordWorkers("io", 1)
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NewNoOpLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

type countingMetrics struct {
	NilMetrics
	workers int
}

func (c *countingMetrics) RecordWorkers(poolName string, workers int) {
	c.workers += workers
}

func TestMultiMetrics(t *testing.T) {
	a, b := &countingMetrics{}, &countingMetrics{}
	var m Metrics = MultiMetrics{a, b}

	m.RecordWorkers("io", 2)
	m.RecordTaskDuration("io", time.Second)

	if a.workers != 2 || b.workers != 2 {
		t.Errorf("workers = %d/%d, want 2/2", a.workers, b.workers)
	}
}
