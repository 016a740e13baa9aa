// Package otel implements core.Metrics on the OpenTelemetry metric API.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Swind/go-threadpool/core"
)

const (
	defaultInstrumentationName = "github.com/Swind/go-threadpool"

	metricTaskDuration  = "threadpool.task.duration"
	metricTaskLateness  = "threadpool.task.lateness"
	metricTaskPanics    = "threadpool.task.panics"
	metricTaskDiscarded = "threadpool.task.discarded"
	metricQueueDepth    = "threadpool.queue.depth"
	metricWorkers       = "threadpool.workers"

	poolKey = attribute.Key("pool")
)

type config struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
}

// Option configures Metrics.
type Option func(*config)

// WithInstrumentationName sets the meter name.
func WithInstrumentationName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider sets the MeterProvider. Defaults to the global one.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// Metrics records pool metrics through OpenTelemetry instruments.
type Metrics struct {
	taskDuration  metric.Float64Histogram
	taskLateness  metric.Float64Histogram
	taskPanics    metric.Int64Counter
	taskDiscarded metric.Int64Counter
	queueDepth    metric.Int64Gauge
	workers       metric.Int64Gauge
}

var _ core.Metrics = (*Metrics)(nil)

// NewMetrics creates the instruments on the configured meter.
func NewMetrics(opts ...Option) (*Metrics, error) {
	cfg := &config{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	m := &Metrics{}
	var err error
	if m.taskDuration, err = meter.Float64Histogram(metricTaskDuration,
		metric.WithUnit("s"),
		metric.WithDescription("Task execution duration.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTaskDuration, err)
	}
	if m.taskLateness, err = meter.Float64Histogram(metricTaskLateness,
		metric.WithUnit("s"),
		metric.WithDescription("Delay between a task's scheduled time and its start.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTaskLateness, err)
	}
	if m.taskPanics, err = meter.Int64Counter(metricTaskPanics,
		metric.WithDescription("Recovered task panics.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTaskPanics, err)
	}
	if m.taskDiscarded, err = meter.Int64Counter(metricTaskDiscarded,
		metric.WithDescription("Tasks discarded when a pool was released.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTaskDiscarded, err)
	}
	if m.queueDepth, err = meter.Int64Gauge(metricQueueDepth,
		metric.WithDescription("Current queue depth.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricQueueDepth, err)
	}
	if m.workers, err = meter.Int64Gauge(metricWorkers,
		metric.WithDescription("Current number of workers.")); err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWorkers, err)
	}
	return m, nil
}

func poolAttr(poolName string) metric.MeasurementOption {
	if poolName == "" {
		poolName = "unknown"
	}
	return metric.WithAttributes(poolKey.String(poolName))
}

// RecordTaskDuration implements core.Metrics.
func (m *Metrics) RecordTaskDuration(poolName string, duration time.Duration) {
	m.taskDuration.Record(context.Background(), duration.Seconds(), poolAttr(poolName))
}

// RecordTaskLateness implements core.Metrics.
func (m *Metrics) RecordTaskLateness(poolName string, lateness time.Duration) {
	if lateness < 0 {
		lateness = 0
	}
	m.taskLateness.Record(context.Background(), lateness.Seconds(), poolAttr(poolName))
}

// RecordTaskPanic implements core.Metrics.
func (m *Metrics) RecordTaskPanic(poolName string, panicInfo any) {
	m.taskPanics.Add(context.Background(), 1, poolAttr(poolName))
}

// RecordQueueDepth implements core.Metrics.
func (m *Metrics) RecordQueueDepth(poolName string, depth int) {
	m.queueDepth.Record(context.Background(), int64(depth), poolAttr(poolName))
}

// RecordTasksDiscarded implements core.Metrics.
func (m *Metrics) RecordTasksDiscarded(poolName string, count int) {
	m.taskDiscarded.Add(context.Background(), int64(count), poolAttr(poolName))
}

// RecordWorkers implements core.Metrics.
func (m *Metrics) RecordWorkers(poolName string, workers int) {
	m.workers.Record(context.Background(), int64(workers), poolAttr(poolName))
}
