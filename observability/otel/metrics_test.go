package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(WithMeterProvider(provider))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics_Records(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordTaskDuration("io", 20*time.Millisecond)
	m.RecordTaskDuration("io", 40*time.Millisecond)
	m.RecordTaskLateness("io", -time.Millisecond)
	m.RecordTaskPanic("io", "boom")
	m.RecordTasksDiscarded("io", 3)
	m.RecordQueueDepth("io", 5)
	m.RecordWorkers("io", 2)

	data := collect(t, reader)

	duration, ok := data[metricTaskDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(2), duration.DataPoints[0].Count)
	pool, ok := duration.DataPoints[0].Attributes.Value(poolKey)
	require.True(t, ok)
	assert.Equal(t, "io", pool.AsString())

	lateness, ok := data[metricTaskLateness].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, lateness.DataPoints, 1)
	assert.Equal(t, 0.0, lateness.DataPoints[0].Sum)

	panics, ok := data[metricTaskPanics].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, panics.DataPoints, 1)
	assert.Equal(t, int64(1), panics.DataPoints[0].Value)

	discarded, ok := data[metricTaskDiscarded].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), discarded.DataPoints[0].Value)

	depth, ok := data[metricQueueDepth].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(5), depth.DataPoints[0].Value)

	workers, ok := data[metricWorkers].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), workers.DataPoints[0].Value)
}

func TestMetrics_EmptyPoolName(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordWorkers("", 1)

	workers, ok := collect(t, reader)[metricWorkers].(metricdata.Gauge[int64])
	require.True(t, ok)
	pool, ok := workers.DataPoints[0].Attributes.Value(poolKey)
	require.True(t, ok)
	assert.Equal(t, "unknown", pool.AsString())
}

func TestNewMetrics_DefaultProvider(t *testing.T) {
	m, err := NewMetrics(WithInstrumentationName(""))
	require.NoError(t, err)
	// the global no-op provider accepts recordings silently
	m.RecordTaskDuration("io", time.Millisecond)
}
