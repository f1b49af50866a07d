package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a test meter provider and returns its reader.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})

	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for the datapoint tagged node_id=nodeID.
func sumFor(t *testing.T, m *metricdata.Metrics, nodeID string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value("node_id"); ok && v.AsString() == nodeID {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordNodeExecution(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordNodeExecution(ctx, "fetch", 50*time.Millisecond, 1, nil)
	m.RecordNodeExecution(ctx, "flaky", 10*time.Millisecond, 3, errors.New("boom"))

	rm := collectMetrics(t, reader)

	executions := findMetric(rm, "taskgraph.node.executions")
	require.NotNil(t, executions)
	assert.Equal(t, int64(1), sumFor(t, executions, "fetch"))
	assert.Equal(t, int64(1), sumFor(t, executions, "flaky"))

	errs := findMetric(rm, "taskgraph.node.errors")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumFor(t, errs, "flaky"))
	assert.Equal(t, int64(0), sumFor(t, errs, "fetch"))

	latency := findMetric(rm, "taskgraph.node.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "Expected Histogram type")
	assert.NotEmpty(t, hist.DataPoints)
}

func TestRecordRetryAndSkip(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordNodeRetry(ctx, "flaky")
	m.RecordNodeRetry(ctx, "flaky")
	m.RecordNodeSkipped(ctx, "off")

	rm := collectMetrics(t, reader)

	retries := findMetric(rm, "taskgraph.node.retries")
	require.NotNil(t, retries)
	assert.Equal(t, int64(2), sumFor(t, retries, "flaky"))

	skipped := findMetric(rm, "taskgraph.node.skipped")
	require.NotNil(t, skipped)
	assert.Equal(t, int64(1), sumFor(t, skipped, "off"))
}

func TestRecordRun(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordRun(context.Background(), 0, 200*time.Millisecond)
	m.RecordRun(context.Background(), 2, 100*time.Millisecond)

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "taskgraph.run.count")
	require.NotNil(t, runs)
	sum, ok := runs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2) // success=true and success=false

	assert.NotNil(t, findMetric(rm, "taskgraph.run.latency_ms"))
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	assert.NotPanics(t, func() {
		ctx := context.Background()
		m.RecordNodeExecution(ctx, "a", time.Second, 1, errors.New("x"))
		m.RecordNodeRetry(ctx, "a")
		m.RecordNodeSkipped(ctx, "a")
		m.RecordRun(ctx, 1, time.Second)
	})
}
