package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records taskgraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a finished node with its duration, attempt
	// count and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, attempts int, err error)

	// RecordNodeRetry records a failed attempt that will be retried.
	RecordNodeRetry(ctx context.Context, nodeID string)

	// RecordNodeSkipped records a node that was disabled.
	RecordNodeSkipped(ctx context.Context, nodeID string)

	// RecordRun records a run completion.
	RecordRun(ctx context.Context, failedNodes int, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	nodeRetries    metric.Int64Counter
	nodeSkipped    metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("taskgraph")

	nodeExecutions, err := meter.Int64Counter("taskgraph.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("taskgraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds, retries included"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("taskgraph.node.errors",
		metric.WithDescription("Number of nodes that failed after exhausting retries"),
	)
	if err != nil {
		return nil, err
	}

	nodeRetries, err := meter.Int64Counter("taskgraph.node.retries",
		metric.WithDescription("Number of retried node attempts"),
	)
	if err != nil {
		return nil, err
	}

	nodeSkipped, err := meter.Int64Counter("taskgraph.node.skipped",
		metric.WithDescription("Number of disabled nodes"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("taskgraph.run.count",
		metric.WithDescription("Number of graph runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("taskgraph.run.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		nodeRetries:    nodeRetries,
		nodeSkipped:    nodeSkipped,
		runs:           runs,
		runLatency:     runLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, attempts int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Bool("success", err == nil),
	)

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("node_id", nodeID),
			attribute.Int("attempts", attempts),
		))
	}
}

// RecordNodeRetry records a retried attempt.
func (m *otelMetrics) RecordNodeRetry(ctx context.Context, nodeID string) {
	m.nodeRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

// RecordNodeSkipped records a disabled node.
func (m *otelMetrics) RecordNodeSkipped(ctx context.Context, nodeID string) {
	m.nodeSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

// RecordRun records a run.
func (m *otelMetrics) RecordRun(ctx context.Context, failedNodes int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Bool("success", failedNodes == 0),
	)
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}
