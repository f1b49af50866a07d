package taskgraph

import (
	"log/slog"

	"github.com/randalmurphal/taskgraph/pkg/taskgraph/config"
	"github.com/randalmurphal/taskgraph/pkg/taskgraph/history"
	"github.com/randalmurphal/taskgraph/pkg/taskgraph/observability"
)

// runConfig holds configuration for one run.
type runConfig struct {
	runID          string
	maxConcurrency int
	history        history.Store

	// Observability
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures a single Trigger or Execute call.
type RunOption func(*runConfig)

// WithRunID sets the run identifier. By default the ID comes from the
// taskgraph Context, or a new UUID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithMaxConcurrency caps how many work functions run at once.
// n <= 0 means no limit, which is the default.
func WithMaxConcurrency(n int) RunOption {
	return func(c *runConfig) {
		if n < 0 {
			n = 0
		}
		c.maxConcurrency = n
	}
}

// WithHistory records every finished node and a run summary to store.
// Write failures are logged and never fail the run.
func WithHistory(store history.Store) RunOption {
	return func(c *runConfig) {
		c.history = store
	}
}

// WithObservabilityLogger enables structured run and node logging.
// Logs: run start/complete, node start/complete/error, retries, skips.
// Retries and hook failures are always logged, falling back to the
// Context logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter
// provider. Configure it with otel.SetMeterProvider before running.
//
// Recorded: taskgraph.node.executions, taskgraph.node.latency_ms,
// taskgraph.node.errors, taskgraph.node.retries, taskgraph.node.skipped,
// taskgraph.run.count, taskgraph.run.latency_ms.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry tracing through the global tracer
// provider. The run gets a "taskgraph.run" span with one child span per
// executed node; the node span's context is what work functions receive.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// OptionsFromConfig converts run settings into options:
//
//	run_id: string
//	max_concurrency: int
//	metrics: bool
//	tracing: bool
//
// Missing keys produce no option.
func OptionsFromConfig(cfg config.Config) []RunOption {
	var opts []RunOption
	if cfg.Has("run_id") {
		opts = append(opts, WithRunID(cfg.String("run_id", "")))
	}
	if cfg.Has("max_concurrency") {
		opts = append(opts, WithMaxConcurrency(cfg.Int("max_concurrency", 0)))
	}
	if cfg.Has("metrics") {
		opts = append(opts, WithMetrics(cfg.Bool("metrics", false)))
	}
	if cfg.Has("tracing") {
		opts = append(opts, WithTracing(cfg.Bool("tracing", false)))
	}
	return opts
}

// NodeOptionsFromConfig converts the settings under nodes.<id> into node
// options:
//
//	enabled: bool
//	max_retries: int
//	retry_delay: duration
//
// Invalid retry values surface as AddNode errors.
func NodeOptionsFromConfig(cfg config.Config, id string) []NodeOption {
	node := cfg.Sub("nodes").Sub(id)

	var opts []NodeOption
	if node.Has("enabled") {
		opts = append(opts, WithEnabled(node.Bool("enabled", true)))
	}
	if node.Has("max_retries") || node.Has("retry_delay") {
		opts = append(opts, WithRetry(node.Int("max_retries", 0), node.Duration("retry_delay", 0)))
	}
	return opts
}

// GraphNameFromConfig returns graph_name, or def when unset.
func GraphNameFromConfig(cfg config.Config, def string) string {
	return cfg.String("graph_name", def)
}
