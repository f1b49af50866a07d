// Package observability provides structured logging, metrics, and tracing
// for taskgraph runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id, node_id, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "fetch", 1)
//	enriched.Info("doing work") // includes run_id, node_id, attempt
func EnrichLogger(logger *slog.Logger, runID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a run.
func LogRunStart(logger *slog.Logger, runID string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting",
		slog.String("run_id", runID),
		slog.Int("nodes", nodeCount),
	)
}

// LogRunComplete logs run completion. A run with failed nodes still
// completes; failed is the number of nodes that ended in failure.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, completed, failed, skipped, unreached int) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if failed > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "graph run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("completed", completed),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
		slog.Int("unreached", unreached),
	)
}

// LogRunError logs a run that could not be executed at all.
func LogRunError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64, attempts int) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("attempts", attempts),
	)
}

// LogNodeError logs a node that failed after exhausting its retries.
func LogNodeError(logger *slog.Logger, nodeID string, err error, attempts int) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
		slog.Int("attempts", attempts),
	)
}

// LogNodeRetry logs a failed attempt that will be retried.
func LogNodeRetry(logger *slog.Logger, nodeID string, attempt int, err error, delay time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("node attempt failed, retrying",
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
		slog.Duration("delay", delay),
	)
}

// LogNodeSkipped logs a node that was disabled and never ran.
func LogNodeSkipped(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node skipped",
		slog.String("node_id", nodeID),
	)
}

// LogHookError logs a failure inside a user hook. Hook failures are never
// fatal to a run.
func LogHookError(logger *slog.Logger, nodeID, hook string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("hook failed",
		slog.String("node_id", nodeID),
		slog.String("hook", hook),
		slog.String("error", err.Error()),
	)
}

// LogHistoryError logs a failure writing run history (non-fatal).
func LogHistoryError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("history write failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
