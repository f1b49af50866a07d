// Package history records what happened during graph runs: one entry per
// finished node and one summary per run. It is an audit trail; runs are
// not resumed from it.
package history

import (
	"errors"
	"fmt"
	"time"
)

// Store persists run history.
// Implementations must be safe for concurrent use.
type Store interface {
	// RecordNode stores the outcome of a node. A second record for the same
	// (RunID, NodeID) replaces the first and moves it to the end of the
	// run's sequence.
	RecordNode(rec NodeRecord) error

	// RecordRun stores a run summary, replacing any earlier one.
	RecordRun(rec RunRecord) error

	// Nodes returns a run's node records ordered by sequence.
	// Returns an empty slice (not an error) for unknown runs.
	Nodes(runID string) ([]NodeRecord, error)

	// Run returns a run summary, or ErrNotFound.
	Run(runID string) (RunRecord, error)

	// Runs returns all run summaries ordered by start time.
	Runs() ([]RunRecord, error)

	// DeleteRun removes a run's summary and node records.
	// Returns nil if the run is unknown.
	DeleteRun(runID string) error

	// Close releases resources. Calling Close twice is safe.
	Close() error
}

// NodeRecord is the outcome of one node in one run.
type NodeRecord struct {
	RunID  string
	NodeID string
	// Sequence is assigned by the store: 1 for the first record of a run.
	Sequence int
	// Status is the node's final status name ("completed", "failed", "skipped").
	Status   string
	Attempts int
	// Error is the failure message, empty on success.
	Error string
	// Result is the node's value encoded as JSON, or nil if it had none or
	// could not be encoded.
	Result     []byte
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunRecord summarizes a run.
type RunRecord struct {
	RunID      string
	GraphName  string
	StartedAt  time.Time
	FinishedAt time.Time
	Completed  int
	Failed     int
	Skipped    int
	Unreached  int
	// Snapshot is the final results encoded as JSON, or nil.
	Snapshot []byte
}

// Duration returns the run's wall time.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sentinel errors for history operations.
var (
	// ErrNotFound indicates a run has no summary.
	ErrNotFound = errors.New("history record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("history store closed")

	// ErrInvalidRecord indicates a record without the required IDs, or a
	// stored row that cannot be read back.
	ErrInvalidRecord = errors.New("invalid history record")
)

func validateNode(rec NodeRecord) error {
	if rec.RunID == "" || rec.NodeID == "" {
		return fmt.Errorf("%w: run and node IDs are required", ErrInvalidRecord)
	}
	return nil
}

func validateRun(rec RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("%w: run ID is required", ErrInvalidRecord)
	}
	return nil
}
