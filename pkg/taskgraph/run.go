package taskgraph

import (
	"errors"
	"fmt"
	"time"
)

// Run is the record of one execution of a Runner: node statuses, attempt
// counts, errors, and the final snapshot.
//
// A Run returned by Execute is complete and no longer changes.
type Run struct {
	id        string
	graphName string
	store     *resultStore

	status   map[string]Status
	attempts map[string]int
	errs     []error
	hookErrs []error

	started  time.Time
	finished time.Time
}

func newRun(id, graphName string, ids []string) *Run {
	r := &Run{
		id:        id,
		graphName: graphName,
		store:     newResultStore(),
		status:    make(map[string]Status, len(ids)),
		attempts:  make(map[string]int, len(ids)),
	}
	for _, nodeID := range ids {
		r.status[nodeID] = StatusPending
	}
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// GraphName returns the name of the graph that ran.
func (r *Run) GraphName() string { return r.graphName }

// Snapshot returns the final results of the run.
func (r *Run) Snapshot() *Snapshot { return r.store.value() }

// Status returns a node's status. Unknown IDs report StatusPending.
func (r *Run) Status(id string) Status { return r.status[id] }

// Statuses returns a copy of every node's status.
func (r *Run) Statuses() map[string]Status {
	out := make(map[string]Status, len(r.status))
	for id, s := range r.status {
		out[id] = s
	}
	return out
}

// Count returns the number of nodes with status s.
func (r *Run) Count(s Status) int {
	n := 0
	for _, st := range r.status {
		if st == s {
			n++
		}
	}
	return n
}

// Attempts returns how many times a node's work function ran.
func (r *Run) Attempts(id string) int { return r.attempts[id] }

// Errors returns node errors (*NodeError) in the order nodes failed.
func (r *Run) Errors() []error { return append([]error(nil), r.errs...) }

// Err returns the node errors joined, or nil if no node failed.
func (r *Run) Err() error { return errors.Join(r.errs...) }

// HookErrors returns hook failures (*HookError) in the order they occurred.
func (r *Run) HookErrors() []error { return append([]error(nil), r.hookErrs...) }

// Succeeded reports whether no node failed.
func (r *Run) Succeeded() bool { return len(r.errs) == 0 }

// StartedAt returns when the run started.
func (r *Run) StartedAt() time.Time { return r.started }

// Duration returns the run's wall time.
func (r *Run) Duration() time.Duration { return r.finished.Sub(r.started) }

// setStatus applies a transition. Only the scheduler goroutine calls it;
// an illegal transition is a scheduler bug.
func (r *Run) setStatus(id string, to Status) {
	from := r.status[id]
	if !canTransition(from, to) {
		panic(fmt.Sprintf("taskgraph: illegal transition for node %s: %s -> %s", id, from, to))
	}
	r.status[id] = to
}
