package taskgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/taskgraph/pkg/taskgraph/retry"
)

// Sentinel errors for graph construction and execution.
var (
	// ErrEmptyID indicates a node was added with an empty ID.
	ErrEmptyID = errors.New("node ID cannot be empty")

	// ErrInvalidID indicates a node ID contains whitespace.
	ErrInvalidID = errors.New("node ID cannot contain whitespace")

	// ErrReservedID indicates a node used the reserved seed key.
	ErrReservedID = errors.New("node ID is reserved")

	// ErrDuplicateNode indicates a node ID was registered twice.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrSelfDependency indicates a node listed itself as a dependency.
	ErrSelfDependency = errors.New("node cannot depend on itself")

	// ErrMissingDependency indicates a dependency that is not a registered node.
	ErrMissingDependency = errors.New("dependency not registered")

	// ErrNodeNotFound indicates an operation referenced an unknown node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNilWork indicates a node was added without a work function.
	ErrNilWork = errors.New("work function cannot be nil")

	// ErrNilHook indicates a hook option was given a nil function.
	ErrNilHook = errors.New("hook cannot be nil")

	// ErrInvalidRetryPolicy indicates negative retries or delay.
	ErrInvalidRetryPolicy = retry.ErrInvalidPolicy

	// ErrConflictingInitial indicates both an initial value and an initial
	// factory were supplied.
	ErrConflictingInitial = errors.New("initial value and initial factory are mutually exclusive")

	// ErrEmptyGraph indicates Build was called with no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrGraphBuilt indicates the builder was used after a successful Build.
	ErrGraphBuilt = errors.New("graph already built")

	// ErrCycle is matched by CyclicDependencyError via errors.Is.
	ErrCycle = errors.New("cyclic dependency")

	// ErrNilContext indicates Trigger or Execute was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNoSnapshot indicates a predicate was evaluated without a snapshot.
	ErrNoSnapshot = errors.New("enablement predicate requires a snapshot")
)

// ConfigurationError reports an invalid graph, node, or option.
// It is returned synchronously and never produced during a run.
type ConfigurationError struct {
	// Op is the builder operation that failed ("add node", "build", ...).
	Op string
	// NodeID is the node involved, if any.
	NodeID string
	// Err is the sentinel describing the problem.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErr(op, nodeID string, err error) *ConfigurationError {
	return &ConfigurationError{Op: op, NodeID: nodeID, Err: err}
}

// CyclicDependencyError reports a cycle found while ordering the graph.
type CyclicDependencyError struct {
	// NodeID is the node at which the cycle was detected.
	NodeID string
	// Path lists the cycle from NodeID back to NodeID, following
	// dependency edges.
	Path []string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("cyclic dependency at node %s", e.NodeID)
	}
	return fmt.Sprintf("cyclic dependency at node %s: %s", e.NodeID, strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCycle for errors.Is support.
func (e *CyclicDependencyError) Unwrap() error {
	return ErrCycle
}

// NodeError wraps the failure of a node that exhausted its retries.
// It appears in the run's error list and in the node's completion event.
//
// The message is "node <id> failed: <cause>", lowercase like other Go
// error strings. Match on the type with errors.As rather than on a
// capitalized "Node <id> failed" prefix.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Err is the error returned by the final attempt, unwrapped.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic from a work function, predicate, or hook.
type PanicError struct {
	// NodeID is the node whose code panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// HookError reports a failure inside a user hook. Hook errors are logged
// and collected on the Run; they never abort a run or replace a node error.
type HookError struct {
	// NodeID is the node whose hook failed. Empty for the run hook.
	NodeID string
	// Hook names the hook ("on_error", "on_completed", "on_run_complete").
	Hook string
	// Err is the error returned by the hook, or a *PanicError.
	Err error
}

// Hook names used in HookError.
const (
	HookOnError       = "on_error"
	HookOnCompleted   = "on_completed"
	HookOnRunComplete = "on_run_complete"
)

// Error implements the error interface.
func (e *HookError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("hook %s: %v", e.Hook, e.Err)
	}
	return fmt.Sprintf("node %s hook %s: %v", e.NodeID, e.Hook, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HookError) Unwrap() error {
	return e.Err
}
