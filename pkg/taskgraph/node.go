package taskgraph

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/taskgraph/pkg/taskgraph/retry"
)

// WorkFunc is the unit of work for a node. It receives the snapshot
// current when the node started and returns the value stored under the
// node's ID.
type WorkFunc func(ctx Context, in *Snapshot) (any, error)

// EnabledFunc decides whether a node runs, given the snapshot at the time
// its dependencies have all completed.
type EnabledFunc func(in *Snapshot) bool

// ErrorHandler is called once when a node fails after exhausting retries.
// A returned error is reported but does not change the node's outcome.
type ErrorHandler func(ctx Context, err error) error

// CompletionHandler is called once per run for each node that completes or
// fails. Skipped and unreached nodes produce no event.
type CompletionHandler func(ctx Context, evt CompletionEvent) error

// CompletionEvent describes how a node finished.
type CompletionEvent struct {
	// NodeID is the node that finished.
	NodeID string
	// Status is StatusCompleted or StatusFailed.
	Status Status
	// Result is the work function's value. Nil on failure.
	Result any
	// Err is a *NodeError on failure. Nil on success.
	Err error
	// Context is the run's snapshot after the node's result was applied.
	Context *Snapshot
	// Attempts is the number of times the work function ran.
	Attempts int
	// Duration is the wall time from start to finish, retries included.
	Duration time.Duration
	// Timestamp is when the node finished.
	Timestamp time.Time
}

// Status is the lifecycle state of a node within one run.
type Status int

// Node statuses. Allowed transitions:
//
//	pending -> running -> completed | failed
//	pending -> skipped
//
// A node whose dependency failed or was skipped stays pending.
const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Node is an immutable unit of work registered with a Graph.
// Per-run state (status, attempts, errors) lives on Run.
type Node struct {
	id          string
	work        WorkFunc
	retry       retry.Policy
	enabled     bool
	enabledFn   EnabledFunc
	onError     ErrorHandler
	onCompleted CompletionHandler
}

// ID returns the node's identifier.
func (n *Node) ID() string { return n.id }

// Retry returns the node's retry policy.
func (n *Node) Retry() retry.Policy { return n.retry }

// HasPredicate reports whether enablement is decided at run time.
func (n *Node) HasPredicate() bool { return n.enabledFn != nil }

// Enabled reports whether the node should run. With a static flag the
// snapshot is ignored; with a predicate it is required.
// A panicking predicate returns a *PanicError.
func (n *Node) Enabled(in *Snapshot) (enabled bool, err error) {
	if n.enabledFn == nil {
		return n.enabled, nil
	}
	if in == nil {
		return false, configErr("enabled", n.id, ErrNoSnapshot)
	}
	defer func() {
		if r := recover(); r != nil {
			enabled = false
			err = &PanicError{NodeID: n.id, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return n.enabledFn(in), nil
}

// outcome is the result of running an enabled node.
type outcome struct {
	result   any
	err      error // original error from the final attempt
	attempts int
	hookErr  *HookError
	duration time.Duration
}

// runHooks are scheduler callbacks invoked from run.
type runHooks struct {
	onAttempt func(attempt int)
	onRetry   func(attempt int, err error)
}

// run executes the work function under the retry policy. ctx is the
// node-scoped context; each attempt gets a copy carrying its number.
// The error handler runs here, once, if every attempt fails.
func (n *Node) run(ctx *executionContext, in *Snapshot, hooks runHooks) outcome {
	res := retry.Do(ctx, n.retry, func(parent context.Context, attempt int) (any, error) {
		if hooks.onAttempt != nil {
			hooks.onAttempt(attempt)
		}
		return n.invoke(ctx.withNode(parent, n.id, attempt), in)
	}, hooks.onRetry)

	out := outcome{
		result:   res.Value,
		err:      res.Err,
		attempts: res.Attempts,
		duration: res.Duration,
	}
	if res.Err != nil {
		out.result = nil
		if n.onError != nil {
			out.hookErr = n.callErrorHandler(ctx.withNode(ctx.Context, n.id, res.Attempts), res.Err)
		}
	}
	return out
}

func (n *Node) invoke(ctx *executionContext, in *Snapshot) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{NodeID: n.id, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return n.work(ctx, in)
}

func (n *Node) callErrorHandler(ctx *executionContext, cause error) (hookErr *HookError) {
	defer func() {
		if r := recover(); r != nil {
			hookErr = &HookError{
				NodeID: n.id,
				Hook:   HookOnError,
				Err:    &PanicError{NodeID: n.id, Value: r, Stack: string(debug.Stack())},
			}
		}
	}()
	if err := n.onError(ctx, cause); err != nil {
		return &HookError{NodeID: n.id, Hook: HookOnError, Err: err}
	}
	return nil
}

func (n *Node) callCompletionHandler(ctx *executionContext, evt CompletionEvent) (hookErr *HookError) {
	if n.onCompleted == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			hookErr = &HookError{
				NodeID: n.id,
				Hook:   HookOnCompleted,
				Err:    &PanicError{NodeID: n.id, Value: r, Stack: string(debug.Stack())},
			}
		}
	}()
	if err := n.onCompleted(ctx, evt); err != nil {
		return &HookError{NodeID: n.id, Hook: HookOnCompleted, Err: err}
	}
	return nil
}

// nodeConfig collects NodeOption values before validation.
type nodeConfig struct {
	deps        []string
	retry       retry.Policy
	enabled     bool
	enabledFn   EnabledFunc
	onError     ErrorHandler
	onCompleted CompletionHandler
	errs        []error
}

// NodeOption configures a node passed to Graph.AddNode.
type NodeOption func(*nodeConfig)

// WithDependencies declares nodes that must complete before this one.
// Each must already be registered. Repeated IDs are ignored.
func WithDependencies(ids ...string) NodeOption {
	return func(c *nodeConfig) {
		c.deps = append(c.deps, ids...)
	}
}

// WithRetry allows maxRetries additional attempts with delay between them.
// Negative values are rejected when the node is added.
func WithRetry(maxRetries int, delay time.Duration) NodeOption {
	return func(c *nodeConfig) {
		c.retry = retry.Policy{MaxRetries: maxRetries, Delay: delay}
	}
}

// WithRetryPolicy sets the retry policy directly.
func WithRetryPolicy(p retry.Policy) NodeOption {
	return func(c *nodeConfig) {
		c.retry = p
	}
}

// WithEnabled sets a static enablement flag. A disabled node is skipped
// and its dependents never run. Overrides an earlier WithEnabledFunc.
func WithEnabled(enabled bool) NodeOption {
	return func(c *nodeConfig) {
		c.enabled = enabled
		c.enabledFn = nil
	}
}

// WithEnabledFunc decides enablement at run time. The predicate is called
// once per run, after all dependencies have completed, with the snapshot
// current at that moment.
func WithEnabledFunc(fn EnabledFunc) NodeOption {
	return func(c *nodeConfig) {
		if fn == nil {
			c.errs = append(c.errs, fmt.Errorf("enabled func: %w", ErrNilHook))
			return
		}
		c.enabledFn = fn
	}
}

// WithErrorHandler sets the hook called when the node fails for good.
func WithErrorHandler(fn ErrorHandler) NodeOption {
	return func(c *nodeConfig) {
		if fn == nil {
			c.errs = append(c.errs, fmt.Errorf("error handler: %w", ErrNilHook))
			return
		}
		c.onError = fn
	}
}

// WithCompletionHandler sets the hook called when the node completes or
// fails.
func WithCompletionHandler(fn CompletionHandler) NodeOption {
	return func(c *nodeConfig) {
		if fn == nil {
			c.errs = append(c.errs, fmt.Errorf("completion handler: %w", ErrNilHook))
			return
		}
		c.onCompleted = fn
	}
}
