package taskgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/taskgraph/pkg/taskgraph/history"
	"github.com/randalmurphal/taskgraph/pkg/taskgraph/observability"
)

// Context provides execution context to work functions and hooks.
// It extends context.Context with run metadata and a scoped logger.
//
// Context is immutable. The runner derives a new Context for each node and
// each attempt, carrying the node's ID and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node
	// attributes. Never nil; defaults to slog.Default().
	Logger() *slog.Logger

	// History returns the run history store, or nil if not configured.
	History() history.Store

	// RunID returns the identifier of the current run.
	RunID() string

	// NodeID returns the node being executed. Empty outside a node.
	NodeID() string

	// Attempt returns the attempt number, starting at 1.
	Attempt() int
}

type executionContext struct {
	context.Context

	logger  *slog.Logger
	history history.Store
	runID   string
	nodeID  string
	attempt int

	// root is the logger before run and node attributes were added.
	root *slog.Logger
}

func (c *executionContext) Logger() *slog.Logger   { return c.logger }
func (c *executionContext) History() history.Store { return c.history }
func (c *executionContext) RunID() string          { return c.runID }
func (c *executionContext) NodeID() string         { return c.nodeID }
func (c *executionContext) Attempt() int           { return c.attempt }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger handed to work functions.
// It is enriched with run_id, node_id, and attempt during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier. If not set, a UUID is generated.
// A WithRunID run option takes precedence.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := taskgraph.NewContext(context.Background(),
//	    taskgraph.WithLogger(logger),
//	    taskgraph.WithContextRunID("nightly-42"))
//	final, err := runner.Trigger(ctx)
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		attempt: 1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	ec.root = ec.logger
	return ec
}

// asExecutionContext reuses ctx if it already carries run metadata,
// otherwise wraps it with defaults.
func asExecutionContext(ctx context.Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return NewContext(ctx).(*executionContext)
}

// forRun returns a copy bound to a run: its ID, history store, and the
// (possibly span-carrying) parent context.
func (c *executionContext) forRun(parent context.Context, runID string, store history.Store) *executionContext {
	return &executionContext{
		Context: parent,
		logger:  c.root.With("run_id", runID),
		history: store,
		runID:   runID,
		attempt: 1,
		root:    c.root,
	}
}

// withNode returns a copy scoped to a node and attempt, with the root
// logger enriched accordingly.
func (c *executionContext) withNode(parent context.Context, nodeID string, attempt int) *executionContext {
	return &executionContext{
		Context: parent,
		logger:  observability.EnrichLogger(c.root, c.runID, nodeID, attempt),
		history: c.history,
		runID:   c.runID,
		nodeID:  nodeID,
		attempt: attempt,
		root:    c.root,
	}
}
