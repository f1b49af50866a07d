package taskgraph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
)

// InitialFunc produces the seed value at the start of every run.
type InitialFunc func(ctx context.Context) (any, error)

// Graph is a builder for a dependency graph of nodes. Call Build to get a
// Runner.
//
// Builder methods return the Graph for chaining. Invalid input does not
// panic: errors are collected and reported by Err and Build. A node that
// fails validation is not registered.
//
// Graph is safe for concurrent use, though builders are usually filled
// from a single goroutine.
type Graph struct {
	mu sync.Mutex

	nodes     map[string]*Node
	insertion []string
	deps      *DependencyIndex

	initial    any
	hasInitial bool
	initialFn  InitialFunc

	errs  []error
	built bool
}

// GraphOption configures a new Graph.
type GraphOption func(*Graph)

// WithInitial sets the seed value stored under InitialKey at the start of
// every run.
func WithInitial(v any) GraphOption {
	return func(g *Graph) {
		g.initial = v
		g.hasInitial = true
	}
}

// WithInitialFunc sets a factory called at the start of every run to
// produce the seed value. Mutually exclusive with WithInitial.
func WithInitialFunc(fn InitialFunc) GraphOption {
	return func(g *Graph) {
		if fn == nil {
			g.errs = append(g.errs, configErr("new graph", "", ErrNilHook))
			return
		}
		g.initialFn = fn
	}
}

// NewGraph creates an empty graph.
//
// Example:
//
//	g := taskgraph.NewGraph(taskgraph.WithInitial(cfg)).
//	    AddNode("fetch", fetch).
//	    AddNode("parse", parse, taskgraph.WithDependencies("fetch"))
//	runner, err := g.Build()
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		nodes: make(map[string]*Node),
		deps:  NewDependencyIndex(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.hasInitial && g.initialFn != nil {
		g.errs = append(g.errs, configErr("new graph", "", ErrConflictingInitial))
	}
	return g
}

// AddNode registers a node. Dependencies named with WithDependencies must
// already be registered.
//
// Validation errors are recorded (see Err) and the node is dropped:
//   - empty ID, whitespace in ID, or the reserved ID "initial"
//   - duplicate ID
//   - nil work function or nil hook
//   - negative retry count or delay
//   - self-dependency or unregistered dependency
func (g *Graph) AddNode(id string, fn WorkFunc, opts ...NodeOption) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.built {
		g.errs = append(g.errs, configErr("add node", id, ErrGraphBuilt))
		return g
	}

	cfg := nodeConfig{enabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := g.validateNode(id, fn, &cfg); err != nil {
		g.errs = append(g.errs, err)
		return g
	}

	g.nodes[id] = &Node{
		id:          id,
		work:        fn,
		retry:       cfg.retry,
		enabled:     cfg.enabled,
		enabledFn:   cfg.enabledFn,
		onError:     cfg.onError,
		onCompleted: cfg.onCompleted,
	}
	g.insertion = append(g.insertion, id)
	for _, dep := range cfg.deps {
		if !g.deps.Has(id, dep) {
			g.deps.Add(id, dep)
		}
	}
	return g
}

func (g *Graph) validateNode(id string, fn WorkFunc, cfg *nodeConfig) error {
	if err := validateID(id); err != nil {
		return configErr("add node", id, err)
	}
	if _, exists := g.nodes[id]; exists {
		return configErr("add node", id, ErrDuplicateNode)
	}
	if fn == nil {
		return configErr("add node", id, ErrNilWork)
	}
	if len(cfg.errs) > 0 {
		return configErr("add node", id, errors.Join(cfg.errs...))
	}
	if err := cfg.retry.Validate(); err != nil {
		return configErr("add node", id, err)
	}
	for _, dep := range cfg.deps {
		if dep == id {
			return configErr("add node", id, ErrSelfDependency)
		}
		if _, ok := g.nodes[dep]; !ok {
			return configErr("add node", id, missingDep(dep))
		}
	}
	return nil
}

// AddDependency adds an edge making nodeID depend on depID. Both must be
// registered. Unlike WithDependencies, it may close a cycle; cycles are
// reported by Build. Adding an existing edge is a no-op.
func (g *Graph) AddDependency(nodeID, depID string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.built {
		g.errs = append(g.errs, configErr("add dependency", nodeID, ErrGraphBuilt))
		return g
	}
	if _, ok := g.nodes[nodeID]; !ok {
		g.errs = append(g.errs, configErr("add dependency", nodeID, ErrNodeNotFound))
		return g
	}
	if nodeID == depID {
		g.errs = append(g.errs, configErr("add dependency", nodeID, ErrSelfDependency))
		return g
	}
	if _, ok := g.nodes[depID]; !ok {
		g.errs = append(g.errs, configErr("add dependency", nodeID, missingDep(depID)))
		return g
	}
	if !g.deps.Has(nodeID, depID) {
		g.deps.Add(nodeID, depID)
	}
	return g
}

// Err returns all errors recorded by the builder, joined, or nil.
func (g *Graph) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Dependencies returns a copy of the dependencies registered for id.
func (g *Graph) Dependencies(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deps.Get(id)
}

func validateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return ErrInvalidID
	}
	if id == InitialKey {
		return ErrReservedID
	}
	return nil
}

// missingDepError names the unregistered dependency while matching
// ErrMissingDependency.
type missingDepError struct {
	dep string
}

func missingDep(dep string) error { return &missingDepError{dep: dep} }

func (e *missingDepError) Error() string {
	return ErrMissingDependency.Error() + ": " + e.dep
}

func (e *missingDepError) Unwrap() error { return ErrMissingDependency }
