package taskgraph

import (
	"errors"
	"log/slog"
)

// RunCompleteFunc is called once at the end of every run with the final
// snapshot and the node errors in failure order. errs is nil when no node
// failed.
type RunCompleteFunc func(final *Snapshot, errs []error)

type buildConfig struct {
	name       string
	onComplete RunCompleteFunc
	errs       []error
}

// BuildOption configures the Runner produced by Build.
type BuildOption func(*buildConfig)

// WithName sets the graph name used in logs, spans, and history.
func WithName(name string) BuildOption {
	return func(c *buildConfig) {
		c.name = name
	}
}

// WithOnComplete sets the hook called at the end of every run.
func WithOnComplete(fn RunCompleteFunc) BuildOption {
	return func(c *buildConfig) {
		if fn == nil {
			c.errs = append(c.errs, configErr("build", "", ErrNilHook))
			return
		}
		c.onComplete = fn
	}
}

// Build validates the graph, computes a topological order, and returns a
// Runner. Errors recorded by AddNode and AddDependency are returned joined.
//
// Build fails if:
//   - any builder call recorded an error
//   - the graph has no nodes
//   - the dependencies contain a cycle (*CyclicDependencyError)
//
// After a successful Build the Graph rejects further changes.
func (g *Graph) Build(opts ...BuildOption) (*Runner, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.built {
		return nil, configErr("build", "", ErrGraphBuilt)
	}

	cfg := buildConfig{name: "taskgraph"}
	for _, opt := range opts {
		opt(&cfg)
	}

	var errs []error
	errs = append(errs, g.errs...)
	errs = append(errs, cfg.errs...)
	if len(g.nodes) == 0 {
		errs = append(errs, configErr("build", "", ErrEmptyGraph))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	order, err := topoSort(g.insertion, g.deps)
	if err != nil {
		return nil, err
	}

	g.warnBlockedNodes()
	g.built = true
	return g.buildRunner(order, cfg), nil
}

// dfsFrame is a node on the DFS stack and the index of its next
// unvisited dependency.
type dfsFrame struct {
	id   string
	next int
}

// topoSort orders nodes so each appears after all of its dependencies.
// Roots are visited in insertion order and dependencies in declaration
// order, so the result is deterministic. Iterative depth-first search.
func topoSort(ids []string, deps *DependencyIndex) ([]string, error) {
	const (
		unvisited = iota
		inProgress
		done
	)

	state := make(map[string]int, len(ids))
	order := make([]string, 0, len(ids))

	for _, root := range ids {
		if state[root] != unvisited {
			continue
		}
		state[root] = inProgress
		stack := []dfsFrame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := deps.view(top.id)

			if top.next < len(children) {
				child := children[top.next]
				top.next++

				switch state[child] {
				case inProgress:
					return nil, cycleFrom(stack, child)
				case unvisited:
					state[child] = inProgress
					stack = append(stack, dfsFrame{id: child})
				}
				continue
			}

			state[top.id] = done
			order = append(order, top.id)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}

// cycleFrom extracts the cycle closed by an edge into the in-progress
// node id. The path starts and ends with id.
func cycleFrom(stack []dfsFrame, id string) *CyclicDependencyError {
	start := 0
	for i, f := range stack {
		if f.id == id {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.id)
	}
	path = append(path, id)
	return &CyclicDependencyError{NodeID: id, Path: path}
}

// warnBlockedNodes logs nodes that can never run because a dependency is
// statically disabled. Such graphs are valid but usually a mistake.
func (g *Graph) warnBlockedNodes() {
	for _, id := range g.insertion {
		for _, dep := range g.deps.view(id) {
			if n := g.nodes[dep]; !n.HasPredicate() && !n.enabled {
				slog.Warn("node blocked by disabled dependency",
					slog.String("node_id", id),
					slog.String("dependency", dep),
				)
				break
			}
		}
	}
}

func (g *Graph) buildRunner(order []string, cfg buildConfig) *Runner {
	nodes := make(map[string]*Node, len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = n
	}

	deps := g.deps.clone()
	dependents := make(map[string][]string, len(order))
	for _, id := range order {
		for _, dep := range deps.view(id) {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	return &Runner{
		name:       cfg.name,
		nodes:      nodes,
		order:      order,
		insertion:  append([]string(nil), g.insertion...),
		deps:       deps,
		dependents: dependents,
		initial:    g.initial,
		initialFn:  g.initialFn,
		onComplete: cfg.onComplete,
	}
}
