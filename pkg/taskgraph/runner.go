package taskgraph

// Runner executes a built graph. It is immutable and safe for concurrent
// use: every Trigger or Execute call gets its own Run with its own
// results and node statuses.
type Runner struct {
	name       string
	nodes      map[string]*Node
	order      []string
	insertion  []string
	deps       *DependencyIndex
	dependents map[string][]string
	initial    any
	initialFn  InitialFunc
	onComplete RunCompleteFunc
}

// Name returns the graph name set with WithName.
func (r *Runner) Name() string {
	return r.name
}

// Len returns the number of nodes.
func (r *Runner) Len() int {
	return len(r.nodes)
}

// NodeIDs returns node IDs in registration order.
func (r *Runner) NodeIDs() []string {
	return append([]string(nil), r.insertion...)
}

// Order returns node IDs in topological order: every node appears after
// all of its dependencies.
func (r *Runner) Order() []string {
	return append([]string(nil), r.order...)
}

// Node returns the node with the given ID, or nil.
func (r *Runner) Node(id string) *Node {
	return r.nodes[id]
}

// HasNode reports whether a node with the given ID exists.
func (r *Runner) HasNode(id string) bool {
	_, ok := r.nodes[id]
	return ok
}

// Dependencies returns the IDs id depends on, in declaration order.
func (r *Runner) Dependencies(id string) []string {
	return r.deps.Get(id)
}

// Dependents returns the IDs that depend on id, in topological order.
func (r *Runner) Dependents(id string) []string {
	return append([]string{}, r.dependents[id]...)
}

// Roots returns nodes with no dependencies, in topological order.
func (r *Runner) Roots() []string {
	var roots []string
	for _, id := range r.order {
		if r.deps.Len(id) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes nothing depends on, in topological order.
func (r *Runner) Leaves() []string {
	var leaves []string
	for _, id := range r.order {
		if len(r.dependents[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}
