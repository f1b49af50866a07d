package taskgraph

// DependencyIndex maps a node ID to the ordered list of node IDs it
// depends on. Entries are append-only; reads return copies.
//
// DependencyIndex is not safe for concurrent mutation. The builder owns it
// during construction and hands a read-only index to the Runner.
type DependencyIndex struct {
	deps map[string][]string
}

// NewDependencyIndex creates an empty index.
func NewDependencyIndex() *DependencyIndex {
	return &DependencyIndex{deps: make(map[string][]string)}
}

// Add appends depID to nodeID's dependency list, creating the list if
// absent. Uniqueness is the caller's concern.
func (d *DependencyIndex) Add(nodeID, depID string) {
	d.deps[nodeID] = append(d.deps[nodeID], depID)
}

// Get returns a copy of nodeID's dependencies in insertion order.
// Unknown IDs return an empty, non-nil slice.
func (d *DependencyIndex) Get(nodeID string) []string {
	src := d.deps[nodeID]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Has reports whether nodeID already depends on depID.
func (d *DependencyIndex) Has(nodeID, depID string) bool {
	for _, id := range d.deps[nodeID] {
		if id == depID {
			return true
		}
	}
	return false
}

// Len returns the number of dependencies recorded for nodeID.
func (d *DependencyIndex) Len(nodeID string) int {
	return len(d.deps[nodeID])
}

// view returns the internal slice without copying. Callers must not
// modify it.
func (d *DependencyIndex) view(nodeID string) []string {
	return d.deps[nodeID]
}

// clone returns a deep copy of the index.
func (d *DependencyIndex) clone() *DependencyIndex {
	out := &DependencyIndex{deps: make(map[string][]string, len(d.deps))}
	for id, deps := range d.deps {
		out.deps[id] = append([]string(nil), deps...)
	}
	return out
}
