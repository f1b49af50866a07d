package taskgraph

import (
	"sort"
	"sync"
)

// InitialKey is the reserved snapshot key holding the run's seed value.
// No node may use it as an ID.
const InitialKey = "initial"

// Snapshot is an immutable view of the results produced so far in a run:
// the seed under InitialKey plus one entry per completed node.
//
// A Snapshot never changes after creation. Each update to a run's results
// produces a new Snapshot with a higher Version; keys are never removed.
// All methods are safe on a nil Snapshot, which behaves as empty.
type Snapshot struct {
	values  map[string]any
	version uint64
}

// Get returns the value stored under key.
func (s *Snapshot) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Initial returns the seed value the run started with. It is nil when
// no seed was supplied.
func (s *Snapshot) Initial() any {
	v, _ := s.Get(InitialKey)
	return v
}

// Keys returns all keys in sorted order.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys, the seed included.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Version increases by one with every applied update. A freshly reset
// snapshot has version 0.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Map returns a copy of the snapshot's contents. Modifying the copy has
// no effect on the snapshot or the run.
func (s *Snapshot) Map() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Value returns the value under key converted to T.
// ok is false if the key is missing or holds a different type.
//
// Example:
//
//	a, ok := taskgraph.Value[int](in, "A")
func Value[T any](s *Snapshot, key string) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// resultStore serializes updates to a run's results. Every update replaces
// the current snapshot wholesale under the lock, so updates apply in the
// order their calls acquire it and readers only see complete snapshots.
type resultStore struct {
	mu      sync.Mutex
	current *Snapshot
}

func newResultStore() *resultStore {
	return &resultStore{current: &Snapshot{values: map[string]any{InitialKey: nil}}}
}

// reset replaces the current snapshot with {initial: seed}.
func (s *resultStore) reset(seed any) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &Snapshot{values: map[string]any{InitialKey: seed}}
	return s.current
}

// update merges partial into the current snapshot and returns the
// snapshot that includes it.
func (s *resultStore) update(partial map[string]any) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]any, len(s.current.values)+len(partial))
	for k, v := range s.current.values {
		values[k] = v
	}
	for k, v := range partial {
		values[k] = v
	}
	s.current = &Snapshot{values: values, version: s.current.version + 1}
	return s.current
}

// value returns the current snapshot.
func (s *resultStore) value() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
