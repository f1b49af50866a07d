package history

import (
	"sort"
	"sync"
)

// MemoryStore keeps history in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[string]map[string]NodeRecord // runID -> nodeID -> record
	runs   map[string]RunRecord
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]map[string]NodeRecord),
		runs:  make(map[string]RunRecord),
	}
}

// RecordNode implements Store.
func (m *MemoryStore) RecordNode(rec NodeRecord) error {
	if err := validateNode(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	run := m.nodes[rec.RunID]
	if run == nil {
		run = make(map[string]NodeRecord)
		m.nodes[rec.RunID] = run
	}

	seq := 0
	for _, existing := range run {
		if existing.Sequence > seq {
			seq = existing.Sequence
		}
	}
	rec.Sequence = seq + 1
	rec.Result = append([]byte(nil), rec.Result...)
	run[rec.NodeID] = rec
	return nil
}

// RecordRun implements Store.
func (m *MemoryStore) RecordRun(rec RunRecord) error {
	if err := validateRun(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	rec.Snapshot = append([]byte(nil), rec.Snapshot...)
	m.runs[rec.RunID] = rec
	return nil
}

// Nodes implements Store.
func (m *MemoryStore) Nodes(runID string) ([]NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]NodeRecord, 0, len(m.nodes[runID]))
	for _, rec := range m.nodes[runID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// Run implements Store.
func (m *MemoryStore) Run(runID string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return RunRecord{}, ErrStoreClosed
	}
	rec, ok := m.runs[runID]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	return rec, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]RunRecord, 0, len(m.runs))
	for _, rec := range m.runs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.nodes, runID)
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
