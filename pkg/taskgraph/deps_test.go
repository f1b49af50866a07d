package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDependencyIndex tests insertion order and copy semantics.
func TestDependencyIndex(t *testing.T) {
	idx := NewDependencyIndex()
	idx.Add("C", "A")
	idx.Add("C", "B")

	assert.Equal(t, []string{"A", "B"}, idx.Get("C"))
	assert.Equal(t, 2, idx.Len("C"))
	assert.True(t, idx.Has("C", "B"))
	assert.False(t, idx.Has("B", "C"))

	got := idx.Get("C")
	got[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, idx.Get("C"))

	unknown := idx.Get("missing")
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

// TestDependencyIndex_Clone tests that a clone is independent.
func TestDependencyIndex_Clone(t *testing.T) {
	idx := NewDependencyIndex()
	idx.Add("B", "A")

	clone := idx.clone()
	idx.Add("B", "X")

	assert.Equal(t, []string{"A"}, clone.Get("B"))
	assert.Equal(t, []string{"A", "X"}, idx.Get("B"))
}
