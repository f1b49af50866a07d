package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/taskgraph/pkg/taskgraph"
)

// noopNode does minimal work to measure framework overhead.
func noopNode(ctx taskgraph.Context, in *taskgraph.Snapshot) (any, error) {
	return 1, nil
}

func nodeID(i int) string {
	return fmt.Sprintf("node%d", i)
}

// buildChain returns n nodes where each depends on the previous one.
func buildChain(n int) *taskgraph.Graph {
	g := taskgraph.NewGraph()
	for i := 0; i < n; i++ {
		if i == 0 {
			g.AddNode(nodeID(i), noopNode)
			continue
		}
		g.AddNode(nodeID(i), noopNode, taskgraph.WithDependencies(nodeID(i-1)))
	}
	return g
}

// buildFanOut returns one root, n independent children, and one sink
// depending on all of them.
func buildFanOut(n int) *taskgraph.Graph {
	g := taskgraph.NewGraph().AddNode("root", noopNode)
	children := make([]string, n)
	for i := 0; i < n; i++ {
		children[i] = nodeID(i)
		g.AddNode(children[i], noopNode, taskgraph.WithDependencies("root"))
	}
	return g.AddNode("sink", noopNode, taskgraph.WithDependencies(children...))
}

func mustBuild(g *taskgraph.Graph) *taskgraph.Runner {
	r, err := g.Build()
	if err != nil {
		panic(err)
	}
	return r
}

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		taskgraph.NewGraph()
	}
}

// BenchmarkAddNode_100 measures adding 100 independent nodes.
func BenchmarkAddNode_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := taskgraph.NewGraph()
		for j := 0; j < 100; j++ {
			g.AddNode(nodeID(j), noopNode)
		}
	}
}

// BenchmarkBuild_Chain_100 measures validation and topological sort of a
// 100-node chain.
func BenchmarkBuild_Chain_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = buildChain(100).Build()
	}
}

// BenchmarkBuild_FanOut_1000 measures building a wide graph.
func BenchmarkBuild_FanOut_1000(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = buildFanOut(1000).Build()
	}
}

// BenchmarkBuild_Cycle measures cycle detection on a 100-node ring.
func BenchmarkBuild_Cycle(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := buildChain(100).AddDependency(nodeID(0), nodeID(99))
		_, _ = g.Build()
	}
}
