// Package diagram renders task graphs as Mermaid flowcharts.
package diagram

import (
	"fmt"
	"strings"
	"unicode"
)

// Source is the graph structure a diagram is drawn from.
// *taskgraph.Runner satisfies it.
type Source interface {
	// Order returns node IDs with every node after its dependencies.
	Order() []string
	// Dependencies returns the IDs a node depends on.
	Dependencies(id string) []string
}

// StatusFunc returns a status name for a node, e.g. "completed".
type StatusFunc func(id string) string

// Status classes emitted by MermaidWithStatus.
var statusStyles = []struct {
	name  string
	style string
}{
	{"pending", "fill:#eeeeee,stroke:#999999"},
	{"running", "fill:#fff3bf,stroke:#f08c00"},
	{"completed", "fill:#d3f9d8,stroke:#2f9e44"},
	{"failed", "fill:#ffe3e3,stroke:#e03131"},
	{"skipped", "fill:#e7f5ff,stroke:#1971c2,stroke-dasharray:4"},
}

// Mermaid returns a top-down flowchart with an edge from each dependency
// to its dependent. Nodes without edges are listed on their own line.
// IDs with characters Mermaid treats as syntax, such as brackets or
// arrows, are drawn through an alias labelled with the original ID.
//
// Example output:
//
//	graph TD
//	    A --> C
//	    B --> C
func Mermaid(src Source) string {
	var sb strings.Builder
	writeGraph(&sb, src)
	return sb.String()
}

// MermaidWithStatus is Mermaid plus one class per node, coloured by the
// status status reports.
func MermaidWithStatus(src Source, status StatusFunc) string {
	var sb strings.Builder
	refs := writeGraph(&sb, src)

	for _, s := range statusStyles {
		fmt.Fprintf(&sb, "    classDef %s %s\n", s.name, s.style)
	}
	for _, id := range src.Order() {
		if name := status(id); name != "" {
			fmt.Fprintf(&sb, "    class %s %s\n", refs[id], name)
		}
	}
	return sb.String()
}

// writeGraph writes the flowchart body and returns the Mermaid reference
// used for each node ID.
func writeGraph(sb *strings.Builder, src Source) map[string]string {
	sb.WriteString("graph TD\n")

	order := src.Order()
	refs := nodeRefs(order)

	// IDs Mermaid cannot parse get an alias declared with a quoted label.
	for _, id := range order {
		if refs[id] != id {
			fmt.Fprintf(sb, "    %s[\"%s\"]\n", refs[id], escapeLabel(id))
		}
	}

	hasEdge := make(map[string]bool, len(order))
	for _, id := range order {
		for _, dep := range src.Dependencies(id) {
			fmt.Fprintf(sb, "    %s --> %s\n", refs[dep], refs[id])
			hasEdge[id] = true
			hasEdge[dep] = true
		}
	}
	for _, id := range order {
		if !hasEdge[id] && refs[id] == id {
			fmt.Fprintf(sb, "    %s\n", id)
		}
	}
	return refs
}

// nodeRefs maps each ID to itself when Mermaid accepts it as a bare node
// reference, otherwise to a generated alias that collides with no ID.
func nodeRefs(order []string) map[string]string {
	taken := make(map[string]bool, len(order))
	for _, id := range order {
		taken[id] = true
	}

	refs := make(map[string]string, len(order))
	n := 0
	for _, id := range order {
		if plainID(id) {
			refs[id] = id
			continue
		}
		ref := fmt.Sprintf("node%d", n)
		for taken[ref] {
			n++
			ref = fmt.Sprintf("node%d", n)
		}
		n++
		taken[ref] = true
		refs[id] = ref
	}
	return refs
}

// plainID reports whether id is made of letters, digits and underscores
// and is not the flowchart keyword "end".
func plainID(id string) bool {
	if id == "" || id == "end" {
		return false
	}
	for _, r := range id {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// escapeLabel makes id safe inside a double-quoted Mermaid label.
func escapeLabel(id string) string {
	return strings.ReplaceAll(id, `"`, "#quot;")
}
