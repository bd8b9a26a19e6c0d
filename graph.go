package partstore

import (
	"fmt"
	"strings"
)

// DotGraph outputs the store's parts in dot format: one node per part in
// insertion order, with each alias key pointing at the part it resolves to.
func (s *Store) DotGraph() string {
	var b strings.Builder

	b.WriteString("digraph G {\n  rankdir=TB;\n  compound=true;\n")

	if len(s.entries) > 0 {
		b.WriteString("  subgraph cluster_entries {\n")
		b.WriteString("    label=\"Start order\";\n    style=dashed;\n")
		for i, e := range s.entries {
			fmt.Fprintf(&b, "    %s [label=%q];\n", entryNode(i), fmt.Sprintf("%d: %s", i, e.name))
		}
		b.WriteString("  }\n")
	}

	for i := 1; i < len(s.entries); i++ {
		fmt.Fprintf(&b, "  %s -> %s;\n", entryNode(i-1), entryNode(i))
	}

	for i, e := range s.entries {
		for _, k := range e.keys[1:] {
			fmt.Fprintf(&b, "  %q [shape=box];\n", k.String())
			fmt.Fprintf(&b, "  %q -> %s [style=dotted];\n", k.String(), entryNode(i))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func entryNode(i int) string {
	return fmt.Sprintf("e%d", i)
}
