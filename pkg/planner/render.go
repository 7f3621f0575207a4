// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"fmt"
	"strings"
)

// ToMermaid renders the graph as a mermaid flowchart. Roots are highlighted.
func ToMermaid(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&sb, "    %s[\"%s<br/>%s\"]\n", mermaidID(n.ID), n.ID, strings.Join(n.Provides.Strings(), ", "))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "    %s -->|%s| %s\n", mermaidID(e.From), e.Capability, mermaidID(e.To))
	}
	for _, n := range g.Nodes {
		if n.Requires.Empty() {
			fmt.Fprintf(&sb, "    style %s fill:#90EE90\n", mermaidID(n.ID))
		}
	}
	return sb.String()
}

// ToDot renders the graph in graphviz dot syntax.
func ToDot(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n")

	for _, n := range g.Nodes {
		attrs := fmt.Sprintf("label=\"%s\\n(%s)\"", n.ID, strings.Join(n.Provides.Strings(), ", "))
		if n.Requires.Empty() {
			attrs += ", style=\"rounded,filled\", fillcolor=\"#90EE90\""
		}
		fmt.Fprintf(&sb, "    %q [%s];\n", n.ID, attrs)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "    %q -> %q [label=\"%s\"];\n", e.From, e.To, e.Capability)
	}

	sb.WriteString("}\n")
	return sb.String()
}

// mermaid ids may not contain dashes or spaces.
func mermaidID(id string) string {
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(id)
}
