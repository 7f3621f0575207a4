// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner derives a fixed execution order from agent descriptors and
// runs agents strictly in that order.
package planner

import (
	"fmt"

	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/registry"
)

// Graph is the dependency graph of a set of agents.
type Graph struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// Node is one agent, in registration order.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Provides capability.Set `json:"provides" yaml:"provides"`
	Requires capability.Set `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// Edge links the provider of a capability to one of its consumers.
type Edge struct {
	From       string                `json:"from" yaml:"from"`
	To         string                `json:"to" yaml:"to"`
	Capability capability.Capability `json:"capability" yaml:"capability"`
}

// Build registers descs and derives the graph. Duplicate providers return
// *errors.DuplicateCapabilityError; missing providers and cycles return
// *errors.UnsatisfiableDependencyError.
func Build(descs []registry.Descriptor) (*Graph, error) {
	reg := registry.New()
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{}
	for _, d := range reg.Descriptors() {
		g.Nodes = append(g.Nodes, Node{ID: d.ID, Provides: d.Provides, Requires: d.Requires})
	}
	for _, n := range g.Nodes {
		for _, c := range n.Requires.Slice() {
			from, _ := reg.Provider(c)
			g.Edges = append(g.Edges, Edge{From: from, To: n.ID, Capability: c})
		}
	}
	return g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Descriptors converts the nodes back to registry descriptors.
func (g *Graph) Descriptors() []registry.Descriptor {
	out := make([]registry.Descriptor, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = registry.Descriptor{ID: n.ID, Provides: n.Provides, Requires: n.Requires}
	}
	return out
}

// Validate ensures the graph is well-formed and acyclic.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node id is required")
		}
		if seen[n.ID] {
			return fmt.Errorf("node %q defined twice", n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range g.Edges {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("edge must include from/to")
		}
		if !seen[e.From] {
			return fmt.Errorf("edge from %q not found", e.From)
		}
		if !seen[e.To] {
			return fmt.Errorf("edge to %q not found", e.To)
		}
	}
	_, err := g.TopologicalOrder()
	return err
}

// TopologicalOrder returns node ids so that every provider precedes its
// consumers. Among nodes that are ready at the same time registration order
// wins. A cycle returns *errors.UnsatisfiableDependencyError listing the
// nodes that could not be ordered.
func (g *Graph) TopologicalOrder() ([]string, error) {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}
	indegree := make([]int, len(g.Nodes))
	next := make([][]int, len(g.Nodes))
	linked := make(map[[2]int]bool, len(g.Edges))
	for _, e := range g.Edges {
		from, to := index[e.From], index[e.To]
		if linked[[2]int{from, to}] {
			continue
		}
		linked[[2]int{from, to}] = true
		next[from] = append(next[from], to)
		indegree[to]++
	}

	placed := make([]bool, len(g.Nodes))
	order := make([]string, 0, len(g.Nodes))
	for len(order) < len(g.Nodes) {
		pick := -1
		for i := range g.Nodes {
			if !placed[i] && indegree[i] == 0 {
				pick = i
				break
			}
		}
		if pick < 0 {
			var stuck []string
			for i, n := range g.Nodes {
				if !placed[i] {
					stuck = append(stuck, n.ID)
				}
			}
			return nil, &errors.UnsatisfiableDependencyError{Cycle: stuck}
		}
		placed[pick] = true
		order = append(order, g.Nodes[pick].ID)
		for _, to := range next[pick] {
			indegree[to]--
		}
	}
	return order, nil
}
