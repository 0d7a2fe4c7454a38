// Package flow owns the orchestration state machine: an explicit
// dependency graph of analysis stages, a scheduler that runs
// independent stages concurrently and AND-joins dependent ones, and
// the human-approval checkpoint that gates submission.
package flow

import (
	"context"
	"fmt"
)

// Node is one unit of work in the stage graph. Run must convert its own
// domain failures into degraded state; a returned error cancels the
// whole execution and is reserved for unrecoverable conditions.
type Node struct {
	Name  string
	After []string
	Run   func(ctx context.Context) error
}

// Graph is a static directed acyclic dependency graph. It is built
// once, validated, then executed; nodes are never added mid-run.
type Graph struct {
	nodes map[string]*Node
	order []string
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Add registers a node. Duplicate names are rejected.
func (g *Graph) Add(n *Node) error {
	if n.Name == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if n.Run == nil {
		return fmt.Errorf("node %q has no run function", n.Name)
	}
	if _, ok := g.nodes[n.Name]; ok {
		return fmt.Errorf("duplicate node %q", n.Name)
	}
	g.nodes[n.Name] = n
	g.order = append(g.order, n.Name)
	return nil
}

// Nodes returns the node names in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependencies returns the declared predecessors of a node.
func (g *Graph) Dependencies(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	out := make([]string, len(n.After))
	copy(out, n.After)
	return out
}

// Validate checks that every dependency names a registered node and
// that the graph is acyclic.
func (g *Graph) Validate() error {
	indegree := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		indegree[name] = 0
	}
	for name, n := range g.nodes {
		for _, dep := range n.After {
			if _, ok := g.nodes[dep]; !ok {
				return fmt.Errorf("node %q depends on unknown node %q", name, dep)
			}
			indegree[name]++
		}
	}

	// Kahn's algorithm: if a topological order cannot consume every
	// node, the remainder forms a cycle.
	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	seen := 0
	for len(ready) > 0 {
		cur := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		seen++
		for name, n := range g.nodes {
			for _, dep := range n.After {
				if dep != cur {
					continue
				}
				indegree[name]--
				if indegree[name] == 0 {
					ready = append(ready, name)
				}
			}
		}
	}
	if seen != len(g.nodes) {
		return fmt.Errorf("stage graph contains a cycle")
	}
	return nil
}
