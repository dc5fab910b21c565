// Package graph provides the undirected weighted domain graph and the
// traversal helpers the clustering and ranking stages build on.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSelfLoop is returned when an edge joins a node to itself.
	ErrSelfLoop = errors.New("self loop")
	// ErrDuplicateEdge is returned when an edge already exists for a pair.
	ErrDuplicateEdge = errors.New("duplicate edge")
)

// InvariantError reports a structural inconsistency. It indicates a
// programming error upstream and must abort the run.
type InvariantError struct {
	Violation string
	Nodes     []string
}

func (e *InvariantError) Error() string {
	msg := "graph invariant violated: " + e.Violation
	if len(e.Nodes) > 0 {
		msg += fmt.Sprintf(" [%s]", strings.Join(e.Nodes, ", "))
	}
	return msg
}

// Edge is an undirected weighted edge with A < B.
type Edge struct {
	A      string
	B      string
	Weight float64
}

// Graph is an undirected weighted graph keyed by domain name. It has no
// self loops and at most one edge per pair.
type Graph struct {
	adj         map[string]map[string]float64
	edgeCount   int
	totalWeight float64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{adj: make(map[string]map[string]float64)}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.adj[name]; !ok {
		g.adj[name] = make(map[string]float64)
	}
}

// AddEdge adds the undirected edge a-b. Both endpoints must already be
// nodes; a missing endpoint is an *InvariantError.
func (g *Graph) AddEdge(a, b string, weight float64) error {
	if a == b {
		return fmt.Errorf("%w: %s", ErrSelfLoop, a)
	}
	var missing []string
	for _, n := range []string{a, b} {
		if !g.HasNode(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &InvariantError{Violation: "edge references absent node", Nodes: missing}
	}
	if _, ok := g.adj[a][b]; ok {
		return fmt.Errorf("%w: %s - %s", ErrDuplicateEdge, a, b)
	}

	g.adj[a][b] = weight
	g.adj[b][a] = weight
	g.edgeCount++
	g.totalWeight += weight
	return nil
}

// HasNode returns true if the graph contains the node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.adj[name]
	return ok
}

// Neighbors returns the neighbors of name in lexical order.
func (g *Graph) Neighbors(name string) []string {
	out := make([]string, 0, len(g.adj[name]))
	for n := range g.adj[name] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Weight returns the weight of edge a-b.
func (g *Graph) Weight(a, b string) (float64, bool) {
	w, ok := g.adj[a][b]
	return w, ok
}

// Degree returns the number of edges incident to name.
func (g *Graph) Degree(name string) int {
	return len(g.adj[name])
}

// Nodes returns every node in lexical order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.adj))
	for n := range g.adj {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge once, sorted by (A, B).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, a := range g.Nodes() {
		for _, b := range g.Neighbors(a) {
			if a < b {
				out = append(out, Edge{A: a, B: b, Weight: g.adj[a][b]})
			}
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.adj)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// TotalWeight returns the sum of all edge weights.
func (g *Graph) TotalWeight() float64 {
	return g.totalWeight
}

// Validate checks that adjacency is symmetric, free of self loops, refers
// only to existing nodes and agrees with the edge count.
func (g *Graph) Validate() error {
	half := 0
	for a, nbrs := range g.adj {
		for b, w := range nbrs {
			if a == b {
				return &InvariantError{Violation: "self loop", Nodes: []string{a}}
			}
			back, ok := g.adj[b]
			if !ok {
				return &InvariantError{Violation: "edge references absent node", Nodes: []string{b}}
			}
			if bw, ok := back[a]; !ok || bw != w {
				return &InvariantError{Violation: "asymmetric edge", Nodes: []string{a, b}}
			}
			half++
		}
	}
	if half != 2*g.edgeCount {
		return &InvariantError{Violation: fmt.Sprintf("edge count %d does not match adjacency (%d)", g.edgeCount, half/2)}
	}
	return nil
}
