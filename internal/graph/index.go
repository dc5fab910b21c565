package graph

import (
	"sort"
)

// Arc is one direction of an edge in an Index.
type Arc struct {
	To     int
	Weight float64
}

// Index is a dense, read-only snapshot of a Graph. Node i is Names[i];
// names are sorted and every adjacency list is sorted by target, so
// algorithms iterating over an Index are deterministic.
type Index struct {
	Names []string
	Pos   map[string]int
	Adj   [][]Arc
}

// Index builds a dense snapshot of g.
func (g *Graph) Index() *Index {
	names := g.Nodes()
	pos := make(map[string]int, len(names))
	for i, n := range names {
		pos[n] = i
	}

	adj := make([][]Arc, len(names))
	for i, n := range names {
		arcs := make([]Arc, 0, len(g.adj[n]))
		for m, w := range g.adj[n] {
			arcs = append(arcs, Arc{To: pos[m], Weight: w})
		}
		sort.Slice(arcs, func(a, b int) bool { return arcs[a].To < arcs[b].To })
		adj[i] = arcs
	}

	return &Index{Names: names, Pos: pos, Adj: adj}
}

// Len returns the number of nodes.
func (ix *Index) Len() int {
	return len(ix.Names)
}
