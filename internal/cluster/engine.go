// Package cluster partitions the domain graph into probable common-ownership
// groups and grades each group.
package cluster

import (
	"errors"

	"github.com/dbsmedya/puppetmaster/internal/graph"
)

// Algorithm names a community detection algorithm.
type Algorithm string

// Supported algorithms. The values match the configuration names.
const (
	AlgorithmLouvain          Algorithm = "louvain"
	AlgorithmLabelPropagation Algorithm = "label_propagation"
)

// ErrTooLarge is returned by an engine that refuses a graph above its
// configured size limit.
var ErrTooLarge = errors.New("graph exceeds engine size limit")

// Engine computes raw communities. Every node of g must appear in exactly
// one returned community.
type Engine interface {
	Name() Algorithm
	Partition(g *graph.Graph) ([][]string, error)
}

// floating point tolerance for gain and weight comparisons
const epsilon = 1e-12

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// groups converts a node-index membership vector into communities. Members
// are listed in index order and communities are ordered by first member.
func groups(names []string, membership []int) [][]string {
	slot := make(map[int]int)
	var out [][]string
	for i, c := range membership {
		s, ok := slot[c]
		if !ok {
			s = len(out)
			slot[c] = s
			out = append(out, nil)
		}
		out[s] = append(out[s], names[i])
	}
	return out
}

// Modularity returns the weighted modularity of communities over g at the
// given resolution. An edgeless graph has modularity 0.
func Modularity(g *graph.Graph, communities [][]string, resolution float64) float64 {
	m := g.TotalWeight()
	if m == 0 {
		return 0
	}

	member := make(map[string]int, g.NodeCount())
	for c, nodes := range communities {
		for _, n := range nodes {
			member[n] = c
		}
	}

	internal := make([]float64, len(communities))
	degree := make([]float64, len(communities))
	for _, e := range g.Edges() {
		ca, cb := member[e.A], member[e.B]
		degree[ca] += e.Weight
		degree[cb] += e.Weight
		if ca == cb {
			internal[ca] += e.Weight
		}
	}

	q := 0.0
	for c := range communities {
		share := degree[c] / (2 * m)
		q += internal[c]/m - resolution*share*share
	}
	return q
}
