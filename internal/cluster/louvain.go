package cluster

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/dbsmedya/puppetmaster/internal/graph"
)

// upper bound on local-moving sweeps per level
const maxSweeps = 1000

// Louvain is greedy weighted modularity optimization with aggregation.
// Nodes are visited in name order unless Seed is non-zero, in which case the
// order is a seeded shuffle. Either way the result is reproducible.
type Louvain struct {
	Resolution float64
	MaxLevels  int
	MaxNodes   int // 0 means unlimited
	Seed       int64
}

// Name returns AlgorithmLouvain.
func (l *Louvain) Name() Algorithm { return AlgorithmLouvain }

// Partition returns ErrTooLarge when the graph has more than MaxNodes nodes.
func (l *Louvain) Partition(g *graph.Graph) ([][]string, error) {
	n := g.NodeCount()
	if l.MaxNodes > 0 && n > l.MaxNodes {
		return nil, fmt.Errorf("%w: %d nodes, limit %d", ErrTooLarge, n, l.MaxNodes)
	}

	resolution := l.Resolution
	if resolution <= 0 {
		resolution = 1
	}
	maxLevels := l.MaxLevels
	if maxLevels <= 0 {
		maxLevels = 10
	}

	var rng *rand.Rand
	if l.Seed != 0 {
		rng = rand.New(rand.NewPCG(uint64(l.Seed), 0x9e3779b97f4a7c15))
	}

	ix := g.Index()
	lv := newLevel(ix.Adj)
	membership := identity(n)

	for level := 0; level < maxLevels; level++ {
		comm, moved := lv.moveNodes(resolution, rng)
		if !moved {
			break
		}
		dense, k := renumber(comm)
		for i := range membership {
			membership[i] = dense[membership[i]]
		}
		lv = lv.aggregate(dense, k)
	}

	return groups(ix.Names, membership), nil
}

// level is one (possibly aggregated) graph of the Louvain hierarchy.
type level struct {
	adj  [][]graph.Arc // arcs to other nodes, sorted by target
	self []float64     // self-loop weight from aggregated internal edges
	k    []float64     // weighted degree, self loops counted twice
	m2   float64       // sum of k, twice the total edge weight
}

func newLevel(adj [][]graph.Arc) *level {
	lv := &level{
		adj:  adj,
		self: make([]float64, len(adj)),
		k:    make([]float64, len(adj)),
	}
	lv.computeDegrees()
	return lv
}

func (lv *level) computeDegrees() {
	lv.m2 = 0
	for i, arcs := range lv.adj {
		d := 2 * lv.self[i]
		for _, a := range arcs {
			d += a.Weight
		}
		lv.k[i] = d
		lv.m2 += d
	}
}

// moveNodes runs local moving until a sweep moves nothing. It returns the
// community of every node and whether any node changed community.
func (lv *level) moveNodes(resolution float64, rng *rand.Rand) ([]int, bool) {
	n := len(lv.adj)
	comm := identity(n)
	if lv.m2 == 0 {
		return comm, false
	}

	tot := append([]float64(nil), lv.k...)
	order := identity(n)
	if rng != nil {
		rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
	}

	weightTo := make([]float64, n)
	seen := make([]bool, n)
	var touched []int
	improved := false

	for sweep := 0; sweep < maxSweeps; sweep++ {
		moves := 0
		for _, i := range order {
			ci := comm[i]

			touched = touched[:0]
			for _, a := range lv.adj[i] {
				c := comm[a.To]
				if !seen[c] {
					seen[c] = true
					touched = append(touched, c)
				}
				weightTo[c] += a.Weight
			}
			sort.Ints(touched)

			tot[ci] -= lv.k[i]
			best := ci
			bestGain := weightTo[ci] - resolution*tot[ci]*lv.k[i]/lv.m2
			for _, c := range touched {
				if c == ci {
					continue
				}
				gain := weightTo[c] - resolution*tot[c]*lv.k[i]/lv.m2
				if gain > bestGain+epsilon {
					best, bestGain = c, gain
				}
			}
			tot[best] += lv.k[i]
			if best != ci {
				comm[i] = best
				moves++
			}

			for _, c := range touched {
				weightTo[c] = 0
				seen[c] = false
			}
		}
		if moves == 0 {
			break
		}
		improved = true
	}

	return comm, improved
}

// renumber maps community ids to 0..k-1 in order of first appearance.
func renumber(comm []int) ([]int, int) {
	ids := make([]int, len(comm))
	for i := range ids {
		ids[i] = -1
	}
	dense := make([]int, len(comm))
	next := 0
	for i, c := range comm {
		if ids[c] < 0 {
			ids[c] = next
			next++
		}
		dense[i] = ids[c]
	}
	return dense, next
}

// aggregate collapses every community into one node. Internal edges become
// self-loop weight; edges between communities are summed.
func (lv *level) aggregate(dense []int, k int) *level {
	self := make([]float64, k)
	between := make([]map[int]float64, k)

	for i, arcs := range lv.adj {
		ci := dense[i]
		self[ci] += lv.self[i]
		for _, a := range arcs {
			cj := dense[a.To]
			if ci == cj {
				if i < a.To {
					self[ci] += a.Weight
				}
				continue
			}
			if between[ci] == nil {
				between[ci] = make(map[int]float64)
			}
			between[ci][cj] += a.Weight
		}
	}

	adj := make([][]graph.Arc, k)
	for c, targets := range between {
		arcs := make([]graph.Arc, 0, len(targets))
		for to, w := range targets {
			arcs = append(arcs, graph.Arc{To: to, Weight: w})
		}
		sort.Slice(arcs, func(a, b int) bool { return arcs[a].To < arcs[b].To })
		adj[c] = arcs
	}

	next := &level{adj: adj, self: self, k: make([]float64, k)}
	next.computeDegrees()
	return next
}
