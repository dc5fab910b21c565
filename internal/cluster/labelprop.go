package cluster

import (
	"sort"

	"github.com/dbsmedya/puppetmaster/internal/graph"
)

// LabelPropagation is weighted asynchronous label propagation. Nodes are
// visited in name order and adopt the label with the largest incident
// weight. A node keeps its label when that label is among the heaviest;
// otherwise ties go to the smallest label.
type LabelPropagation struct {
	MaxIterations int
}

// Name returns AlgorithmLabelPropagation.
func (lp *LabelPropagation) Name() Algorithm { return AlgorithmLabelPropagation }

// Partition never fails for a valid graph.
func (lp *LabelPropagation) Partition(g *graph.Graph) ([][]string, error) {
	maxIter := lp.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}

	ix := g.Index()
	n := ix.Len()
	label := identity(n)

	weight := make([]float64, n)
	seen := make([]bool, n)
	var touched []int

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			if len(ix.Adj[i]) == 0 {
				continue
			}

			touched = touched[:0]
			for _, a := range ix.Adj[i] {
				l := label[a.To]
				if !seen[l] {
					seen[l] = true
					touched = append(touched, l)
				}
				weight[l] += a.Weight
			}
			sort.Ints(touched)

			heaviest := 0.0
			for _, l := range touched {
				if weight[l] > heaviest {
					heaviest = weight[l]
				}
			}

			next := label[i]
			if !seen[next] || weight[next] < heaviest-epsilon {
				for _, l := range touched {
					if weight[l] >= heaviest-epsilon {
						next = l
						break
					}
				}
			}
			if next != label[i] {
				label[i] = next
				changed = true
			}

			for _, l := range touched {
				weight[l] = 0
				seen[l] = false
			}
		}
		if !changed {
			break
		}
	}

	return groups(ix.Names, label), nil
}
