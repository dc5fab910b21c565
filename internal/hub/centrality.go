// Package hub ranks domains by how central they are to the connection graph.
package hub

import (
	"context"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/puppetmaster/internal/graph"
)

// Mode tells how centrality values were obtained.
type Mode string

const (
	ModeExact   Mode = "exact"
	ModeSampled Mode = "sampled"
)

// Confidence parameter of the sampled error bound.
const sampleDelta = 0.1

// CentralityResult holds normalized betweenness per domain.
type CentralityResult struct {
	Values     map[string]float64
	Mode       Mode
	Samples    int     // pivot sources used, 0 when exact
	ErrorBound float64 // absolute bound on every value with probability 1-delta, 0 when exact
}

// Centrality computes betweenness centrality for every node of a graph.
type Centrality interface {
	Compute(ctx context.Context, g *graph.Graph) (CentralityResult, error)
}

// ExactBetweenness runs Brandes' algorithm from every source over
// unweighted shortest paths.
type ExactBetweenness struct {
	Workers int
}

// Compute returns values normalized to [0, 1].
func (e *ExactBetweenness) Compute(ctx context.Context, g *graph.Graph) (CentralityResult, error) {
	ix := g.Index()
	raw, err := brandes(ctx, ix, identity(ix.Len()), e.Workers)
	if err != nil {
		return CentralityResult{}, err
	}
	return CentralityResult{
		Values: normalize(ix, raw, 1),
		Mode:   ModeExact,
	}, nil
}

// SampledBetweenness runs Brandes' algorithm from Samples pivot sources
// drawn with a seeded generator and scales the sums by n/Samples.
type SampledBetweenness struct {
	Samples int
	Seed    int64
	Workers int
}

// Compute falls back to exact computation when Samples covers every node.
func (s *SampledBetweenness) Compute(ctx context.Context, g *graph.Graph) (CentralityResult, error) {
	ix := g.Index()
	n := ix.Len()
	if s.Samples <= 0 || s.Samples >= n {
		return (&ExactBetweenness{Workers: s.Workers}).Compute(ctx, g)
	}

	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(n)))
	order := rng.Perm(n)
	pivots := order[:s.Samples]

	raw, err := brandes(ctx, ix, pivots, s.Workers)
	if err != nil {
		return CentralityResult{}, err
	}
	return CentralityResult{
		Values:     normalize(ix, raw, float64(n)/float64(s.Samples)),
		Mode:       ModeSampled,
		Samples:    s.Samples,
		ErrorBound: ErrorBound(n, s.Samples),
	}, nil
}

// ErrorBound is the Hoeffding bound sqrt(ln(2n/delta) / 2k) on the absolute
// error of every normalized sampled value, holding simultaneously for all
// n nodes with probability 1-delta.
func ErrorBound(n, samples int) float64 {
	if n == 0 || samples <= 0 {
		return 0
	}
	return math.Sqrt(math.Log(2*float64(n)/sampleDelta) / (2 * float64(samples)))
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// normalize scales raw dependency sums into [0, 1]. Undirected Brandes
// counts each pair from both ends, which cancels the 2 in 2/((n-1)(n-2)).
func normalize(ix *graph.Index, raw []float64, scale float64) map[string]float64 {
	n := ix.Len()
	values := make(map[string]float64, n)
	denom := float64(n-1) * float64(n-2)
	for i, name := range ix.Names {
		v := 0.0
		if n >= 3 {
			v = raw[i] * scale / denom
		}
		values[name] = math.Min(v, 1)
	}
	return values
}

// brandes accumulates dependencies from the given sources. Sources are
// split into contiguous shards, one goroutine each, and shard sums are
// added in shard order so the result does not depend on scheduling.
func brandes(ctx context.Context, ix *graph.Index, sources []int, workers int) ([]float64, error) {
	n := ix.Len()
	if workers <= 0 {
		workers = 1
	}
	if workers > len(sources) {
		workers = len(sources)
	}
	if workers == 0 {
		return make([]float64, n), nil
	}

	partial := make([][]float64, workers)
	chunk := (len(sources) + workers - 1) / workers

	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(sources))
		if lo >= hi {
			partial[w] = make([]float64, n)
			continue
		}
		shard := sources[lo:hi]
		eg.Go(func() error {
			ws := newWorkspace(n)
			for i, s := range shard {
				if i%64 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				ws.single(ix, s)
			}
			partial[w] = ws.bc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := make([]float64, n)
	for _, p := range partial {
		for i, v := range p {
			total[i] += v
		}
	}
	return total, nil
}

// workspace holds per-goroutine buffers for single-source passes.
type workspace struct {
	bc    []float64
	sigma []float64
	delta []float64
	dist  []int
	pred  [][]int
	stack []int
	queue []int
}

func newWorkspace(n int) *workspace {
	return &workspace{
		bc:    make([]float64, n),
		sigma: make([]float64, n),
		delta: make([]float64, n),
		dist:  make([]int, n),
		pred:  make([][]int, n),
		stack: make([]int, 0, n),
		queue: make([]int, 0, n),
	}
}

// single adds the dependencies of source s to ws.bc.
func (ws *workspace) single(ix *graph.Index, s int) {
	for i := range ws.dist {
		ws.dist[i] = -1
		ws.sigma[i] = 0
		ws.delta[i] = 0
		ws.pred[i] = ws.pred[i][:0]
	}
	ws.stack = ws.stack[:0]
	ws.queue = append(ws.queue[:0], s)
	ws.dist[s] = 0
	ws.sigma[s] = 1

	for head := 0; head < len(ws.queue); head++ {
		v := ws.queue[head]
		ws.stack = append(ws.stack, v)
		for _, a := range ix.Adj[v] {
			w := a.To
			if ws.dist[w] < 0 {
				ws.dist[w] = ws.dist[v] + 1
				ws.queue = append(ws.queue, w)
			}
			if ws.dist[w] == ws.dist[v]+1 {
				ws.sigma[w] += ws.sigma[v]
				ws.pred[w] = append(ws.pred[w], v)
			}
		}
	}

	for i := len(ws.stack) - 1; i >= 0; i-- {
		w := ws.stack[i]
		for _, v := range ws.pred[w] {
			ws.delta[v] += ws.sigma[v] / ws.sigma[w] * (1 + ws.delta[w])
		}
		if w != s {
			ws.bc[w] += ws.delta[w]
		}
	}
}
