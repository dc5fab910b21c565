package hub

import (
	"context"
	"sort"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/graph"
	"github.com/dbsmedya/puppetmaster/internal/logger"
)

// Controller heuristic thresholds.
const (
	controllerConfirmed        = 3
	controllerLikely           = 3
	controllerCentrality       = 0.1
	controllerCentralityDegree = 5
)

// Score summarizes one domain's position in the graph.
type Score struct {
	Domain                string
	TotalConnections      int
	SmokingGunConnections int // incident CONFIRMED connections
	LikelyConnections     int // incident LIKELY connections
	Centrality            float64
	PotentialController   bool
}

// Ranking is the ranker output.
type Ranking struct {
	Scores     []Score
	Centrality CentralityResult
}

// Ranker scores every node and orders them by hub likelihood.
type Ranker struct {
	cfg config.CentralityConfig
	log *logger.Logger
}

// NewRanker creates a Ranker.
func NewRanker(cfg config.CentralityConfig, log *logger.Logger) *Ranker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ranker{cfg: cfg, log: log.WithStage("rank")}
}

// CentralityFor picks exact betweenness for graphs of at most
// ExactMaxNodes nodes and sampled betweenness above that.
func (r *Ranker) CentralityFor(n int) Centrality {
	if n <= r.cfg.ExactMaxNodes {
		return &ExactBetweenness{Workers: r.cfg.Workers}
	}
	return &SampledBetweenness{Samples: r.cfg.Samples, Seed: r.cfg.Seed, Workers: r.cfg.Workers}
}

// Rank scores every node of g using the connections g was assembled from.
func (r *Ranker) Rank(ctx context.Context, g *graph.Graph, conns []connection.Connection) (*Ranking, error) {
	return r.RankWith(ctx, r.CentralityFor(g.NodeCount()), g, conns)
}

// RankWith ranks using the given centrality implementation.
func (r *Ranker) RankWith(ctx context.Context, c Centrality, g *graph.Graph, conns []connection.Connection) (*Ranking, error) {
	cr, err := c.Compute(ctx, g)
	if err != nil {
		return nil, err
	}

	confirmed := make(map[string]int)
	likely := make(map[string]int)
	for _, conn := range conns {
		switch conn.Confidence() {
		case connection.Confirmed:
			confirmed[conn.DomainA]++
			confirmed[conn.DomainB]++
		case connection.Likely:
			likely[conn.DomainA]++
			likely[conn.DomainB]++
		}
	}

	nodes := g.Nodes()
	scores := make([]Score, 0, len(nodes))
	for _, d := range nodes {
		s := Score{
			Domain:                d,
			TotalConnections:      g.Degree(d),
			SmokingGunConnections: confirmed[d],
			LikelyConnections:     likely[d],
			Centrality:            cr.Values[d],
		}
		s.PotentialController = potentialController(s)
		scores = append(scores, s)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.SmokingGunConnections != b.SmokingGunConnections {
			return a.SmokingGunConnections > b.SmokingGunConnections
		}
		if a.Centrality != b.Centrality {
			return a.Centrality > b.Centrality
		}
		if a.TotalConnections != b.TotalConnections {
			return a.TotalConnections > b.TotalConnections
		}
		return a.Domain < b.Domain
	})

	r.log.Infow("Hub ranking complete",
		"domains", len(scores),
		"mode", cr.Mode,
		"samples", cr.Samples,
		"error_bound", cr.ErrorBound)

	return &Ranking{Scores: scores, Centrality: cr}, nil
}

func potentialController(s Score) bool {
	switch {
	case s.SmokingGunConnections >= controllerConfirmed:
		return true
	case s.SmokingGunConnections >= 1 && s.LikelyConnections >= controllerLikely:
		return true
	case s.Centrality > controllerCentrality && s.TotalConnections >= controllerCentralityDegree:
		return true
	}
	return false
}
