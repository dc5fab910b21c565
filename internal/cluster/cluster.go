package cluster

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/graph"
	"github.com/dbsmedya/puppetmaster/internal/logger"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// Cluster is one group of domains believed to share an owner.
type Cluster struct {
	ID              int
	Members         []string // sorted
	Hub             string
	Confidence      connection.Confidence
	SmokingGunCount int // distinct smoking-gun values inside the cluster
	StrongCount     int // distinct strong values inside the cluster
	InternalEdges   int
	InternalScore   float64
}

// Size returns the number of members.
func (c Cluster) Size() int { return len(c.Members) }

// Partition is the outcome of one clustering run.
type Partition struct {
	Clusters       []Cluster
	Algorithm      Algorithm
	Fallback       bool
	FallbackReason string
	Modularity     float64
}

// Partitioner runs the configured primary engine and falls back to label
// propagation when a primary Louvain cannot serve the graph.
type Partitioner struct {
	primary    Engine
	fallback   Engine
	resolution float64
	log        *logger.Logger
}

// NewPartitioner builds engines from configuration.
func NewPartitioner(cfg config.ClusteringConfig, log *logger.Logger) *Partitioner {
	lp := &LabelPropagation{MaxIterations: cfg.MaxIterations}
	if Algorithm(cfg.Algorithm) == AlgorithmLabelPropagation {
		return NewPartitionerWith(lp, nil, cfg.Resolution, log)
	}

	louvain := &Louvain{
		Resolution: cfg.Resolution,
		MaxLevels:  cfg.MaxLevels,
		MaxNodes:   cfg.MaxNodes,
		Seed:       cfg.Seed,
	}
	return NewPartitionerWith(louvain, lp, cfg.Resolution, log)
}

// NewPartitionerWith uses the given engines. fallback may be nil.
func NewPartitionerWith(primary, fallback Engine, resolution float64, log *logger.Logger) *Partitioner {
	if log == nil {
		log = logger.NewNop()
	}
	if resolution <= 0 {
		resolution = 1
	}
	return &Partitioner{primary: primary, fallback: fallback, resolution: resolution, log: log.WithStage("cluster")}
}

// Partition clusters g. conns must be the connections g was assembled from;
// they supply the signals behind each cluster's confidence.
func (p *Partitioner) Partition(g *graph.Graph, conns []connection.Connection) (*Partition, error) {
	result := &Partition{Algorithm: p.primary.Name()}

	communities, err := p.primary.Partition(g)
	if err != nil {
		var inv *graph.InvariantError
		if p.fallback == nil || errors.As(err, &inv) {
			return nil, fmt.Errorf("%s clustering failed: %w", p.primary.Name(), err)
		}
		p.log.Warnw("Primary clustering unavailable, falling back",
			"primary", p.primary.Name(), "fallback", p.fallback.Name(), "reason", err)
		result.Algorithm = p.fallback.Name()
		result.Fallback = true
		result.FallbackReason = err.Error()

		communities, err = p.fallback.Partition(g)
		if err != nil {
			return nil, fmt.Errorf("%s clustering failed: %w", p.fallback.Name(), err)
		}
	}

	if err := checkPartition(g, communities); err != nil {
		return nil, err
	}

	result.Modularity = Modularity(g, communities, p.resolution)
	result.Clusters = summarize(communities, conns)

	p.log.Infow("Clustering complete",
		"algorithm", result.Algorithm,
		"clusters", len(result.Clusters),
		"modularity", result.Modularity,
		"fallback", result.Fallback)

	return result, nil
}

// checkPartition verifies that every node appears in exactly one community
// and that no community names an unknown node.
func checkPartition(g *graph.Graph, communities [][]string) error {
	seen := make(map[string]bool, g.NodeCount())
	for _, members := range communities {
		if len(members) == 0 {
			return &graph.InvariantError{Violation: "empty cluster"}
		}
		for _, m := range members {
			if !g.HasNode(m) {
				return &graph.InvariantError{Violation: "cluster member is not a graph node", Nodes: []string{m}}
			}
			if seen[m] {
				return &graph.InvariantError{Violation: "node assigned to more than one cluster", Nodes: []string{m}}
			}
			seen[m] = true
		}
	}

	var missing []string
	for _, n := range g.Nodes() {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &graph.InvariantError{Violation: "node assigned to no cluster", Nodes: missing}
	}
	return nil
}

type tally struct {
	members    []string
	degree     map[string]int
	score      map[string]float64
	smokingGun map[signal.Key]bool
	strong     map[signal.Key]bool
	edges      int
	total      float64
}

// summarize grades, orders and numbers the communities.
func summarize(communities [][]string, conns []connection.Connection) []Cluster {
	owner := make(map[string]int)
	tallies := make([]*tally, len(communities))
	for i, members := range communities {
		sorted := append([]string(nil), members...)
		sort.Strings(sorted)
		tallies[i] = &tally{
			members:    sorted,
			degree:     make(map[string]int),
			score:      make(map[string]float64),
			smokingGun: make(map[signal.Key]bool),
			strong:     make(map[signal.Key]bool),
		}
		for _, m := range sorted {
			owner[m] = i
		}
	}

	for _, c := range conns {
		ia, okA := owner[c.DomainA]
		ib, okB := owner[c.DomainB]
		if !okA || !okB || ia != ib {
			continue
		}
		t := tallies[ia]
		t.edges++
		t.total += c.Score
		t.degree[c.DomainA]++
		t.degree[c.DomainB]++
		t.score[c.DomainA] += c.Score
		t.score[c.DomainB] += c.Score
		for _, s := range c.Signals {
			switch s.Tier {
			case signal.SmokingGun:
				t.smokingGun[s.Key()] = true
			case signal.Strong:
				t.strong[s.Key()] = true
			}
		}
	}

	clusters := make([]Cluster, len(tallies))
	for i, t := range tallies {
		clusters[i] = Cluster{
			Members:         t.members,
			Hub:             t.hub(),
			Confidence:      connection.ConfidenceFor(len(t.smokingGun), len(t.strong)),
			SmokingGunCount: len(t.smokingGun),
			StrongCount:     len(t.strong),
			InternalEdges:   t.edges,
			InternalScore:   t.total,
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.Confidence != b.Confidence {
			return a.Confidence < b.Confidence
		}
		if len(a.Members) != len(b.Members) {
			return len(a.Members) > len(b.Members)
		}
		return a.Hub < b.Hub
	})
	for i := range clusters {
		clusters[i].ID = i + 1
	}
	return clusters
}

// hub picks the member with the highest intra-cluster degree, then the
// highest intra-cluster score, then the smallest name.
func (t *tally) hub() string {
	best := t.members[0]
	for _, m := range t.members[1:] {
		switch {
		case t.degree[m] > t.degree[best]:
			best = m
		case t.degree[m] == t.degree[best] && t.score[m] > t.score[best]:
			best = m
		}
	}
	return best
}
