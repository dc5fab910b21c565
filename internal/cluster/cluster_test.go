package cluster

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/graph"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

func sig(typ signal.Type, tier signal.Tier, value string) signal.Signal {
	return signal.Signal{Type: typ, Tier: tier, Value: value, Normalized: signal.Normalize(value)}
}

func link(a, b string, signals ...signal.Signal) connection.Connection {
	if b < a {
		a, b = b, a
	}
	c := connection.Connection{DomainA: a, DomainB: b}
	for _, s := range signals {
		s.Domain = a
		c.Signals = append(c.Signals, s)
	}
	c.Score = connection.Score(c.SmokingGunCount(), c.StrongCount(), c.WeakCount())
	return c
}

// twoGroups is a smoking-gun triangle and a strong triangle joined by one
// weak edge, plus an isolated domain.
func twoGroups(t *testing.T) (*graph.Graph, []connection.Connection) {
	t.Helper()
	ga := sig(signal.TypeGoogleAnalytics, signal.SmokingGun, "UA-1111")
	phone := sig(signal.TypePhone, signal.Strong, "+15550100")
	country := sig(signal.TypeCountry, signal.Weak, "US")

	conns := []connection.Connection{
		link("a.com", "b.com", ga),
		link("a.com", "c.com", ga),
		link("b.com", "c.com", ga),
		link("c.com", "d.com", country),
		link("d.com", "e.com", phone),
		link("d.com", "f.com", phone),
		link("e.com", "f.com", phone),
	}
	domains := []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "z.com"}
	g, err := graph.Assemble(domains, conns)
	require.NoError(t, err)
	return g, conns
}

func members(p *Partition) [][]string {
	out := make([][]string, 0, len(p.Clusters))
	for _, c := range p.Clusters {
		out = append(out, c.Members)
	}
	return out
}

func assertPartitions(t *testing.T, g *graph.Graph, p *Partition) {
	t.Helper()
	seen := make(map[string]int)
	for _, c := range p.Clusters {
		require.NotEmpty(t, c.Members)
		assert.Contains(t, c.Members, c.Hub)
		for _, m := range c.Members {
			seen[m]++
		}
	}
	for _, n := range g.Nodes() {
		assert.Equal(t, 1, seen[n], "node %s", n)
	}
	assert.Len(t, seen, g.NodeCount())
}

func TestLouvainPartition(t *testing.T) {
	g, conns := twoGroups(t)
	p, err := NewPartitioner(config.DefaultConfig().Clustering, nil).Partition(g, conns)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmLouvain, p.Algorithm)
	assert.False(t, p.Fallback)
	assert.Greater(t, p.Modularity, 0.0)
	assertPartitions(t, g, p)

	require.Len(t, p.Clusters, 3)

	first := p.Clusters[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, first.Members)
	assert.Equal(t, connection.Confirmed, first.Confidence)
	assert.Equal(t, 1, first.SmokingGunCount)
	assert.Equal(t, 3, first.InternalEdges)
	assert.Equal(t, "a.com", first.Hub)

	second := p.Clusters[1]
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, []string{"d.com", "e.com", "f.com"}, second.Members)
	assert.Equal(t, connection.Possible, second.Confidence, "one distinct strong value is POSSIBLE")
	assert.Equal(t, 1, second.StrongCount)

	third := p.Clusters[2]
	assert.Equal(t, 3, third.ID)
	assert.Equal(t, []string{"z.com"}, third.Members)
	assert.Equal(t, connection.Weak, third.Confidence)
	assert.Equal(t, "z.com", third.Hub)
	assert.Zero(t, third.InternalEdges)
}

func TestLabelPropagationExplicit(t *testing.T) {
	g, conns := twoGroups(t)
	cfg := config.DefaultConfig().Clustering
	cfg.Algorithm = config.AlgorithmLabelPropagation

	p, err := NewPartitioner(cfg, nil).Partition(g, conns)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmLabelPropagation, p.Algorithm)
	assert.False(t, p.Fallback, "explicit choice is not a fallback")
	assertPartitions(t, g, p)
	assert.Equal(t, [][]string{
		{"a.com", "b.com", "c.com"},
		{"d.com", "e.com", "f.com"},
		{"z.com"},
	}, members(p))
}

func TestFallbackWhenLouvainTooLarge(t *testing.T) {
	g, conns := twoGroups(t)
	cfg := config.DefaultConfig().Clustering
	cfg.MaxNodes = 2

	p, err := NewPartitioner(cfg, nil).Partition(g, conns)
	require.NoError(t, err)

	assert.True(t, p.Fallback)
	assert.Equal(t, AlgorithmLabelPropagation, p.Algorithm)
	assert.Contains(t, p.FallbackReason, "exceeds")
	assertPartitions(t, g, p)
}

func TestLouvainTooLarge(t *testing.T) {
	g, _ := twoGroups(t)
	_, err := (&Louvain{MaxNodes: 3}).Partition(g)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestSingletons(t *testing.T) {
	g := graph.New()
	for _, d := range []string{"c.com", "a.com", "b.com"} {
		g.AddNode(d)
	}

	p, err := NewPartitioner(config.DefaultConfig().Clustering, nil).Partition(g, nil)
	require.NoError(t, err)
	require.Len(t, p.Clusters, 3)
	for i, want := range []string{"a.com", "b.com", "c.com"} {
		c := p.Clusters[i]
		assert.Equal(t, i+1, c.ID)
		assert.Equal(t, []string{want}, c.Members)
		assert.Equal(t, want, c.Hub)
		assert.Equal(t, connection.Weak, c.Confidence)
	}
	assert.Zero(t, p.Modularity)
}

func TestEmptyGraph(t *testing.T) {
	p, err := NewPartitioner(config.DefaultConfig().Clustering, nil).Partition(graph.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, p.Clusters)
}

func TestConfidenceBoundary(t *testing.T) {
	phone := sig(signal.TypePhone, signal.Strong, "+15550100")
	email := sig(signal.TypeEmail, signal.Strong, "owner@example.org")
	ga := sig(signal.TypeGoogleAnalytics, signal.SmokingGun, "UA-1")
	country := sig(signal.TypeCountry, signal.Weak, "US")

	tests := []struct {
		name  string
		conns []connection.Connection
		want  connection.Confidence
	}{
		{
			name:  "repeated strong value counts once",
			conns: []connection.Connection{link("x.com", "y.com", phone), link("y.com", "z.com", phone)},
			want:  connection.Possible,
		},
		{
			name:  "two distinct strong values",
			conns: []connection.Connection{link("x.com", "y.com", phone), link("y.com", "z.com", email)},
			want:  connection.Likely,
		},
		{
			name:  "one smoking gun",
			conns: []connection.Connection{link("x.com", "y.com", ga), link("y.com", "z.com", country)},
			want:  connection.Confirmed,
		},
		{
			name:  "weak only",
			conns: []connection.Connection{link("x.com", "y.com", country), link("y.com", "z.com", country)},
			want:  connection.Weak,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters := summarize([][]string{{"z.com", "x.com", "y.com"}}, tt.conns)
			require.Len(t, clusters, 1)
			assert.Equal(t, tt.want, clusters[0].Confidence)
			assert.Equal(t, []string{"x.com", "y.com", "z.com"}, clusters[0].Members)
			assert.Equal(t, "y.com", clusters[0].Hub)
		})
	}
}

func TestHubTieBreaks(t *testing.T) {
	ga := sig(signal.TypeGoogleAnalytics, signal.SmokingGun, "UA-1")
	phone := sig(signal.TypePhone, signal.Strong, "+15550100")

	// b and c both have degree 2; c carries more score.
	conns := []connection.Connection{
		link("a.com", "b.com", phone),
		link("b.com", "c.com", phone),
		link("c.com", "d.com", ga),
	}
	clusters := summarize([][]string{{"a.com", "b.com", "c.com", "d.com"}}, conns)
	require.Len(t, clusters, 1)
	assert.Equal(t, "c.com", clusters[0].Hub)
	assert.Equal(t, 3, clusters[0].InternalEdges)
}

func TestClusterOrdering(t *testing.T) {
	ga := sig(signal.TypeGoogleAnalytics, signal.SmokingGun, "UA-1")
	phone := sig(signal.TypePhone, signal.Strong, "+15550100")

	conns := []connection.Connection{
		link("p1.com", "p2.com", phone),
		link("q1.com", "q2.com", phone),
		link("q2.com", "q3.com", phone),
		link("s1.com", "s2.com", ga),
	}
	clusters := summarize([][]string{
		{"solo.com"},
		{"p1.com", "p2.com"},
		{"q1.com", "q2.com", "q3.com"},
		{"s1.com", "s2.com"},
	}, conns)

	var hubs []string
	for i, c := range clusters {
		assert.Equal(t, i+1, c.ID)
		hubs = append(hubs, c.Hub)
	}
	assert.Equal(t, []string{"s1.com", "q2.com", "p1.com", "solo.com"}, hubs)
}

type stubEngine struct {
	name   Algorithm
	result [][]string
	err    error
}

func (s *stubEngine) Name() Algorithm { return s.name }

func (s *stubEngine) Partition(*graph.Graph) ([][]string, error) { return s.result, s.err }

func TestPartitionInvariantViolations(t *testing.T) {
	g, conns := twoGroups(t)

	tests := []struct {
		name   string
		result [][]string
		nodes  []string
	}{
		{"duplicate", [][]string{{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "z.com"}, {"a.com"}}, []string{"a.com"}},
		{"missing", [][]string{{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com"}}, []string{"z.com"}},
		{"unknown", [][]string{{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "z.com", "x.com"}}, []string{"x.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPartitionerWith(&stubEngine{name: "stub", result: tt.result}, nil, 1, nil)
			_, err := p.Partition(g, conns)
			var inv *graph.InvariantError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tt.nodes, inv.Nodes)
		})
	}
}

func TestPrimaryErrorWithoutFallback(t *testing.T) {
	g, conns := twoGroups(t)
	p := NewPartitionerWith(&stubEngine{name: "stub", err: fmt.Errorf("boom")}, nil, 1, nil)
	_, err := p.Partition(g, conns)
	assert.ErrorContains(t, err, "boom")
}

func ring(t *testing.T, n int) (*graph.Graph, []connection.Connection) {
	t.Helper()
	phone := sig(signal.TypePhone, signal.Strong, "+1")
	var domains []string
	for i := 0; i < n; i++ {
		domains = append(domains, fmt.Sprintf("d%03d.com", i))
	}
	seen := make(map[[2]string]bool)
	var conns []connection.Connection
	add := func(i, j int) {
		c := link(domains[i], domains[j], phone)
		key := [2]string{c.DomainA, c.DomainB}
		if i == j || seen[key] {
			return
		}
		seen[key] = true
		conns = append(conns, c)
	}
	for i := 0; i < n; i++ {
		add(i, (i+1)%n)
		add(i, (i*7+3)%n)
	}
	g, err := graph.Assemble(domains, conns)
	require.NoError(t, err)
	return g, conns
}

func TestPartitionInvariantAcrossEngines(t *testing.T) {
	g, conns := ring(t, 60)

	engines := []Engine{
		&Louvain{Resolution: 1, MaxLevels: 10},
		&Louvain{Resolution: 1, MaxLevels: 10, Seed: 42},
		&Louvain{Resolution: 0.5, MaxLevels: 1},
		&LabelPropagation{MaxIterations: 100},
	}
	for _, e := range engines {
		p, err := NewPartitionerWith(e, nil, 1, nil).Partition(g, conns)
		require.NoError(t, err, string(e.Name()))
		assertPartitions(t, g, p)
	}
}

func TestDeterminism(t *testing.T) {
	g, conns := ring(t, 40)

	for _, seed := range []int64{0, 7} {
		cfg := config.DefaultConfig().Clustering
		cfg.Seed = seed
		first, err := NewPartitioner(cfg, nil).Partition(g, conns)
		require.NoError(t, err)
		second, err := NewPartitioner(cfg, nil).Partition(g, conns)
		require.NoError(t, err)
		assert.Equal(t, first, second, "seed %d", seed)
	}
}

func TestModularity(t *testing.T) {
	g := graph.New()
	for _, d := range []string{"a.com", "b.com", "c.com", "d.com"} {
		g.AddNode(d)
	}
	require.NoError(t, g.AddEdge("a.com", "b.com", 1))
	require.NoError(t, g.AddEdge("c.com", "d.com", 1))

	assert.InDelta(t, 0.5, Modularity(g, [][]string{{"a.com", "b.com"}, {"c.com", "d.com"}}, 1), 1e-9)
	assert.InDelta(t, 0.0, Modularity(g, [][]string{{"a.com", "b.com", "c.com", "d.com"}}, 1), 1e-9)
	assert.Zero(t, Modularity(graph.New(), nil, 1))
}
