package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/puppetmaster/internal/cluster"
	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/graph"
	"github.com/dbsmedya/puppetmaster/internal/hub"
	"github.com/dbsmedya/puppetmaster/internal/pipeline"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

func sig(domain string, typ signal.Type, tier signal.Tier, value string) signal.Signal {
	return signal.Signal{
		Domain:     domain,
		Type:       typ,
		Tier:       tier,
		Value:      value,
		Normalized: signal.Normalize(value),
		Module:     "sfp_test",
	}
}

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()

	ga := signal.TypeGoogleAnalytics
	signals := []signal.Signal{
		sig("alpha.com", ga, signal.SmokingGun, "UA-1234567-1"),
		sig("beta.com", ga, signal.SmokingGun, "UA-1234567-1"),
		sig("alpha.com", signal.TypePhone, signal.Strong, "+1 555 0100"),
		sig("gamma.com", signal.TypePhone, signal.Strong, "+1 555 0100"),
		sig("gamma.com", signal.TypeCountry, signal.Weak, "=HYPERLINK(\"x\")"),
	}

	conns := []connection.Connection{
		{
			DomainA: "alpha.com",
			DomainB: "beta.com",
			Signals: []signal.Signal{signals[0]},
			Score:   connection.Score(1, 0, 0),
		},
		{
			DomainA: "alpha.com",
			DomainB: "gamma.com",
			Signals: []signal.Signal{signals[2]},
			Score:   connection.Score(0, 1, 0),
		},
	}

	g, err := graph.Assemble([]string{"alpha.com", "beta.com", "gamma.com"}, conns)
	require.NoError(t, err)

	return &pipeline.Result{
		Signals:     signals,
		Connections: conns,
		Graph:       g,
		Clusters: []cluster.Cluster{
			{
				ID:              1,
				Members:         []string{"alpha.com", "beta.com", "gamma.com"},
				Hub:             "alpha.com",
				Confidence:      connection.Confirmed,
				SmokingGunCount: 1,
				StrongCount:     1,
				InternalEdges:   2,
				InternalScore:   conns[0].Score + conns[1].Score,
			},
		},
		Hubs: []hub.Score{
			{Domain: "alpha.com", TotalConnections: 2, SmokingGunConnections: 1, Centrality: 1, PotentialController: false},
			{Domain: "beta.com", TotalConnections: 1, SmokingGunConnections: 1},
			{Domain: "gamma.com", TotalConnections: 1},
		},
		Diagnostics: pipeline.Diagnostics{
			SignalsByTier:  map[signal.Tier]int{signal.SmokingGun: 2, signal.Strong: 2, signal.Weak: 1},
			Algorithm:      cluster.AlgorithmLouvain,
			CentralityMode: hub.ModeExact,
		},
		Duration: 1500 * time.Millisecond,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"example.com", "example.com"},
		{"=SUM(A1)", "'=SUM(A1)"},
		{"+1 555 0100", "'+1 555 0100"},
		{"-2", "'-2"},
		{"@admin", "'@admin"},
		{"\tx", "'\tx"},
		{"\rx", "'\rx"},
		{"\nx", "'\nx"},
		{"a=b", "a=b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res := sampleResult(t)

	paths, err := NewWriter(dir, nil).WriteAll(res)
	require.NoError(t, err)
	require.Len(t, paths, 7)
	for i, name := range []string{SignalsFile, ConnectionsFile, SmokingGunsFile, ClustersFile, HubsFile, GraphMLFile, ExecutiveSummaryFile} {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
	}

	t.Run("signals", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, SignalsFile))
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"Signal Type", "Tier", "Value", "Domain Count", "Domains"}, rows[0])
		assert.Equal(t, []string{"google_analytics", "SMOKING_GUN", "UA-1234567-1", "2", "alpha.com; beta.com"}, rows[1])
		assert.Equal(t, []string{"phone", "STRONG", "'+1 555 0100", "2", "alpha.com; gamma.com"}, rows[2])
		assert.Equal(t, "'=HYPERLINK(\"x\")", rows[3][2])
	})

	t.Run("connections", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, ConnectionsFile))
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"alpha.com", "beta.com", "CONFIRMED", "110.00", "1", "0", "0", "google_analytics:UA-1234567-1"}, rows[1])
		assert.Equal(t, "POSSIBLE", rows[2][2])
	})

	t.Run("smoking guns", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, SmokingGunsFile))
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"alpha.com", "beta.com", "google_analytics", "UA-1234567-1", "sfp_test"}, rows[1])
	})

	t.Run("clusters", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, ClustersFile))
		require.Len(t, rows, 2)
		assert.Equal(t, "1", rows[1][0])
		assert.Equal(t, "CONFIRMED", rows[1][1])
		assert.Equal(t, "3", rows[1][2])
		assert.Equal(t, "alpha.com", rows[1][3])
		assert.Equal(t, "alpha.com; beta.com; gamma.com", rows[1][8])
	})

	t.Run("hubs", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, HubsFile))
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"1", "alpha.com", "2", "1", "0", "1.000000", "false"}, rows[1])
		assert.Equal(t, "gamma.com", rows[3][1])
	})
}

func TestWriteAllEmptyResult(t *testing.T) {
	dir := t.TempDir()

	paths, err := NewWriter(dir, nil).WriteAll(&pipeline.Result{})
	require.NoError(t, err)

	for _, p := range paths {
		if filepath.Ext(p) != ".csv" {
			assert.FileExists(t, p)
			continue
		}
		rows := readCSV(t, p)
		assert.Len(t, rows, 1, "only the header in %s", filepath.Base(p))
	}
}

func TestWriteAllErrors(t *testing.T) {
	_, err := NewWriter(t.TempDir(), nil).WriteAll(nil)
	assert.Error(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	_, err = NewWriter(filepath.Join(blocker, "sub"), nil).WriteAll(&pipeline.Result{})
	assert.Error(t, err)
}

func TestJoinCapped(t *testing.T) {
	items := make([]string, 25)
	for i := range items {
		items[i] = "d"
	}
	got := joinCapped(items, 20)
	assert.True(t, strings.HasSuffix(got, "... (+5 more)"))
	assert.Equal(t, "a; b", joinCapped([]string{"a", "b"}, 20))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "日本", truncate("日本語", 2))
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, sampleResult(t), SummaryOptions{}))
	out := buf.String()

	assert.Contains(t, out, "PuppetMaster Analysis")
	assert.Regexp(t, `Duration\s+1\.5s`, out)
	assert.Contains(t, out, "alpha.com, beta.com, gamma.com")
	assert.Contains(t, out, "UA-1234567-1")
	assert.NotContains(t, out, "degraded")
	assert.NotContains(t, out, "\x1b[", "no ANSI codes without Color")
}

func TestSummaryDegraded(t *testing.T) {
	res := sampleResult(t)
	res.Diagnostics.Fallback = true
	res.Diagnostics.FallbackReason = "too large"
	res.Diagnostics.Algorithm = cluster.AlgorithmLabelPropagation
	res.Diagnostics.CentralityMode = hub.ModeSampled
	res.Diagnostics.CentralitySamples = 2
	res.Diagnostics.CentralityErrorBound = 0.5
	res.Diagnostics.FileIssues = []pipeline.FileIssue{{Path: "broken.csv", Reason: "unknown layout"}}

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, res, SummaryOptions{}))
	out := buf.String()

	assert.Contains(t, out, "degraded clustering fell back to label_propagation: too large")
	assert.Contains(t, out, "degraded centrality sampled from 2 sources (error bound 0.5000)")
	assert.Contains(t, out, "skipped broken.csv: unknown layout")
}

func TestSummaryLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, sampleResult(t), SummaryOptions{Limit: 1}))
	assert.Contains(t, buf.String(), "... and 2 more")
}

func TestSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, &pipeline.Result{}, SummaryOptions{}))
	out := buf.String()

	assert.Contains(t, out, "no clusters")
	assert.Contains(t, out, "no hubs")
	assert.Contains(t, out, "no smoking guns")
}

func TestTableAlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer

	tbl := NewTable(&buf, "Domain", "N")
	tbl.Add("例え.jp", "1")
	tbl.Add("ab.com", "2")
	require.NoError(t, tbl.Render())
	assert.Equal(t, 2, tbl.Len())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	// Both data rows put the second column at the same display offset.
	assert.Equal(t, "例え.jp  1", lines[2])
	assert.Equal(t, "ab.com   2", lines[3])
}

func TestTableTruncatesAndStyles(t *testing.T) {
	var buf bytes.Buffer

	tbl := NewTable(&buf, "Value")
	tbl.MaxWidth = 8
	tbl.AddStyled(confidenceStyles[connection.Confirmed], "abcdefghijkl")
	require.NoError(t, tbl.Render())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "abcde...", lines[2])
	assert.Equal(t, "--------", lines[1])
}
