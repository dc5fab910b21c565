package pipeline

import (
	"time"

	"github.com/dbsmedya/puppetmaster/internal/cluster"
	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/graph"
	"github.com/dbsmedya/puppetmaster/internal/hub"
	"github.com/dbsmedya/puppetmaster/internal/ingest"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// Result is the consolidated output of one run.
type Result struct {
	Signals     []signal.Signal         // sorted by signal.Compare
	Connections []connection.Connection // sorted by (DomainA, DomainB)
	Graph       *graph.Graph
	Clusters    []cluster.Cluster // ordered, IDs 1..n
	Hubs        []hub.Score       // ordered by hub likelihood
	Diagnostics Diagnostics
	StartedAt   time.Time
	Duration    time.Duration
}

// Domains returns every domain that produced at least one signal, sorted.
func (r *Result) Domains() []string {
	if r.Graph == nil {
		return nil
	}
	return r.Graph.Nodes()
}

// FileIssue names an export file that was skipped or cut short.
type FileIssue struct {
	Path   string
	Reason string
}

// Diagnostics summarizes what was dropped and which degraded modes ran.
type Diagnostics struct {
	Ingest        ingest.Stats
	FileIssues    []FileIssue
	Unclassified  int
	SignalsByTier map[signal.Tier]int
	Index         connection.Stats
	Components    int

	Algorithm      cluster.Algorithm
	Fallback       bool
	FallbackReason string
	Modularity     float64

	CentralityMode       hub.Mode
	CentralitySamples    int
	CentralityErrorBound float64
}

// Degraded reports whether fallback clustering or sampled centrality ran.
func (d Diagnostics) Degraded() bool {
	return d.Fallback || d.CentralityMode == hub.ModeSampled
}
