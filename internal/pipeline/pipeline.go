// Package pipeline sequences ingestion, classification, connection building,
// graph assembly, clustering and hub ranking into one run.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dbsmedya/puppetmaster/internal/blacklist"
	"github.com/dbsmedya/puppetmaster/internal/cluster"
	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/graph"
	"github.com/dbsmedya/puppetmaster/internal/hub"
	"github.com/dbsmedya/puppetmaster/internal/ingest"
	"github.com/dbsmedya/puppetmaster/internal/logger"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// Pipeline runs the analysis over one export directory.
type Pipeline struct {
	cfg         *config.Config
	classifier  *signal.Classifier
	ingestor    *ingest.Ingestor
	builder     *connection.Builder
	partitioner *cluster.Partitioner
	ranker      *hub.Ranker
	logger      *logger.Logger
}

// New creates a Pipeline. A nil ruleset selects the built-in rules and a
// nil blacklist blocks nothing.
func New(cfg *config.Config, rs *signal.Ruleset, bl *blacklist.Blacklist, log *logger.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if rs == nil {
		rs = signal.Default()
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Pipeline{
		cfg:         cfg,
		classifier:  signal.NewClassifier(rs),
		ingestor:    ingest.New(cfg.Input, bl, log),
		builder:     connection.NewBuilder(cfg.Connections, log),
		partitioner: cluster.NewPartitioner(cfg.Clustering, log),
		ranker:      hub.NewRanker(cfg.Centrality, log),
		logger:      log,
	}, nil
}

// fileSink classifies the records of one file into a private slice.
type fileSink struct {
	classifier   *signal.Classifier
	signals      []signal.Signal
	unclassified int
}

func (s *fileSink) Add(rec ingest.Record) {
	sig, ok := s.classifier.Classify(rec)
	if !ok {
		s.unclassified++
		return
	}
	s.signals = append(s.signals, sig)
}

// Run executes every stage. It fails only on an unreadable input
// directory, a cancelled context, or a violated graph invariant; it never
// returns a partial result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	result := &Result{StartedAt: started}

	p.logger.Infow("Starting analysis", "input", p.cfg.Input.Dir, "rules", p.classifier.Ruleset().Len())

	var mu sync.Mutex
	var sinks []*fileSink
	summary, err := p.ingestor.Run(ctx, p.cfg.Input.Dir, func(string) ingest.Sink {
		s := &fileSink{classifier: p.classifier}
		mu.Lock()
		sinks = append(sinks, s)
		mu.Unlock()
		return s
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}

	diag := &result.Diagnostics
	diag.Ingest = summary.Stats
	for _, f := range summary.Files {
		if f.Skipped || f.Reason != "" {
			diag.FileIssues = append(diag.FileIssues, FileIssue{Path: f.Path, Reason: f.Reason})
		}
	}

	var signals []signal.Signal
	for _, s := range sinks {
		signals = append(signals, s.signals...)
		diag.Unclassified += s.unclassified
	}
	slices.SortFunc(signals, signal.Compare)
	result.Signals = signals

	diag.SignalsByTier = make(map[signal.Tier]int, len(signal.Tiers))
	for _, s := range signals {
		diag.SignalsByTier[s.Tier]++
	}
	p.logger.Infow("Signals extracted", "signals", len(signals), "unclassified", diag.Unclassified)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conns, stats := p.builder.Build(signals)
	result.Connections = conns
	diag.Index = stats
	p.logger.Infow("Connections built",
		"connections", stats.Connections,
		"shared_buckets", stats.SharedBuckets,
		"skipped_weak_buckets", stats.SkippedWeakBuckets)

	g, err := graph.Assemble(domainsOf(signals), conns)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	result.Graph = g
	diag.Components = len(g.Components())
	glog := p.logger.WithFields(map[string]interface{}{
		"nodes":      g.NodeCount(),
		"edges":      g.EdgeCount(),
		"components": diag.Components,
	})
	glog.Debug("Graph assembled")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	partition, err := p.partitioner.Partition(g, conns)
	if err != nil {
		return nil, err
	}
	result.Clusters = partition.Clusters
	diag.Algorithm = partition.Algorithm
	diag.Fallback = partition.Fallback
	diag.FallbackReason = partition.FallbackReason
	diag.Modularity = partition.Modularity

	ranking, err := p.ranker.Rank(ctx, g, conns)
	if err != nil {
		return nil, fmt.Errorf("hub ranking failed: %w", err)
	}
	result.Hubs = ranking.Scores
	diag.CentralityMode = ranking.Centrality.Mode
	diag.CentralitySamples = ranking.Centrality.Samples
	diag.CentralityErrorBound = ranking.Centrality.ErrorBound

	result.Duration = time.Since(started)

	glog.Infow("Analysis complete",
		"clusters", len(result.Clusters),
		"algorithm", diag.Algorithm,
		"degraded", diag.Degraded(),
		"duration", result.Duration)

	return result, nil
}

// domainsOf returns the distinct signal domains in sorted order.
func domainsOf(signals []signal.Signal) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range signals {
		if _, ok := seen[s.Domain]; ok {
			continue
		}
		seen[s.Domain] = struct{}{}
		out = append(out, s.Domain)
	}
	slices.Sort(out)
	return out
}
