// Package metrics exposes run results as Prometheus gauges for the
// node-exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/hub"
	"github.com/dbsmedya/puppetmaster/internal/pipeline"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

const namespace = "puppetmaster"

// Metrics holds the gauges of one run.
type Metrics struct {
	registry *prometheus.Registry

	files       *prometheus.GaugeVec
	rows        *prometheus.GaugeVec
	domains     prometheus.Gauge
	signals     *prometheus.GaugeVec
	connections *prometheus.GaugeVec
	clusters    *prometheus.GaugeVec
	degraded    *prometheus.GaugeVec
	errorBound  prometheus.Gauge
	modularity  prometheus.Gauge
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
}

// New registers every gauge on a private registry. label is attached to
// all series as the run label.
func New(label string) *Metrics {
	constLabels := prometheus.Labels{"run": label}
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.files = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "files",
		Help:        "Export files by outcome",
		ConstLabels: constLabels,
	}, []string{"state"})
	m.rows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "rows",
		Help:        "Export rows by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	m.domains = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "domains",
		Help:        "Domains with at least one signal",
		ConstLabels: constLabels,
	})
	m.signals = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "signals",
		Help:        "Extracted signals by tier",
		ConstLabels: constLabels,
	}, []string{"tier"})
	m.connections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "connections",
		Help:        "Domain connections by confidence",
		ConstLabels: constLabels,
	}, []string{"confidence"})
	m.clusters = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "clusters",
		Help:        "Clusters by confidence",
		ConstLabels: constLabels,
	}, []string{"confidence"})
	m.degraded = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "degraded",
		Help:        "1 when the named degraded mode ran",
		ConstLabels: constLabels,
	}, []string{"mode"})
	m.errorBound = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "centrality_error_bound",
		Help:        "Absolute error bound of sampled centrality, 0 when exact",
		ConstLabels: constLabels,
	})
	m.modularity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "modularity",
		Help:        "Weighted modularity of the cluster partition",
		ConstLabels: constLabels,
	})
	m.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "run_duration_seconds",
		Help:        "Wall time of the analysis run",
		ConstLabels: constLabels,
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the analysis run started",
		ConstLabels: constLabels,
	})

	m.registry.MustRegister(
		m.files, m.rows, m.domains, m.signals, m.connections, m.clusters,
		m.degraded, m.errorBound, m.modularity, m.duration, m.lastRun,
	)
	return m
}

// Observe sets every gauge from res. Every tier and confidence is written,
// including zeros, so series do not disappear between runs.
func (m *Metrics) Observe(res *pipeline.Result) {
	d := res.Diagnostics

	m.files.WithLabelValues("seen").Set(float64(d.Ingest.FilesSeen))
	m.files.WithLabelValues("parsed").Set(float64(d.Ingest.FilesParsed))
	m.files.WithLabelValues("skipped").Set(float64(d.Ingest.FilesSkipped))

	m.rows.WithLabelValues("read").Set(float64(d.Ingest.RowsRead))
	m.rows.WithLabelValues("malformed").Set(float64(d.Ingest.RowsMalformed))
	m.rows.WithLabelValues("false_positive").Set(float64(d.Ingest.FalsePositives))
	m.rows.WithLabelValues("blacklisted").Set(float64(d.Ingest.Blacklisted))
	m.rows.WithLabelValues("invalid_domain").Set(float64(d.Ingest.InvalidDomains))
	m.rows.WithLabelValues("unclassified").Set(float64(d.Unclassified))

	m.domains.Set(float64(len(res.Domains())))

	for _, tier := range signal.Tiers {
		m.signals.WithLabelValues(tier.String()).Set(float64(d.SignalsByTier[tier]))
	}

	connCounts := make(map[connection.Confidence]int)
	for _, c := range res.Connections {
		connCounts[c.Confidence()]++
	}
	clusterCounts := make(map[connection.Confidence]int)
	for _, c := range res.Clusters {
		clusterCounts[c.Confidence]++
	}
	for _, conf := range connection.Confidences {
		m.connections.WithLabelValues(conf.String()).Set(float64(connCounts[conf]))
		m.clusters.WithLabelValues(conf.String()).Set(float64(clusterCounts[conf]))
	}

	m.degraded.WithLabelValues("fallback_clustering").Set(boolGauge(d.Fallback))
	m.degraded.WithLabelValues("sampled_centrality").Set(boolGauge(d.CentralityMode == hub.ModeSampled))
	m.errorBound.Set(d.CentralityErrorBound)
	m.modularity.Set(d.Modularity)
	m.duration.Set(res.Duration.Seconds())
	if !res.StartedAt.IsZero() {
		m.lastRun.Set(float64(res.StartedAt.Unix()))
	}
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically replacing any previous file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
