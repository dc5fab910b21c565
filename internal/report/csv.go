// Package report renders analysis results as CSV files, GraphML, a Markdown
// executive summary and terminal tables.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/logger"
	"github.com/dbsmedya/puppetmaster/internal/pipeline"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// Report file names.
const (
	SignalsFile     = "signals.csv"
	ConnectionsFile = "connections.csv"
	SmokingGunsFile = "smoking_guns.csv"
	ClustersFile    = "clusters.csv"
	HubsFile        = "hubs.csv"

	GraphMLFile          = "network.graphml"
	ExecutiveSummaryFile = "executive_summary.md"
)

const (
	maxValueLen   = 200
	maxDomainList = 20
	listSeparator = "; "
)

// Sanitize neutralizes values a spreadsheet would evaluate as a formula by
// prefixing them with a single quote.
func Sanitize(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

// Writer writes report files into one directory.
type Writer struct {
	dir    string
	logger *logger.Logger
	now    func() time.Time
}

// NewWriter creates a Writer for dir. A nil logger discards output.
func NewWriter(dir string, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Writer{dir: dir, logger: log, now: time.Now}
}

// WriteAll writes every report file and returns their paths in write order.
func (w *Writer) WriteAll(res *pipeline.Result) ([]string, error) {
	if res == nil {
		return nil, fmt.Errorf("report: nil result")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	generated := w.now()
	files := []struct {
		name  string
		write func(io.Writer, *pipeline.Result) error
	}{
		{SignalsFile, csvReport(writeSignals)},
		{ConnectionsFile, csvReport(writeConnections)},
		{SmokingGunsFile, csvReport(writeSmokingGuns)},
		{ClustersFile, csvReport(writeClusters)},
		{HubsFile, csvReport(writeHubs)},
		{GraphMLFile, WriteGraphML},
		{ExecutiveSummaryFile, func(out io.Writer, res *pipeline.Result) error {
			return ExecutiveSummary(out, res, generated)
		}},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(w.dir, f.name)
		if err := writeFile(path, res, f.write); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		w.logger.Debugw("Report written", "file", path)
		paths = append(paths, path)
	}

	w.logger.Infow("Reports written", "dir", w.dir, "files", len(paths))
	return paths, nil
}

func writeFile(path string, res *pipeline.Result, write func(io.Writer, *pipeline.Result) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// csvReport adapts a row writer to a flushed CSV stream.
func csvReport(write func(*csv.Writer, *pipeline.Result) error) func(io.Writer, *pipeline.Result) error {
	return func(out io.Writer, res *pipeline.Result) error {
		cw := csv.NewWriter(out)
		if err := write(cw, res); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}
}

// writeRow sanitizes every field before writing.
func writeRow(cw *csv.Writer, fields ...string) error {
	for i, f := range fields {
		fields[i] = Sanitize(f)
	}
	return cw.Write(fields)
}

// writeSignals emits one row per distinct signal value with the domains
// exhibiting it. Signals arrive sorted, so equal keys are contiguous.
func writeSignals(cw *csv.Writer, res *pipeline.Result) error {
	if err := cw.Write([]string{"Signal Type", "Tier", "Value", "Domain Count", "Domains"}); err != nil {
		return err
	}

	sigs := res.Signals
	for i := 0; i < len(sigs); {
		j := i
		var domains []string
		for j < len(sigs) && sigs[j].Key() == sigs[i].Key() {
			if len(domains) == 0 || domains[len(domains)-1] != sigs[j].Domain {
				domains = append(domains, sigs[j].Domain)
			}
			j++
		}

		s := sigs[i]
		err := writeRow(cw,
			string(s.Type),
			s.Tier.String(),
			truncate(s.Value, maxValueLen),
			strconv.Itoa(len(domains)),
			joinCapped(domains, maxDomainList),
		)
		if err != nil {
			return err
		}
		i = j
	}
	return nil
}

func writeConnections(cw *csv.Writer, res *pipeline.Result) error {
	header := []string{"Domain 1", "Domain 2", "Confidence", "Score", "Smoking Guns", "Strong", "Weak", "Signals"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, c := range res.Connections {
		err := writeRow(cw,
			c.DomainA,
			c.DomainB,
			c.Confidence().String(),
			formatFloat(c.Score, 2),
			strconv.Itoa(c.SmokingGunCount()),
			strconv.Itoa(c.StrongCount()),
			strconv.Itoa(c.WeakCount()),
			describeSignals(c),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeSmokingGuns(cw *csv.Writer, res *pipeline.Result) error {
	if err := cw.Write([]string{"Domain 1", "Domain 2", "Signal Type", "Signal Value", "Source Module"}); err != nil {
		return err
	}

	for _, c := range res.Connections {
		for _, s := range c.Signals {
			if s.Tier != signal.SmokingGun {
				continue
			}
			if err := writeRow(cw, c.DomainA, c.DomainB, string(s.Type), truncate(s.Value, maxValueLen), s.Module); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeClusters(cw *csv.Writer, res *pipeline.Result) error {
	header := []string{"Cluster ID", "Confidence", "Size", "Hub", "Smoking Guns", "Strong", "Internal Edges", "Internal Score", "Domains"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, cl := range res.Clusters {
		err := writeRow(cw,
			strconv.Itoa(cl.ID),
			cl.Confidence.String(),
			strconv.Itoa(cl.Size()),
			cl.Hub,
			strconv.Itoa(cl.SmokingGunCount),
			strconv.Itoa(cl.StrongCount),
			strconv.Itoa(cl.InternalEdges),
			formatFloat(cl.InternalScore, 2),
			strings.Join(cl.Members, listSeparator),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeHubs(cw *csv.Writer, res *pipeline.Result) error {
	header := []string{"Rank", "Domain", "Total Connections", "Smoking Gun Connections", "Likely Connections", "Centrality", "Potential Controller"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, h := range res.Hubs {
		err := writeRow(cw,
			strconv.Itoa(i+1),
			h.Domain,
			strconv.Itoa(h.TotalConnections),
			strconv.Itoa(h.SmokingGunConnections),
			strconv.Itoa(h.LikelyConnections),
			formatFloat(h.Centrality, 6),
			strconv.FormatBool(h.PotentialController),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// describeSignals lists a connection's evidence as type:value pairs.
func describeSignals(c connection.Connection) string {
	parts := make([]string, len(c.Signals))
	for i, s := range c.Signals {
		parts[i] = string(s.Type) + ":" + truncate(s.Value, maxValueLen)
	}
	return strings.Join(parts, listSeparator)
}

func joinCapped(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, listSeparator)
	}
	return strings.Join(items[:limit], listSeparator) + fmt.Sprintf("%s... (+%d more)", listSeparator, len(items)-limit)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
