// Package ingest reads scan export files into a stream of Records.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/puppetmaster/internal/blacklist"
	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/domainname"
	"github.com/dbsmedya/puppetmaster/internal/logger"
)

// ErrUnknownLayout is reported for files whose header matches no known layout.
var ErrUnknownLayout = errors.New("unknown column layout")

// cancellation is checked every this many rows.
const cancelCheckInterval = 1024

// Ingestor reads every export file in a directory with a bounded worker pool.
type Ingestor struct {
	pattern   string
	workers   int
	blacklist *blacklist.Blacklist
	log       *logger.Logger
}

// New creates an Ingestor. A nil blacklist blocks nothing.
func New(cfg config.InputConfig, bl *blacklist.Blacklist, log *logger.Logger) *Ingestor {
	if log == nil {
		log = logger.NewNop()
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "*.csv"
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Ingestor{
		pattern:   pattern,
		workers:   workers,
		blacklist: bl,
		log:       log.WithStage("ingest"),
	}
}

// ListFiles returns the export files in dir matching the configured glob,
// sorted by name. The match is case-insensitive.
func (in *Ingestor) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	pattern := strings.ToLower(in.pattern)
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ok, err := filepath.Match(pattern, strings.ToLower(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("invalid file pattern %q: %w", in.pattern, err)
		}
		if ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run reads every matching file in dir and streams its records to the sink
// newSink returns for that file. A file that cannot be read or whose layout
// is unknown is skipped and reported; it never aborts the run. Run returns an
// error only when dir cannot be listed or ctx is cancelled.
func (in *Ingestor) Run(ctx context.Context, dir string, newSink SinkFactory) (*Summary, error) {
	files, err := in.ListFiles(dir)
	if err != nil {
		return nil, err
	}

	in.log.Infow("Reading export files", "dir", dir, "files", len(files), "workers", in.workers)

	reports := make([]FileReport, len(files))
	var mu sync.Mutex // guards newSink

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			mu.Lock()
			sink := newSink(path)
			mu.Unlock()

			report, err := in.readFile(gctx, path, sink)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &Summary{Files: reports}
	for _, r := range reports {
		summary.Stats.add(r)
	}

	in.log.Infow("Export files read",
		"parsed", summary.Stats.FilesParsed,
		"skipped", summary.Stats.FilesSkipped,
		"rows", summary.Stats.RowsRead,
		"records", summary.Stats.Records)

	return summary, nil
}

// readFile parses one file. Only context cancellation is returned as an
// error; every other failure is recorded in the report.
func (in *Ingestor) readFile(ctx context.Context, path string, sink Sink) (FileReport, error) {
	log := in.log.WithFile(filepath.Base(path))
	report := FileReport{Path: path}
	report.Domain, _ = domainname.FromExportFilename(path)

	skip := func(reason string) (FileReport, error) {
		report.Skipped = true
		report.Reason = reason
		log.Warnw("Skipping export file", "reason", reason)
		return report, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return skip(fmt.Sprintf("open: %v", err))
	}
	defer func() { _ = f.Close() }()

	cr := newCSVReader(f)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return skip("empty file")
		}
		return skip(fmt.Sprintf("header: %v", err))
	}

	layout, cols := detect(header)
	report.Layout = layout
	if layout == LayoutUnknown {
		return skip(fmt.Sprintf("%v: %d columns", ErrUnknownLayout, len(header)))
	}

	for {
		if report.Rows%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}

		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.Rows++
				report.Malformed++
				continue
			}
			// The rows already delivered stay; the rest of the file is lost.
			report.Reason = fmt.Sprintf("read aborted after %d rows: %v", report.Rows, err)
			log.Warnw("Export file truncated", "rows", report.Rows, "error", err)
			break
		}
		report.Rows++

		if len(row) != len(header) {
			report.Malformed++
			continue
		}

		rec, ok := in.toRecord(&report, layout, cols, row)
		if !ok {
			continue
		}
		sink.Add(rec)
		report.Records++
	}

	log.Debugw("Export file read", "layout", layout.String(), "rows", report.Rows, "records", report.Records)
	return report, nil
}

// toRecord maps a row onto a Record, applying the false-positive,
// domain-validity and blacklist filters. Dropped rows are counted in report.
func (in *Ingestor) toRecord(report *FileReport, layout Layout, cols columns, row []string) (Record, bool) {
	rec := Record{
		DataType: clean(cols.get(row, colType)),
		Value:    clean(cols.get(row, colData)),
		Source:   clean(cols.get(row, colSource)),
		File:     report.Path,
	}

	var domain string
	var ok bool
	switch layout {
	case LayoutExtended:
		rec.Module = clean(cols.get(row, colModule))
		rec.FalsePositive = strings.TrimSpace(cols.get(row, colFP)) == "1"
		domain, ok = domainname.Sanitize(cols.get(row, colScanName))
		if !ok && report.Domain != "" {
			domain, ok = report.Domain, true
		}
	case LayoutMinimal:
		domain, ok = report.Domain, report.Domain != ""
		if !ok {
			domain, ok = domainname.Sanitize(rec.Source)
		}
	}

	if rec.FalsePositive {
		report.FalsePositives++
		return Record{}, false
	}
	if !ok {
		report.InvalidDomains++
		return Record{}, false
	}
	if in.blacklist.Contains(domain) {
		report.Blacklisted++
		return Record{}, false
	}

	rec.Domain = domain
	return rec, true
}
