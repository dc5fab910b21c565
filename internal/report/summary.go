package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/hub"
	"github.com/dbsmedya/puppetmaster/internal/pipeline"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// SummaryOptions controls the terminal summary.
type SummaryOptions struct {
	Color bool // emit ANSI styling
	Limit int  // rows per table, 0 means 10
	Width int  // maximum cell width, 0 means 48
}

var confidenceStyles = map[connection.Confidence]color.Style{
	connection.Confirmed: color.New(color.FgRed, color.OpBold),
	connection.Likely:    color.New(color.FgYellow, color.OpBold),
	connection.Possible:  color.New(color.FgCyan),
	connection.Weak:      color.New(color.FgGray),
}

var (
	headingStyle = color.New(color.FgWhite, color.OpBold)
	warnStyle    = color.New(color.FgYellow)
)

// Summary writes a human-readable overview of res to w.
func Summary(w io.Writer, res *pipeline.Result, opts SummaryOptions) error {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Width <= 0 {
		opts.Width = 48
	}
	s := &summary{w: w, opts: opts}

	s.overview(res)
	s.diagnostics(res.Diagnostics)
	s.clusters(res)
	s.hubs(res)
	s.smokingGuns(res)
	return s.err
}

type summary struct {
	w    io.Writer
	opts SummaryOptions
	err  error
}

func (s *summary) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *summary) style(st color.Style, text string) string {
	if !s.opts.Color {
		return text
	}
	return st.Sprint(text)
}

func (s *summary) heading(title string) {
	s.printf("\n%s\n%s\n", s.style(headingStyle, title), strings.Repeat("=", runewidth.StringWidth(title)))
}

func (s *summary) overview(res *pipeline.Result) {
	s.heading("PuppetMaster Analysis")
	rows := [][2]string{
		{"Domains", strconv.Itoa(len(res.Domains()))},
		{"Signals", strconv.Itoa(len(res.Signals))},
		{"Connections", strconv.Itoa(len(res.Connections))},
		{"Clusters", strconv.Itoa(len(res.Clusters))},
		{"Duration", res.Duration.Round(time.Millisecond).String()},
	}
	for _, t := range signal.Tiers {
		rows = append(rows, [2]string{"  " + t.String(), strconv.Itoa(res.Diagnostics.SignalsByTier[t])})
	}
	s.keyValues(rows)
}

func (s *summary) diagnostics(d pipeline.Diagnostics) {
	s.heading("Diagnostics")
	in := d.Ingest
	s.keyValues([][2]string{
		{"Files seen", strconv.Itoa(in.FilesSeen)},
		{"Files parsed", strconv.Itoa(in.FilesParsed)},
		{"Files skipped", strconv.Itoa(in.FilesSkipped)},
		{"Rows read", strconv.Itoa(in.RowsRead)},
		{"Rows malformed", strconv.Itoa(in.RowsMalformed)},
		{"False positives", strconv.Itoa(in.FalsePositives)},
		{"Blacklisted rows", strconv.Itoa(in.Blacklisted)},
		{"Invalid domains", strconv.Itoa(in.InvalidDomains)},
		{"Unclassified", strconv.Itoa(d.Unclassified)},
		{"Skipped weak buckets", strconv.Itoa(d.Index.SkippedWeakBuckets)},
		{"Components", strconv.Itoa(d.Components)},
		{"Algorithm", string(d.Algorithm)},
		{"Modularity", formatFloat(d.Modularity, 4)},
		{"Centrality", string(d.CentralityMode)},
	})

	for _, issue := range d.FileIssues {
		s.printf("%s %s: %s\n", s.style(warnStyle, "skipped"), issue.Path, issue.Reason)
	}
	if d.Fallback {
		s.printf("%s clustering fell back to %s: %s\n", s.style(warnStyle, "degraded"), d.Algorithm, d.FallbackReason)
	}
	if d.CentralityMode == hub.ModeSampled {
		s.printf("%s centrality sampled from %d sources (error bound %.4f)\n",
			s.style(warnStyle, "degraded"), d.CentralitySamples, d.CentralityErrorBound)
	}
}

func (s *summary) clusters(res *pipeline.Result) {
	s.heading("Clusters")
	if len(res.Clusters) == 0 {
		s.printf("no clusters\n")
		return
	}

	t := s.newTable("ID", "Confidence", "Size", "Hub", "SG", "Members")
	for i, cl := range res.Clusters {
		if i == s.opts.Limit {
			break
		}
		t.AddStyled(confidenceStyles[cl.Confidence],
			strconv.Itoa(cl.ID),
			cl.Confidence.String(),
			strconv.Itoa(cl.Size()),
			cl.Hub,
			strconv.Itoa(cl.SmokingGunCount),
			strings.Join(cl.Members, ", "),
		)
	}
	s.render(t)
	s.more(len(res.Clusters))
}

func (s *summary) hubs(res *pipeline.Result) {
	s.heading("Hub Analysis")
	if len(res.Hubs) == 0 {
		s.printf("no hubs\n")
		return
	}

	t := s.newTable("#", "Domain", "Conns", "SG", "Likely", "Centrality", "Controller")
	for i, h := range res.Hubs {
		if i == s.opts.Limit {
			break
		}
		st := color.Style(nil)
		controller := ""
		if h.PotentialController {
			st = confidenceStyles[connection.Confirmed]
			controller = "yes"
		}
		t.AddStyled(st,
			strconv.Itoa(i+1),
			h.Domain,
			strconv.Itoa(h.TotalConnections),
			strconv.Itoa(h.SmokingGunConnections),
			strconv.Itoa(h.LikelyConnections),
			formatFloat(h.Centrality, 4),
			controller,
		)
	}
	s.render(t)
	s.more(len(res.Hubs))
}

func (s *summary) smokingGuns(res *pipeline.Result) {
	s.heading("Smoking Guns")

	t := s.newTable("Domain 1", "Domain 2", "Type", "Value")
	n := 0
	for _, c := range res.Connections {
		for _, sig := range c.Signals {
			if sig.Tier != signal.SmokingGun {
				continue
			}
			if n < s.opts.Limit {
				t.Add(c.DomainA, c.DomainB, string(sig.Type), sig.Value)
			}
			n++
		}
	}
	if n == 0 {
		s.printf("no smoking guns\n")
		return
	}
	s.render(t)
	s.more(n)
}

func (s *summary) more(total int) {
	if total > s.opts.Limit {
		s.printf("... and %d more\n", total-s.opts.Limit)
	}
}

func (s *summary) keyValues(rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}
	for _, r := range rows {
		s.printf("%s  %s\n", runewidth.FillRight(r[0], width), r[1])
	}
}

func (s *summary) newTable(header ...string) *Table {
	t := NewTable(s.w, header...)
	t.Color = s.opts.Color
	t.MaxWidth = s.opts.Width
	return t
}

func (s *summary) render(t *Table) {
	if s.err != nil {
		return
	}
	s.err = t.Render()
}
