package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/pipeline"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// Executive summary section limits.
const (
	execConnections    = 15
	execGunsPerConn    = 2
	execValueLen       = 40
	execClusters       = 5
	execClusterDomains = 10
	execControllers    = 10
	execSignalTypes    = 15
)

// ExecutiveSummary writes a Markdown digest of res: headline counts, the
// strongest smoking-gun evidence, confirmed clusters, potential controllers
// and signal totals per type.
func ExecutiveSummary(w io.Writer, res *pipeline.Result, generated time.Time) error {
	var b strings.Builder

	confirmed := connectionsOf(res.Connections, connection.Confirmed)
	likely := connectionsOf(res.Connections, connection.Likely)
	slices.SortStableFunc(confirmed, func(x, y connection.Connection) int {
		return y.SmokingGunCount() - x.SmokingGunCount()
	})

	var controllers int
	for _, h := range res.Hubs {
		if h.PotentialController {
			controllers++
		}
	}

	b.WriteString("# PuppetMaster Executive Summary\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", generated.Format("2006-01-02 15:04:05"))

	b.WriteString("## Key Findings\n\n")
	b.WriteString("| Metric | Count |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Domains analyzed | %d |\n", len(res.Domains()))
	fmt.Fprintf(&b, "| Data rows | %d |\n", res.Diagnostics.Ingest.RowsRead)
	fmt.Fprintf(&b, "| **Confirmed connections** | **%d** |\n", len(confirmed))
	fmt.Fprintf(&b, "| Likely connections | %d |\n", len(likely))
	fmt.Fprintf(&b, "| Clusters | %d |\n", len(res.Clusters))
	fmt.Fprintf(&b, "| Potential controllers | %d |\n", controllers)

	b.WriteString("\n## Smoking Gun Evidence\n\n")
	if len(confirmed) == 0 {
		b.WriteString("*No smoking gun evidence found.*\n")
	} else {
		b.WriteString("| Domain 1 | Domain 2 | Evidence | Shared Value |\n|----------|----------|----------|--------------|\n")
		for _, c := range confirmed[:min(len(confirmed), execConnections)] {
			n := 0
			for _, s := range c.Signals {
				if s.Tier != signal.SmokingGun || n == execGunsPerConn {
					continue
				}
				fmt.Fprintf(&b, "| %s | %s | %s | `%s` |\n",
					mdCell(c.DomainA), mdCell(c.DomainB), s.Type, mdCell(ellipsize(s.Value, execValueLen)))
				n++
			}
		}
		if len(confirmed) > execConnections {
			fmt.Fprintf(&b, "\n*...and %d more confirmed connections, see `%s`.*\n",
				len(confirmed)-execConnections, SmokingGunsFile)
		}
	}

	b.WriteString("\n## Confirmed Clusters\n\n")
	shown := 0
	for _, cl := range res.Clusters {
		if cl.Confidence != connection.Confirmed || cl.Size() < 2 {
			continue
		}
		if shown == execClusters {
			break
		}
		shown++
		domains := strings.Join(cl.Members[:min(len(cl.Members), execClusterDomains)], ", ")
		if extra := len(cl.Members) - execClusterDomains; extra > 0 {
			domains += fmt.Sprintf(", ... (+%d more)", extra)
		}
		fmt.Fprintf(&b, "### Cluster %d: %d domains\n\n", cl.ID, cl.Size())
		fmt.Fprintf(&b, "- **Hub:** `%s`\n- **Smoking guns:** %d\n- **Domains:** %s\n\n", cl.Hub, cl.SmokingGunCount, mdCell(domains))
	}
	if shown == 0 {
		b.WriteString("*No confirmed clusters detected.*\n")
	}

	b.WriteString("\n## Potential Controllers\n\n")
	if controllers == 0 {
		b.WriteString("*No controller domains detected.*\n")
	} else {
		b.WriteString("| Domain | Connections | Confirmed | Likely | Centrality |\n|--------|-------------|-----------|--------|------------|\n")
		n := 0
		for _, h := range res.Hubs {
			if !h.PotentialController || n == execControllers {
				continue
			}
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %.3f |\n",
				mdCell(h.Domain), h.TotalConnections, h.SmokingGunConnections, h.LikelyConnections, h.Centrality)
			n++
		}
	}

	b.WriteString("\n## Signal Summary\n\n")
	types := signalTypeCounts(res.Signals)
	if len(types) == 0 {
		b.WriteString("*No signals extracted.*\n")
	} else {
		b.WriteString("| Signal Type | Tier | Occurrences |\n|-------------|------|-------------|\n")
		for _, tc := range types[:min(len(types), execSignalTypes)] {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", tc.typ, tc.tier, tc.count)
		}
	}

	b.WriteString("\n## Output Files\n\n")
	for _, name := range []string{ExecutiveSummaryFile, SmokingGunsFile, ClustersFile, HubsFile, ConnectionsFile, SignalsFile, GraphMLFile} {
		fmt.Fprintf(&b, "- `%s`\n", name)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func connectionsOf(conns []connection.Connection, conf connection.Confidence) []connection.Connection {
	var out []connection.Connection
	for _, c := range conns {
		if c.Confidence() == conf {
			out = append(out, c)
		}
	}
	return out
}

type typeCount struct {
	typ   signal.Type
	tier  signal.Tier
	count int
}

// signalTypeCounts tallies signals per type, most frequent first.
func signalTypeCounts(sigs []signal.Signal) []typeCount {
	index := make(map[signal.Type]int)
	var out []typeCount
	for _, s := range sigs {
		i, ok := index[s.Type]
		if !ok {
			i = len(out)
			index[s.Type] = i
			out = append(out, typeCount{typ: s.Type, tier: s.Tier})
		}
		out[i].count++
	}
	slices.SortStableFunc(out, func(x, y typeCount) int {
		if x.count != y.count {
			return y.count - x.count
		}
		return strings.Compare(string(x.typ), string(y.typ))
	})
	return out
}

// ellipsize shortens s to n runes followed by "...".
func ellipsize(s string, n int) string {
	if t := truncate(s, n); t != s {
		return t + "..."
	}
	return s
}

// mdCell keeps a value from breaking a Markdown table row.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
