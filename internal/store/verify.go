package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dbsmedya/puppetmaster/internal/pipeline"
)

// TableCount compares stored rows of one table with the result.
type TableCount struct {
	Table    string
	Expected int64
	Actual   int64
}

// Match reports whether the counts agree.
func (c TableCount) Match() bool { return c.Expected == c.Actual }

// Verification is the outcome of VerifyRun.
type Verification struct {
	Label            string
	Counts           []TableCount
	Fingerprint      string
	FingerprintMatch bool
}

// OK reports whether every count and the fingerprint match.
func (v *Verification) OK() bool {
	if !v.FingerprintMatch {
		return false
	}
	for _, c := range v.Counts {
		if !c.Match() {
			return false
		}
	}
	return true
}

// ErrRunNotFound is returned by VerifyRun when no snapshot has the label.
var ErrRunNotFound = errors.New("run not found")

// VerifyRun checks the stored snapshot of label against res by row counts
// and content fingerprint.
func (s *Store) VerifyRun(ctx context.Context, label string, res *pipeline.Result) (*Verification, error) {
	if res == nil {
		return nil, fmt.Errorf("result is nil")
	}
	v := &Verification{Label: label, Fingerprint: Fingerprint(res)}

	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT fingerprint FROM "+s.tables.Runs+" WHERE label = ?", label).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, label)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	v.FingerprintMatch = stored == v.Fingerprint

	members := 0
	for _, c := range res.Clusters {
		members += len(c.Members)
	}
	expected := []struct {
		table string
		n     int
	}{
		{s.tables.Signals, len(res.Signals)},
		{s.tables.Connections, len(res.Connections)},
		{s.tables.Clusters, len(res.Clusters)},
		{s.tables.Members, members},
		{s.tables.Hubs, len(res.Hubs)},
	}

	for _, e := range expected {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+e.table+" WHERE label = ?", label).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", e.table, err)
		}
		v.Counts = append(v.Counts, TableCount{Table: e.table, Expected: int64(e.n), Actual: n})
	}

	if !v.OK() {
		s.logger.Warnw("Stored results differ from run", "label", label, "fingerprint_match", v.FingerprintMatch)
	}
	return v, nil
}

// Fingerprint is a SHA-256 over the canonical rows of signals, connections
// and cluster memberships. Identical results have identical fingerprints.
func Fingerprint(res *pipeline.Result) string {
	h := sha256.New()
	write := func(fields ...string) {
		h.Write([]byte(strings.Join(fields, "\x1f")))
		h.Write([]byte{'\n'})
	}

	for _, s := range res.Signals {
		write("S", s.Domain, string(s.Type), s.Tier.String(), s.Normalized, s.Value, s.Module)
	}
	for _, c := range res.Connections {
		write("C", c.DomainA, c.DomainB, strconv.FormatFloat(c.Score, 'g', -1, 64))
	}
	for _, c := range res.Clusters {
		write(append([]string{"K", strconv.Itoa(c.ID), c.Hub, c.Confidence.String()}, c.Members...)...)
	}
	return hex.EncodeToString(h.Sum(nil))
}
