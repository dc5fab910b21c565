package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbsmedya/puppetmaster/internal/pipeline"
)

// SaveRun replaces the snapshot stored under label with res. The delete
// and every insert share one transaction, so readers see either the old
// snapshot or the new one.
func (s *Store) SaveRun(ctx context.Context, label string, res *pipeline.Result) error {
	if label == "" {
		return fmt.Errorf("run label is required")
	}
	if res == nil {
		return fmt.Errorf("result is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Errorw("Failed to roll back results transaction", "error", rbErr)
			}
		}
	}()

	for _, table := range s.tables.snapshot() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE label = ?", label); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	d := res.Diagnostics
	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+s.tables.Runs+
			" (label, started_at, duration_ms, domains, signals, connections, clusters, algorithm, fallback, centrality_mode, centrality_error, fingerprint)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		label, res.StartedAt, res.Duration.Milliseconds(), len(res.Domains()), len(res.Signals),
		len(res.Connections), len(res.Clusters), string(d.Algorithm), d.Fallback,
		string(d.CentralityMode), d.CentralityErrorBound, Fingerprint(res))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err := insertRows(ctx, tx, s.tables.Signals,
		[]string{"label", "domain", "type", "tier", "value", "normalized", "module"},
		len(res.Signals), func(i int) []interface{} {
			sig := res.Signals[i]
			return []interface{}{label, sig.Domain, string(sig.Type), sig.Tier.String(), sig.Value, sig.Normalized, sig.Module}
		}); err != nil {
		return err
	}

	if err := insertRows(ctx, tx, s.tables.Connections,
		[]string{"label", "domain_a", "domain_b", "score", "confidence", "smoking_gun", "strong", "weak"},
		len(res.Connections), func(i int) []interface{} {
			c := res.Connections[i]
			return []interface{}{label, c.DomainA, c.DomainB, c.Score, c.Confidence().String(),
				c.SmokingGunCount(), c.StrongCount(), c.WeakCount()}
		}); err != nil {
		return err
	}

	if err := insertRows(ctx, tx, s.tables.Clusters,
		[]string{"label", "cluster_id", "hub", "confidence", "size", "smoking_gun", "strong", "internal_edges"},
		len(res.Clusters), func(i int) []interface{} {
			c := res.Clusters[i]
			return []interface{}{label, c.ID, c.Hub, c.Confidence.String(), c.Size(),
				c.SmokingGunCount, c.StrongCount, c.InternalEdges}
		}); err != nil {
		return err
	}

	type member struct {
		cluster int
		domain  string
	}
	var members []member
	for _, c := range res.Clusters {
		for _, d := range c.Members {
			members = append(members, member{c.ID, d})
		}
	}
	if err := insertRows(ctx, tx, s.tables.Members,
		[]string{"label", "cluster_id", "domain"},
		len(members), func(i int) []interface{} {
			return []interface{}{label, members[i].cluster, members[i].domain}
		}); err != nil {
		return err
	}

	if err := insertRows(ctx, tx, s.tables.Hubs,
		[]string{"label", "`rank`", "domain", "total_connections", "smoking_gun_connections", "likely_connections", "centrality", "potential_controller"},
		len(res.Hubs), func(i int) []interface{} {
			h := res.Hubs[i]
			return []interface{}{label, i + 1, h.Domain, h.TotalConnections, h.SmokingGunConnections,
				h.LikelyConnections, h.Centrality, h.PotentialController}
		}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	tx = nil

	s.logger.Infow("Results saved",
		"label", label,
		"signals", len(res.Signals),
		"connections", len(res.Connections),
		"clusters", len(res.Clusters))
	return nil
}

// insertRows inserts n rows through one prepared statement.
func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, n int, row func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("save interrupted: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}
