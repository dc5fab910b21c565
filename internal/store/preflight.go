package store

import (
	"context"
	"fmt"
	"strings"
)

// PreflightError reports results tables that cannot hold a run snapshot.
type PreflightError struct {
	Check   string
	Message string
	Tables  []string
}

func (e *PreflightError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// Preflight inspects the results tables in the current schema. It returns
// the tables EnsureSchema would still create, and a *PreflightError when an
// existing table is not InnoDB: SaveRun replaces a snapshot inside one
// transaction and other engines would apply it partially.
func (s *Store) Preflight(ctx context.Context) ([]string, error) {
	names := s.tables.snapshot()
	raw := make([]string, len(names))
	placeholders := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, n := range names {
		raw[i] = strings.Trim(n, "`")
		placeholders[i] = "?"
		args[i] = raw[i]
	}

	query := `SELECT TABLE_NAME, ENGINE FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	engines := make(map[string]string, len(raw))
	for rows.Next() {
		var table, engine string
		if err := rows.Scan(&table, &engine); err != nil {
			return nil, err
		}
		engines[table] = engine
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing, nonInnoDB []string
	for _, t := range raw {
		engine, ok := engines[t]
		switch {
		case !ok:
			missing = append(missing, t)
		case !strings.EqualFold(engine, "InnoDB"):
			nonInnoDB = append(nonInnoDB, fmt.Sprintf("%s(%s)", t, engine))
		}
	}

	if len(nonInnoDB) > 0 {
		return missing, &PreflightError{
			Check:   "STORAGE_ENGINE_CHECK",
			Message: "results tables must use InnoDB, use ALTER TABLE to convert",
			Tables:  nonInnoDB,
		}
	}

	s.logger.Debugw("Results store preflight passed", "missing", len(missing))
	return missing, nil
}
