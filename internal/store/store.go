// Package store persists pipeline results in MySQL, one snapshot per run
// label.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/puppetmaster/internal/logger"
	"github.com/dbsmedya/puppetmaster/internal/sqlutil"
)

// Tables holds the quoted names of every results table.
type Tables struct {
	Runs        string
	Signals     string
	Connections string
	Clusters    string
	Members     string
	Hubs        string
}

// snapshot tables in delete order, children first
func (t Tables) snapshot() []string {
	return []string{t.Members, t.Clusters, t.Hubs, t.Connections, t.Signals, t.Runs}
}

// Store reads and writes result snapshots.
type Store struct {
	db     *sql.DB
	tables Tables
	logger *logger.Logger
}

// New creates a Store whose table names start with prefix.
func New(db *sql.DB, prefix string, log *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}

	var t Tables
	for _, tn := range []struct {
		dst    *string
		suffix string
	}{
		{&t.Runs, "runs"},
		{&t.Signals, "signals"},
		{&t.Connections, "connections"},
		{&t.Clusters, "clusters"},
		{&t.Members, "cluster_members"},
		{&t.Hubs, "hubs"},
	} {
		name, err := sqlutil.TableName(prefix, tn.suffix)
		if err != nil {
			return nil, fmt.Errorf("invalid table prefix %q: %w", prefix, err)
		}
		*tn.dst = name
	}

	return &Store{db: db, tables: t, logger: log.WithStage("store")}, nil
}

// EnsureSchema creates any missing results table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range s.schema() {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create results table: %w", err)
		}
	}
	s.logger.Debugw("Results schema ready")
	return nil
}

func (s *Store) schema() []string {
	t := s.tables
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + t.Runs + ` (
  label VARCHAR(128) NOT NULL PRIMARY KEY,
  started_at DATETIME(6) NOT NULL,
  duration_ms BIGINT NOT NULL,
  domains INT NOT NULL,
  signals INT NOT NULL,
  connections INT NOT NULL,
  clusters INT NOT NULL,
  algorithm VARCHAR(32) NOT NULL,
  fallback BOOLEAN NOT NULL,
  centrality_mode VARCHAR(16) NOT NULL,
  centrality_error DOUBLE NOT NULL,
  fingerprint CHAR(64) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS ` + t.Signals + ` (
  label VARCHAR(128) NOT NULL,
  domain VARCHAR(253) NOT NULL,
  type VARCHAR(64) NOT NULL,
  tier VARCHAR(16) NOT NULL,
  value TEXT NOT NULL,
  normalized TEXT NOT NULL,
  module VARCHAR(128) NOT NULL,
  KEY idx_label_domain (label, domain)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS ` + t.Connections + ` (
  label VARCHAR(128) NOT NULL,
  domain_a VARCHAR(253) NOT NULL,
  domain_b VARCHAR(253) NOT NULL,
  score DOUBLE NOT NULL,
  confidence VARCHAR(16) NOT NULL,
  smoking_gun INT NOT NULL,
  strong INT NOT NULL,
  weak INT NOT NULL,
  PRIMARY KEY (label, domain_a, domain_b)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS ` + t.Clusters + ` (
  label VARCHAR(128) NOT NULL,
  cluster_id INT NOT NULL,
  hub VARCHAR(253) NOT NULL,
  confidence VARCHAR(16) NOT NULL,
  size INT NOT NULL,
  smoking_gun INT NOT NULL,
  strong INT NOT NULL,
  internal_edges INT NOT NULL,
  PRIMARY KEY (label, cluster_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS ` + t.Members + ` (
  label VARCHAR(128) NOT NULL,
  cluster_id INT NOT NULL,
  domain VARCHAR(253) NOT NULL,
  PRIMARY KEY (label, domain)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS ` + t.Hubs + ` (
  label VARCHAR(128) NOT NULL,
  ` + "`rank`" + ` INT NOT NULL,
  domain VARCHAR(253) NOT NULL,
  total_connections INT NOT NULL,
  smoking_gun_connections INT NOT NULL,
  likely_connections INT NOT NULL,
  centrality DOUBLE NOT NULL,
  potential_controller BOOLEAN NOT NULL,
  PRIMARY KEY (label, domain)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
}
