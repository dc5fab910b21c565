// Package database manages the MySQL connection used by the results store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/logger"
)

// Retry defaults for Connect.
const (
	DefaultRetries = 3
	DefaultBackoff = time.Second
)

// Manager owns the results database handle.
type Manager struct {
	DB *sql.DB

	cfg     *config.DatabaseConfig
	logger  *logger.Logger
	retries int
	backoff time.Duration
	open    func(dsn string) (*sql.DB, error)
}

// NewManager creates a Manager for cfg. Connect must be called before DB
// is used.
func NewManager(cfg *config.DatabaseConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		logger:  log.WithStage("database"),
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		},
	}
}

// Connect opens and pings the database, retrying with exponential backoff.
func (m *Manager) Connect(ctx context.Context) error {
	if m.cfg == nil {
		return errors.New("database config is nil")
	}

	var err error
	backoff := m.backoff
	for attempt := 1; attempt <= m.retries; attempt++ {
		var db *sql.DB
		db, err = m.connect(ctx)
		if err == nil {
			m.DB = db
			m.logger.Infow("Connected to results database", "host", m.cfg.Host, "database", m.cfg.Database)
			return nil
		}

		m.logger.Warnw("Database connection failed", "attempt", attempt, "error", err)
		if attempt == m.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", m.retries, err)
}

func (m *Manager) connect(ctx context.Context) (*sql.DB, error) {
	db, err := m.open(BuildDSN(m.cfg))
	if err != nil {
		return nil, err
	}

	if m.cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(m.cfg.MaxConnections)
	}
	if m.cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(m.cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BuildDSN renders cfg as a go-sql-driver DSN. The driver splits a DSN on
// its last '@' and '/', so passwords may contain either.
func BuildDSN(cfg *config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true

	switch cfg.TLS {
	case "disable":
		mc.TLSConfig = "false"
	case "required":
		mc.TLSConfig = "true"
	default:
		mc.TLSConfig = "preferred"
	}

	return mc.FormatDSN()
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.DB == nil {
		return errors.New("not connected")
	}
	if err := m.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("results database ping failed: %w", err)
	}
	return nil
}

// Close closes the handle if open.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	err := m.DB.Close()
	m.DB = nil
	if err != nil {
		return fmt.Errorf("results database close: %w", err)
	}
	return nil
}
