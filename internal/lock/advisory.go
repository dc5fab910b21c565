// Package lock serializes result snapshots of the same run label across
// analysts with MySQL advisory locks.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when another session holds the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Lock wait presets.
const (
	TimeoutImmediate = 0
	TimeoutShort     = time.Second
	TimeoutLong      = time.Minute
	TimeoutInfinite  = -1 * time.Second // MySQL waits forever on negative timeouts
)

// MySQL rejects lock names longer than this.
const maxNameLength = 64

const namePrefix = "puppetmaster:run:"

// Name returns the advisory lock name for a run label. Characters outside
// [A-Za-z0-9_-] become underscores and the name is capped at 64 bytes.
func Name(label string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, label)

	name := namePrefix + sanitized
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

// AdvisoryLock is a GET_LOCK lock pinned to one pooled connection. MySQL
// ties named locks to the session, so acquire and release must share it.
type AdvisoryLock struct {
	db   *sql.DB
	name string
	conn *sql.Conn
}

// New creates the lock for a run label. Nothing is acquired yet.
func New(db *sql.DB, label string) *AdvisoryLock {
	return &AdvisoryLock{db: db, name: Name(label)}
}

// Name returns the MySQL lock name.
func (a *AdvisoryLock) Name() string { return a.name }

// Held reports whether this instance holds the lock.
func (a *AdvisoryLock) Held() bool { return a.conn != nil }

// Acquire waits up to timeout for the lock. It returns ErrLockTimeout when
// another session keeps it for the whole wait.
//
// GET_LOCK returns 1 on success, 0 on timeout and NULL on error.
func (a *AdvisoryLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if a.conn != nil {
		return nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve connection for lock: %w", err)
	}

	var result sql.NullInt64
	seconds := int(timeout / time.Second)
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.name, seconds).Scan(&result); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	switch {
	case !result.Valid:
		_ = conn.Close()
		return fmt.Errorf("GET_LOCK returned NULL for lock %q", a.name)
	case result.Int64 == 1:
		a.conn = conn
		return nil
	case result.Int64 == 0:
		_ = conn.Close()
		return fmt.Errorf("%w: lock %q is held by another session", ErrLockTimeout, a.name)
	default:
		_ = conn.Close()
		return fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// Release frees the lock and returns its connection to the pool. Releasing
// a lock that is not held is a no-op.
//
// RELEASE_LOCK returns 1 on success, 0 when another session owns the lock
// and NULL when no such lock exists.
func (a *AdvisoryLock) Release(ctx context.Context) error {
	if a.conn == nil {
		return nil
	}
	conn := a.conn
	a.conn = nil
	defer func() { _ = conn.Close() }()

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.name).Scan(&result); err != nil {
		return fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}
	if !result.Valid {
		return fmt.Errorf("RELEASE_LOCK returned NULL for lock %q", a.name)
	}
	if result.Int64 != 1 {
		return fmt.Errorf("lock %q was not held by this session", a.name)
	}
	return nil
}

// IsRunning reports whether another session currently holds the lock of
// label. The answer may be stale as soon as it is returned.
func IsRunning(ctx context.Context, db *sql.DB, label string) (bool, error) {
	var result sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT IS_FREE_LOCK(?)", Name(label)).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to execute IS_FREE_LOCK: %w", err)
	}
	return result.Valid && result.Int64 == 0, nil
}

// With runs fn while holding the lock of label, releasing it however fn
// exits. Release uses a fresh context so a cancelled ctx still unlocks.
func With(ctx context.Context, db *sql.DB, label string, timeout time.Duration, fn func(context.Context) error) (err error) {
	l := New(db, label)
	if err := l.Acquire(ctx, timeout); err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if releaseErr := l.Release(releaseCtx); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	return fn(ctx)
}
