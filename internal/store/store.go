// Package store provides SQLite-backed run state for cxflow: the persisted
// pagination cursors and the mutual-exclusion lock that keeps overlapping
// scheduled runs from writing the same spreadsheet at once.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrLockUnavailable is returned when the bounded lock wait expires.
var ErrLockUnavailable = errors.New("lock unavailable")

// OrdersCursor is the cursor name used by the order export sync.
const OrdersCursor = "ORDERS_CURSOR"

// lockLease bounds how long a crashed run can hold a lock.
const lockLease = 10 * time.Minute

// Store wraps a SQLite connection for cxflow state.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the state database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Cursor returns the saved cursor value, or "" when none has been persisted.
func (s *Store) Cursor(name string) (string, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM cursors WHERE name = ?", name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor %s: %w", name, err)
	}
	return value, nil
}

// SetCursor persists a cursor value.
func (s *Store) SetCursor(name, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO cursors (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", name, err)
	}
	return nil
}

// ClearCursor removes a cursor so the next run starts from the beginning.
func (s *Store) ClearCursor(name string) error {
	_, err := s.conn.Exec("DELETE FROM cursors WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("clear cursor %s: %w", name, err)
	}
	return nil
}

// AcquireLock waits up to maxWait to take the named lock, polling until the
// deadline. It returns a release func on success and ErrLockUnavailable when
// the wait expires. Expired leases from crashed runs are reclaimed.
func (s *Store) AcquireLock(name string, maxWait time.Duration) (func(), error) {
	holder := uuid.NewString()
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := s.tryLock(name, holder)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { s.releaseLock(name, holder) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockUnavailable
		}
		time.Sleep(2 * time.Second)
	}
}

func (s *Store) tryLock(name, holder string) (bool, error) {
	now := time.Now().UTC()
	// Reclaim expired leases first, then attempt the insert.
	if _, err := s.conn.Exec("DELETE FROM locks WHERE name = ? AND expires_at < ?",
		name, now.Format(time.RFC3339)); err != nil {
		return false, fmt.Errorf("reclaim lock %s: %w", name, err)
	}

	res, err := s.conn.Exec(`
		INSERT INTO locks (name, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, holder, now.Add(lockLease).Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *Store) releaseLock(name, holder string) {
	s.conn.Exec("DELETE FROM locks WHERE name = ? AND holder = ?", name, holder)
}
