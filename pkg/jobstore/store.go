// Package jobstore persists export jobs and their per-item snapshots in
// a local SQLite database. It is the only durable state the pipeline
// owns; stages read and write jobs exclusively through it.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const driverSQLite = "sqlite"

// Config locates the job database.
type Config struct {
	// Path is a local filesystem path to the job database, or
	// ":memory:" for an ephemeral store.
	Path string
}

// Store wraps the job database handle.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the job database and applies the
// schema.
//
// Local files get WAL and busy_timeout pragmas for predictable behavior
// under the scheduler's concurrent stage goroutines; the connection pool
// is capped at one writer, which SQLite requires anyway.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if !strings.Contains(dsn, ":memory:") {
		pragmas := []string{
			`PRAGMA journal_mode=WAL;`,
			`PRAGMA busy_timeout=5000;`,
		}
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma: %w", err)
			}
		}
	}

	s := &Store{db: db}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the raw handle for migrations and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

func buildDSN(cfg Config) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("job store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create job store dir: %w", err)
	}
	return nil
}

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")
