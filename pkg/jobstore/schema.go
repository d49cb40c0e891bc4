package jobstore

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the job schema in-place.
//
// The schema supports:
// - export job records with atomic partial status updates
// - per-item snapshots read back in key order
// - duplicate lookup by (kind, scope_hash, format, content_hash)
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS export_jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			owner_name TEXT,
			scope_json TEXT NOT NULL,
			scope_hash TEXT NOT NULL,
			format TEXT NOT NULL,
			status TEXT NOT NULL,
			status_on_prev_tick TEXT,
			resume_cursor TEXT,
			content_hash TEXT,
			upload_id TEXT,
			upload_key TEXT,
			restart_requested INTEGER NOT NULL DEFAULT 0,
			attachment_ref TEXT,
			attachment_size INTEGER,
			last_error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs(status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_export_jobs_identity ON export_jobs(kind, scope_hash, format);`,

		`CREATE TABLE IF NOT EXISTS export_snapshots (
			job_id TEXT NOT NULL,
			item_key TEXT NOT NULL,
			content_version TEXT NOT NULL,
			PRIMARY KEY(job_id, item_key),
			FOREIGN KEY(job_id) REFERENCES export_jobs(id)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	if current != SchemaVersion {
		if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version=? WHERE id=1`, SchemaVersion); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
