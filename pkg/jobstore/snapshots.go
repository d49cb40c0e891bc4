package jobstore

import (
	"context"
	"fmt"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

// InsertSnapshots writes a batch of snapshot rows in one transaction.
func (s *Store) InsertSnapshots(ctx context.Context, snaps []job.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO export_snapshots (job_id, item_key, content_version) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, snap := range snaps {
		if _, err := stmt.ExecContext(ctx, snap.JobID, snap.ItemKey, snap.ContentVersion); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.ItemKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshots: %w", err)
	}
	return nil
}

// SnapshotsAfter returns up to limit snapshots for a job in item key
// order, strictly after afterKey. Empty afterKey starts from the
// beginning. This is what makes the export stage resumable.
func (s *Store) SnapshotsAfter(ctx context.Context, jobID, afterKey string, limit int) ([]job.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, item_key, content_version
		 FROM export_snapshots
		 WHERE job_id = ? AND item_key > ?
		 ORDER BY item_key ASC
		 LIMIT ?`,
		jobID, afterKey, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []job.Snapshot
	for rows.Next() {
		var snap job.Snapshot
		if err := rows.Scan(&snap.JobID, &snap.ItemKey, &snap.ContentVersion); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CountSnapshots returns the number of snapshot rows for a job.
func (s *Store) CountSnapshots(ctx context.Context, jobID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM export_snapshots WHERE job_id = ?`, jobID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// DeleteSnapshots removes all snapshot rows for a job. Deleting an
// already-empty set is a no-op, which keeps cleanup idempotent.
func (s *Store) DeleteSnapshots(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM export_snapshots WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}
