package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

// CreateJobParams collects inputs required to insert a job.
type CreateJobParams struct {
	Kind      job.Kind
	Owner     job.Owner
	ScopeJSON []byte
	ScopeHash string
	Format    job.Format
}

// CreateJob inserts a new job in initializing status.
func (s *Store) CreateJob(ctx context.Context, p CreateJobParams) (*job.ExportJob, error) {
	if p.Kind == "" {
		return nil, errors.New("job kind is required")
	}
	if p.Owner.ID == "" {
		return nil, errors.New("job owner is required")
	}
	if p.Format == "" {
		return nil, errors.New("job format is required")
	}

	now := time.Now().UTC()
	j := &job.ExportJob{
		ID:        uuid.New().String(),
		Kind:      p.Kind,
		Owner:     p.Owner,
		ScopeJSON: p.ScopeJSON,
		ScopeHash: p.ScopeHash,
		Format:    p.Format,
		Status:    job.StatusInitializing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_jobs
		 (id, kind, owner_id, owner_name, scope_json, scope_hash, format, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, string(j.Kind), j.Owner.ID, j.Owner.DisplayName,
		string(j.ScopeJSON), j.ScopeHash, string(j.Format), string(j.Status),
		fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert export job: %w", err)
	}
	return j, nil
}

const jobColumns = `id, kind, owner_id, owner_name, scope_json, scope_hash, format,
	status, status_on_prev_tick, resume_cursor, content_hash,
	upload_id, upload_key, restart_requested,
	attachment_ref, attachment_size, last_error,
	created_at, updated_at, completed_at`

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*job.ExportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, err
}

// ListInProgress returns up to limit in-progress jobs, oldest first.
// This is the scheduler's per-tick selection; limit is the concurrency cap.
func (s *Store) ListInProgress(ctx context.Context, limit int) ([]*job.ExportJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs
		 WHERE status IN (?, ?, ?)
		 ORDER BY created_at ASC
		 LIMIT ?`,
		string(job.StatusInitializing), string(job.StatusExporting), string(job.StatusUploading),
		limit)
	if err != nil {
		return nil, fmt.Errorf("list in-progress jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*job.ExportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]*job.ExportJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*job.ExportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SetStatus advances a job's status.
func (s *Store) SetStatus(ctx context.Context, id string, status job.Status) error {
	return s.exec(ctx,
		`UPDATE export_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), fmtTime(time.Now().UTC()), id)
}

// MarkObserved records the status the scheduler saw this tick. The next
// tick skips the job while the persisted status still equals it.
func (s *Store) MarkObserved(ctx context.Context, id string, status job.Status) error {
	return s.exec(ctx,
		`UPDATE export_jobs SET status_on_prev_tick = ?, updated_at = ? WHERE id = ?`,
		string(status), fmtTime(time.Now().UTC()), id)
}

// SetResumeCursor persists the export checkpoint. Written after the item
// write so a crash redoes at most one item, never skips one.
func (s *Store) SetResumeCursor(ctx context.Context, id, cursor string) error {
	return s.exec(ctx,
		`UPDATE export_jobs SET resume_cursor = ?, updated_at = ? WHERE id = ?`,
		cursor, fmtTime(time.Now().UTC()), id)
}

// SetContentHash finalizes the snapshot stage's content digest.
func (s *Store) SetContentHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx,
		`UPDATE export_jobs SET content_hash = ?, updated_at = ? WHERE id = ?`,
		hash, fmtTime(time.Now().UTC()), id)
}

// SetUploadHandle persists the multipart upload identity before any part
// is sent, so a crash after initialization can be aborted later.
func (s *Store) SetUploadHandle(ctx context.Context, id string, h *job.UploadHandle) error {
	if h == nil {
		return s.exec(ctx,
			`UPDATE export_jobs SET upload_id = NULL, upload_key = NULL, updated_at = ? WHERE id = ?`,
			fmtTime(time.Now().UTC()), id)
	}
	return s.exec(ctx,
		`UPDATE export_jobs SET upload_id = ?, upload_key = ?, updated_at = ? WHERE id = ?`,
		h.UploadID, h.Key, fmtTime(time.Now().UTC()), id)
}

// RequestRestart flags a job for a full restart on the next tick.
func (s *Store) RequestRestart(ctx context.Context, id string) error {
	return s.exec(ctx,
		`UPDATE export_jobs SET restart_requested = 1, updated_at = ? WHERE id = ?`,
		fmtTime(time.Now().UTC()), id)
}

// ResetForRestart rewinds a job to initializing and clears every
// stage pointer in one statement.
func (s *Store) ResetForRestart(ctx context.Context, id string) error {
	return s.exec(ctx,
		`UPDATE export_jobs SET
			status = ?, status_on_prev_tick = NULL, resume_cursor = NULL,
			content_hash = NULL, upload_id = NULL, upload_key = NULL,
			restart_requested = 0, last_error = NULL, updated_at = ?
		 WHERE id = ?`,
		string(job.StatusInitializing), fmtTime(time.Now().UTC()), id)
}

// MarkCompleted records the final artifact and the completion time.
func (s *Store) MarkCompleted(ctx context.Context, id string, att job.Attachment) error {
	now := fmtTime(time.Now().UTC())
	return s.exec(ctx,
		`UPDATE export_jobs SET
			status = ?, attachment_ref = ?, attachment_size = ?,
			last_error = NULL, updated_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(job.StatusCompleted), att.Ref, att.SizeBytes, now, now, id)
}

// MarkFailed records a terminal failure.
func (s *Store) MarkFailed(ctx context.Context, id, lastError string) error {
	now := fmtTime(time.Now().UTC())
	return s.exec(ctx,
		`UPDATE export_jobs SET status = ?, last_error = ?, updated_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(job.StatusFailed), lastError, now, now, id)
}

// MarkFailedIfInProgress records a terminal failure only when the job
// is still in progress, reporting whether this call performed the
// transition. The expiration sweep and an unblocked stage can race to
// settle the same job; whoever wins the transition owns the
// notification.
func (s *Store) MarkFailedIfInProgress(ctx context.Context, id, lastError string) (bool, error) {
	now := fmtTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, last_error = ?, updated_at = ?, completed_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)`,
		string(job.StatusFailed), lastError, now, now, id,
		string(job.StatusInitializing), string(job.StatusExporting), string(job.StatusUploading))
	if err != nil {
		return false, fmt.Errorf("update export job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update export job: %w", err)
	}
	return n > 0, nil
}

// FindCompletedDuplicate looks for a completed job with the same
// identity and content hash, excluding id itself. A hit lets the caller
// reuse the existing attachment instead of re-uploading identical bytes.
func (s *Store) FindCompletedDuplicate(ctx context.Context, j *job.ExportJob) (*job.ExportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs
		 WHERE kind = ? AND scope_hash = ? AND format = ? AND content_hash = ?
		   AND status = ? AND id != ? AND attachment_ref IS NOT NULL
		 ORDER BY completed_at DESC
		 LIMIT 1`,
		string(j.Kind), j.ScopeHash, string(j.Format), j.ContentHash,
		string(job.StatusCompleted), j.ID)
	dup, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return dup, err
}

// FindInProgressDuplicate looks for an in-progress job with the same
// identity, used to reject duplicate creation requests.
func (s *Store) FindInProgressDuplicate(ctx context.Context, kind job.Kind, scopeHash string, format job.Format) (*job.ExportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM export_jobs
		 WHERE kind = ? AND scope_hash = ? AND format = ?
		   AND status IN (?, ?, ?)
		 LIMIT 1`,
		string(kind), scopeHash, string(format),
		string(job.StatusInitializing), string(job.StatusExporting), string(job.StatusUploading))
	dup, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return dup, err
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.ExportJob, error) {
	var j job.ExportJob
	var kind, format, status string
	var scopeJSON string
	var prevTick, cursor, contentHash sql.NullString
	var uploadID, uploadKey sql.NullString
	var restart int
	var attRef sql.NullString
	var attSize sql.NullInt64
	var lastError sql.NullString
	var createdAt, updatedAt string
	var completedAt sql.NullString

	err := row.Scan(
		&j.ID, &kind, &j.Owner.ID, &j.Owner.DisplayName, &scopeJSON, &j.ScopeHash, &format,
		&status, &prevTick, &cursor, &contentHash,
		&uploadID, &uploadKey, &restart,
		&attRef, &attSize, &lastError,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan export job: %w", err)
	}

	j.Kind = job.Kind(kind)
	j.Format = job.Format(format)
	j.Status = job.Status(status)
	j.ScopeJSON = []byte(scopeJSON)
	j.StatusOnPrevTick = job.Status(prevTick.String)
	j.ResumeCursor = cursor.String
	j.ContentHash = contentHash.String
	j.RestartRequested = restart != 0
	j.LastError = lastError.String

	if uploadID.Valid && uploadID.String != "" {
		j.UploadHandle = &job.UploadHandle{UploadID: uploadID.String, Key: uploadKey.String}
	}
	if attRef.Valid && attRef.String != "" {
		j.Attachment = &job.Attachment{Ref: attRef.String, SizeBytes: attSize.Int64}
	}

	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		j.CompletedAt = &t
	}

	return &j, nil
}

// timeLayout keeps a fixed-width fraction so TEXT comparison orders
// chronologically; RFC3339Nano would trim trailing zeros and break
// ORDER BY created_at.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
