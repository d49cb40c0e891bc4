// Package job defines the durable export job model shared by the store,
// the stage executors, and the scheduler.
package job

import "time"

// Status is the lifecycle state of an export job.
//
// NOTE: These values are persisted in the job store and are part of the
// stable on-disk contract.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusExporting    Status = "exporting"
	StatusUploading    Status = "uploading"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// InProgress reports whether s is a non-terminal status.
func (s Status) InProgress() bool {
	switch s {
	case StatusInitializing, StatusExporting, StatusUploading:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind selects the record source an export reads from.
type Kind string

const (
	// KindPages exports a page tree.
	KindPages Kind = "pages"
	// KindActivity exports activity/audit log entries.
	KindActivity Kind = "activity"
)

// Format is the output format tag of an export.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
)

// Owner identifies the principal that requested an export, plus the
// display snapshot carried into notifications.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// UploadHandle identifies an in-flight multipart upload. Present on a job
// once the upload stage has initialized the upload, so an interrupted
// attempt can be aborted deterministically.
type UploadHandle struct {
	UploadID string `json:"upload_id"`
	Key      string `json:"key"`
}

// Attachment references the final stored artifact of a completed job.
type Attachment struct {
	Ref       string `json:"ref"`
	SizeBytes int64  `json:"size_bytes"`
}

// ExportJob is the persistent record of one export request.
//
// The job store is the single source of truth; stages mutate jobs only
// through it. The schema is designed for backward-compatible extension
// (additive fields).
type ExportJob struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Owner Owner  `json:"owner"`

	// ScopeJSON is the opaque export scope descriptor, immutable after
	// creation. ScopeHash is its canonical digest, used together with
	// Kind and Format for duplicate detection.
	ScopeJSON []byte `json:"scope"`
	ScopeHash string `json:"scope_hash"`

	Format Format `json:"format"`
	Status Status `json:"status"`

	// StatusOnPrevTick is the status last observed by the scheduler.
	// When it equals Status on the next tick, the stage dispatched then
	// has not advanced yet and must not be re-entered.
	StatusOnPrevTick Status `json:"status_on_prev_tick,omitempty"`

	// ResumeCursor is the last item key flushed by the export stage.
	// Empty means the stage starts from the beginning.
	ResumeCursor string `json:"resume_cursor,omitempty"`

	// ContentHash digests the ordered set of snapshotted content
	// versions. Immutable from the end of the snapshot stage until a
	// requested restart clears it.
	ContentHash string `json:"content_hash,omitempty"`

	UploadHandle *UploadHandle `json:"upload_handle,omitempty"`

	// RestartRequested forces a full restart from initializing on the
	// next scheduler tick.
	RestartRequested bool `json:"restart_requested,omitempty"`

	Attachment *Attachment `json:"attachment,omitempty"`

	LastError string `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Deadline returns the moment this job expires.
func (j *ExportJob) Deadline(ttl time.Duration) time.Time {
	return j.CreatedAt.Add(ttl)
}

// Expired reports whether the job passed its TTL at time now.
func (j *ExportJob) Expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.After(j.Deadline(ttl))
}

// Snapshot captures which version of one source item was selected for
// export. Snapshots are created in bulk by the snapshot stage, read in
// key order by the export stage, and deleted en masse on cleanup. They
// are never mutated.
type Snapshot struct {
	JobID          string `json:"job_id"`
	ItemKey        string `json:"item_key"`
	ContentVersion string `json:"content_version"`
}
