package job

import (
	"errors"
	"fmt"
)

// ErrorKind tags a pipeline error for cleanup and notification dispatch.
type ErrorKind string

const (
	// KindExpired marks a job that exceeded its TTL while in progress.
	KindExpired ErrorKind = "expired"

	// KindRestarted marks a stream deliberately destroyed because a
	// restart was requested. Not a failure: no notification is emitted.
	KindRestarted ErrorKind = "restarted"

	// KindStage marks any other I/O, rendering, or upload failure.
	KindStage ErrorKind = "stage"
)

// Sentinel reasons carried through stream cancellation.
var (
	// ErrExpired is the cancellation cause for TTL expiry.
	ErrExpired = errors.New("job expired")

	// ErrRestarted is the cancellation cause for a requested restart.
	ErrRestarted = errors.New("job restarted")
)

// Error wraps a stage failure with the job it belongs to and its kind.
type Error struct {
	// JobID is the job the error belongs to.
	JobID string

	// Stage is the stage that surfaced the error (e.g., "snapshot").
	Stage string

	// Kind routes cleanup and notification behaviour.
	Kind ErrorKind

	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("job %s: %s stage: %v", e.JobID, e.Stage, e.Err)
	}
	return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err into an ErrorKind. Cancellation causes set by
// the stream registry surface as ErrExpired/ErrRestarted in wrapped
// chains; everything else is a stage error.
func KindOf(err error) ErrorKind {
	var je *Error
	if errors.As(err, &je) {
		return je.Kind
	}
	switch {
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrRestarted):
		return KindRestarted
	default:
		return KindStage
	}
}

// IsExpired reports whether err is (or wraps) an expiry.
func IsExpired(err error) bool {
	return KindOf(err) == KindExpired
}

// IsRestarted reports whether err is (or wraps) a restart destruction.
func IsRestarted(err error) bool {
	return KindOf(err) == KindRestarted
}

// NewStageError builds a stage-tagged Error, preserving an expired or
// restarted kind carried by the cause.
func NewStageError(jobID, stage string, err error) *Error {
	return &Error{JobID: jobID, Stage: stage, Kind: KindOf(err), Err: err}
}
