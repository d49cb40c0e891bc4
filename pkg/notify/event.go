// Package notify delivers one event per terminal job outcome to an
// external activity sink.
//
// Events are structured envelope records; each JSONL line is a
// self-contained JSON object that can be parsed independently.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

// Record type constants define the envelope types for the sink.
// These follow the pattern: wikiexport.<type>.v<version>
const (
	// TypeJobCompleted identifies successful completion events.
	TypeJobCompleted = "wikiexport.job_completed.v1"

	// TypeJobFailed identifies failure events, including expiry.
	TypeJobFailed = "wikiexport.job_failed.v1"
)

// Outcome is the terminal result reported downstream.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeExpired   Outcome = "expired"
)

// Record is the envelope for sink output.
type Record struct {
	// Type identifies the record type (e.g., "wikiexport.job_completed.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the job this event belongs to.
	JobID string `json:"job_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// Event is the payload of a terminal job outcome.
type Event struct {
	JobID   string     `json:"job_id"`
	Outcome Outcome    `json:"outcome"`
	Kind    job.Kind   `json:"kind"`
	Format  job.Format `json:"format"`

	// Owner carries the requesting principal plus a display snapshot so
	// downstream delivery does not need a directory lookup.
	Owner job.Owner `json:"owner"`

	// Attachment is set for completed outcomes.
	Attachment *job.Attachment `json:"attachment,omitempty"`

	// Error carries the failure message for failed/expired outcomes.
	Error string `json:"error,omitempty"`
}

// RecordType returns the envelope type for the event's outcome.
func (e *Event) RecordType() string {
	if e.Outcome == OutcomeCompleted {
		return TypeJobCompleted
	}
	return TypeJobFailed
}

// ErrSinkClosed is returned when notifying through a closed sink.
var ErrSinkClosed = errors.New("notification sink is closed")

// Sink receives terminal job events. Notify must be safe for
// concurrent use; delivery is fire-and-continue from the pipeline's
// perspective, so implementations should not block indefinitely.
type Sink interface {
	Notify(ctx context.Context, event *Event) error
}
