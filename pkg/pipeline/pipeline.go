// Package pipeline implements the export job pipeline: the three stage
// executors (snapshot, export, upload), the tick-driven scheduler, and
// the idempotent cleanup manager.
//
// A Pipeline owns no global state. Every collaborator (job store,
// record sources, object store, stream registry, notification sink) is
// passed in at construction and the stage executors receive the job
// they operate on explicitly.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/jobstore"
	"github.com/quartzlabs/wikiexport/pkg/notify"
	"github.com/quartzlabs/wikiexport/pkg/objectstore"
	"github.com/quartzlabs/wikiexport/pkg/render"
	"github.com/quartzlabs/wikiexport/pkg/source"
	"github.com/quartzlabs/wikiexport/pkg/streamreg"
)

// Stage names used in error tagging and logs.
const (
	StageSnapshot = "snapshot"
	StageExport   = "export"
	StageUpload   = "upload"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultBatchSize    = 100
	DefaultPartSize     = 8 << 20
	DefaultTTL          = 24 * time.Hour
	DefaultStallAfter   = time.Hour
	DefaultPollInterval = 5 * time.Second
)

// Telemetry receives pipeline measurements. Implementations must be
// safe for concurrent use; a nil Telemetry disables measurement.
type Telemetry interface {
	// JobDispatched counts one stage dispatch.
	JobDispatched(stage string)

	// StageFailed counts one stage failure by error kind.
	StageFailed(stage string, kind job.ErrorKind)

	// JobCompleted counts one terminal completion.
	JobCompleted()

	// SetInFlight records the number of in-progress jobs selected on
	// the last tick.
	SetInFlight(n int)
}

// Config tunes the pipeline.
type Config struct {
	// TransientRoot is the directory under which per-job export trees
	// are materialized. Paths are namespaced by job id.
	TransientRoot string

	// BatchSize bounds snapshot listing and export reads per page.
	BatchSize int

	// PartSize is the multipart part size in bytes. Values below the
	// store minimum are raised to it.
	PartSize int64

	// TTL is the job expiration deadline measured from creation.
	TTL time.Duration

	// StallAfter fails an in-progress job whose record has not been
	// updated for this long, catching stages that died without
	// advancing status. Zero disables the check.
	StallAfter time.Duration

	// ListRate throttles source List calls per second. Zero means
	// unlimited.
	ListRate float64

	// PollInterval is the cadence of the PDF converter ready poll.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PartSize < objectstore.MinPartSize {
		c.PartSize = DefaultPartSize
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Pipeline wires the stage executors to their collaborators.
type Pipeline struct {
	cfg       Config
	store     *jobstore.Store
	sources   source.Registry
	objects   objectstore.Store
	streams   *streamreg.Registry
	sink      notify.Sink
	converter render.Converter
	limiter   *rate.Limiter
	telemetry Telemetry
	logger    *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithConverter supplies the external PDF converter. Without it, PDF
// jobs fail in the export stage.
func WithConverter(c render.Converter) Option {
	return func(p *Pipeline) { p.converter = c }
}

// WithTelemetry attaches measurement.
func WithTelemetry(t Telemetry) Option {
	return func(p *Pipeline) { p.telemetry = t }
}

// New constructs a pipeline. logger must be non-nil; pass
// zap.NewNop() in tests.
func New(cfg Config, store *jobstore.Store, sources source.Registry, objects objectstore.Store, streams *streamreg.Registry, sink notify.Sink, logger *zap.Logger, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:     cfg,
		store:   store,
		sources: sources,
		objects: objects,
		streams: streams,
		sink:    sink,
		logger:  logger,
	}
	if cfg.ListRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.ListRate), 1)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TransientDir returns the per-job transient storage directory.
func (p *Pipeline) TransientDir(jobID string) string {
	return filepath.Join(p.cfg.TransientRoot, jobID)
}

// Dispatch advances one job by the stage matching its status. Errors
// from the stage are routed through the shared terminal handler; the
// returned error is reported for observability only, the job record is
// already settled when Dispatch returns.
func (p *Pipeline) Dispatch(ctx context.Context, j *job.ExportJob) error {
	var stage string
	var err error

	switch j.Status {
	case job.StatusInitializing:
		stage, err = StageSnapshot, p.runSnapshot(ctx, j)
	case job.StatusExporting:
		stage, err = StageExport, p.runExport(ctx, j)
	case job.StatusUploading:
		stage, err = StageUpload, p.runUpload(ctx, j)
	default:
		return fmt.Errorf("job %s: no stage for status %q", j.ID, j.Status)
	}

	if err != nil {
		p.settleFailure(ctx, j, stage, err)
		return err
	}
	return nil
}

// settleFailure is the shared terminal error handler: it classifies the
// error kind, reclaims resources, persists the terminal status, and
// emits the matching notification. The failed transition is
// compare-and-set; whichever settler performs it owns the single
// notification. Restart destructions settle nothing; the scheduler's
// restart branch rewinds the job on its next tick.
func (p *Pipeline) settleFailure(ctx context.Context, j *job.ExportJob, stage string, err error) {
	// The job record may have been mutated while the stage ran.
	kind := job.KindOf(err)
	if p.telemetry != nil {
		p.telemetry.StageFailed(stage, kind)
	}

	log := p.logger.With(
		zap.String("job_id", j.ID),
		zap.String("stage", stage),
		zap.String("error_kind", string(kind)))

	switch kind {
	case job.KindRestarted:
		log.Info("stage aborted for restart")
		p.reclaim(ctx, j)
		return

	case job.KindExpired:
		log.Warn("job expired", zap.Error(err))
		p.reclaim(ctx, j)
		settled, mErr := p.store.MarkFailedIfInProgress(ctx, j.ID, job.ErrExpired.Error())
		if mErr != nil {
			log.Error("mark expired job failed", zap.Error(mErr))
			return
		}
		if !settled {
			// The expiration sweep won the transition and already
			// notified; this side only reclaims.
			return
		}
		p.emit(ctx, j, notify.OutcomeExpired, nil, job.ErrExpired.Error())

	default:
		log.Warn("stage failed", zap.Error(err))
		p.reclaim(ctx, j)
		settled, mErr := p.store.MarkFailedIfInProgress(ctx, j.ID, err.Error())
		if mErr != nil {
			log.Error("mark failed job failed", zap.Error(mErr))
			return
		}
		if !settled {
			return
		}
		p.emit(ctx, j, notify.OutcomeFailed, nil, err.Error())
	}
}

// settleCompleted finalizes a successful job: resources are reclaimed
// and the completion notification is emitted. The attachment must
// already be persisted by the caller.
func (p *Pipeline) settleCompleted(ctx context.Context, j *job.ExportJob, att *job.Attachment) {
	if p.telemetry != nil {
		p.telemetry.JobCompleted()
	}
	p.reclaim(ctx, j)
	p.emit(ctx, j, notify.OutcomeCompleted, att, "")
}

func (p *Pipeline) emit(ctx context.Context, j *job.ExportJob, outcome notify.Outcome, att *job.Attachment, errMsg string) {
	event := &notify.Event{
		JobID:      j.ID,
		Outcome:    outcome,
		Kind:       j.Kind,
		Format:     j.Format,
		Owner:      j.Owner,
		Attachment: att,
		Error:      errMsg,
	}
	if err := p.sink.Notify(ctx, event); err != nil {
		p.logger.Warn("notification delivery failed",
			zap.String("job_id", j.ID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}

// streamErr resolves the error to surface from a stream loop. When the
// stream's context was cancelled, the cancellation cause (which carries
// the Expired/Restarted reason from the registry) takes precedence over
// whatever secondary error the blocked call returned.
func streamErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return ctx.Err()
	}
	return err
}

// stageErr tags an error with the job and stage. An expired or
// restarted cause keeps its kind through the wrapper.
func stageErr(jobID, stage string, err error) error {
	return job.NewStageError(jobID, stage, err)
}
