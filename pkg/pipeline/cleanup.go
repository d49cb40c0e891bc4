package pipeline

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/notify"
)

// Cleanup destroys the job's registered stream with the given reason
// and reclaims every resource the job touched. Each sub-step failure is
// logged and the remaining steps still run; a partially cleaned job is
// finished by the next invocation. The whole routine is idempotent:
// deleting an absent snapshot set, removing an absent directory, and
// aborting a gone upload are all tolerated.
func (p *Pipeline) Cleanup(ctx context.Context, j *job.ExportJob, reason error) {
	p.streams.Destroy(j.ID, reason)
	p.reclaim(ctx, j)
}

// reclaim runs the resource sub-steps without touching the stream.
// Stages call it via the settle helpers after their own Deregister.
func (p *Pipeline) reclaim(ctx context.Context, j *job.ExportJob) {
	log := p.logger.With(zap.String("job_id", j.ID))

	// Reclamation must run to completion even when the triggering
	// stream context is already cancelled.
	ctx = context.WithoutCancel(ctx)

	if err := p.store.DeleteSnapshots(ctx, j.ID); err != nil {
		log.Warn("cleanup: delete snapshots failed", zap.Error(err))
	}

	if err := os.RemoveAll(p.TransientDir(j.ID)); err != nil {
		log.Warn("cleanup: remove transient dir failed", zap.Error(err))
	}

	if j.UploadHandle != nil {
		p.abortUpload(ctx, j.ID, j.UploadHandle)
		if err := p.store.SetUploadHandle(ctx, j.ID, nil); err != nil {
			log.Warn("cleanup: clear upload handle failed", zap.Error(err))
		} else {
			j.UploadHandle = nil
		}
	}
}

// SweepExpired is the cleanup entry point for the job-level deadline:
// every in-progress job past its TTL, or stalled beyond StallAfter
// without a record update, is failed with the expired outcome and its
// stream destroyed with the Expired reason.
func (p *Pipeline) SweepExpired(ctx context.Context, now time.Time) {
	// LIMIT -1 selects every in-progress job; the sweep is not bounded
	// by the dispatch cap.
	jobs, err := p.store.ListInProgress(ctx, -1)
	if err != nil {
		p.logger.Error("expiration sweep: list jobs failed", zap.Error(err))
		return
	}

	for _, j := range jobs {
		if !p.deadlinePassed(j, now) {
			continue
		}

		p.logger.Warn("job expired",
			zap.String("job_id", j.ID),
			zap.Time("created_at", j.CreatedAt),
			zap.Time("updated_at", j.UpdatedAt))

		// Claim the terminal transition before destroying the stream:
		// the unblocked stage also runs the shared settle path, and only
		// the side that performs the transition notifies.
		settled, err := p.store.MarkFailedIfInProgress(ctx, j.ID, job.ErrExpired.Error())
		if err != nil {
			p.logger.Error("mark expired job failed",
				zap.String("job_id", j.ID), zap.Error(err))
			continue
		}
		p.Cleanup(ctx, j, job.ErrExpired)
		if !settled {
			continue
		}
		p.emit(ctx, j, notify.OutcomeExpired, nil, job.ErrExpired.Error())
	}
}

func (p *Pipeline) deadlinePassed(j *job.ExportJob, now time.Time) bool {
	if j.Expired(p.cfg.TTL, now) {
		return true
	}
	// Stall detection catches a stage that died without advancing
	// status; the re-entrancy guard alone would skip such a job forever.
	return p.cfg.StallAfter > 0 && now.Sub(j.UpdatedAt) > p.cfg.StallAfter
}
