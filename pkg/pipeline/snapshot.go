package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"go.uber.org/zap"

	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/scope"
	"github.com/quartzlabs/wikiexport/pkg/source"
)

// runSnapshot executes the snapshot stage for a job in initializing
// status: it captures one snapshot row per in-scope item, accumulates
// the content hash, and either advances the job to exporting or
// short-circuits to completed when an identical completed export
// already exists.
func (p *Pipeline) runSnapshot(parent context.Context, j *job.ExportJob) error {
	h := p.streams.Register(parent, j.ID)
	defer p.streams.Deregister(j.ID, h)
	ctx := h.Context()

	// A crash mid-snapshot leaves partial rows behind; the stage always
	// starts from a clean set.
	if err := p.store.DeleteSnapshots(ctx, j.ID); err != nil {
		return stageErr(j.ID, StageSnapshot, err)
	}

	sc, err := scope.Parse(j.ScopeJSON)
	if err != nil {
		return stageErr(j.ID, StageSnapshot, err)
	}
	src, err := p.sources.Lookup(string(j.Kind))
	if err != nil {
		return stageErr(j.ID, StageSnapshot, err)
	}

	digest := sha256.New()
	count, err := p.captureSnapshots(ctx, j, src, sc, digest)
	if err != nil {
		return stageErr(j.ID, StageSnapshot, streamErr(ctx, err))
	}

	contentHash := hex.EncodeToString(digest.Sum(nil))
	if err := p.store.SetContentHash(ctx, j.ID, contentHash); err != nil {
		return stageErr(j.ID, StageSnapshot, err)
	}
	j.ContentHash = contentHash

	p.logger.Info("snapshot stage completed",
		zap.String("job_id", j.ID),
		zap.Int("items", count),
		zap.String("content_hash", contentHash))

	// Byte-identical content already uploaded by an earlier job means
	// this one can reuse that artifact and skip export and upload
	// entirely.
	dup, err := p.store.FindCompletedDuplicate(ctx, j)
	if err != nil {
		return stageErr(j.ID, StageSnapshot, err)
	}
	if dup != nil && dup.Attachment != nil {
		if err := p.store.MarkCompleted(ctx, j.ID, *dup.Attachment); err != nil {
			return stageErr(j.ID, StageSnapshot, err)
		}
		p.logger.Info("duplicate content detected, reusing artifact",
			zap.String("job_id", j.ID),
			zap.String("duplicate_of", dup.ID),
			zap.String("attachment", dup.Attachment.Ref))
		p.settleCompleted(ctx, j, dup.Attachment)
		return nil
	}

	if err := p.store.SetStatus(ctx, j.ID, job.StatusExporting); err != nil {
		return stageErr(j.ID, StageSnapshot, err)
	}
	return nil
}

// captureSnapshots drives the paginated source read, writing snapshot
// rows batch by batch and feeding the content digest in key order.
func (p *Pipeline) captureSnapshots(ctx context.Context, j *job.ExportJob, src source.Source, sc *scope.Scope, digest hash.Hash) (int, error) {
	var afterKey string
	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return count, err
			}
		}

		res, err := src.List(ctx, source.ListOptions{
			Scope:    sc,
			AfterKey: afterKey,
			Limit:    p.cfg.BatchSize,
		})
		if err != nil {
			return count, fmt.Errorf("list source items: %w", err)
		}
		if len(res.Items) == 0 {
			return count, nil
		}

		snaps := make([]job.Snapshot, 0, len(res.Items))
		for _, item := range res.Items {
			digest.Write([]byte(item.Key))
			digest.Write([]byte{0})
			digest.Write([]byte(item.ContentVersion))
			digest.Write([]byte{'\n'})
			snaps = append(snaps, job.Snapshot{
				JobID:          j.ID,
				ItemKey:        item.Key,
				ContentVersion: item.ContentVersion,
			})
		}
		if err := p.store.InsertSnapshots(ctx, snaps); err != nil {
			return count, err
		}
		count += len(snaps)
		afterKey = res.Items[len(res.Items)-1].Key

		if !res.Truncated {
			return count, nil
		}
	}
}
