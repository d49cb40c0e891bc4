package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/render"
	"github.com/quartzlabs/wikiexport/pkg/source"
)

// runExport executes the export stage for a job in exporting status:
// it renders every snapshotted item into the job's transient directory,
// checkpointing the resume cursor after each item write, and advances
// the job to uploading.
//
// A set resume cursor skips items already flushed by an interrupted
// earlier attempt. The cursor is written after the item, so a crash
// redoes at most one item and never skips one.
func (p *Pipeline) runExport(parent context.Context, j *job.ExportJob) error {
	h := p.streams.Register(parent, j.ID)
	defer p.streams.Deregister(j.ID, h)
	ctx := h.Context()

	src, err := p.sources.Lookup(string(j.Kind))
	if err != nil {
		return stageErr(j.ID, StageExport, err)
	}

	dir := p.TransientDir(j.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stageErr(j.ID, StageExport, fmt.Errorf("create transient dir: %w", err))
	}

	// PDF hands the rendered tree to an external converter; everything
	// else renders per item directly.
	renderFormat := j.Format
	if renderFormat == job.FormatPDF {
		renderFormat = job.FormatMarkdown
	}
	r, err := render.For(renderFormat)
	if err != nil {
		return stageErr(j.ID, StageExport, err)
	}

	if err := p.exportItems(ctx, j, src, r, dir); err != nil {
		return stageErr(j.ID, StageExport, streamErr(ctx, err))
	}

	if j.Format == job.FormatPDF {
		if err := p.awaitConversion(ctx, j); err != nil {
			return stageErr(j.ID, StageExport, streamErr(ctx, err))
		}
	}

	if err := p.store.SetStatus(ctx, j.ID, job.StatusUploading); err != nil {
		return stageErr(j.ID, StageExport, err)
	}
	p.logger.Info("export stage completed", zap.String("job_id", j.ID))
	return nil
}

func (p *Pipeline) exportItems(ctx context.Context, j *job.ExportJob, src source.Source, r render.Renderer, dir string) error {
	cursor := j.ResumeCursor

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snaps, err := p.store.SnapshotsAfter(ctx, j.ID, cursor, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			return nil
		}

		for _, snap := range snaps {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.exportItem(ctx, src, r, dir, snap); err != nil {
				return fmt.Errorf("export %s: %w", snap.ItemKey, err)
			}
			if err := p.store.SetResumeCursor(ctx, j.ID, snap.ItemKey); err != nil {
				return err
			}
			cursor = snap.ItemKey
			j.ResumeCursor = cursor

			if j.Format == job.FormatPDF && p.converter != nil {
				// Progress report is advisory; conversion readiness is
				// what gates completion.
				if err := p.converter.Report(ctx, j.ID, cursor); err != nil {
					p.logger.Debug("converter progress report failed",
						zap.String("job_id", j.ID), zap.Error(err))
				}
			}
		}
	}
}

// exportItem fetches one captured content version, transforms it, and
// writes it to a transient path mirroring the item's hierarchy.
func (p *Pipeline) exportItem(ctx context.Context, src source.Source, r render.Renderer, dir string, snap job.Snapshot) error {
	body, err := src.Open(ctx, snap.ItemKey, snap.ContentVersion)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	path := filepath.Join(dir, filepath.FromSlash(snap.ItemKey)+r.Ext())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	renderErr := r.Render(render.Input{
		Key:            snap.ItemKey,
		ContentVersion: snap.ContentVersion,
		Body:           body,
	}, f)
	if closeErr := f.Close(); renderErr == nil {
		renderErr = closeErr
	}
	if renderErr != nil {
		_ = os.Remove(path)
		return renderErr
	}
	return nil
}

// awaitConversion blocks until the external converter has produced the
// PDF artifact in the transient tree, bounded by the job deadline.
func (p *Pipeline) awaitConversion(ctx context.Context, j *job.ExportJob) error {
	if p.converter == nil {
		return fmt.Errorf("pdf export requires a converter, none configured")
	}
	if err := p.converter.Report(ctx, j.ID, j.ResumeCursor); err != nil {
		return fmt.Errorf("report conversion progress: %w", err)
	}
	return render.WaitReady(ctx, p.converter, j.ID, j.Deadline(p.cfg.TTL), p.cfg.PollInterval)
}
