package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/quartzlabs/wikiexport/pkg/archive"
	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/objectstore"
)

// runUpload executes the upload stage for a job in uploading status:
// it streams a tar.gz of the transient tree through a multipart upload
// and settles the job as completed.
//
// The archiver emits variable-size chunks; the part reader rebuffers
// them into fixed-size parts at or above the store minimum (final short
// part allowed), decoupling chunk boundaries from part boundaries.
func (p *Pipeline) runUpload(parent context.Context, j *job.ExportJob) error {
	h := p.streams.Register(parent, j.ID)
	defer p.streams.Deregister(j.ID, h)
	ctx := h.Context()

	// A handle from an interrupted earlier attempt is unusable: parts
	// may be missing or duplicated. Abort it and start over.
	if j.UploadHandle != nil {
		p.abortUpload(ctx, j.ID, j.UploadHandle)
		if err := p.store.SetUploadHandle(ctx, j.ID, nil); err != nil {
			return stageErr(j.ID, StageUpload, err)
		}
		j.UploadHandle = nil
	}

	key := StorageKey(j)
	uploadID, err := p.objects.CreateMultipartUpload(ctx, key)
	if err != nil {
		return stageErr(j.ID, StageUpload, streamErr(ctx, fmt.Errorf("init multipart upload: %w", err)))
	}
	handle := &job.UploadHandle{UploadID: uploadID, Key: key}

	// Persisted before the first part so a crash from here on leaves an
	// abortable record.
	if err := p.store.SetUploadHandle(ctx, j.ID, handle); err != nil {
		p.abortUpload(ctx, j.ID, handle)
		return stageErr(j.ID, StageUpload, err)
	}
	j.UploadHandle = handle

	obj, err := p.streamParts(ctx, j, handle)
	if err != nil {
		p.abortUpload(ctx, j.ID, handle)
		return stageErr(j.ID, StageUpload, streamErr(ctx, err))
	}

	att := job.Attachment{Ref: obj.Ref, SizeBytes: obj.SizeBytes}
	if err := p.store.MarkCompleted(ctx, j.ID, att); err != nil {
		return stageErr(j.ID, StageUpload, err)
	}

	p.logger.Info("upload stage completed",
		zap.String("job_id", j.ID),
		zap.String("attachment", att.Ref),
		zap.Int64("size_bytes", att.SizeBytes))
	p.settleCompleted(ctx, j, &att)
	return nil
}

// streamParts archives the transient tree into the multipart upload
// part by part and finalizes it.
func (p *Pipeline) streamParts(ctx context.Context, j *job.ExportJob, handle *job.UploadHandle) (*objectstore.Object, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(archive.TarGzip(ctx, p.TransientDir(j.ID), pw))
	}()
	defer func() { _ = pr.Close() }()

	parts, err := archive.NewPartReader(pr, p.cfg.PartSize)
	if err != nil {
		return nil, err
	}

	var completed []objectstore.CompletedPart
	for {
		part, err := parts.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive part: %w", err)
		}

		etag, err := p.objects.UploadPart(ctx, handle.Key, handle.UploadID, part.Number, part.Reader(), part.Size())
		if err != nil {
			return nil, fmt.Errorf("upload part %d: %w", part.Number, err)
		}
		completed = append(completed, objectstore.CompletedPart{
			PartNumber: part.Number,
			ETag:       etag,
		})
	}

	obj, err := p.objects.CompleteMultipartUpload(ctx, handle.Key, handle.UploadID, completed)
	if err != nil {
		return nil, fmt.Errorf("complete multipart upload: %w", err)
	}
	return obj, nil
}

// abortUpload aborts a multipart upload, tolerating an already-gone
// handle. Abort runs under a fresh context so cancellation of the job
// stream does not leak the partial upload.
func (p *Pipeline) abortUpload(ctx context.Context, jobID string, handle *job.UploadHandle) {
	abortCtx := context.WithoutCancel(ctx)
	err := p.objects.AbortMultipartUpload(abortCtx, handle.Key, handle.UploadID)
	if err != nil && !objectstore.IsUploadNotFound(err) {
		p.logger.Warn("abort multipart upload failed",
			zap.String("job_id", jobID),
			zap.String("key", handle.Key),
			zap.Error(err))
	}
}

// StorageKey returns the object key the artifact of j is stored under.
func StorageKey(j *job.ExportJob) string {
	return fmt.Sprintf("exports/%s/%s.tar.gz", j.Owner.ID, j.ID)
}
