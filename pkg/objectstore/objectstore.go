// Package objectstore defines the multipart-upload surface the upload
// stage drives. Implementations should use SDK default credential
// chains and be safe for concurrent use.
package objectstore

import (
	"context"
	"io"
)

// CompletedPart records one successfully uploaded part for completion.
type CompletedPart struct {
	// PartNumber is the 1-based part index.
	PartNumber int32

	// ETag is the entity tag returned by the store for the part.
	ETag string
}

// Object describes a finalized stored artifact.
type Object struct {
	// Ref is the stable reference of the artifact (e.g., s3://bucket/key).
	Ref string

	// Key is the object key within the store.
	Key string

	// SizeBytes is the artifact size.
	SizeBytes int64

	// ETag is the entity tag of the completed object, when known.
	ETag string
}

// Store is an object store with multipart upload support.
//
// Handles are plain (key, uploadID) pairs so a crashed process can abort
// an upload it only knows from a persisted job record.
type Store interface {
	// CreateMultipartUpload starts a multipart upload for key.
	CreateMultipartUpload(ctx context.Context, key string) (uploadID string, err error)

	// UploadPart transmits one part. Parts must be at or above the
	// store's minimum part size except the final part. The body must be
	// seekable so the SDK can retry transmission.
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.ReadSeeker, size int64) (etag string, err error)

	// CompleteMultipartUpload finalizes the upload from its parts.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (*Object, error)

	// AbortMultipartUpload aborts an upload. Aborting an unknown or
	// already-aborted upload must not be treated as fatal by callers;
	// implementations surface ErrUploadNotFound for that case.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

// MinPartSize is the smallest non-final part accepted by S3-compatible
// stores (5 MiB).
const MinPartSize int64 = 5 << 20
