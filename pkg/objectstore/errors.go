package objectstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for object store operations.
var (
	// ErrUploadNotFound indicates the multipart upload does not exist
	// (never created, already completed, or already aborted).
	ErrUploadNotFound = errors.New("upload not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrThrottled indicates the request was rate limited by the store.
	ErrThrottled = errors.New("request throttled")

	// ErrStoreUnavailable indicates the store service is unavailable.
	ErrStoreUnavailable = errors.New("object store unavailable")

	// ErrPartTooSmall indicates a non-final part below the minimum size.
	ErrPartTooSmall = errors.New("part below minimum size")
)

// StoreError wraps store-specific errors with context.
type StoreError struct {
	// Op is the operation that failed (e.g., "UploadPart").
	Op string

	// Bucket is the bucket name, if applicable.
	Bucket string

	// Key is the object key, if applicable.
	Key string

	// Err is the underlying error.
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("objectstore %s: %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("objectstore %s: %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("objectstore %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsUploadNotFound reports whether err indicates a missing upload.
func IsUploadNotFound(err error) bool {
	return errors.Is(err, ErrUploadNotFound)
}

// IsThrottled reports whether err indicates provider rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}
