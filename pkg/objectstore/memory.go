package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used by tests and local development.
// It enforces the minimum part size the way S3 does: every part except
// the last must be at least MinPartSize (configurable for tests).
type Memory struct {
	mu      sync.Mutex
	minPart int64
	pending map[string]*memUpload // uploadID -> state
	objects map[string][]byte     // key -> completed bytes

	aborted   int
	completed int
}

type memUpload struct {
	key   string
	parts map[int32][]byte
}

// NewMemory builds an empty in-memory object store.
func NewMemory() *Memory {
	return &Memory{
		minPart: MinPartSize,
		pending: make(map[string]*memUpload),
		objects: make(map[string][]byte),
	}
}

// WithMinPartSize lowers the enforced minimum part size for tests.
func (m *Memory) WithMinPartSize(n int64) *Memory {
	m.minPart = n
	return m
}

// CreateMultipartUpload implements Store.
func (m *Memory) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.pending[id] = &memUpload{key: key, parts: make(map[int32][]byte)}
	return id, nil
}

// UploadPart implements Store.
func (m *Memory) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.ReadSeeker, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.pending[uploadID]
	if !ok || up.key != key {
		return "", &StoreError{Op: "UploadPart", Key: key, Err: ErrUploadNotFound}
	}
	up.parts[partNumber] = data

	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// CompleteMultipartUpload implements Store.
func (m *Memory) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.pending[uploadID]
	if !ok || up.key != key {
		return nil, &StoreError{Op: "CompleteMultipartUpload", Key: key, Err: ErrUploadNotFound}
	}

	var assembled []byte
	for i, p := range parts {
		data, ok := up.parts[p.PartNumber]
		if !ok {
			return nil, &StoreError{Op: "CompleteMultipartUpload", Key: key,
				Err: fmt.Errorf("missing part %d", p.PartNumber)}
		}
		if i < len(parts)-1 && int64(len(data)) < m.minPart {
			return nil, &StoreError{Op: "CompleteMultipartUpload", Key: key, Err: ErrPartTooSmall}
		}
		assembled = append(assembled, data...)
	}

	delete(m.pending, uploadID)
	m.objects[key] = assembled
	m.completed++

	return &Object{
		Ref:       "mem://" + key,
		Key:       key,
		SizeBytes: int64(len(assembled)),
	}, nil
}

// AbortMultipartUpload implements Store.
func (m *Memory) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[uploadID]; !ok {
		return &StoreError{Op: "AbortMultipartUpload", Key: key, Err: ErrUploadNotFound}
	}
	delete(m.pending, uploadID)
	m.aborted++
	return nil
}

// Object returns the completed bytes for key, if any.
func (m *Memory) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// PendingUploads returns the number of in-flight multipart uploads.
func (m *Memory) PendingUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Completed returns how many uploads finished successfully.
func (m *Memory) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Aborted returns how many uploads were aborted.
func (m *Memory) Aborted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}
