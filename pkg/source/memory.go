package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Memory is an in-memory Source used by tests and local development.
//
// Content is stored per (key, version) so listings stay stable while
// newer revisions are written.
type Memory struct {
	mu       sync.RWMutex
	versions map[string]string // key -> current version
	content  map[string][]byte // key "\x00" version -> content
	batch    int
}

// NewMemory builds an empty in-memory source with the given default
// page size.
func NewMemory(batch int) *Memory {
	if batch <= 0 {
		batch = 100
	}
	return &Memory{
		versions: make(map[string]string),
		content:  make(map[string][]byte),
		batch:    batch,
	}
}

// Put writes a revision and makes it the current version of key.
func (m *Memory) Put(key, version string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[key] = version
	m.content[contentKey(key, version)] = append([]byte(nil), content...)
}

// Delete removes a key and all of its revisions.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := m.versions[key]
	delete(m.versions, key)
	delete(m.content, contentKey(key, version))
}

// List implements Source.
func (m *Memory) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.versions))
	for k := range m.versions {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	limit := opts.Limit
	if limit <= 0 {
		limit = m.batch
	}

	res := &ListResult{}
	for _, k := range keys {
		if opts.AfterKey != "" && k <= opts.AfterKey {
			continue
		}
		if opts.Scope != nil && !opts.Scope.Match(k) {
			continue
		}
		if len(res.Items) == limit {
			res.Truncated = true
			break
		}
		m.mu.RLock()
		version := m.versions[k]
		m.mu.RUnlock()
		res.Items = append(res.Items, Item{Key: k, ContentVersion: version})
	}
	return res, nil
}

// Open implements Source.
func (m *Memory) Open(ctx context.Context, key, contentVersion string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.content[contentKey(key, contentVersion)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrVersionGone, key, contentVersion)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func contentKey(key, version string) string {
	return key + "\x00" + version
}
