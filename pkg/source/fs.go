package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS is a Source backed by a directory tree. Item keys are
// slash-separated paths relative to the root; the content version is
// derived from the file's size and modification time, so an edit
// between snapshot and export is detected as a gone version.
type FS struct {
	root string
}

// NewFS creates a filesystem source rooted at dir.
func NewFS(dir string) (*FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", dir)
	}
	return &FS{root: dir}, nil
}

// List implements Source.
func (f *FS) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	keys, err := f.collectKeys(ctx)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	res := &ListResult{}
	for i, key := range keys {
		if key <= opts.AfterKey {
			continue
		}
		if opts.Scope != nil && !opts.Scope.Match(key) {
			continue
		}

		version, err := f.version(key)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, Item{Key: key, ContentVersion: version})

		if len(res.Items) == limit {
			res.Truncated = i < len(keys)-1
			break
		}
	}
	return res, nil
}

// Open implements Source. The captured version must still match the
// file on disk; content changed since the snapshot surfaces as
// ErrVersionGone.
func (f *FS) Open(ctx context.Context, key, contentVersion string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := f.version(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVersionGone, key)
	}
	if current != contentVersion {
		return nil, fmt.Errorf("%w: %s changed since snapshot", ErrVersionGone, key)
	}

	path, err := f.fullPath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (f *FS) collectKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cErr := ctx.Err(); cErr != nil {
			return cErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source root: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FS) version(key string) (string, error) {
	path, err := f.fullPath(key)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

// fullPath resolves a key inside the root, rejecting traversal.
func (f *FS) fullPath(key string) (string, error) {
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid item key %q", key)
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}
