package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzlabs/wikiexport/pkg/scope"
)

func TestRegistry_Lookup(t *testing.T) {
	src := NewMemory(10)
	reg := Registry{"pages": src}

	got, err := reg.Lookup("pages")
	require.NoError(t, err)
	assert.Equal(t, Source(src), got)

	_, err = reg.Lookup("unknown")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestMemory_ListPagination(t *testing.T) {
	src := NewMemory(2)
	src.Put("a", "v1", []byte("1"))
	src.Put("b", "v2", []byte("2"))
	src.Put("c", "v3", []byte("3"))

	ctx := context.Background()

	first, err := src.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Truncated)
	assert.Equal(t, "a", first.Items[0].Key)
	assert.Equal(t, "b", first.Items[1].Key)

	second, err := src.List(ctx, ListOptions{AfterKey: "b"})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.False(t, second.Truncated)
	assert.Equal(t, "c", second.Items[0].Key)
	assert.Equal(t, "v3", second.Items[0].ContentVersion)
}

func TestMemory_ListScoped(t *testing.T) {
	src := NewMemory(10)
	src.Put("wiki/a.md", "v1", nil)
	src.Put("wiki/b.txt", "v1", nil)
	src.Put("other/c.md", "v1", nil)

	res, err := src.List(context.Background(), ListOptions{
		Scope: &scope.Scope{Root: "wiki", Includes: []string{"**/*.md"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "wiki/a.md", res.Items[0].Key)
}

func TestMemory_OpenPinnedVersion(t *testing.T) {
	src := NewMemory(10)
	src.Put("a", "v1", []byte("old"))
	ctx := context.Background()

	// A newer revision does not disturb an already-captured one.
	src.Put("a", "v2", []byte("new"))

	rc, err := src.Open(ctx, "a", "v1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "old", string(data))

	_, err = src.Open(ctx, "a", "v99")
	assert.ErrorIs(t, err, ErrVersionGone)
}

func TestFS_ListAndOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.md"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "beta.md"), []byte("B"), 0o644))

	src, err := NewFS(dir)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := src.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "alpha.md", res.Items[0].Key)
	assert.Equal(t, "nested/beta.md", res.Items[1].Key)
	assert.NotEmpty(t, res.Items[0].ContentVersion)

	rc, err := src.Open(ctx, "alpha.md", res.Items[0].ContentVersion)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "A", string(data))
}

func TestFS_ChangedContentIsGone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.md")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o644))

	src, err := NewFS(dir)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := src.List(ctx, ListOptions{})
	require.NoError(t, err)
	captured := res.Items[0].ContentVersion

	// Rewriting the file changes size, so the captured version is gone.
	require.NoError(t, os.WriteFile(path, []byte("after-rewrite"), 0o644))

	_, err = src.Open(ctx, "page.md", captured)
	assert.ErrorIs(t, err, ErrVersionGone)
}

func TestFS_RejectsTraversal(t *testing.T) {
	src, err := NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = src.Open(context.Background(), "../etc/passwd", "v")
	assert.Error(t, err)
}

func TestNewFS_Missing(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
