package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func extract(t *testing.T, data []byte) map[string]string {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	out := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(content)
	}
	return out
}

func TestTarGzip(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"alpha.md":        "one",
		"nested/beta.md":  "two",
		"nested/gamma.md": "three",
	})

	var buf bytes.Buffer
	require.NoError(t, TarGzip(context.Background(), dir, &buf))

	files := extract(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"alpha.md":        "one",
		"nested/beta.md":  "two",
		"nested/gamma.md": "three",
	}, files)

	var names []string
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Len(t, names, 3)
}

func TestTarGzip_EmptyDir(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TarGzip(context.Background(), t.TempDir(), &buf))
	assert.NotZero(t, buf.Len())
	assert.Empty(t, extract(t, buf.Bytes()))
}

func TestTarGzip_MissingDir(t *testing.T) {
	var buf bytes.Buffer
	err := TarGzip(context.Background(), filepath.Join(t.TempDir(), "absent"), &buf)
	assert.Error(t, err)
}

func TestTarGzip_Cancelled(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.md": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := TarGzip(ctx, dir, &buf)
	assert.ErrorIs(t, err, context.Canceled)
}
