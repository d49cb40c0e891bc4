package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPartReader_InvalidSize(t *testing.T) {
	_, err := NewPartReader(bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, ErrPartSize)

	_, err = NewPartReader(bytes.NewReader(nil), -1)
	assert.ErrorIs(t, err, ErrPartSize)
}

func TestPartReader_ExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 20)
	pr, err := NewPartReader(bytes.NewReader(data), 10)
	require.NoError(t, err)

	first, err := pr.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Number)
	assert.EqualValues(t, 10, first.Size())

	second, err := pr.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.Number)
	assert.EqualValues(t, 10, second.Size())

	_, err = pr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPartReader_ShortFinalPart(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 25)
	pr, err := NewPartReader(bytes.NewReader(data), 10)
	require.NoError(t, err)

	var total []byte
	var sizes []int64
	for {
		part, err := pr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, part.Size())

		buf, err := io.ReadAll(part.Reader())
		require.NoError(t, err)
		total = append(total, buf...)
	}

	assert.Equal(t, []int64{10, 10, 5}, sizes)
	assert.Equal(t, data, total)
}

func TestPartReader_SingleShortPart(t *testing.T) {
	pr, err := NewPartReader(bytes.NewReader([]byte("abc")), 10)
	require.NoError(t, err)

	part, err := pr.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 1, part.Number)
	assert.EqualValues(t, 3, part.Size())

	_, err = pr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPartReader_EmptyInput(t *testing.T) {
	pr, err := NewPartReader(bytes.NewReader(nil), 10)
	require.NoError(t, err)

	_, err = pr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPartReader_RebuffersChunkyReads(t *testing.T) {
	// The source delivers one byte per Read; parts still come out at
	// the fixed size.
	src := iotest{data: bytes.Repeat([]byte("z"), 12)}
	pr, err := NewPartReader(&src, 5)
	require.NoError(t, err)

	var sizes []int64
	for {
		part, err := pr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, part.Size())
	}
	assert.Equal(t, []int64{5, 5, 2}, sizes)
}

type iotest struct {
	data []byte
	off  int
}

func (r *iotest) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.off]
	r.off++
	return 1, nil
}
