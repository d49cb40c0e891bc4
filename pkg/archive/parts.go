package archive

import (
	"bytes"
	"errors"
	"io"
)

// Part is one fixed-size slice of a byte stream, numbered from 1 the
// way multipart upload APIs expect.
type Part struct {
	// Number is the 1-based part index.
	Number int32

	// Data holds the part bytes. Only the final part may be shorter
	// than the configured part size.
	Data []byte
}

// Reader returns a seekable reader over the part, as required by
// upload SDKs for retry.
func (p *Part) Reader() io.ReadSeeker {
	return bytes.NewReader(p.Data)
}

// Size returns the part length in bytes.
func (p *Part) Size() int64 {
	return int64(len(p.Data))
}

// PartReader rebuffers an arbitrary byte stream into fixed-size parts.
//
// The compressor emits variable-size chunks while multipart APIs
// require parts at or above a minimum size (except the final part);
// this decouples the two boundaries. PartReader is not safe for
// concurrent use.
type PartReader struct {
	r        io.Reader
	partSize int64
	next     int32
	done     bool
}

// ErrPartSize is returned for a non-positive part size.
var ErrPartSize = errors.New("part size must be positive")

// NewPartReader wraps r, cutting it into parts of partSize bytes.
func NewPartReader(r io.Reader, partSize int64) (*PartReader, error) {
	if partSize <= 0 {
		return nil, ErrPartSize
	}
	return &PartReader{r: r, partSize: partSize, next: 1}, nil
}

// Next returns the next part, or io.EOF once the stream is exhausted.
// A final short part (including an empty stream's single empty read)
// is returned before EOF only if it carries bytes.
func (pr *PartReader) Next() (*Part, error) {
	if pr.done {
		return nil, io.EOF
	}

	buf := make([]byte, pr.partSize)
	n, err := io.ReadFull(pr.r, buf)
	switch {
	case err == nil:
		// Full part.
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		pr.done = true
		if n == 0 {
			return nil, io.EOF
		}
	default:
		return nil, err
	}

	p := &Part{Number: pr.next, Data: buf[:n]}
	pr.next++
	return p, nil
}
