package render

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

func TestFor(t *testing.T) {
	tests := []struct {
		format  job.Format
		wantExt string
	}{
		{job.FormatMarkdown, ".md"},
		{job.FormatJSON, ".json"},
		{job.FormatHTML, ".html"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			r, err := For(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, r.Ext())
		})
	}

	t.Run("pdf has no per-item renderer", func(t *testing.T) {
		_, err := For(job.FormatPDF)
		assert.Error(t, err)
	})
}

func TestMarkdown_Passthrough(t *testing.T) {
	var out bytes.Buffer
	err := Markdown{}.Render(Input{
		Key:  "page/a",
		Body: strings.NewReader("# Title\n\nbody"),
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nbody", out.String())
}

func TestJSON_Envelope(t *testing.T) {
	var out bytes.Buffer
	err := JSON{}.Render(Input{
		Key:            "page/a",
		ContentVersion: "v7",
		Body:           strings.NewReader("hello"),
	}, &out)
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &envelope))
	assert.Equal(t, "page/a", envelope["key"])
	assert.Equal(t, "v7", envelope["content_version"])
	assert.Equal(t, "hello", envelope["content"])
}

func TestHTML_EscapesContent(t *testing.T) {
	var out bytes.Buffer
	err := HTML{}.Render(Input{
		Key:  "page/<script>",
		Body: strings.NewReader("a < b & c"),
	}, &out)
	require.NoError(t, err)

	html := out.String()
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "a &lt; b &amp; c")
	assert.NotContains(t, html, "<script>")
}

type fakeConverter struct {
	readyAfter int
	calls      int
	err        error
}

func (f *fakeConverter) Report(ctx context.Context, jobID, cursor string) error { return nil }

func (f *fakeConverter) Ready(ctx context.Context, jobID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.calls > f.readyAfter, nil
}

func TestWaitReady(t *testing.T) {
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	t.Run("ready after polls", func(t *testing.T) {
		c := &fakeConverter{readyAfter: 2}
		err := WaitReady(ctx, c, "j1", deadline, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, c.calls)
	})

	t.Run("converter error surfaces", func(t *testing.T) {
		c := &fakeConverter{err: assert.AnError}
		err := WaitReady(ctx, c, "j1", deadline, time.Millisecond)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		c := &fakeConverter{readyAfter: 1 << 30}
		err := WaitReady(ctx, c, "j1", time.Now().Add(-time.Second), time.Millisecond)
		assert.ErrorIs(t, err, ErrConvertDeadline)
	})

	t.Run("cancellation cause propagates", func(t *testing.T) {
		cctx, cancel := context.WithCancelCause(context.Background())
		cancel(job.ErrRestarted)

		c := &fakeConverter{readyAfter: 1 << 30}
		err := WaitReady(cctx, c, "j1", deadline, time.Millisecond)
		assert.ErrorIs(t, err, job.ErrRestarted)
	})
}
