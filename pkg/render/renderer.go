// Package render transforms snapshotted item content into the target
// export format.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"path"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

// Input carries one item through a format transform.
type Input struct {
	// Key is the item's logical path.
	Key string

	// ContentVersion is the captured revision identifier.
	ContentVersion string

	// Body streams the raw content of the captured revision.
	Body io.Reader
}

// Renderer converts raw item content into the output format.
//
// Renderers must be safe for concurrent use; the same renderer is
// shared by every job of a format.
type Renderer interface {
	// Ext is the file extension written to transient storage (with dot).
	Ext() string

	// Render writes the transformed content for one item into w.
	Render(in Input, w io.Writer) error
}

// For returns the renderer for a format tag.
//
// PDF is not served here: PDF exports hand the whole tree to an
// external converter instead of rendering per item (see Waiter).
func For(format job.Format) (Renderer, error) {
	switch format {
	case job.FormatMarkdown:
		return Markdown{}, nil
	case job.FormatJSON:
		return JSON{}, nil
	case job.FormatHTML:
		return HTML{}, nil
	default:
		return nil, fmt.Errorf("no renderer for format %q", format)
	}
}

// Markdown passes raw content through unchanged.
type Markdown struct{}

func (Markdown) Ext() string { return ".md" }

func (Markdown) Render(in Input, w io.Writer) error {
	_, err := io.Copy(w, in.Body)
	return err
}

// JSON wraps each item in a self-describing envelope.
type JSON struct{}

func (JSON) Ext() string { return ".json" }

func (JSON) Render(in Input, w io.Writer) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, in.Body); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	return enc.Encode(map[string]any{
		"key":             in.Key,
		"content_version": in.ContentVersion,
		"content":         buf.String(),
	})
}

// HTML renders a minimal standalone document per item. The wiki's full
// theme rendering stays upstream; exports only need readable output.
type HTML struct{}

func (HTML) Ext() string { return ".html" }

func (HTML) Render(in Input, w io.Writer) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, in.Body); err != nil {
		return err
	}

	title := path.Base(in.Key)
	_, err := fmt.Fprintf(w,
		"<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n<pre>%s</pre>\n</body>\n</html>\n",
		html.EscapeString(title), html.EscapeString(buf.String()))
	return err
}
