// Package source abstracts the record sets exports read from.
//
// A Source exposes a filtered, ordered, batch-cursored listing of items
// plus content retrieval for a captured version. The wiki's page tree
// and its activity log are both served through this interface; the
// pipeline never sees their internals.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/quartzlabs/wikiexport/pkg/scope"
)

// Item is one exportable record: a stable key plus the identifier of
// the exact content version visible at listing time.
type Item struct {
	// Key is the stable identifier of the item (path or id). Listing is
	// ordered by Key ascending.
	Key string

	// ContentVersion identifies the content revision captured at
	// snapshot time.
	ContentVersion string
}

// ListOptions configures a List call.
type ListOptions struct {
	// Scope filters which items are listed.
	Scope *scope.Scope

	// AfterKey resumes listing strictly after this key. Empty starts
	// from the beginning.
	AfterKey string

	// Limit bounds the page size. Zero uses the source default.
	Limit int
}

// ListResult is one page of items in key order.
type ListResult struct {
	Items []Item

	// Truncated indicates more items exist after the last returned key.
	Truncated bool
}

// Source is a paginated, versioned record set.
//
// Implementations must return items in stable ascending key order and
// be safe for concurrent use.
type Source interface {
	// List returns a page of items matching the scope, ordered by key,
	// strictly after opts.AfterKey.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Open streams the content of one captured version. Returns
	// ErrVersionGone if the revision no longer exists.
	Open(ctx context.Context, key, contentVersion string) (io.ReadCloser, error)
}

// Sentinel errors for source operations.
var (
	// ErrVersionGone indicates the captured content version no longer exists.
	ErrVersionGone = errors.New("content version gone")

	// ErrUnknownKind indicates no source is registered for a job kind.
	ErrUnknownKind = errors.New("unknown source kind")
)

// Registry maps job kinds to their sources.
type Registry map[string]Source

// Lookup resolves the source for a kind.
func (r Registry) Lookup(kind string) (Source, error) {
	s, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return s, nil
}
