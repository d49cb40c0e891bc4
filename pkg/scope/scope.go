// Package scope defines the export scope descriptor: what subset of the
// source record set a job exports, and the canonical identity hash used
// for duplicate detection.
package scope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Scope describes what to export. It is opaque to the scheduler and the
// stages; only the record source interprets it. Immutable after job
// creation.
type Scope struct {
	// Root is the subtree or partition the export starts from, e.g. a
	// root page path for page exports or empty for full activity logs.
	Root string `json:"root,omitempty"`

	// Includes are glob patterns item keys must match (at least one).
	// Empty means everything under Root is included.
	Includes []string `json:"includes,omitempty"`

	// Excludes are glob patterns item keys must not match (any).
	Excludes []string `json:"excludes,omitempty"`

	// Since/Until bound activity exports by entry timestamp (RFC3339).
	Since string `json:"since,omitempty"`
	Until string `json:"until,omitempty"`
}

// Errors returned by scope operations.
var (
	// ErrInvalidPattern is returned when a glob pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// Parse decodes a scope from its JSON form and validates its patterns.
func Parse(raw []byte) (*Scope, error) {
	if len(raw) == 0 {
		return &Scope{}, nil
	}
	var s Scope
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scope: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every glob pattern compiles.
func (s *Scope) Validate() error {
	for _, p := range append(append([]string{}, s.Includes...), s.Excludes...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %s", ErrInvalidPattern, p)
		}
	}
	return nil
}

// Match reports whether an item key falls inside the scope.
//
// A key matches when it lives under Root, matches at least one include
// (or there are none), and matches no exclude.
func (s *Scope) Match(key string) bool {
	key = strings.TrimPrefix(key, "/")

	if root := strings.TrimPrefix(strings.TrimSpace(s.Root), "/"); root != "" {
		if key != root && !strings.HasPrefix(key, root+"/") {
			return false
		}
	}

	if len(s.Includes) > 0 {
		matched := false
		for _, p := range s.Includes {
			if ok, _ := doublestar.Match(p, key); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, p := range s.Excludes {
		if ok, _ := doublestar.Match(p, key); ok {
			return false
		}
	}

	return true
}
