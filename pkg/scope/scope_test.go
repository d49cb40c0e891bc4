package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("empty input yields empty scope", func(t *testing.T) {
		s, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, s.Root)
		assert.Empty(t, s.Includes)
	})

	t.Run("full scope", func(t *testing.T) {
		s, err := Parse([]byte(`{"root":"/wiki","includes":["**/*.md"],"excludes":["drafts/**"]}`))
		require.NoError(t, err)
		assert.Equal(t, "/wiki", s.Root)
		assert.Equal(t, []string{"**/*.md"}, s.Includes)
		assert.Equal(t, []string{"drafts/**"}, s.Excludes)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := Parse([]byte(`{`))
		assert.Error(t, err)
	})

	t.Run("invalid pattern rejected", func(t *testing.T) {
		_, err := Parse([]byte(`{"includes":["[unclosed"]}`))
		assert.ErrorIs(t, err, ErrInvalidPattern)
	})
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		key   string
		want  bool
	}{
		{"empty scope matches all", Scope{}, "any/path", true},
		{"root prefix match", Scope{Root: "/wiki"}, "/wiki/page", true},
		{"root prefix miss", Scope{Root: "/wiki"}, "/other/page", false},
		{"include match", Scope{Includes: []string{"**/*.md"}}, "a/b.md", true},
		{"include miss", Scope{Includes: []string{"**/*.md"}}, "a/b.txt", false},
		{"exclude wins", Scope{Includes: []string{"**"}, Excludes: []string{"drafts/**"}}, "drafts/x", false},
		{"not excluded", Scope{Excludes: []string{"drafts/**"}}, "pages/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Match(tt.key))
		})
	}
}

func TestHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a, err := Hash(&Scope{Root: "/wiki", Includes: []string{"x", "y"}})
		require.NoError(t, err)
		b, err := Hash(&Scope{Root: "/wiki", Includes: []string{"x", "y"}})
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("include order does not matter", func(t *testing.T) {
		a, err := Hash(&Scope{Includes: []string{"x", "y"}})
		require.NoError(t, err)
		b, err := Hash(&Scope{Includes: []string{"y", "x"}})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("different scopes differ", func(t *testing.T) {
		a, err := Hash(&Scope{Root: "/wiki"})
		require.NoError(t, err)
		b, err := Hash(&Scope{Root: "/other"})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
