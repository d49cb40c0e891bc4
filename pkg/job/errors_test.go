package job

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil-ish generic", errors.New("boom"), KindStage},
		{"expired sentinel", ErrExpired, KindExpired},
		{"restarted sentinel", ErrRestarted, KindRestarted},
		{"wrapped expired", fmt.Errorf("read: %w", ErrExpired), KindExpired},
		{"wrapped restarted", fmt.Errorf("read: %w", ErrRestarted), KindRestarted},
		{"tagged error", &Error{JobID: "j", Kind: KindExpired, Err: errors.New("x")}, KindExpired},
		{"stage error wrapping expired keeps kind", NewStageError("j", "export", ErrExpired), KindExpired},
		{"stage error with generic cause", NewStageError("j", "upload", errors.New("io")), KindStage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStageError("j1", "export", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "j1")
	assert.Contains(t, err.Error(), "export")

	var tagged *Error
	assert.ErrorAs(t, fmt.Errorf("outer: %w", err), &tagged)
	assert.Equal(t, "j1", tagged.JobID)
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsExpired(fmt.Errorf("x: %w", ErrExpired)))
	assert.False(t, IsExpired(ErrRestarted))
	assert.True(t, IsRestarted(NewStageError("j", "s", ErrRestarted)))
	assert.False(t, IsRestarted(errors.New("plain")))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusInitializing.InProgress())
	assert.True(t, StatusExporting.InProgress())
	assert.True(t, StatusUploading.InProgress())
	assert.False(t, StatusCompleted.InProgress())
	assert.False(t, StatusFailed.InProgress())

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusExporting.Terminal())
}
