package streamreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzlabs/wikiexport/pkg/job"
)

func TestRegisterAndDeregister(t *testing.T) {
	r := New()
	ctx := context.Background()

	h := r.Register(ctx, "j1")
	assert.True(t, r.Active("j1"))
	assert.Equal(t, 1, r.Len())
	assert.NoError(t, h.Context().Err())

	r.Deregister("j1", h)
	assert.False(t, r.Active("j1"))
	assert.Zero(t, r.Len())
	assert.Error(t, h.Context().Err())
}

func TestRegister_ReplacesPrevious(t *testing.T) {
	r := New()
	ctx := context.Background()

	first := r.Register(ctx, "j1")
	second := r.Register(ctx, "j1")

	// The stale handle is cancelled, the new one lives.
	assert.Error(t, first.Context().Err())
	assert.NoError(t, second.Context().Err())
	assert.Equal(t, 1, r.Len())

	// Deregistering the stale handle does not evict the live one.
	r.Deregister("j1", first)
	assert.True(t, r.Active("j1"))
}

func TestDestroy_CarriesReason(t *testing.T) {
	r := New()
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		h := r.Register(ctx, "j1")
		r.Destroy("j1", job.ErrExpired)

		require.Error(t, h.Context().Err())
		assert.ErrorIs(t, context.Cause(h.Context()), job.ErrExpired)
		assert.False(t, r.Active("j1"))
	})

	t.Run("restarted", func(t *testing.T) {
		h := r.Register(ctx, "j2")
		r.Destroy("j2", job.ErrRestarted)
		assert.ErrorIs(t, context.Cause(h.Context()), job.ErrRestarted)
	})
}

func TestDestroy_NoStreamIsNoop(t *testing.T) {
	r := New()
	r.Destroy("absent", job.ErrExpired)
	r.Destroy("absent", job.ErrExpired)
	assert.Zero(t, r.Len())
}

func TestHandleObservesParentCancellation(t *testing.T) {
	r := New()
	parent, cancel := context.WithCancel(context.Background())

	h := r.Register(parent, "j1")
	cancel()

	assert.Error(t, h.Context().Err())
}
