package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndCancel(t *testing.T) {
	r := New()
	h := r.Register(context.Background(), "req-1")
	require.NotNil(t, h)
	assert.Equal(t, 1, r.Len())

	assert.NoError(t, h.Context().Err())

	assert.True(t, r.Cancel("req-1"))
	assert.ErrorIs(t, h.Context().Err(), context.Canceled)

	// Handle stays registered until Release; the runner still owns it.
	assert.Equal(t, 1, r.Len())
	r.Release("req-1")
	assert.Equal(t, 0, r.Len())
}

func TestCancelUnknownIsNoOp(t *testing.T) {
	r := New()
	assert.False(t, r.Cancel("missing"))
}

func TestReleaseCancelsContext(t *testing.T) {
	r := New()
	h := r.Register(context.Background(), "req-1")

	r.Release("req-1")
	assert.ErrorIs(t, h.Context().Err(), context.Canceled)

	// Releasing again is harmless.
	r.Release("req-1")
	assert.Equal(t, 0, r.Len())
}

func TestRegisterOverwrites(t *testing.T) {
	r := New()
	first := r.Register(context.Background(), "req-1")
	second := r.Register(context.Background(), "req-1")

	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Cancel("req-1"))
	assert.ErrorIs(t, second.Context().Err(), context.Canceled)
	assert.NoError(t, first.Context().Err())
}

func TestParentCancellationPropagates(t *testing.T) {
	r := New()
	parent, cancel := context.WithCancel(context.Background())
	h := r.Register(parent, "req-1")

	cancel()
	assert.ErrorIs(t, h.Context().Err(), context.Canceled)
}
