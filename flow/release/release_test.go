package release

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/flow/board"
)

func TestResolve_NoActiveReleaseErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("b1", "prod", "")
	assert.Error(t, err)
}

func TestResolve_ReturnsActiveStableVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Activate(context.Background(), Release{
		Channel: "prod", BoardID: "b1", Version: board.Version{1, 0, 0},
	}))

	v, err := r.Resolve("b1", "prod", "")
	require.NoError(t, err)
	assert.Equal(t, board.Version{1, 0, 0}, v)
}

func TestResolve_CanaryIdempotencyKeyIsSticky(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Activate(context.Background(), Release{
		Channel: "prod", BoardID: "b1", Version: board.Version{1, 0, 0},
	}))
	require.NoError(t, r.SetCanary("b1", "prod", board.Version{1, 1, 0}, 0.5))

	first, err := r.Resolve("b1", "prod", "user-42")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := r.Resolve("b1", "prod", "user-42")
		require.NoError(t, err)
		assert.Equal(t, first, again, "same idempotency key must always route the same way")
	}
}

func TestResolve_ClearCanaryRoutesBackToStable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Activate(context.Background(), Release{
		Channel: "prod", BoardID: "b1", Version: board.Version{1, 0, 0},
	}))
	require.NoError(t, r.SetCanary("b1", "prod", board.Version{1, 1, 0}, 1.0))
	r.ClearCanary("b1", "prod")

	v, err := r.Resolve("b1", "prod", "")
	require.NoError(t, err)
	assert.Equal(t, board.Version{1, 0, 0}, v)
}

func TestSetCanary_WithoutStableReleaseErrors(t *testing.T) {
	r := NewRegistry()
	err := r.SetCanary("b1", "prod", board.Version{1, 1, 0}, 0.5)
	assert.Error(t, err)
}
