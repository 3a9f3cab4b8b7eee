package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_IsMatchesBothClassAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Resource(cause, "store.get %s", "sha256:deadbeef")

	assert.True(t, Is(err, ErrResource))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, Is(err, ErrValidation))
}

func TestWrap_NilCauseStillClassifies(t *testing.T) {
	err := Control(nil, "spawn target %q not found", "node-1")
	assert.True(t, Is(err, ErrControl))
}
