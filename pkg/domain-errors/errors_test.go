package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeConflict, "quarantine already resolved")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("allocate: %w", New(CodeInsufficientInventory, "short"))
		assert.True(t, HasCode(err, CodeInsufficientInventory))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load unit")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load unit: connection reset", err.Error())
	assert.Equal(t, "failed to load unit", MessageOf(err))
}

func TestDetails(t *testing.T) {
	err := New(CodeInsufficientInventory, "not enough PRC O+").
		WithDetail("requested", 3).
		WithDetail("available", 1)

	details := DetailsOf(err)
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 1, details["available"])

	details["requested"] = 99
	assert.Equal(t, 3, DetailsOf(err)["requested"], "details must be copied")
	assert.Nil(t, DetailsOf(New(CodeNotFound, "x")))
}
