package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	err := Clone(ErrCameraBusy, "face session already running")
	wrapped := fmt.Errorf("start: %w", err)

	got := FromError(wrapped)
	assert.Equal(t, ErrCameraBusy.Code, got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "face session already running", got.Message)
}

func TestFromErrorWrapsPlainErrors(t *testing.T) {
	got := FromError(fmt.Errorf("disk full"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Contains(t, got.Error(), "disk full")
}

func TestHasCode(t *testing.T) {
	inner := Wrap(fmt.Errorf("read failed"), ErrDevice.Code, ErrDevice.Status, "camera read")
	outer := fmt.Errorf("session: %w", inner)

	assert.True(t, HasCode(outer, ErrDevice.Code))
	assert.False(t, HasCode(outer, ErrValidation.Code))
	assert.False(t, HasCode(nil, ErrDevice.Code))
}

func TestIsMatchesClonesByCode(t *testing.T) {
	err := fmt.Errorf("qr scan: %w", Clone(ErrNoCode, "uploaded image holds no qr code"))

	assert.ErrorIs(t, err, ErrNoCode)
	assert.NotErrorIs(t, err, ErrValidation)
}
