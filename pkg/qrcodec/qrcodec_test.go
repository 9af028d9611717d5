package qrcodec

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := New()

	data, err := codec.Encode("10000001")
	require.NoError(t, err)

	res, err := codec.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "10000001", res.Payload)
	assert.NotEmpty(t, res.Corners)
}

func TestEncodeIsDeterministic(t *testing.T) {
	codec := New()

	first, err := codec.Encode("10000001")
	require.NoError(t, err)
	second, err := codec.Encode("10000001")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeUsesModuleGeometry(t *testing.T) {
	data, err := New().Encode("10000001")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// version 1 symbol: 21 modules plus a 4 module border each side, 10px per module
	assert.Equal(t, 290, img.Bounds().Dx())
	assert.Equal(t, 290, img.Bounds().Dy())
}

func TestDecodeBlankImage(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}

	_, err := New().DecodeImage(blank)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCode))
}

func TestEncodeRejectsEmptyPayload(t *testing.T) {
	_, err := New().Encode("")
	assert.Error(t, err)
}
