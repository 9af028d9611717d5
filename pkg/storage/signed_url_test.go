package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour).Scope("qr")
	token, expiresAt, err := signer.Generate("10000001", "10000001.png")
	require.NoError(t, err)

	subject, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "10000001", subject)
	assert.Equal(t, "10000001.png", path)
	assert.True(t, expiresAt.Equal(parsedExpiry))
}

func TestSignedURLSignerRejectsForeignTokens(t *testing.T) {
	base := NewSignedURLSigner("secret", time.Hour)
	token, _, err := base.Scope("qr").Generate("10000001", "10000001.png")
	require.NoError(t, err)

	_, _, _, err = base.Scope("export").Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, _, _, err = NewSignedURLSigner("other-secret", time.Hour).Scope("qr").Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, _, _, err = base.Scope("qr").Parse("10000001.123.abc", false)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSignedURLSignerExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	issued := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }

	token, _, err := signer.Generate("10000001", "10000001.png")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	subject, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "10000001", subject)
	assert.Equal(t, "10000001.png", path)
}

func TestSignedURLSignerValidatesInput(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("", "x.png")
	assert.Error(t, err)
	_, _, err = signer.Generate("a.b", "x.png")
	assert.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Generate("10000001", "x.png")
	assert.Error(t, err)
}
