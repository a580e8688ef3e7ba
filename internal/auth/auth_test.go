package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}

func TestJWT_RoundTrip(t *testing.T) {
	tok, err := SignJWT(42, "ana@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWT_Rejects(t *testing.T) {
	tok, err := SignJWT(42, "ana@example.com", "s3cret", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := SignJWT(42, "ana@example.com", "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseJWT("not-a-jwt", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
