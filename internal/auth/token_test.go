package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(accessTTL, refreshTTL time.Duration) *TokenManager {
	return NewTokenManager(
		"test-access-secret-0123456789abcdef",
		"test-refresh-secret-0123456789abcdef",
		accessTTL, refreshTTL,
	)
}

func TestSignAccess_VerifyRoundTrip(t *testing.T) {
	m := newTestManager(15*time.Minute, 30*24*time.Hour)

	token, err := m.SignAccess("user-1", "user", "sess-1", true)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.True(t, claims.EmailVerified)
}

func TestSignRefresh_VerifyRoundTrip(t *testing.T) {
	m := newTestManager(15*time.Minute, 30*24*time.Hour)

	token, err := m.SignRefresh("user-2", "sess-9")
	require.NoError(t, err)

	claims, err := m.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.Subject)
	assert.Equal(t, "sess-9", claims.SessionID)
}

func TestVerifyAccess_Expired(t *testing.T) {
	m := newTestManager(-time.Minute, 30*24*time.Hour)

	token, err := m.SignAccess("user-1", "user", "sess-1", false)
	require.NoError(t, err)

	_, err = m.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRefresh_Expired(t *testing.T) {
	m := newTestManager(15*time.Minute, -time.Minute)

	token, err := m.SignRefresh("user-1", "sess-1")
	require.NoError(t, err)

	_, err = m.VerifyRefresh(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyAccess_Garbage(t *testing.T) {
	m := newTestManager(15*time.Minute, 30*24*time.Hour)

	_, err := m.VerifyAccess("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = m.VerifyAccess("")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccess_WrongSecret(t *testing.T) {
	m := newTestManager(15*time.Minute, 30*24*time.Hour)
	other := NewTokenManager("another-access-secret-xxxxxxxxxx", "another-refresh-secret-xxxxxxxx",
		15*time.Minute, 30*24*time.Hour)

	token, err := m.SignAccess("user-1", "user", "sess-1", true)
	require.NoError(t, err)

	_, err = other.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRefresh_RejectsAccessToken(t *testing.T) {
	// The secrets are independent, so an access token can never pass
	// refresh verification.
	m := newTestManager(15*time.Minute, 30*24*time.Hour)

	accessToken, err := m.SignAccess("user-1", "user", "sess-1", true)
	require.NoError(t, err)

	_, err = m.VerifyRefresh(accessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccess_RejectsRefreshToken(t *testing.T) {
	m := newTestManager(15*time.Minute, 30*24*time.Hour)

	refreshToken, err := m.SignRefresh("user-1", "sess-1")
	require.NoError(t, err)

	_, err = m.VerifyAccess(refreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHashToken_DeterministicHex(t *testing.T) {
	a := HashToken("some-refresh-token")
	b := HashToken("some-refresh-token")
	c := HashToken("other-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestRandomToken_LengthAndUniqueness(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
