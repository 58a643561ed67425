package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(15*time.Minute, 24*time.Hour, "tweet-graph")
	require.NoError(t, err)
	return m
}

func TestGenerateAndValidate(t *testing.T) {
	m := newTestManager(t)

	pair, err := m.GenerateTokenPair(42, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Greater(t, pair.RefreshExpiresAt, pair.AccessExpiresAt)

	claims, err := m.ValidateToken(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	claims, err = m.ValidateToken(pair.RefreshToken, TypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestValidateWrongType(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.GenerateTokenPair(1, "bob")
	require.NoError(t, err)

	_, err = m.ValidateToken(pair.RefreshToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateForeignKey(t *testing.T) {
	issuer := newTestManager(t)
	other := newTestManager(t)

	pair, err := issuer.GenerateTokenPair(1, "bob")
	require.NoError(t, err)

	_, err = other.ValidateToken(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	m := newTestManager(t)
	issued := time.Now()
	m.now = func() time.Time { return issued }

	pair, err := m.GenerateTokenPair(1, "bob")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(time.Hour) }
	_, err = m.ValidateToken(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRevokeUserTokens(t *testing.T) {
	m := newTestManager(t)
	issued := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	m.now = func() time.Time { return issued }

	pair, err := m.GenerateTokenPair(9, "carol")
	require.NoError(t, err)

	m.RevokeUserTokens(9)
	_, err = m.ValidateToken(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrRevokedToken)
	_, err = m.ValidateToken(pair.RefreshToken, TypeRefresh)
	assert.ErrorIs(t, err, ErrRevokedToken)

	// Other users are unaffected.
	other, err := m.GenerateTokenPair(10, "dave")
	require.NoError(t, err)
	_, err = m.ValidateToken(other.AccessToken, TypeAccess)
	assert.NoError(t, err)
}

func TestTokenIssuedAfterRevocationInSameSecond(t *testing.T) {
	m := newTestManager(t)
	signOut := time.Date(2024, 3, 1, 12, 0, 0, 100, time.UTC)
	m.now = func() time.Time { return signOut }
	m.RevokeUserTokens(9)

	// Signing in again within the same wall-clock second.
	m.now = func() time.Time { return signOut.Add(time.Millisecond) }
	fresh, err := m.GenerateTokenPair(9, "carol")
	require.NoError(t, err)

	claims, err := m.ValidateToken(fresh.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(9), claims.UserID)

	_, err = m.ValidateToken(fresh.RefreshToken, TypeRefresh)
	assert.NoError(t, err)
}

func TestCleanupExpiredRevocations(t *testing.T) {
	m := newTestManager(t)
	start := time.Now()
	m.now = func() time.Time { return start }
	m.RevokeUserTokens(1)

	m.now = func() time.Time { return start.Add(48 * time.Hour) }
	m.CleanupExpiredRevocations()

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Empty(t, m.revokedAt)
}
