package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigningKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestTokenManager_IssueAndValidate(t *testing.T) {
	t.Parallel()

	mgr, err := NewTokenManager(testSigningKey(), 15*time.Minute)
	require.NoError(t, err)

	token, err := mgr.Issue("player-1", []string{PermQueueRead, PermQueueWrite})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	result := mgr.Validate(token, PermQueueWrite)
	assert.True(t, result.Valid)
	assert.Equal(t, "player-1", result.PlayerID)
	assert.Empty(t, result.Reason)
}

func TestTokenManager_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	ttl := 15 * time.Minute
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mgr, err := NewTokenManager(testSigningKey(), ttl)
	require.NoError(t, err)

	now := issued
	mgr.SetTimeFunc(func() time.Time { return now })

	token, err := mgr.Issue("player-1", []string{PermQueueRead})
	require.NoError(t, err)

	// One second before expiry the token is still good.
	now = issued.Add(ttl - time.Second)
	result := mgr.Validate(token, PermQueueRead)
	assert.True(t, result.Valid)

	// One second past expiry it is rejected with an explicit reason.
	now = issued.Add(ttl + time.Second)
	result = mgr.Validate(token, PermQueueRead)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestTokenManager_InsufficientPermissions(t *testing.T) {
	t.Parallel()

	mgr, err := NewTokenManager(testSigningKey(), 15*time.Minute)
	require.NoError(t, err)

	token, err := mgr.Issue("player-1", []string{PermQueueRead})
	require.NoError(t, err)

	result := mgr.Validate(token, PermQueueAdmin)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonInsufficient, result.Reason)
	assert.Equal(t, "player-1", result.PlayerID)
}

func TestTokenManager_Revoke(t *testing.T) {
	t.Parallel()

	mgr, err := NewTokenManager(testSigningKey(), 15*time.Minute)
	require.NoError(t, err)

	token, err := mgr.Issue("player-1", []string{PermQueueRead})
	require.NoError(t, err)

	require.True(t, mgr.Validate(token, PermQueueRead).Valid)

	mgr.Revoke(token)

	result := mgr.Validate(token, PermQueueRead)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)

	// Revoking again is a no-op.
	mgr.Revoke(token)
}

func TestTokenManager_RevokeAll(t *testing.T) {
	t.Parallel()

	mgr, err := NewTokenManager(testSigningKey(), 15*time.Minute)
	require.NoError(t, err)

	first, err := mgr.Issue("player-1", []string{PermQueueRead})
	require.NoError(t, err)
	second, err := mgr.Issue("player-1", []string{PermQueueRead})
	require.NoError(t, err)
	other, err := mgr.Issue("player-2", []string{PermQueueRead})
	require.NoError(t, err)

	mgr.RevokeAll("player-1")

	assert.Equal(t, ReasonNotFound, mgr.Validate(first, PermQueueRead).Reason)
	assert.Equal(t, ReasonNotFound, mgr.Validate(second, PermQueueRead).Reason)
	assert.True(t, mgr.Validate(other, PermQueueRead).Valid)
	assert.Zero(t, mgr.LiveTokenCount("player-1"))
}

func TestTokenManager_CapEvictsOldest(t *testing.T) {
	t.Parallel()

	mgr, err := NewTokenManager(testSigningKey(), 15*time.Minute)
	require.NoError(t, err)

	oldest, err := mgr.Issue("player-1", []string{PermQueueRead})
	require.NoError(t, err)

	for i := 0; i < MaxLiveTokensPerPlayer; i++ {
		_, err := mgr.Issue("player-1", []string{PermQueueRead})
		require.NoError(t, err)
	}

	assert.Equal(t, MaxLiveTokensPerPlayer, mgr.LiveTokenCount("player-1"))

	result := mgr.Validate(oldest, PermQueueRead)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)
}

func TestTokenManager_GarbageToken(t *testing.T) {
	t.Parallel()

	mgr, err := NewTokenManager(testSigningKey(), 15*time.Minute)
	require.NoError(t, err)

	result := mgr.Validate("not.a.token", PermQueueRead)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonMalformed, result.Reason)
}

func TestNewTokenManager_ShortKey(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager([]byte("short"), time.Minute)
	assert.Error(t, err)
}
