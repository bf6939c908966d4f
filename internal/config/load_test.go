package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GRIND_AUTH_TOKEN_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("GRIND_AUTH_ENCRYPTION_KEY", "an example very very secret key.")
}

func TestLoad_DefaultsWithRequiredEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Second, cfg.Queue.TickInterval)
	assert.Equal(t, 8, cfg.Queue.TickWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Queue.SnapshotInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GRIND_SERVER_PORT", "9090")
	t.Setenv("GRIND_SERVER_LOG_LEVEL", "debug")
	t.Setenv("GRIND_QUEUE_TICK_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.TickInterval)
}

func TestLoad_MissingSigningKey(t *testing.T) {
	t.Setenv("GRIND_AUTH_TOKEN_SIGNING_KEY", "")
	t.Setenv("GRIND_AUTH_ENCRYPTION_KEY", "an example very very secret key.")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TokenSigningKey")
}

func TestLoad_RejectsShortEncryptionKey(t *testing.T) {
	t.Setenv("GRIND_AUTH_TOKEN_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("GRIND_AUTH_ENCRYPTION_KEY", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EncryptionKey")
}

func TestLoad_RejectsBadLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GRIND_SERVER_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogLevel")
}
