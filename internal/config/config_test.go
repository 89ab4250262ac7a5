package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("SESSION_DEBOUNCE_MS", "250")
	t.Setenv("SESSION_FALLBACK", "Redis")
	t.Setenv("IMAP_SECURE", "off")
	t.Setenv("REMOTE_RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.SessionDebounceMs)
	assert.Equal(t, "redis", cfg.SessionFallback)
	assert.False(t, cfg.IMAPSecure)
	assert.Equal(t, 5, cfg.RemoteRateLimitRPS)
	assert.Equal(t, "Extraction", cfg.ExtractionSheet)
	assert.Equal(t, "Tinting", cfg.TintingSheet)
}

func TestRequire(t *testing.T) {
	cfg := Config{}
	assert.NoError(t, cfg.Require("SYNC_URL", "https://example.test"))
	err := cfg.Require("SYNC_URL", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_URL")
}
