package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, "https://slack.com/api", cfg.SlackAPIURL)
	assert.Equal(t, 10*time.Minute, cfg.OAuthCodeTTL)
	assert.Equal(t, "smcp", cfg.StorePrefix)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.AdminKey)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("PUBLIC_URL", "https://mcp.example.test")
	t.Setenv("OAUTH_CODE_TTL", "5m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, "https://mcp.example.test", cfg.PublicURL)
	assert.Equal(t, 5*time.Minute, cfg.OAuthCodeTTL)
}
