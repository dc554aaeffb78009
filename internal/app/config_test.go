package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/clientportal/portal/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "client-portal", cfg.AuthIssuer)
	assert.Equal(t, 168*time.Hour, cfg.AuthTokenTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.SensitiveRateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsShortSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "short")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL", "0s")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestIsProduction(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.IsProduction())
	assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
}

func TestInTestMode(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(TestModeEnv, "false")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
