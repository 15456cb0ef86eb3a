package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/litellm"},
		Auth:     AuthConfig{MasterKey: "sk-master"},
	}
}

func TestValidateRequiredValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LITELLM_DATABASE_URL")
	require.Contains(t, err.Error(), "LITELLM_AUTH_MASTER_KEY")
}

func TestValidateAppliesReportingDefaults(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "UTC", cfg.Reporting.Timezone)
	require.Equal(t, 50, cfg.Reporting.DefaultPageSize)
	require.Equal(t, 500, cfg.Reporting.MaxPageSize)
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Reporting.Timezone = "Not/AZone"
	require.Error(t, cfg.Validate())
}

func TestValidatePageSizeBounds(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Reporting.DefaultPageSize = 1000
	cfg.Reporting.MaxPageSize = 100
	require.Error(t, cfg.Validate())
}

func TestValidateSessionTokenDefaults(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Auth.SessionSecret = "secret"
	require.NoError(t, cfg.Validate())
	require.Equal(t, 15*time.Minute, cfg.Auth.SessionTokenTTL)

	cfg = baseConfig()
	require.NoError(t, cfg.Validate())
	require.Zero(t, cfg.Auth.SessionTokenTTL)
}
