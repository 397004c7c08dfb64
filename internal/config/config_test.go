package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LISTEN_ADDR", "DATABASE_URL", "SYNC_WORKERS",
		"NEWS_PROVIDER_URL", "FILINGS_PROVIDER_URL", "BREACH_PROVIDER_URL",
		"RATING_PROVIDER_URL", "PROVIDER_API_KEY", "RISK_CONFIG_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/riskwatch")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 0, cfg.SyncWorkers)
	assert.InDelta(t, 0.30, cfg.Risk.Weights.Cyber, 1e-9)
	assert.Equal(t, 30.0, cfg.Risk.CriticalDecayDays)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_PartialRiskFileOverridesOnlyNamedKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/riskwatch")

	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("critical_decay_days: 120\nstorm_trigger_count: 8\n"), 0o600))
	t.Setenv("RISK_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 120.0, cfg.Risk.CriticalDecayDays)
	assert.Equal(t, 8, cfg.Risk.StormTriggerCount)
	// untouched keys keep their defaults
	assert.InDelta(t, 0.35, cfg.Risk.Weights.Breach, 1e-9)
	assert.Equal(t, 75.0, cfg.Risk.Thresholds.Critical)
}

func TestLoad_InvalidWeightsRejectedAtStartup(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/riskwatch")

	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  news: 0.9\n  breach: 0.9\n  filing: 0.9\n  cyber: 0.9\n"), 0o600))
	t.Setenv("RISK_CONFIG_PATH", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestLoad_UnreadableRiskFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/riskwatch")
	t.Setenv("RISK_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}
