package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "alphavantage", cfg.Provider)
	require.Equal(t, 5, cfg.Upstream.MaxRequestsPerMinute)
	require.Equal(t, 60, cfg.Cache.QuoteTTLSec)
	require.Equal(t, 300, cfg.Cache.IndicatorTTLSec)
	require.Equal(t, 365, cfg.Cache.HistoryTTLDays)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": "9090"},
		"provider": "finnhub",
		"alphavantage": {"api_key": "demo"},
		"cache": {"quote_ttl_sec": 30}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "finnhub", cfg.Provider)
	require.Equal(t, "demo", cfg.AlphaVantage.APIKey)
	require.Equal(t, 30, cfg.Cache.QuoteTTLSec)
	// Sections absent from the file keep their defaults.
	require.Equal(t, 365, cfg.Cache.HistoryTTLDays)
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("ALPHAVANTAGE_API_KEY", "secret-from-env")
	t.Setenv("HISTORY_TTL_DAYS", "30")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "secret-from-env", cfg.AlphaVantage.APIKey)
	require.Equal(t, 30, cfg.Cache.HistoryTTLDays)
}
