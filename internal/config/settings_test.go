package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liu-kaining/stocksViewer/internal/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSettingsSeededFromBase(t *testing.T) {
	s, err := NewSettings(context.Background(), openTestStore(t), Default())
	require.NoError(t, err)
	require.Equal(t, "alphavantage", s.Provider())
	require.Equal(t, time.Minute, s.QuoteTTL())
	require.Equal(t, 5*time.Minute, s.IndicatorTTL())
	require.Equal(t, 365, s.HistoryTTLDays())
}

func TestSettingsUpdatePersistsAcrossRestart(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	s, err := NewSettings(ctx, st, Default())
	require.NoError(t, err)

	changed, err := s.Update(ctx, map[string]string{
		"alphavantage.api_key": "ABC123XYZ",
		"cache.quote_ttl_sec":  "120",
	})
	require.NoError(t, err)
	require.False(t, changed, "provider did not change")
	require.Equal(t, "ABC123XYZ", s.AlphaVantageKey())
	require.Equal(t, 2*time.Minute, s.QuoteTTL())

	// A fresh Settings over the same store sees the persisted values.
	reloaded, err := NewSettings(ctx, st, Default())
	require.NoError(t, err)
	require.Equal(t, "ABC123XYZ", reloaded.AlphaVantageKey())
	require.Equal(t, 2*time.Minute, reloaded.QuoteTTL())
}

func TestSettingsProviderSwitchReported(t *testing.T) {
	s, err := NewSettings(context.Background(), openTestStore(t), Default())
	require.NoError(t, err)

	changed, err := s.Update(context.Background(), map[string]string{"provider": "finnhub"})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "finnhub", s.Provider())
}

func TestSettingsUpdateRejectsBadValues(t *testing.T) {
	s, err := NewSettings(context.Background(), openTestStore(t), Default())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Update(ctx, map[string]string{"provider": "yahoo"})
	require.Error(t, err)
	_, err = s.Update(ctx, map[string]string{"cache.quote_ttl_sec": "-5"})
	require.Error(t, err)
	_, err = s.Update(ctx, map[string]string{"no.such.setting": "1"})
	require.Error(t, err)

	// Nothing was applied.
	require.Equal(t, "alphavantage", s.Provider())
	require.Equal(t, time.Minute, s.QuoteTTL())
}

func TestSettingsViewMasksKeys(t *testing.T) {
	s, err := NewSettings(context.Background(), openTestStore(t), Default())
	require.NoError(t, err)
	_, err = s.Update(context.Background(), map[string]string{"alphavantage.api_key": "ABCDEF123456"})
	require.NoError(t, err)

	view := s.View()
	require.Equal(t, "********3456", view["alphavantage.api_key"])
	require.Equal(t, "", view["finnhub.api_key"])
}
