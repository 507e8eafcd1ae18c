package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/store"
)

// Store keys for runtime-adjustable settings. Anything saved through
// Settings.Update overrides the file and environment baseline across
// restarts.
const (
	keyProvider        = "provider"
	keyAlphaKey        = "alphavantage.api_key"
	keyFinnhubKey      = "finnhub.api_key"
	keyQuoteTTLSec     = "cache.quote_ttl_sec"
	keyIndicatorTTLSec = "cache.indicator_ttl_sec"
	keyHistoryTTLDays  = "cache.history_ttl_days"
)

// Settings is the runtime view of the configuration. Reads are served from
// an in-memory copy guarded by a RWMutex; updates are validated, persisted
// to the store, then applied, so a failed write never leaves the two out
// of sync.
type Settings struct {
	mu  sync.RWMutex
	st  store.Store
	cur Config
}

// NewSettings seeds the runtime state from base and overlays whatever the
// store has persisted from earlier sessions.
func NewSettings(ctx context.Context, st store.Store, base Config) (*Settings, error) {
	s := &Settings{st: st, cur: base}
	rows, err := st.AllConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load persisted settings: %w", err)
	}
	for k, v := range rows {
		s.apply(k, v)
	}
	return s, nil
}

// Update validates and persists the given key/value pairs. It reports
// whether the active provider changed, which callers use to invalidate
// provider-tagged caches.
func (s *Settings) Update(ctx context.Context, changes map[string]string) (providerChanged bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range changes {
		if err := validate(k, v); err != nil {
			return false, err
		}
	}
	before := s.cur.Provider
	for k, v := range changes {
		if err := s.st.PutConfig(ctx, k, v); err != nil {
			return false, fmt.Errorf("persist setting %s: %w", k, err)
		}
		s.apply(k, v)
	}
	return s.cur.Provider != before, nil
}

func validate(key, value string) error {
	switch key {
	case keyProvider:
		switch value {
		case "alphavantage", "finnhub":
			return nil
		}
		return fmt.Errorf("unknown provider %q", value)
	case keyAlphaKey, keyFinnhubKey:
		return nil
	case keyQuoteTTLSec, keyIndicatorTTLSec, keyHistoryTTLDays:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("setting %s must be a positive integer, got %q", key, value)
		}
		return nil
	}
	return fmt.Errorf("unknown setting %q", key)
}

// apply is called with the lock held (or before the Settings value is
// shared). Values are pre-validated, so parse failures are ignored.
func (s *Settings) apply(key, value string) {
	switch key {
	case keyProvider:
		s.cur.Provider = value
	case keyAlphaKey:
		s.cur.AlphaVantage.APIKey = value
	case keyFinnhubKey:
		s.cur.Finnhub.APIKey = value
	case keyQuoteTTLSec:
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			s.cur.Cache.QuoteTTLSec = n
		}
	case keyIndicatorTTLSec:
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			s.cur.Cache.IndicatorTTLSec = n
		}
	case keyHistoryTTLDays:
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			s.cur.Cache.HistoryTTLDays = n
		}
	}
}

func (s *Settings) Provider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Provider
}

func (s *Settings) AlphaVantageKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.AlphaVantage.APIKey
}

func (s *Settings) FinnhubKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Finnhub.APIKey
}

func (s *Settings) QuoteTTL() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.cur.Cache.QuoteTTLSec) * time.Second
}

func (s *Settings) IndicatorTTL() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.cur.Cache.IndicatorTTLSec) * time.Second
}

func (s *Settings) HistoryTTLDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Cache.HistoryTTLDays
}

// View returns the current settings with API keys masked, for display.
func (s *Settings) View() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]string{
		keyProvider:        s.cur.Provider,
		keyAlphaKey:        maskKey(s.cur.AlphaVantage.APIKey),
		keyFinnhubKey:      maskKey(s.cur.Finnhub.APIKey),
		keyQuoteTTLSec:     strconv.Itoa(s.cur.Cache.QuoteTTLSec),
		keyIndicatorTTLSec: strconv.Itoa(s.cur.Cache.IndicatorTTLSec),
		keyHistoryTTLDays:  strconv.Itoa(s.cur.Cache.HistoryTTLDays),
	}
}

// maskKey keeps the last four characters of a credential visible so users
// can tell which key is configured without exposing it.
func maskKey(k string) string {
	if k == "" {
		return ""
	}
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}
