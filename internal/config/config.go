package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Database struct {
	Path string `json:"path"`
}

type AlphaVantage struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type Finnhub struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type Upstream struct {
	MaxRequestsPerMinute int `json:"max_requests_per_minute"`
	MaxWaitSec           int `json:"max_wait_sec"`
}

type Cache struct {
	QuoteTTLSec     int `json:"quote_ttl_sec"`
	IndicatorTTLSec int `json:"indicator_ttl_sec"`
	HistoryTTLDays  int `json:"history_ttl_days"`
}

type Config struct {
	Server       Server       `json:"server"`
	Database     Database     `json:"database"`
	Provider     string       `json:"provider"`
	AlphaVantage AlphaVantage `json:"alphavantage"`
	Finnhub      Finnhub      `json:"finnhub"`
	Upstream     Upstream     `json:"upstream"`
	Cache        Cache        `json:"cache"`
}

func Default() Config {
	return Config{
		Server:   Server{Port: "8080", RequestTimeoutSec: 60},
		Database: Database{Path: "data/stocks.db"},
		Provider: "alphavantage",
		Upstream: Upstream{
			MaxRequestsPerMinute: 5,
			MaxWaitSec:           75,
		},
		Cache: Cache{
			QuoteTTLSec:     60,
			IndicatorTTLSec: 300,
			HistoryTTLDays:  365,
		},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Finnhub.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Upstream.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("UPSTREAM_MAX_WAIT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Upstream.MaxWaitSec = x
		}
	}
	if v := os.Getenv("QUOTE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.QuoteTTLSec = x
		}
	}
	if v := os.Getenv("INDICATOR_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.IndicatorTTLSec = x
		}
	}
	if v := os.Getenv("HISTORY_TTL_DAYS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.HistoryTTLDays = x
		}
	}
}
