// Command fetch is a one-shot inspection tool: it runs a quote, history or
// indicator lookup through the same cache and rate limit path as the server
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/cache"
	"github.com/liu-kaining/stocksViewer/internal/config"
	"github.com/liu-kaining/stocksViewer/internal/httpx"
	"github.com/liu-kaining/stocksViewer/internal/store"
	"github.com/liu-kaining/stocksViewer/internal/upstream"
	"github.com/liu-kaining/stocksViewer/internal/upstream/alphavantage"
	"github.com/liu-kaining/stocksViewer/internal/upstream/finnhub"
	"github.com/liu-kaining/stocksViewer/internal/upstream/ratelimit"
)

func main() {
	var (
		symbol     string
		kind       string
		interval   string
		rangeKey   string
		adjusted   bool
		indicator  string
		paramsCSV  string
		timeout    int
		configPath string
	)

	flag.StringVar(&symbol, "symbol", getenv("SYMBOL", "AAPL"), "ticker symbol")
	flag.StringVar(&kind, "kind", "quote", "what to fetch: quote, history or indicator")
	flag.StringVar(&interval, "interval", "daily", "series interval (daily, weekly, monthly)")
	flag.StringVar(&rangeKey, "range", "1M", "history range (1D, 1W, 1M, 3M, 1Y, MAX)")
	flag.BoolVar(&adjusted, "adjusted", true, "use split/dividend adjusted prices")
	flag.StringVar(&indicator, "indicator", "SMA", "indicator name for -kind=indicator")
	flag.StringVar(&paramsCSV, "params", "time_period=14,series_type=close", "indicator params as k=v CSV")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 60), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := store.OpenSQLite(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	settings, err := config.NewSettings(context.Background(), st, cfg)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	httpClient := httpx.New(time.Duration(timeout) * time.Second)
	maxWait := time.Duration(cfg.Upstream.MaxWaitSec) * time.Second

	var client upstream.Client
	switch settings.Provider() {
	case "finnhub":
		client = &ratelimit.Limited{
			C: finnhub.NewClient("", finnhub.WithHTTPClient(httpClient), finnhub.WithAPIKeyFunc(settings.FinnhubKey)),
			W: ratelimit.NewWindow(cfg.Upstream.MaxRequestsPerMinute, time.Minute, maxWait),
		}
	default:
		client = &ratelimit.Limited{
			C: alphavantage.NewClient("", alphavantage.WithHTTPClient(httpClient), alphavantage.WithAPIKeyFunc(settings.AlphaVantageKey)),
			W: ratelimit.NewWindow(cfg.Upstream.MaxRequestsPerMinute, time.Minute, maxWait),
		}
	}

	svc := cache.New(st,
		func() upstream.Client { return client },
		func() cache.Policy {
			return cache.Policy{
				QuoteTTL:       settings.QuoteTTL(),
				IndicatorTTL:   settings.IndicatorTTL(),
				HistoryTTLDays: settings.HistoryTTLDays(),
			}
		})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var out any
	switch kind {
	case "quote":
		out, err = svc.GetQuote(ctx, symbol)
	case "history":
		out, err = svc.GetHistory(ctx, symbol, interval, strings.ToUpper(rangeKey), adjusted)
	case "indicator":
		out, err = svc.GetIndicator(ctx, symbol, strings.ToUpper(indicator), interval, parseParams(paramsCSV))
	default:
		log.Fatalf("unknown kind %q (want quote, history or indicator)", kind)
	}
	if err != nil {
		log.Fatalf("%s %s: %v", kind, symbol, err)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func parseParams(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if ok && k != "" {
			out[k] = v
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
