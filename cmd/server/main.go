package main

import (
	"compress/gzip"
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

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
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create database directory: %v", err)
		}
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
	if settings.Provider() == "alphavantage" && settings.AlphaVantageKey() == "" {
		log.Println("[WARN] no Alpha Vantage API key configured; set ALPHAVANTAGE_API_KEY or save one in settings")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	maxWait := time.Duration(cfg.Upstream.MaxWaitSec) * time.Second
	perMinute := cfg.Upstream.MaxRequestsPerMinute

	avOpts := []alphavantage.Option{
		alphavantage.WithHTTPClient(httpClient),
		alphavantage.WithAPIKeyFunc(settings.AlphaVantageKey),
	}
	if cfg.AlphaVantage.BaseURL != "" {
		avOpts = append(avOpts, alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL))
	}
	av := &ratelimit.Limited{
		C: alphavantage.NewClient("", avOpts...),
		W: ratelimit.NewWindow(perMinute, time.Minute, maxWait),
	}

	fhOpts := []finnhub.Option{
		finnhub.WithHTTPClient(httpClient),
		finnhub.WithAPIKeyFunc(settings.FinnhubKey),
	}
	if cfg.Finnhub.BaseURL != "" {
		fhOpts = append(fhOpts, finnhub.WithBaseURL(cfg.Finnhub.BaseURL))
	}
	fh := &ratelimit.Limited{
		C: finnhub.NewClient("", fhOpts...),
		W: ratelimit.NewWindow(perMinute, time.Minute, maxWait),
	}

	activeClient := func() upstream.Client {
		if settings.Provider() == "finnhub" {
			return fh
		}
		return av
	}
	policy := func() cache.Policy {
		return cache.Policy{
			QuoteTTL:       settings.QuoteTTL(),
			IndicatorTTL:   settings.IndicatorTTL(),
			HistoryTTLDays: settings.HistoryTTLDays(),
		}
	}
	svc := cache.New(st, activeClient, policy)

	// Expired history is purged once at startup and then nightly.
	purge := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := svc.PurgeExpiredHistory(ctx)
		if err != nil {
			log.Printf("[WARN] history purge: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[INFO] purged %d expired history rows", n)
		}
	}
	go purge()
	sched := cron.New()
	if _, err := sched.AddFunc("@daily", purge); err != nil {
		log.Fatalf("schedule purge: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	a := &app{svc: svc, settings: settings}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(a.routes())))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+15) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("[INFO] server listening on :%s (provider=%s)", cfg.Server.Port, settings.Provider())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[WARN] panic serving %s: %v", r.URL.Path, rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
