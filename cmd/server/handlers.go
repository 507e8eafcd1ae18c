package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/liu-kaining/stocksViewer/internal/cache"
	"github.com/liu-kaining/stocksViewer/internal/config"
	"github.com/liu-kaining/stocksViewer/internal/insight"
	"github.com/liu-kaining/stocksViewer/internal/model"
	"github.com/liu-kaining/stocksViewer/internal/upstream"
)

// marketService is the slice of the cache orchestrator the handlers need.
type marketService interface {
	GetQuote(ctx context.Context, symbol string) (*cache.QuoteResult, error)
	GetHistory(ctx context.Context, symbol, interval, rangeKey string, adjusted bool) (*cache.HistoryResult, error)
	GetIndicator(ctx context.Context, symbol, indicator, interval string, params map[string]string) (*cache.IndicatorResult, error)
	ClearHistory(ctx context.Context) (int64, error)
	ClearAll(ctx context.Context) error
}

type app struct {
	svc      marketService
	settings *config.Settings
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/quote", a.requireMethod(http.MethodGet, a.handleQuote))
	mux.HandleFunc("/api/history", a.requireMethod(http.MethodGet, a.handleHistory))
	mux.HandleFunc("/api/indicator", a.requireMethod(http.MethodGet, a.handleIndicator))
	mux.HandleFunc("/api/insight", a.requireMethod(http.MethodGet, a.handleInsight))
	mux.HandleFunc("/api/settings", a.handleSettings)
	mux.HandleFunc("/api/settings/test", a.requireMethod(http.MethodPost, a.handleSettingsTest))
	mux.HandleFunc("/api/cache/clear_history", a.requireMethod(http.MethodPost, a.handleClearHistory))
	return mux
}

func (a *app) requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		h(w, r)
	}
}

func (a *app) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	res, err := a.svc.GetQuote(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, res)
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	interval := q.Get("interval")
	if interval == "" {
		interval = "daily"
	}
	rangeKey := strings.ToUpper(q.Get("range"))
	if rangeKey == "" {
		rangeKey = model.Range1M
	}
	if !model.ValidRange(rangeKey) {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("unknown range %q", rangeKey))
		return
	}
	adjusted := true
	if v := q.Get("adjusted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "adjusted must be a boolean")
			return
		}
		adjusted = b
	}
	res, err := a.svc.GetHistory(r.Context(), symbol, interval, rangeKey, adjusted)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, res)
}

func (a *app) handleIndicator(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	indicator := strings.ToUpper(q.Get("indicator"))
	if indicator == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing indicator query param")
		return
	}
	interval := q.Get("interval")
	if interval == "" {
		interval = "daily"
	}
	// Every remaining query parameter is passed through to the indicator,
	// e.g. time_period and series_type.
	params := map[string]string{}
	for k, vs := range q {
		switch k {
		case "symbol", "indicator", "interval":
			continue
		}
		if len(vs) > 0 && vs[0] != "" {
			params[k] = vs[0]
		}
	}
	res, err := a.svc.GetIndicator(r.Context(), symbol, indicator, interval, params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, res)
}

func (a *app) handleInsight(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	writeData(w, insight.Generate(r.Context(), symbol))
}

func (a *app) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeData(w, a.settings.View())
	case http.MethodPost:
		var changes map[string]string
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&changes); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
			return
		}
		if len(changes) == 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "no settings provided")
			return
		}
		providerChanged, err := a.settings.Update(r.Context(), changes)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		if providerChanged {
			// Cached rows are tagged with the provider that produced them,
			// so a switch makes them all unusable.
			log.Printf("[INFO] provider switched to %s, clearing caches", a.settings.Provider())
			if err := a.svc.ClearAll(r.Context()); err != nil {
				log.Printf("[WARN] clearing caches after provider switch: %v", err)
			}
		}
		writeData(w, a.settings.View())
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (a *app) handleSettingsTest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Provider string            `json:"provider"`
		Config   map[string]string `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if body.Provider == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing provider name")
		return
	}
	writeData(w, insight.TestBackend(r.Context(), body.Provider, body.Config))
}

func (a *app) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.ClearHistory(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Printf("[INFO] cleared %d cached history rows", n)
	writeData(w, map[string]int64{"deleted": n})
}

func symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing symbol query param")
		return "", false
	}
	if len(symbol) > 12 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "symbol too long")
		return "", false
	}
	return symbol, true
}

func writeData(w http.ResponseWriter, data any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: &apiError{Code: code, Message: message}})
}

// writeServiceError maps orchestrator failures onto the API error taxonomy.
// Rate limiting carries a Retry-After header so well-behaved clients can
// back off precisely.
func writeServiceError(w http.ResponseWriter, err error) {
	var rl *upstream.RateLimitedError
	var rejected *upstream.RejectedError
	var transient *upstream.TransientError
	switch {
	case errors.As(err, &rl):
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
			fmt.Sprintf("upstream rate limit reached, retry in %ds", secs))
	case errors.As(err, &rejected):
		writeError(w, http.StatusBadGateway, "UPSTREAM_REJECTED",
			rejected.Message+" (check the API key and symbol)")
	case errors.As(err, &transient):
		writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
			"upstream provider is unreachable, try again shortly")
	default:
		log.Printf("[WARN] request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
