// Package finnhub is the alternate market-data provider. It exposes the same
// normalized surface as the Alpha Vantage client so the cache layer can swap
// providers through configuration alone.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/model"
	"github.com/liu-kaining/stocksViewer/internal/upstream"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Finnhub API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	apiKey     func() string
}

// Option is a configuration option for the Finnhub client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithAPIKeyFunc resolves the API key per request instead of a fixed key.
func WithAPIKeyFunc(fn func() string) Option {
	return func(c *Client) { c.apiKey = fn }
}

// NewClient creates a new Finnhub API client.
func NewClient(key string, options ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		apiKey:     func() string { return key },
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Name identifies the provider in cached records and error messages.
func (c *Client) Name() string { return "finnhub" }

// FetchQuote retrieves the latest quote for a symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	var data struct {
		Current       float64 `json:"c"`
		Change        float64 `json:"d"`
		ChangePercent float64 `json:"dp"`
		Timestamp     int64   `json:"t"`
		Volume        int64   `json:"v"`
	}
	if err := c.request(ctx, "quote", url.Values{"symbol": {symbol}}, &data); err != nil {
		return model.Quote{}, err
	}
	if data.Current == 0 && data.Timestamp == 0 {
		return model.Quote{}, &upstream.RejectedError{Provider: c.Name(), Message: "no quote data for symbol " + symbol}
	}
	return model.Quote{
		Symbol:        symbol,
		Price:         data.Current,
		Change:        data.Change,
		ChangePercent: fmt.Sprintf("%.4f%%", data.ChangePercent),
		Volume:        data.Volume,
		Timestamp:     unixDate(data.Timestamp),
	}, nil
}

// FetchOverview retrieves the company profile for a symbol.
func (c *Client) FetchOverview(ctx context.Context, symbol string) (model.Overview, error) {
	var data struct {
		Name      string  `json:"name"`
		Industry  string  `json:"finnhubIndustry"`
		MarketCap float64 `json:"marketCapitalization"`
		WebURL    string  `json:"weburl"`
	}
	if err := c.request(ctx, "stock/profile2", url.Values{"symbol": {symbol}}, &data); err != nil {
		return model.Overview{}, err
	}
	if data.Name == "" {
		return model.Overview{}, &upstream.RejectedError{Provider: c.Name(), Message: "no profile data for symbol " + symbol}
	}
	return model.Overview{
		Name:      data.Name,
		Industry:  data.Industry,
		MarketCap: fmt.Sprintf("%.0f", data.MarketCap*1e6), // reported in millions
		Website:   data.WebURL,
	}, nil
}

// FetchTimeSeries retrieves candles for the lookback implied by rangeKey,
// ascending by timestamp. Finnhub has no adjusted series on the free tier;
// the adjusted flag is ignored.
func (c *Client) FetchTimeSeries(ctx context.Context, symbol, interval, _ string, _ bool, rangeKey string) ([]model.Bar, error) {
	now := time.Now().UTC()
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution(interval)},
		"from":       {fmt.Sprint(model.RangeStart(rangeKey, now).Unix())},
		"to":         {fmt.Sprint(now.Unix())},
	}
	var data struct {
		Status     string    `json:"s"`
		Timestamps []int64   `json:"t"`
		Opens      []float64 `json:"o"`
		Highs      []float64 `json:"h"`
		Lows       []float64 `json:"l"`
		Closes     []float64 `json:"c"`
		Volumes    []float64 `json:"v"`
	}
	if err := c.request(ctx, "stock/candle", params, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" {
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: "no historical data available"}
	}

	bars := make([]model.Bar, 0, len(data.Timestamps))
	for i, ts := range data.Timestamps {
		if i >= len(data.Opens) || i >= len(data.Highs) || i >= len(data.Lows) || i >= len(data.Closes) {
			break
		}
		bar := model.Bar{
			Timestamp:     time.Unix(ts, 0).UTC(),
			Open:          data.Opens[i],
			High:          data.Highs[i],
			Low:           data.Lows[i],
			Close:         data.Closes[i],
			AdjustedClose: data.Closes[i],
		}
		if i < len(data.Volumes) {
			bar.Volume = int64(data.Volumes[i])
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// FetchIndicator retrieves a technical indicator series, ascending by
// timestamp.
func (c *Client) FetchIndicator(ctx context.Context, symbol, indicator, interval string, extra map[string]string) ([]model.IndicatorPoint, error) {
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution(interval)},
		"indicator":  {strings.ToLower(indicator)},
	}
	for k, v := range extra {
		params.Set(k, v)
	}
	var data map[string]json.RawMessage
	if err := c.request(ctx, "indicator", params, &data); err != nil {
		return nil, err
	}

	var status string
	_ = json.Unmarshal(data["s"], &status)
	if status != "ok" {
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: "no indicator data returned"}
	}
	var timestamps []int64
	_ = json.Unmarshal(data["t"], &timestamps)

	fields := make(map[string][]float64)
	for key, raw := range data {
		if key == "t" || key == "s" || key == "o" || key == "h" || key == "l" || key == "c" || key == "v" {
			continue
		}
		var values []float64
		if err := json.Unmarshal(raw, &values); err == nil {
			fields[key] = values
		}
	}

	points := make([]model.IndicatorPoint, 0, len(timestamps))
	for i, ts := range timestamps {
		p := model.IndicatorPoint{Timestamp: time.Unix(ts, 0).UTC(), Values: make(map[string]float64, len(fields))}
		for key, values := range fields {
			if i < len(values) {
				p.Values[key] = values[i]
			}
		}
		points = append(points, p)
	}
	return points, nil
}

func (c *Client) request(ctx context.Context, path string, params url.Values, out any) error {
	key := c.apiKey()
	if key == "" {
		return &upstream.RejectedError{Provider: c.Name(), Message: "missing Finnhub API key, configure one in settings"}
	}
	params.Set("token", key)

	do := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode()), http.NoBody)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		res, err := c.httpClient.Do(req)
		if err != nil {
			return &upstream.TransientError{Provider: c.Name(), Err: err}
		}
		defer res.Body.Close()

		switch {
		case res.StatusCode >= 500:
			return &upstream.TransientError{Provider: c.Name(), Err: fmt.Errorf("status %d", res.StatusCode)}
		case res.StatusCode == http.StatusTooManyRequests:
			return &upstream.RateLimitedError{Provider: c.Name(), RetryAfter: time.Minute}
		case res.StatusCode >= 400:
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
			return &upstream.RejectedError{Provider: c.Name(), Message: fmt.Sprintf("status %d: %s", res.StatusCode, body)}
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return &upstream.TransientError{Provider: c.Name(), Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	err := do()
	if _, transient := err.(*upstream.TransientError); transient {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		err = do()
	}
	return err
}

func resolution(interval string) string {
	if strings.HasPrefix(interval, "intraday_") {
		step := strings.TrimPrefix(interval, "intraday_")
		return strings.TrimSuffix(step, "min")
	}
	switch interval {
	case "weekly":
		return "W"
	case "monthly":
		return "M"
	default:
		return "D"
	}
}

func unixDate(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
