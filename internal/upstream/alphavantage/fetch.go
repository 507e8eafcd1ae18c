package alphavantage

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/model"
	"github.com/liu-kaining/stocksViewer/internal/upstream"
)

// FetchQuote retrieves the latest quote for a symbol (GLOBAL_QUOTE).
func (c *Client) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	payload, err := c.request(ctx, params)
	if err != nil {
		return model.Quote{}, err
	}

	var quote map[string]string
	if raw, ok := payload["Global Quote"]; ok {
		_ = json.Unmarshal(raw, &quote)
	}
	if len(quote) == 0 {
		return model.Quote{}, &upstream.RejectedError{Provider: c.Name(), Message: "no quote data for symbol " + symbol}
	}

	return model.Quote{
		Symbol:        quote["01. symbol"],
		Price:         parseFloat(quote["05. price"]),
		Change:        parseFloat(quote["09. change"]),
		ChangePercent: quote["10. change percent"],
		Volume:        parseInt(quote["06. volume"]),
		Timestamp:     quote["07. latest trading day"],
	}, nil
}

// FetchOverview retrieves the company profile for a symbol (OVERVIEW).
func (c *Client) FetchOverview(ctx context.Context, symbol string) (model.Overview, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)

	payload, err := c.request(ctx, params)
	if err != nil {
		return model.Overview{}, err
	}
	if len(payload) == 0 {
		return model.Overview{}, &upstream.RejectedError{Provider: c.Name(), Message: "no overview data for symbol " + symbol}
	}

	return model.Overview{
		Name:        stringField(payload, "Name"),
		Description: stringField(payload, "Description"),
		Industry:    stringField(payload, "Industry"),
		MarketCap:   stringField(payload, "MarketCapitalization"),
		PERatio:     stringField(payload, "PERatio"),
		Website:     stringField(payload, "Website"),
	}, nil
}

// FetchTimeSeries retrieves OHLCV bars, ascending by timestamp. rangeKey is
// unused here: Alpha Vantage only distinguishes compact/full output.
func (c *Client) FetchTimeSeries(ctx context.Context, symbol, interval, outputSize string, adjusted bool, _ string) ([]model.Bar, error) {
	params := timeSeriesParams(interval, adjusted)
	params.Set("symbol", symbol)
	params.Set("outputsize", outputSize)

	payload, err := c.request(ctx, params)
	if err != nil {
		return nil, err
	}

	series := findSeriesKey(payload, "Time Series")
	if series == nil {
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: "no time series in response for " + symbol}
	}

	var byTS map[string]map[string]string
	if err := json.Unmarshal(series, &byTS); err != nil {
		return nil, &upstream.TransientError{Provider: c.Name(), Err: err}
	}

	bars := make([]model.Bar, 0, len(byTS))
	for ts, values := range byTS {
		when, ok := parseTimestamp(ts)
		if !ok {
			continue
		}
		bar := model.Bar{
			Timestamp:     when,
			Open:          parseFloat(values["1. open"]),
			High:          parseFloat(values["2. high"]),
			Low:           parseFloat(values["3. low"]),
			Close:         parseFloat(values["4. close"]),
			AdjustedClose: parseFloat(values["5. adjusted close"]),
			Volume:        parseInt(firstNonEmpty(values["6. volume"], values["5. volume"])),
		}
		if bar.AdjustedClose == 0 {
			bar.AdjustedClose = bar.Close
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// FetchIndicator retrieves a technical indicator series, ascending by
// timestamp. The indicator name maps directly to an API function (SMA, EMA,
// RSI, MACD, ...).
func (c *Client) FetchIndicator(ctx context.Context, symbol, indicator, interval string, extra map[string]string) ([]model.IndicatorPoint, error) {
	params := url.Values{}
	params.Set("function", strings.ToUpper(indicator))
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("datatype", "json")
	for k, v := range extra {
		params.Set(k, v)
	}

	payload, err := c.request(ctx, params)
	if err != nil {
		return nil, err
	}

	series := findSeriesKey(payload, "Technical Analysis")
	if series == nil {
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: "no indicator data for " + symbol}
	}

	var byTS map[string]map[string]string
	if err := json.Unmarshal(series, &byTS); err != nil {
		return nil, &upstream.TransientError{Provider: c.Name(), Err: err}
	}

	points := make([]model.IndicatorPoint, 0, len(byTS))
	for ts, values := range byTS {
		when, ok := parseTimestamp(ts)
		if !ok {
			continue
		}
		p := model.IndicatorPoint{Timestamp: when, Values: make(map[string]float64, len(values))}
		for k, v := range values {
			p.Values[strings.ToLower(k)] = parseFloat(v)
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

// timeSeriesParams maps our interval vocabulary onto API function names.
// Intraday intervals look like "intraday_5min".
func timeSeriesParams(interval string, adjusted bool) url.Values {
	params := url.Values{}
	if strings.HasPrefix(interval, "intraday") {
		step := interval[strings.LastIndex(interval, "_")+1:]
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", step)
		params.Set("adjusted", strconv.FormatBool(adjusted))
		return params
	}

	function := map[string]string{
		"daily":   "TIME_SERIES_DAILY",
		"weekly":  "TIME_SERIES_WEEKLY",
		"monthly": "TIME_SERIES_MONTHLY",
	}[interval]
	if function == "" {
		function = "TIME_SERIES_DAILY"
	}
	if adjusted {
		function += "_ADJUSTED"
	}
	params.Set("function", function)
	return params
}

// findSeriesKey locates the one response key containing marker; Alpha Vantage
// names it after the requested function ("Time Series (Daily)" and the like).
func findSeriesKey(payload map[string]json.RawMessage, marker string) json.RawMessage {
	for key, value := range payload {
		if strings.Contains(key, marker) {
			return value
		}
	}
	return nil
}

func parseTimestamp(ts string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func stringField(payload map[string]json.RawMessage, key string) string {
	raw, ok := payload[key]
	if !ok {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}
