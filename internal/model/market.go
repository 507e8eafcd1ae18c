package model

import (
	"encoding/json"
	"time"
)

// Bar is a single OHLCV point in a historical series.
type Bar struct {
	Timestamp     time.Time `json:"timestamp"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// Overview is the company profile attached to a quote.
type Overview struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	MarketCap   string `json:"market_cap"`
	PERatio     string `json:"pe_ratio"`
	Website     string `json:"website"`
}

// Quote is the normalized snapshot returned by all providers.
type Quote struct {
	Symbol          string   `json:"symbol"`
	Price           float64  `json:"price"`
	Change          float64  `json:"change"`
	ChangePercent   string   `json:"change_percent"`
	Volume          int64    `json:"volume"`
	Timestamp       string   `json:"timestamp"` // latest trading day
	CompanyOverview Overview `json:"company_overview"`
}

// QuoteRecord is the cached quote row. One row per symbol; each refresh
// overwrites the previous payload.
type QuoteRecord struct {
	Quote
	Provider  string    `json:"provider"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HistorySpan is a cached, date-bounded historical series. Unique per
// (symbol, interval, range, adjusted); Series is ascending by timestamp
// with no duplicates.
type HistorySpan struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Range     string    `json:"range"`
	Adjusted  bool      `json:"adjusted"`
	Series    []Bar     `json:"series"`
	AsOfDate  string    `json:"as_of_date"`
	Provider  string    `json:"provider"`
	FetchedAt time.Time `json:"fetched_at"`
}

// First returns the timestamp of the earliest bar, or the zero time for an
// empty series.
func (s *HistorySpan) First() time.Time {
	if len(s.Series) == 0 {
		return time.Time{}
	}
	return s.Series[0].Timestamp
}

// Last returns the timestamp of the latest bar, or the zero time for an
// empty series.
func (s *HistorySpan) Last() time.Time {
	if len(s.Series) == 0 {
		return time.Time{}
	}
	return s.Series[len(s.Series)-1].Timestamp
}

// IndicatorPoint is one sample of a technical indicator series. Values holds
// the per-field outputs (e.g. "sma", or "macd"/"macd_signal"/"macd_hist").
type IndicatorPoint struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// IndicatorRecord is the cached indicator row. Unique per
// (symbol, indicator, interval, canonical params).
type IndicatorRecord struct {
	Symbol    string            `json:"symbol"`
	Indicator string            `json:"indicator"`
	Interval  string            `json:"interval"`
	Params    map[string]string `json:"params"`
	Series    []IndicatorPoint  `json:"series"`
	AsOfDate  string            `json:"as_of_date"`
	Provider  string            `json:"provider"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// CanonicalParams renders an indicator parameter set in a stable form so that
// equivalent sets produce the same cache key regardless of insertion order.
// encoding/json writes map keys in sorted order, which is exactly the
// canonicalization we need.
func CanonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		// map[string]string cannot fail to marshal
		return "{}"
	}
	return string(b)
}
