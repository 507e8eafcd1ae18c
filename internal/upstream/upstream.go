package upstream

import (
	"context"

	"github.com/liu-kaining/stocksViewer/internal/model"
)

// Output sizes for time-series fetches.
const (
	OutputCompact = "compact"
	OutputFull    = "full"
)

// Client is the normalized surface every market-data provider implements.
type Client interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
	FetchOverview(ctx context.Context, symbol string) (model.Overview, error)
	FetchTimeSeries(ctx context.Context, symbol, interval, outputSize string, adjusted bool, rangeKey string) ([]model.Bar, error)
	FetchIndicator(ctx context.Context, symbol, indicator, interval string, params map[string]string) ([]model.IndicatorPoint, error)
}
