package store

import (
	"context"
	"errors"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/model"
)

var (
	// ErrNotFound means no row exists for the requested key.
	ErrNotFound = errors.New("store: not found")
	// ErrCorrupt means a row exists but its payload failed to decode.
	// Callers treat this as a cache miss and overwrite the row.
	ErrCorrupt = errors.New("store: corrupt payload")
	// ErrUnavailable wraps persistence-layer failures. These are fatal for
	// the request and never retried silently.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the durable cache for quote, history, and indicator records,
// plus the app_config settings table. Writes are atomic per key with
// upsert semantics.
type Store interface {
	GetQuote(ctx context.Context, symbol string) (*model.QuoteRecord, error)
	PutQuote(ctx context.Context, rec *model.QuoteRecord) error
	DeleteQuotes(ctx context.Context) (int64, error)

	GetHistory(ctx context.Context, symbol, interval, rangeKey string, adjusted bool) (*model.HistorySpan, error)
	PutHistory(ctx context.Context, span *model.HistorySpan) error
	DeleteHistory(ctx context.Context) (int64, error)
	PurgeHistoryOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	GetIndicator(ctx context.Context, symbol, indicator, interval string, params map[string]string) (*model.IndicatorRecord, error)
	PutIndicator(ctx context.Context, rec *model.IndicatorRecord) error
	DeleteIndicators(ctx context.Context) (int64, error)

	GetConfig(ctx context.Context, key string) (string, error)
	PutConfig(ctx context.Context, key, value string) error
	AllConfig(ctx context.Context) (map[string]string, error)

	Close() error
}
