package ratelimit

import (
	"context"
	"errors"

	"github.com/liu-kaining/stocksViewer/internal/model"
	"github.com/liu-kaining/stocksViewer/internal/upstream"
)

// Limited wraps a provider client and gates every call through a shared
// Window. All operations of one provider draw from the same quota.
type Limited struct {
	C upstream.Client
	W *Window
}

func (l *Limited) Name() string { return l.C.Name() }

func (l *Limited) wait(ctx context.Context) error {
	err := l.W.Wait(ctx)
	if err == nil {
		return nil
	}
	var rl *upstream.RateLimitedError
	if errors.As(err, &rl) && rl.Provider == "" {
		rl.Provider = l.C.Name()
	}
	return err
}

func (l *Limited) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := l.wait(ctx); err != nil {
		return model.Quote{}, err
	}
	return l.C.FetchQuote(ctx, symbol)
}

func (l *Limited) FetchOverview(ctx context.Context, symbol string) (model.Overview, error) {
	if err := l.wait(ctx); err != nil {
		return model.Overview{}, err
	}
	return l.C.FetchOverview(ctx, symbol)
}

func (l *Limited) FetchTimeSeries(ctx context.Context, symbol, interval, outputSize string, adjusted bool, rangeKey string) ([]model.Bar, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.C.FetchTimeSeries(ctx, symbol, interval, outputSize, adjusted, rangeKey)
}

func (l *Limited) FetchIndicator(ctx context.Context, symbol, indicator, interval string, params map[string]string) ([]model.IndicatorPoint, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.C.FetchIndicator(ctx, symbol, indicator, interval, params)
}
