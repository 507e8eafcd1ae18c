package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/liu-kaining/stocksViewer/internal/model"
	"github.com/liu-kaining/stocksViewer/internal/store"
	"github.com/liu-kaining/stocksViewer/internal/upstream"
)

// PartialNotice is attached to history results that were completed with a
// live fetch for the missing sub-range.
const PartialNotice = "cached data did not cover the full range; missing bars were fetched live"

// Policy holds the freshness knobs, re-read on every request so settings
// changes take effect immediately.
type Policy struct {
	QuoteTTL       time.Duration
	IndicatorTTL   time.Duration
	HistoryTTLDays int
}

// Service is the cache orchestrator. It answers quote, history, and
// indicator requests from the store when fresh, coalesces concurrent
// upstream fetches per key, and persists everything it fetches.
type Service struct {
	store  store.Store
	client func() upstream.Client
	policy func() Policy

	sf           singleflight.Group
	fetchTimeout time.Duration
	now          func() time.Time
}

// New builds a Service. client and policy are resolved per request, so the
// active provider and TTLs can change at runtime.
func New(st store.Store, client func() upstream.Client, policy func() Policy) *Service {
	return &Service{
		store:        st,
		client:       client,
		policy:       policy,
		fetchTimeout: 30 * time.Second,
		now:          time.Now,
	}
}

// QuoteResult is a quote payload plus its source tag.
type QuoteResult struct {
	model.QuoteRecord
	Source string `json:"source"`
}

// HistoryResult is a history span plus its source tag and an optional
// user-facing notice for partial coverage.
type HistoryResult struct {
	model.HistorySpan
	Source string `json:"source"`
	Notice string `json:"notice,omitempty"`
}

// IndicatorResult is an indicator record plus its source tag.
type IndicatorResult struct {
	model.IndicatorRecord
	Source string `json:"source"`
}

// GetQuote returns the cached quote when fresh, otherwise fetches quote and
// company overview upstream and stores the result.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*QuoteResult, error) {
	client := s.client()
	pol := s.policy()

	rec, err := s.lookupQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Provider == client.Name() && Fresh(rec.FetchedAt, s.now(), pol.QuoteTTL) {
		return &QuoteResult{QuoteRecord: *rec, Source: SourceCache}, nil
	}

	v, err := s.coalesce(ctx, "quote:"+symbol, func(fctx context.Context) (any, error) {
		quote, err := client.FetchQuote(fctx, symbol)
		if err != nil {
			return nil, err
		}
		overview, err := client.FetchOverview(fctx, symbol)
		if err != nil {
			return nil, err
		}
		quote.CompanyOverview = overview
		fresh := &model.QuoteRecord{
			Quote:     quote,
			Provider:  client.Name(),
			FetchedAt: s.now().UTC(),
		}
		if err := s.store.PutQuote(fctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return &QuoteResult{QuoteRecord: *v.(*model.QuoteRecord), Source: SourceFetched}, nil
}

// GetHistory returns a historical series for (symbol, interval, range,
// adjusted). Full cache hits are served verbatim; a missing span triggers a
// full fetch; partial coverage is reconciled by fetching only the missing
// sub-range and merging by timestamp.
func (s *Service) GetHistory(ctx context.Context, symbol, interval, rangeKey string, adjusted bool) (*HistoryResult, error) {
	client := s.client()
	now := s.now().UTC()
	reqStart := model.RangeStart(rangeKey, now)

	span, err := s.lookupHistory(ctx, symbol, interval, rangeKey, adjusted)
	if err != nil {
		return nil, err
	}
	if span != nil && span.Provider != client.Name() {
		// Cached under a different provider: not trusted after a switch.
		span = nil
	}

	plan := PlanHistory(span, reqStart, now)
	if plan.Action == Hit {
		res := &HistoryResult{HistorySpan: *span, Source: SourceCache}
		res.Series = model.SliceRange(span.Series, rangeKey, now)
		return res, nil
	}

	key := fmt.Sprintf("hist:%s|%s|%s|%t", symbol, interval, rangeKey, adjusted)
	v, err := s.coalesce(ctx, key, func(fctx context.Context) (any, error) {
		outputSize := outputSizeFor(plan, span, rangeKey)
		bars, err := client.FetchTimeSeries(fctx, symbol, interval, outputSize, adjusted, rangeKey)
		if err != nil {
			return nil, err
		}

		result := HistoryResult{Source: SourceFetched}
		series := bars
		if plan.Action == FillGaps {
			series = MergeBars(span.Series, bars)
			result.Source = SourcePartial
			result.Notice = PartialNotice
		}

		merged := &model.HistorySpan{
			Symbol:    symbol,
			Interval:  interval,
			Range:     rangeKey,
			Adjusted:  adjusted,
			Series:    series,
			AsOfDate:  asOfDate(series),
			Provider:  client.Name(),
			FetchedAt: s.now().UTC(),
		}
		if err := s.store.PutHistory(fctx, merged); err != nil {
			return nil, err
		}
		result.HistorySpan = *merged
		return &result, nil
	})
	if err != nil {
		return nil, err
	}
	// The stored span keeps everything fetched; the response is trimmed to
	// the requested window. Copy before slicing so waiters sharing the
	// coalesced result are not affected.
	res := *v.(*HistoryResult)
	res.Series = model.SliceRange(res.Series, rangeKey, s.now().UTC())
	return &res, nil
}

// GetIndicator returns a technical indicator series, cached under the
// canonicalized parameter set.
func (s *Service) GetIndicator(ctx context.Context, symbol, indicator, interval string, params map[string]string) (*IndicatorResult, error) {
	client := s.client()
	pol := s.policy()

	rec, err := s.lookupIndicator(ctx, symbol, indicator, interval, params)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Provider == client.Name() && Fresh(rec.FetchedAt, s.now(), pol.IndicatorTTL) {
		return &IndicatorResult{IndicatorRecord: *rec, Source: SourceCache}, nil
	}

	key := fmt.Sprintf("ind:%s|%s|%s|%s", symbol, indicator, interval, model.CanonicalParams(params))
	v, err := s.coalesce(ctx, key, func(fctx context.Context) (any, error) {
		points, err := client.FetchIndicator(fctx, symbol, indicator, interval, params)
		if err != nil {
			return nil, err
		}
		fresh := &model.IndicatorRecord{
			Symbol:    symbol,
			Indicator: indicator,
			Interval:  interval,
			Params:    params,
			Series:    points,
			AsOfDate:  asOfIndicator(points),
			Provider:  client.Name(),
			FetchedAt: s.now().UTC(),
		}
		if err := s.store.PutIndicator(fctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return &IndicatorResult{IndicatorRecord: *v.(*model.IndicatorRecord), Source: SourceFetched}, nil
}

// ClearHistory deletes every cached history span and reports how many rows
// were removed.
func (s *Service) ClearHistory(ctx context.Context) (int64, error) {
	return s.store.DeleteHistory(ctx)
}

// ClearAll wipes quotes, history, and indicators. Called when the active
// provider changes, since cached rows from the old provider are not trusted.
func (s *Service) ClearAll(ctx context.Context) error {
	if _, err := s.store.DeleteQuotes(ctx); err != nil {
		return err
	}
	if _, err := s.store.DeleteHistory(ctx); err != nil {
		return err
	}
	_, err := s.store.DeleteIndicators(ctx)
	return err
}

// PurgeExpiredHistory removes spans whose fetchedAt is older than the
// configured history TTL. Run at startup and on a periodic schedule.
func (s *Service) PurgeExpiredHistory(ctx context.Context) (int64, error) {
	days := s.policy().HistoryTTLDays
	if days <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	return s.store.PurgeHistoryOlderThan(ctx, cutoff)
}

// coalesce runs fn under a per-key singleflight gate. The fetch uses a
// context detached from the caller so an abandoned request cannot cancel a
// fetch other waiters share; the result always lands in the store.
func (s *Service) coalesce(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.sf.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// lookupQuote reads the cached quote, mapping absent and corrupt rows to a
// plain miss. Store failures are fatal for the request.
func (s *Service) lookupQuote(ctx context.Context, symbol string) (*model.QuoteRecord, error) {
	rec, err := s.store.GetQuote(ctx, symbol)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case errors.Is(err, store.ErrCorrupt):
		log.Printf("[WARN] corrupt quote row for %s, refetching: %v", symbol, err)
		return nil, nil
	default:
		return nil, err
	}
}

func (s *Service) lookupHistory(ctx context.Context, symbol, interval, rangeKey string, adjusted bool) (*model.HistorySpan, error) {
	span, err := s.store.GetHistory(ctx, symbol, interval, rangeKey, adjusted)
	switch {
	case err == nil:
		return span, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case errors.Is(err, store.ErrCorrupt):
		log.Printf("[WARN] corrupt history row for %s/%s/%s, refetching: %v", symbol, interval, rangeKey, err)
		return nil, nil
	default:
		return nil, err
	}
}

func (s *Service) lookupIndicator(ctx context.Context, symbol, indicator, interval string, params map[string]string) (*model.IndicatorRecord, error) {
	rec, err := s.store.GetIndicator(ctx, symbol, indicator, interval, params)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case errors.Is(err, store.ErrCorrupt):
		log.Printf("[WARN] corrupt indicator row for %s/%s, refetching: %v", symbol, indicator, err)
		return nil, nil
	default:
		return nil, err
	}
}

// outputSizeFor picks the cheapest output size that still covers the work:
// compact (latest 100 bars) for short ranges and small gaps, full otherwise.
func outputSizeFor(plan Plan, span *model.HistorySpan, rangeKey string) string {
	if plan.Action == FillGaps && span != nil {
		if plan.Widest() <= 100*model.IntervalStep(span.Interval) {
			return upstream.OutputCompact
		}
		return upstream.OutputFull
	}
	switch rangeKey {
	case model.Range1D, model.Range1W, model.Range1M, model.Range3M:
		return upstream.OutputCompact
	default:
		return upstream.OutputFull
	}
}

func asOfDate(series []model.Bar) string {
	if len(series) == 0 {
		return ""
	}
	return series[len(series)-1].Timestamp.Format("2006-01-02")
}

func asOfIndicator(points []model.IndicatorPoint) string {
	if len(points) == 0 {
		return ""
	}
	return points[len(points)-1].Timestamp.Format("2006-01-02")
}
