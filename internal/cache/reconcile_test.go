package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liu-kaining/stocksViewer/internal/model"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func dailyBars(from, to int) []model.Bar {
	var bars []model.Bar
	for i := from; i <= to; i++ {
		bars = append(bars, model.Bar{Timestamp: day(i), Close: float64(100 + i)})
	}
	return bars
}

func TestPlanHistory_MissRequiresFullFetch(t *testing.T) {
	p := PlanHistory(nil, day(1), day(30))
	require.Equal(t, Refetch, p.Action)

	empty := &model.HistorySpan{Interval: "daily"}
	p = PlanHistory(empty, day(1), day(30))
	require.Equal(t, Refetch, p.Action)
}

func TestPlanHistory_SupersetIsHit(t *testing.T) {
	span := &model.HistorySpan{Interval: "daily", Series: dailyBars(1, 30)}
	// Request a strict subset of the cached window: no upstream work.
	p := PlanHistory(span, day(5), day(25))
	require.Equal(t, Hit, p.Action)
	require.Empty(t, p.Gaps)
}

func TestPlanHistory_EdgeSlackForWeekends(t *testing.T) {
	// Last bar is a Friday two days before the requested end: still a hit
	// for daily data.
	span := &model.HistorySpan{Interval: "daily", Series: dailyBars(1, 28)}
	p := PlanHistory(span, day(1), day(30))
	require.Equal(t, Hit, p.Action)
}

func TestPlanHistory_TailGap(t *testing.T) {
	span := &model.HistorySpan{Interval: "daily", Series: dailyBars(1, 10)}
	p := PlanHistory(span, day(1), day(20))
	require.Equal(t, FillGaps, p.Action)
	require.Len(t, p.Gaps, 1)
	require.True(t, p.Gaps[0].Start.Equal(day(10)))
	require.True(t, p.Gaps[0].End.Equal(day(20)))
}

func TestPlanHistory_HeadAndTailGaps(t *testing.T) {
	span := &model.HistorySpan{Interval: "daily", Series: dailyBars(10, 15)}
	p := PlanHistory(span, day(1), day(30))
	require.Equal(t, FillGaps, p.Action)
	require.Len(t, p.Gaps, 2)
	require.Equal(t, 24*time.Duration(9+15)*time.Hour, p.Widest())
}

func TestMergeBars_FreshWinsOnCollision(t *testing.T) {
	cached := dailyBars(1, 10)
	fresh := dailyBars(8, 15)
	for i := range fresh {
		fresh[i].Close += 1000 // distinguishable from cached values
	}

	merged := MergeBars(cached, fresh)
	require.Len(t, merged, 15, "union of d1..d10 and d8..d15 is d1..d15")

	for i := 1; i < len(merged); i++ {
		require.True(t, merged[i-1].Timestamp.Before(merged[i].Timestamp), "ascending, no duplicates")
	}
	// d1..d7 from cache, d8..d15 from the fresh fetch.
	require.Equal(t, float64(100+7), merged[6].Close)
	require.Equal(t, float64(100+8+1000), merged[7].Close)
	require.Equal(t, float64(100+10+1000), merged[9].Close)
	require.Equal(t, float64(100+15+1000), merged[14].Close)
}

func TestMergeBars_EmptySides(t *testing.T) {
	fresh := dailyBars(1, 3)
	require.Len(t, MergeBars(nil, fresh), 3)
	require.Len(t, MergeBars(fresh, nil), 3)
	require.Empty(t, MergeBars(nil, nil))
}

func TestFresh_BoundaryIsExclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Minute

	require.True(t, Fresh(now.Add(-59*time.Second), now, ttl))
	require.False(t, Fresh(now.Add(-time.Minute), now, ttl), "fetchedAt == now-ttl is expired")
	require.False(t, Fresh(now.Add(-2*time.Minute), now, ttl))
	require.False(t, Fresh(time.Time{}, now, ttl))
}
