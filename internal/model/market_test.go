package model

import (
	"testing"
	"time"
)

func TestCanonicalParams_OrderIndependent(t *testing.T) {
	a := CanonicalParams(map[string]string{"time_period": "14", "series_type": "close"})
	b := CanonicalParams(map[string]string{"series_type": "close", "time_period": "14"})
	if a != b {
		t.Fatalf("canonical forms differ: %q vs %q", a, b)
	}
	if a == "{}" {
		t.Fatalf("unexpected empty canonical form")
	}
}

func TestCanonicalParams_Empty(t *testing.T) {
	if got := CanonicalParams(nil); got != "{}" {
		t.Fatalf("want {}, got %q", got)
	}
	if got := CanonicalParams(map[string]string{}); got != "{}" {
		t.Fatalf("want {}, got %q", got)
	}
}

func TestRangeStart(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		key  string
		want time.Time
	}{
		{Range1D, now.AddDate(0, 0, -1)},
		{Range1W, now.AddDate(0, 0, -7)},
		{Range1M, now.AddDate(0, -1, 0)},
		{Range3M, now.AddDate(0, -3, 0)},
		{Range1Y, now.AddDate(-1, 0, 0)},
		{RangeMax, now.AddDate(-5, 0, 0)},
		{"bogus", now.AddDate(0, -1, 0)},
	}
	for _, c := range cases {
		if got := RangeStart(c.key, now); !got.Equal(c.want) {
			t.Errorf("%s: want %v, got %v", c.key, c.want, got)
		}
	}
}

func TestIntervalStep(t *testing.T) {
	if got := IntervalStep("daily"); got != 24*time.Hour {
		t.Fatalf("daily: %v", got)
	}
	if got := IntervalStep("weekly"); got != 7*24*time.Hour {
		t.Fatalf("weekly: %v", got)
	}
	if got := IntervalStep("intraday_5min"); got != 5*time.Minute {
		t.Fatalf("intraday_5min: %v", got)
	}
	if got := IntervalStep("garbage"); got != 24*time.Hour {
		t.Fatalf("fallback: %v", got)
	}
}

func TestSliceRange(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	var series []Bar
	for i := 0; i < 400; i++ {
		series = append(series, Bar{Timestamp: now.AddDate(0, 0, -(400 - i))})
	}
	week := SliceRange(series, Range1W, now)
	if len(week) != 7 {
		t.Fatalf("want 7 bars in 1W window, got %d", len(week))
	}
	if week[0].Timestamp.Before(now.AddDate(0, 0, -7)) {
		t.Fatalf("first bar %v before window start", week[0].Timestamp)
	}
	all := SliceRange(series, RangeMax, now)
	if len(all) != 400 {
		t.Fatalf("MAX should keep everything, got %d", len(all))
	}
}

func TestHistorySpanFirstLast(t *testing.T) {
	var empty HistorySpan
	if !empty.First().IsZero() || !empty.Last().IsZero() {
		t.Fatalf("empty span should report zero times")
	}
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 0, 5)
	s := HistorySpan{Series: []Bar{{Timestamp: t1}, {Timestamp: t2}}}
	if !s.First().Equal(t1) || !s.Last().Equal(t2) {
		t.Fatalf("unexpected bounds: %v .. %v", s.First(), s.Last())
	}
}
