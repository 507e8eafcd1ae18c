package cache

import (
	"sort"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/model"
)

// Action is the reconciler's verdict for a history request.
type Action int

const (
	// Hit means the cached span fully covers the requested window.
	Hit Action = iota
	// Refetch means there is no usable span; fetch the full range.
	Refetch
	// FillGaps means the span covers part of the window; fetch only the
	// missing sub-ranges and merge.
	FillGaps
)

// Gap is a missing sub-range of the requested window.
type Gap struct {
	Start, End time.Time
}

// Plan describes what upstream work a history request needs.
type Plan struct {
	Action Action
	Gaps   []Gap
}

// PlanHistory compares a cached span against the window [reqStart, reqEnd]
// and decides between a full hit, a wholesale refetch, and gap-filling.
//
// Coverage is judged with slack of two interval steps at either edge so that
// weekends and market holidays do not register as gaps in daily data.
func PlanHistory(span *model.HistorySpan, reqStart, reqEnd time.Time) Plan {
	if span == nil || len(span.Series) == 0 {
		return Plan{Action: Refetch}
	}

	slack := 2 * model.IntervalStep(span.Interval)
	var gaps []Gap
	if span.First().Sub(reqStart) > slack {
		gaps = append(gaps, Gap{Start: reqStart, End: span.First()})
	}
	if reqEnd.Sub(span.Last()) > slack {
		gaps = append(gaps, Gap{Start: span.Last(), End: reqEnd})
	}
	if len(gaps) == 0 {
		return Plan{Action: Hit}
	}
	return Plan{Action: FillGaps, Gaps: gaps}
}

// Widest returns the total duration of the plan's gaps.
func (p Plan) Widest() time.Duration {
	var total time.Duration
	for _, g := range p.Gaps {
		total += g.End.Sub(g.Start)
	}
	return total
}

// MergeBars produces the sorted union of a cached series and a freshly
// fetched one, keyed by timestamp. Fresh points win on collision: they are
// presumed more authoritative. The result is ascending with no duplicates.
func MergeBars(cached, fresh []model.Bar) []model.Bar {
	byTS := make(map[time.Time]model.Bar, len(cached)+len(fresh))
	for _, b := range cached {
		byTS[b.Timestamp] = b
	}
	for _, b := range fresh {
		byTS[b.Timestamp] = b
	}

	out := make([]model.Bar, 0, len(byTS))
	for _, b := range byTS {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
