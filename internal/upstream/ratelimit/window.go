package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/upstream"
)

// Window enforces a hard ceiling of limit calls per rolling period. It tracks
// the timestamps of the last limit calls; before admitting a call it prunes
// entries older than the period and, if the quota is full, blocks until the
// oldest entry expires.
//
// Discipline: blocking-with-timeout. A caller waits up to maxWait for a slot
// and then fails with upstream.RateLimitedError carrying the remaining wait.
// maxWait == 0 makes the window non-blocking.
//
// Never persisted; initialized empty at process start.
type Window struct {
	limit   int
	per     time.Duration
	maxWait time.Duration

	mu    sync.Mutex
	calls []time.Time

	// injectable for deterministic throttling tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindow returns a window admitting limit calls per period, blocking
// callers for at most maxWait.
func NewWindow(limit int, per, maxWait time.Duration) *Window {
	if limit <= 0 {
		limit = 1
	}
	if per <= 0 {
		per = time.Minute
	}
	return &Window{
		limit:   limit,
		per:     per,
		maxWait: maxWait,
		now:     time.Now,
		sleep:   sleepTimer,
	}
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the quota admits one call, then records it. It returns
// upstream.RateLimitedError if the slot would not open within maxWait, or the
// context error if ctx is canceled while waiting.
func (w *Window) Wait(ctx context.Context) error {
	var waited time.Duration
	for {
		w.mu.Lock()
		now := w.now()
		w.prune(now)
		if len(w.calls) < w.limit {
			w.calls = append(w.calls, now)
			w.mu.Unlock()
			return nil
		}
		wait := w.calls[0].Add(w.per).Sub(now)
		w.mu.Unlock()

		if wait <= 0 {
			// Oldest entry expired between prune and here; re-check.
			continue
		}
		if waited+wait > w.maxWait {
			return &upstream.RateLimitedError{RetryAfter: wait}
		}
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait
	}
}

// InFlight reports how many calls are currently tracked inside the window.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.calls)
}

// prune drops entries older than the period. Caller holds w.mu.
func (w *Window) prune(now time.Time) {
	cut := 0
	for cut < len(w.calls) && !w.calls[cut].Add(w.per).After(now) {
		cut++
	}
	if cut > 0 {
		w.calls = append(w.calls[:0], w.calls[cut:]...)
	}
}
