package upstream

import (
	"fmt"
	"time"
)

// RateLimitedError means the call quota is exhausted. RetryAfter is the time
// until the oldest tracked call leaves the quota window.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
	// Message keeps the provider's own throttling notice when one was
	// returned in-band.
	Message string
}

func (e *RateLimitedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Message)
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%s: rate limited, retry later", e.Provider)
}

// RejectedError is a permanent provider error: bad symbol, bad API key,
// malformed params. The original provider message is preserved for
// diagnostics.
type RejectedError struct {
	Provider string
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected request: %s", e.Provider, e.Message)
}

// TransientError is a network failure or 5xx response. The client retries
// once internally before surfacing it.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s transient failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
