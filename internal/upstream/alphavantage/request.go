package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/liu-kaining/stocksViewer/internal/upstream"
)

const retryBackoff = 500 * time.Millisecond

// request issues one API call and decodes the top-level JSON object.
// Transient failures (network errors, 5xx) are retried once after a short
// backoff; everything else surfaces immediately with the provider's error
// text preserved.
func (c *Client) request(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	key := c.apiKey()
	if key == "" {
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: "missing Alpha Vantage API key, configure one in settings"}
	}
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	merged.Set("apikey", key)

	payload, err := c.doOnce(ctx, merged)
	if err != nil {
		var transient *upstream.TransientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff):
		}
		payload, err = c.doOnce(ctx, merged)
		if err != nil {
			return nil, err
		}
	}
	return c.classify(payload)
}

func (c *Client) doOnce(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(params), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &upstream.TransientError{Provider: c.Name(), Err: err}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 500:
		return nil, &upstream.TransientError{Provider: c.Name(), Err: fmt.Errorf("status %d", res.StatusCode)}
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, &upstream.RateLimitedError{Provider: c.Name(), RetryAfter: time.Minute}
	case res.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: fmt.Sprintf("status %d: %s", res.StatusCode, body)}
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, &upstream.TransientError{Provider: c.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	return payload, nil
}

// classify turns Alpha Vantage's in-band error envelopes into typed errors.
// "Note" and "Information" are the upstream throttling notices.
func (c *Client) classify(payload map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	if raw, ok := payload["Note"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return nil, &upstream.RateLimitedError{Provider: c.Name(), RetryAfter: time.Minute, Message: msg}
	}
	if raw, ok := payload["Information"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: msg}
	}
	if raw, ok := payload["Error Message"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return nil, &upstream.RejectedError{Provider: c.Name(), Message: msg}
	}
	return payload, nil
}
