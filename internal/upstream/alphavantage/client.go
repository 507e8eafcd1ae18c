package alphavantage

import (
	"net/http"
	"net/url"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Alpha Vantage API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// apiKey resolves the API key at call time, so settings changes take
	// effect without rebuilding the client.
	apiKey func() string
}

// Option is a configuration option for the Alpha Vantage client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithAPIKeyFunc resolves the API key per request instead of a fixed key.
func WithAPIKeyFunc(fn func() string) Option {
	return func(c *Client) {
		c.apiKey = fn
	}
}

// NewClient creates a new Alpha Vantage API client.
func NewClient(key string, options ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		apiKey:     func() string { return key },
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Name identifies the provider in cached records and error messages.
func (c *Client) Name() string { return "alphavantage" }

func (c *Client) buildURL(params url.Values) string {
	return c.baseURL + "?" + params.Encode()
}
