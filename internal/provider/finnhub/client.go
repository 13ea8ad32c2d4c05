package finnhub

import (
	"net/http"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=finnhub_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a quote client for the Finnhub REST API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey is sent as the X-Finnhub-Token header on every request.
	apiKey string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// maxConcurrency limits in-flight per-symbol requests during a refresh.
	maxConcurrency int
}

// Option is a configuration option for the Finnhub client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client.
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

// WithMaxConcurrency caps concurrent per-symbol requests. Values below 1
// are ignored.
func WithMaxConcurrency(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.maxConcurrency = n
		}
	}
}

// New creates a Finnhub client. The key may be empty; FetchAll then fails
// with provider.ErrAuth when a refresh is attempted.
func New(apiKey string, options ...Option) *Client {
	c := &Client{
		baseURL:        defaultBaseURL,
		apiKey:         apiKey,
		httpClient:     http.DefaultClient,
		header:         http.Header{},
		maxConcurrency: 4,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return "Finnhub" }
