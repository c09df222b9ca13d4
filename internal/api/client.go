package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/snailtrap/client-go/internal/apierrors"
)

const (
	// DefaultTimeout is the per-request timeout used when no custom
	// HTTP client or timeout is supplied.
	DefaultTimeout = 30 * time.Second
)

// Config holds the API client configuration.
type Config struct {
	// BaseURL is the root of the Snailtrap API, without a trailing slash.
	BaseURL string
	// APIKey is sent as a bearer token on every request.
	APIKey string
	// UserAgent overrides the default User-Agent header when non-empty.
	UserAgent string
	// Timeout bounds each HTTP request. Ignored when HTTPClient is set.
	Timeout time.Duration
	// HTTPClient replaces the default client when non-nil.
	HTTPClient *http.Client
	// RateLimit caps outgoing requests per second. Zero disables
	// client-side pacing.
	RateLimit float64
	// RateBurst is the limiter burst size. Values below 1 are raised to 1.
	RateBurst int
}

// Client is the HTTP API client.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an API client from explicit configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apierrors.ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// Option configures the API client.
type Option func(*Config)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(cfg *Config) {
		cfg.BaseURL = url
	}
}

// WithTimeout sets the per-request timeout for the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *Config) {
		cfg.HTTPClient = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cfg *Config) {
		cfg.UserAgent = ua
	}
}

// WithRateLimit enables client-side request pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *Config) {
		cfg.RateLimit = rps
		cfg.RateBurst = burst
	}
}

// New creates a new API client using functional options.
func New(apiKey string, opts ...Option) (*Client, error) {
	cfg := Config{APIKey: apiKey}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// SetHTTPClient sets a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Do performs a single HTTP request against the API. It makes exactly one
// attempt: retry policy belongs to the caller, not the transport. Failures
// come back as *apierrors.NetworkError (transport), *apierrors.APIError
// (non-2xx status), or *apierrors.PayloadError (undecodable body).
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apierrors.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &apierrors.PayloadError{Err: err}
		}
	}

	return nil
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error     string `json:"error"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	}

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &apierrors.APIError{
			StatusCode: resp.StatusCode,
			Message:    errResp.Error,
			RequestID:  errResp.RequestID,
		}
	}

	return &apierrors.APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
	}
}
