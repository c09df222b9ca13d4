package snailtrap

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/snailtrap/client-go/retry"
)

const (
	defaultBaseURL      = "https://api.snailtrap.dev"
	defaultWaitTimeout  = 60 * time.Second
	defaultPollInterval = 2 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger

	rateLimit float64
	rateBurst int

	retryPolicy      retry.Policy
	breakerThreshold uint32
	breakerCooldown  time.Duration

	keywords []string

	// Watch polling configuration
	pollingInitialInterval   time.Duration
	pollingMaxBackoff        time.Duration
	pollingBackoffMultiplier float64
	pollingJitterFactor      float64
}

// inboxConfig holds configuration for inbox creation.
type inboxConfig struct {
	ttl     time.Duration
	address string
}

// Option configures the client.
type Option func(*clientConfig)

// InboxOption configures inbox creation.
type InboxOption func(*inboxConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(c *clientConfig) {
		c.userAgent = userAgent
	}
}

// WithLogger sets the logger for background activity: breaker state
// changes, watch-loop failures. Logging is off by default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithRateLimit caps outgoing API requests at rps requests per second
// with the given burst. Zero rps disables client-side pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *clientConfig) {
		c.rateLimit = rps
		c.rateBurst = burst
	}
}

// WithRetryPolicy replaces the backoff policy used inside verification
// waits. Default: retry.DefaultPolicy().
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *clientConfig) {
		c.retryPolicy = p
	}
}

// WithBreakerThreshold sets how many consecutive transient failures
// open a verification circuit breaker.
// Default: 5
func WithBreakerThreshold(n uint32) Option {
	return func(c *clientConfig) {
		c.breakerThreshold = n
	}
}

// WithBreakerCooldown sets how long an open breaker waits before
// admitting a single half-open probe.
// Default: 30 seconds
func WithBreakerCooldown(d time.Duration) Option {
	return func(c *clientConfig) {
		c.breakerCooldown = d
	}
}

// WithKeywords replaces the link-ranking keyword set used when a
// VerificationRequest does not carry its own.
// Default: linkscan.DefaultKeywords()
func WithKeywords(keywords ...string) Option {
	return func(c *clientConfig) {
		c.keywords = keywords
	}
}

// WithPollingInitialInterval sets the initial interval for Watch polling.
// This is the interval used while messages are actively arriving.
// Default: 2 seconds
func WithPollingInitialInterval(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingInitialInterval = interval
	}
}

// WithPollingMaxBackoff sets the maximum Watch polling interval.
// When no new messages arrive, the polling interval increases up to
// this maximum.
// Default: 30 seconds
func WithPollingMaxBackoff(maxBackoff time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingMaxBackoff = maxBackoff
	}
}

// WithPollingBackoffMultiplier sets the backoff multiplier for Watch
// polling. After each poll with no changes, the interval is multiplied
// by this factor.
// Default: 1.5
func WithPollingBackoffMultiplier(multiplier float64) Option {
	return func(c *clientConfig) {
		c.pollingBackoffMultiplier = multiplier
	}
}

// WithPollingJitterFactor sets the jitter factor for Watch polling
// intervals. Random jitter up to this fraction of the interval is
// added to prevent synchronized polling across multiple clients.
// Default: 0.3 (30%)
func WithPollingJitterFactor(factor float64) Option {
	return func(c *clientConfig) {
		c.pollingJitterFactor = factor
	}
}

// WithTTL sets the inbox time-to-live.
func WithTTL(ttl time.Duration) InboxOption {
	return func(c *inboxConfig) {
		c.ttl = ttl
	}
}

// WithAddress requests a specific address for the inbox instead of a
// server-generated one.
func WithAddress(address string) InboxOption {
	return func(c *inboxConfig) {
		c.address = address
	}
}
