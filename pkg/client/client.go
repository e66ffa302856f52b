// Package client provides the NeoWs HTTP client with retry, pacing,
// quota tracking and JSON decoding.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/neo-hunter/pkg/logging"
	"github.com/Sternrassler/neo-hunter/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for NeoWs client operations.
var (
	neowsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neows_requests_total",
		Help: "Total NeoWs requests by endpoint and status",
	}, []string{"endpoint", "status"})

	neowsRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neows_request_duration_seconds",
		Help:    "NeoWs request duration in seconds by endpoint, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	neowsErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neows_errors_total",
		Help: "Total NeoWs errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (bad key, bad parameters).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 quota errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// DefaultBaseURL is the public NeoWs endpoint.
const DefaultBaseURL = "https://api.nasa.gov/neo/rest/v1"

// PageSize is the number of asteroids requested per browse page.
const PageSize = 20

// Client is the NeoWs client.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	rateLimiter *ratelimit.Tracker
	config      Config
	retry       RetryConfig
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey is appended as the api_key query parameter to every request.
	APIKey string

	// BaseURL of the NeoWs API (default DefaultBaseURL).
	BaseURL string

	// User-Agent header
	UserAgent string

	// Redis enables shared quota tracking. Optional.
	Redis *redis.Client

	// Pacing
	RateLimit      int // Requests per second, 0 disables pacing
	MaxConcurrency int // Burst size of the pacer

	// Timeout per attempt
	Timeout time.Duration

	// Retry on transport failures
	MaxRetries     int // Additional attempts after the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        DefaultBaseURL,
		UserAgent:      "neo-hunter/0.1.0",
		RateLimit:      20,
		MaxConcurrency: 20,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// New creates a new NeoWs client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}

	logger := logging.NewLogger(logging.ComponentClient)

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		retry:  retry,
		logger: logger,
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.MaxConcurrency)
	}
	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, cfg.APIKey, logging.NewLogger(logging.ComponentQuota))
	}

	return c, nil
}

// BrowseURL returns the unpaginated browse URL.
func (c *Client) BrowseURL() string {
	return c.withAPIKey(c.config.BaseURL + "/neo/browse")
}

// PageURL returns the browse URL of page (0-based).
func (c *Client) PageURL(page int) string {
	return c.BrowseURL() + "&page=" + strconv.Itoa(page) + "&size=" + strconv.Itoa(PageSize)
}

// FeedURL returns the feed URL of the window [start, end] (YYYY-MM-DD).
func (c *Client) FeedURL(start, end string) string {
	return c.withAPIKey(c.config.BaseURL+"/feed") + "&start_date=" + start + "&end_date=" + end
}

// withAPIKey adds the api_key parameter to rawURL unless present.
// Cursor links returned by NeoWs already carry it.
func (c *Client) withAPIKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("api_key") != "" {
		return rawURL
	}
	q.Set("api_key", c.config.APIKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// Do performs an HTTP request with pacing, quota gating and retry on
// transport failures. Any response that arrives is returned to the caller,
// whatever its status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		neowsRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	var resp *http.Response

	err := retryWithBackoff(ctx, c.retry, c.logger, func(attempt int) error {
		if err := c.wait(ctx, endpoint); err != nil {
			return err
		}

		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Msg("Executing NeoWs request")

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			errClass := c.classifyError(nil, reqErr)
			neowsErrorsTotal.WithLabelValues(string(errClass)).Inc()
			neowsRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().
				Err(reqErr).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("HTTP request failed")
			return &APIError{ErrorClass: errClass, Message: "transport failure", Err: reqErr}
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
			}
		}

		neowsRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// wait blocks until pacing and quota allow another request.
func (c *Client) wait(ctx context.Context, endpoint string) error {
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			// Quota state is advisory, a Redis outage must not stop fetching.
			c.logger.Warn().Err(err).Msg("Quota check failed")
		case !allowed:
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by quota tracker")
			neowsRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return ErrRateLimited
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pacing: %w", err)
		}
	}
	return nil
}

// GetJSON fetches rawURL and decodes a 200 response body into v.
// A non-200 response is returned as *APIError without retry.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.withAPIKey(rawURL), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	endpoint := req.URL.Path

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errClass := c.classifyError(resp, nil)
		neowsErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("NeoWs request error")
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w from %s: %v", ErrDecode, endpoint, err)
	}
	return nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
