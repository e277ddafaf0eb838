// Package provider implements the rate-limited API client for the contact
// provider. It is the only package permitted to perform network I/O against
// the provider; every public operation routes through one internal request
// primitive that enforces the concurrency gate, the local quota windows, the
// remote-reported rate limit and the retry policy.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/httpclient"
	"github.com/caselink/contactsync/internal/logging"
	"github.com/caselink/contactsync/internal/observability/metrics"
)

// Package-level logger specific to the provider service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "provider.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "provider", serviceLevelVar)
	if err != nil {
		// Fallback: log error to standard log and disable service file logging
		log.Printf("Failed to initialize provider file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "provider")
		closeLogger = func() error { return nil }
	}
}

const phoneNumberCacheKey = "phone-numbers"

// Client provides methods for interacting with the contact provider API.
// A single Client is constructed per process and shared by all collaborators
// so that the concurrency gate and quota windows bound every remote call.
type Client struct {
	config     Config
	httpClient *httpclient.Client
	sem        *semaphore.Weighted
	smoother   *rate.Limiter
	cache      *cache.Cache
	metrics    *metrics.ProviderMetrics

	// local quota windows, counters reset on window expiry
	quotaMu     sync.Mutex
	minuteCount int
	minuteReset time.Time
	hourCount   int
	hourReset   time.Time

	// remote-reported rate limit state from x-ratelimit-* headers
	remoteMu        sync.Mutex
	remoteRemaining int
	remoteReset     time.Time
	remoteKnown     bool
}

// NewClient creates a new provider API client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("provider API key is required").
			Category(errors.CategoryConfiguration).
			Component("provider").
			Build()
	}

	// Use defaults for missing config values
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.RequestsPerHour == 0 {
		config.RequestsPerHour = defaults.RequestsPerHour
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	client := &Client{
		config: config,
		httpClient: httpclient.New(&httpclient.Config{
			DefaultTimeout: config.Timeout,
		}),
		sem: semaphore.NewWeighted(config.MaxConcurrent),
		// Smooth request bursts below the per-minute quota
		smoother: rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), int(config.MaxConcurrent)),
		cache:    cache.New(5*time.Minute, 10*time.Minute),
	}
	now := time.Now()
	client.minuteReset = now.Add(time.Minute)
	client.hourReset = now.Add(time.Hour)

	logger.Info("provider client initialized",
		"base_url", config.BaseURL,
		"requests_per_minute", config.RequestsPerMinute,
		"requests_per_hour", config.RequestsPerHour,
		"max_concurrent", config.MaxConcurrent,
		"retry_attempts", config.RetryAttempts,
		"api_key_configured", config.APIKey != "")

	return client, nil
}

// SetMetrics attaches Prometheus collectors to the client. Optional; a nil
// receiver value disables metric recording.
func (c *Client) SetMetrics(m *metrics.ProviderMetrics) {
	c.metrics = m
}

// Close cleans up client resources.
func (c *Client) Close() {
	c.httpClient.Close()
	logger.Info("closing provider client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing provider logger: %v", err)
		}
	}
}

// request is the single internal primitive behind every public operation.
// It retries 429 and 5xx responses with exponential backoff up to the
// configured ceiling; the concurrency slot is never held across a backoff
// sleep.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		status, err := c.attempt(ctx, method, path, query, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableStatus(status) || attempt >= c.config.RetryAttempts {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}

		if c.metrics != nil {
			c.metrics.RetriesTotal.Inc()
		}

		delay := c.config.RetryDelay * (1 << attempt)
		logger.Warn("provider request failed, retrying",
			"method", method,
			"path", path,
			"status", status,
			"attempt", attempt+1,
			"max_attempts", c.config.RetryAttempts,
			"delay_ms", delay.Milliseconds())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.Newf("retry wait cancelled: %w", ctx.Err()).
				Category(errors.CategoryCancellation).
				HTTPContext(method, path, status).
				Component("provider").
				Build()
		}
	}
}

// attempt performs one HTTP exchange. The concurrency slot is acquired on
// entry and released on every exit path by the deferred call; this is the
// invariant that keeps the gate from leaking permits.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body, out any) (status int, err error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return 0, errors.Newf("waiting for request slot: %w", err).
			Category(errors.CategoryCancellation).
			HTTPContext(method, path, 0).
			Component("provider").
			Build()
	}
	defer c.sem.Release(1)

	if c.metrics != nil {
		c.metrics.InFlightRequests.Inc()
		defer c.metrics.InFlightRequests.Dec()
	}

	if err := c.smoother.Wait(ctx); err != nil {
		return 0, errors.Newf("waiting for rate smoother: %w", err).
			Category(errors.CategoryCancellation).
			Component("provider").
			Build()
	}
	if err := c.waitQuota(ctx); err != nil {
		return 0, err
	}
	if err := c.waitRemote(ctx); err != nil {
		return 0, err
	}

	reqURL := c.config.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return statusLocalFailure, errors.Newf("failed to marshal request body: %w", err).
				Category(errors.CategoryValidation).
				HTTPContext(method, path, 0).
				Component("provider").
				Build()
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return statusLocalFailure, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryValidation).
			HTTPContext(method, path, 0).
			Component("provider").
			Build()
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.Debug {
		logger.Debug("provider API request", "method", method, "url", reqURL)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		logger.Error("provider API request failed", "method", method, "url", reqURL, "error", err)
		return 0, errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			HTTPContext(method, path, 0).
			Component("provider").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.updateRateLimitState(resp.Header)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			HTTPContext(method, path, resp.StatusCode).
			Component("provider").
			Build()
	}

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.ObserveRequest(endpointLabel(path), strconv.Itoa(resp.StatusCode), duration)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody apiErrorBody
		if jsonErr := json.Unmarshal(bodyBytes, &errBody); jsonErr == nil {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}

		logger.Warn("provider API error response",
			"method", method,
			"url", reqURL,
			"status_code", resp.StatusCode,
			"error_code", apiErr.Code,
			"error_message", apiErr.Message)

		return resp.StatusCode, errors.New(apiErr).
			Category(categoryForStatus(resp.StatusCode)).
			HTTPContext(method, path, resp.StatusCode).
			Context("error_code", apiErr.Code).
			Component("provider").
			Build()
	}

	if out != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return resp.StatusCode, errors.Newf("failed to parse response: %w", err).
				Category(errors.CategoryValidation).
				HTTPContext(method, path, resp.StatusCode).
				Context("response_size", len(bodyBytes)).
				Component("provider").
				Build()
		}
	}

	if c.config.Debug {
		logger.Debug("provider API response",
			"method", method,
			"url", reqURL,
			"status_code", resp.StatusCode,
			"duration_ms", duration.Milliseconds(),
			"response_size", len(bodyBytes))
	}

	return resp.StatusCode, nil
}

// waitQuota blocks until both the per-minute and per-hour windows have room,
// then consumes one unit from each. Counters reset when a window expires.
func (c *Client) waitQuota(ctx context.Context) error {
	for {
		c.quotaMu.Lock()
		now := time.Now()
		if !now.Before(c.minuteReset) {
			c.minuteCount = 0
			c.minuteReset = now.Add(time.Minute)
		}
		if !now.Before(c.hourReset) {
			c.hourCount = 0
			c.hourReset = now.Add(time.Hour)
		}
		if c.minuteCount < c.config.RequestsPerMinute && c.hourCount < c.config.RequestsPerHour {
			c.minuteCount++
			c.hourCount++
			c.quotaMu.Unlock()
			return nil
		}

		var wait time.Duration
		if c.minuteCount >= c.config.RequestsPerMinute {
			wait = time.Until(c.minuteReset)
		}
		if c.hourCount >= c.config.RequestsPerHour {
			if hourWait := time.Until(c.hourReset); hourWait > wait {
				wait = hourWait
			}
		}
		c.quotaMu.Unlock()

		if c.metrics != nil {
			c.metrics.QuotaWaits.Inc()
		}
		logger.Debug("local quota exhausted, waiting for window reset", "wait_ms", wait.Milliseconds())

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return errors.Newf("quota wait cancelled: %w", ctx.Err()).
				Category(errors.CategoryCancellation).
				Component("provider").
				Build()
		}
	}
}

// waitRemote blocks until the remote-reported rate limit window has room.
func (c *Client) waitRemote(ctx context.Context) error {
	c.remoteMu.Lock()
	wait := time.Duration(0)
	if c.remoteKnown && c.remoteRemaining <= 0 {
		wait = time.Until(c.remoteReset)
	}
	c.remoteMu.Unlock()

	if wait <= 0 {
		return nil
	}

	if c.metrics != nil {
		c.metrics.RateLimitWaits.Inc()
	}
	logger.Debug("remote rate limit exhausted, waiting for reset", "wait_ms", wait.Milliseconds())

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return errors.Newf("rate limit wait cancelled: %w", ctx.Err()).
			Category(errors.CategoryCancellation).
			Component("provider").
			Build()
	}
}

// updateRateLimitState tracks the x-ratelimit-* response headers.
func (c *Client) updateRateLimitState(h http.Header) {
	remaining := h.Get("x-ratelimit-remaining")
	if remaining == "" {
		return
	}
	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}

	c.remoteMu.Lock()
	defer c.remoteMu.Unlock()
	c.remoteKnown = true
	c.remoteRemaining = rem

	if resetStr := h.Get("x-ratelimit-reset"); resetStr != "" {
		if reset, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			// Large values are unix timestamps, small values are
			// seconds-from-now; providers differ between API generations.
			if reset > 1_000_000 {
				c.remoteReset = time.Unix(reset, 0)
			} else {
				c.remoteReset = time.Now().Add(time.Duration(reset) * time.Second)
			}
		}
	} else if rem <= 0 {
		c.remoteReset = time.Now().Add(time.Second)
	}
}

// statusLocalFailure marks an attempt that failed before reaching the wire,
// such as a request body that does not marshal. These failures are
// deterministic and must not be retried.
const statusLocalFailure = -1

// isRetryableStatus reports whether the response status is transient-remote.
// Status 0 means the request reached the wire but never completed (network
// error), which is also worth retrying.
func isRetryableStatus(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

// categoryForStatus maps an HTTP status to an error category.
func categoryForStatus(status int) errors.ErrorCategory {
	switch {
	case status == http.StatusTooManyRequests:
		return errors.CategoryRateLimit
	case status == http.StatusNotFound:
		return errors.CategoryNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.CategoryConfiguration
	case status == http.StatusConflict:
		return errors.CategoryConflict
	case status >= 400 && status < 500:
		return errors.CategoryValidation
	default:
		return errors.CategoryNetwork
	}
}

// endpointLabel reduces a request path to a low-cardinality metrics label.
func endpointLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}
