package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/ratelimit"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBaseBackoff = time.Second
)

// Client is the shared rate-limited HTTP JSON fetcher used by all sources.
// Each request acquires the per-source limiter first, then retries transient
// failures (429 and 5xx) with exponential backoff, doubling the delay per
// attempt. Permanent failures (other 4xx, undecodable bodies) are returned
// immediately without retry.
type Client struct {
	source      string
	http        *http.Client
	limiter     *ratelimit.Limiter
	clock       ratelimit.Clock
	maxAttempts int
	baseBackoff time.Duration
	logger      *logging.Logger
}

// NewClient creates a fetch client for the named source.
func NewClient(source string, limiter *ratelimit.Limiter, clock ratelimit.Clock, timeout time.Duration, maxAttempts int, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Client{
		source:      source,
		http:        &http.Client{Timeout: timeout},
		limiter:     limiter,
		clock:       clock,
		maxAttempts: maxAttempts,
		baseBackoff: defaultBaseBackoff,
		logger:      logger,
	}
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			// Backoff doubles per attempt: base, 2*base, 4*base, ...
			delay := c.baseBackoff << (attempt - 2)
			c.logger.Warn("Retrying upstream request",
				"source", c.source,
				"attempt", attempt,
				"max_attempts", c.maxAttempts,
				"delay", delay)
			metrics.RecordRetry(c.source)
			if err := c.clock.Sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}

		err := c.doRequest(ctx, url, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.maxAttempts, lastErr)
}

// doRequest performs a single HTTP GET and decode.
func (c *Client) doRequest(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return fmt.Errorf("%w: %v", ErrUpstreamStatus, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w (status %d)", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w (status %d)", ErrUpstreamStatus, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w (status %d)", ErrPermanentStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// SetBaseBackoff overrides the retry base delay; used by tests to avoid
// real waits.
func (c *Client) SetBaseBackoff(d time.Duration) {
	c.baseBackoff = d
}

// LimiterStats exposes the limiter window for health reporting.
func (c *Client) LimiterStats() ratelimit.Stats {
	return c.limiter.Stats()
}
