package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
)

// HTTPClientConfig configures the rate-limited HTTP client.
type HTTPClientConfig struct {
	// Source names the upstream this client talks to, for logs and
	// typed errors.
	Source string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum sustained requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts after the
	// first try.
	MaxRetries int

	// RetryBaseDelay is the backoff delay for the first retry. Each
	// subsequent retry doubles it, capped at RetryMaxDelay, with
	// random jitter added on top.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the exponential backoff delay.
	RetryMaxDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name carrying the API key.
	APIKeyHeader string

	// Logger receives structured events for retries and failures.
	Logger zerolog.Logger
}

// HTTPClient wraps http.Client with per-source rate limiting and
// retrying. Transient failures (429, 5xx, timeouts, connection errors)
// are retried with exponential backoff and jitter; other failures are
// returned immediately. Callers always receive a typed domain error,
// never a panic. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new rate-limited HTTP client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-ScholarlyRetrieval/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// RateLimiter exposes the client's limiter, mainly for tests asserting
// call spacing.
func (c *HTTPClient) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Do executes an HTTP request with rate limiting and retries.
//
// It waits for the rate limiter before every attempt, including retries,
// so two calls to the same source are never closer together than the
// configured spacing. On 429 it honors the Retry-After header when it
// exceeds the computed backoff. Non-retryable status codes (4xx other
// than 429) return a typed error without consuming retry budget.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, c.classifyContextErr(err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Only the caller's own context ending is terminal. An
			// attempt that hit the per-request timeout is as transient
			// as a connection error and goes through the retry budget.
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, c.classifyContextErr(ctxErr)
			}
			lastErr = err
			lastStatus = 0
			c.config.Logger.Warn().
				Str("source", c.config.Source).
				Int("attempt", attempt+1).
				Err(err).
				Msg("request failed")

			if attempt < c.config.MaxRetries {
				if err := c.backoff(req.Context(), attempt, 0); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			break
		}

		if !c.shouldRetry(resp.StatusCode) {
			if resp.StatusCode >= 400 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
				resp.Body.Close()
				if resp.StatusCode == http.StatusNotFound {
					return nil, domain.NewNotFoundError(c.config.Source, req.URL.Path)
				}
				return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode, string(body), nil)
			}
			return resp, nil
		}

		// 429 or 5xx: drain, log, back off, retry.
		retryAfter := c.retryAfter(resp)
		lastStatus = resp.StatusCode
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		c.config.Logger.Warn().
			Str("source", c.config.Source).
			Int("attempt", attempt+1).
			Int("status", resp.StatusCode).
			Dur("retry_after", retryAfter).
			Msg("transient upstream failure")

		if attempt < c.config.MaxRetries {
			if err := c.backoff(req.Context(), attempt, retryAfter); err != nil {
				return nil, err
			}
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
			continue
		}
		break
	}

	// Retry budget exhausted: report the last observed cause.
	c.config.Logger.Error().
		Str("source", c.config.Source).
		Int("max_retries", c.config.MaxRetries).
		Int("last_status", lastStatus).
		Err(lastErr).
		Msg("retry budget exhausted")

	if lastStatus == http.StatusTooManyRequests {
		return nil, domain.NewRateLimitError(c.config.Source, c.rateLimiter.MinSpacing())
	}
	if lastStatus == 0 && errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s: %w", c.config.Source, domain.ErrTimeout)
	}
	return nil, domain.NewExternalAPIError(c.config.Source, lastStatus,
		"retries exhausted", fmt.Errorf("%w: %v", domain.ErrUpstream, lastErr))
}

// classifyContextErr maps context errors to the domain taxonomy:
// a passed deadline is a timeout, an explicit cancel stays a cancel.
func (c *HTTPClient) classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", c.config.Source, domain.ErrTimeout)
	}
	return err
}

// shouldRetry reports whether the status code is transient.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// backoff waits out the exponential delay for the given attempt, with
// random jitter, honoring serverHint (from Retry-After) when it is
// longer. Returns early with a typed error if the context ends first.
func (c *HTTPClient) backoff(ctx context.Context, attempt int, serverHint time.Duration) error {
	delay := c.config.RetryBaseDelay << uint(attempt)
	if delay > c.config.RetryMaxDelay {
		delay = c.config.RetryMaxDelay
	}
	// Jitter in [0, delay/2) spreads concurrent retries apart.
	delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	if serverHint > delay {
		delay = serverHint
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return c.classifyContextErr(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// retryAfter parses the Retry-After header as seconds or an HTTP date.
func (c *HTTPClient) retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(header, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}

// resetRequestBody restores the request body for a retry when possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
