// Package httpx wraps net/http with retry and circuit-breaker behaviour for
// the flaky third parties the monitors talk to.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Client wraps an HTTP client with a circuit breaker and exponential-backoff
// retries. One Client per upstream keeps breaker state per host class.
type Client struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	config  Config
}

type Config struct {
	EnableCircuitBreaker bool
	MaxFailures          uint32
	CircuitTimeout       time.Duration

	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig matches the tolerances of the polled sources: short retries,
// a breaker that trips after five consecutive failures.
func DefaultConfig() Config {
	return Config{
		EnableCircuitBreaker: true,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           2,
		InitialInterval:      500 * time.Millisecond,
		MaxInterval:          5 * time.Second,
	}
}

// New builds a resilient client around the given timeout. A nil transport
// uses http.DefaultTransport, which honours HTTP(S)_PROXY / NO_PROXY.
func New(name string, timeout time.Duration, cfg Config) *Client {
	client := &http.Client{Timeout: timeout}

	var breaker *gobreaker.CircuitBreaker
	if cfg.EnableCircuitBreaker {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.CircuitTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
		})
	}

	return &Client{client: client, breaker: breaker, config: cfg}
}

// HTTPClient exposes the underlying *http.Client for libraries that take one
// (feed parser, websocket dialer).
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Do executes the request through the breaker with retries.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

// Get is a convenience wrapper for simple fetches.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	if c.config.MaxRetries == 0 {
		return c.client.Do(req)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.InitialInterval
	expBackoff.MaxInterval = c.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0

	retryBackoff := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(c.config.MaxRetries)),
		req.Context(),
	)

	// Buffer the body once so every attempt sends the full payload.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
	}

	operation := func() error {
		if len(bodyBytes) > 0 {
			req.Body = io.NopCloser(strings.NewReader(string(bodyBytes)))
		}

		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, nil) {
				return err
			}
			return backoff.Permanent(err)
		}

		if shouldRetry(nil, resp) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			resp.Body.Close()
			return lastErr
		}
		return nil
	}

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		if lastErr != nil {
			return nil, fmt.Errorf("request failed after retries: %w", lastErr)
		}
		return nil, err
	}
	return resp, nil
}

func shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		msg := err.Error()
		return strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "EOF")
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
