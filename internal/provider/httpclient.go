package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 8 << 20

// ErrNoData is returned when an upstream answers without a usable series.
var ErrNoData = errors.New("upstream returned no data")

// StatusError reports a non-200 upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upstream status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// ClientOptions configures the shared upstream HTTP client.
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
	// RetryInitialInterval is the first backoff delay; mostly useful in tests.
	RetryInitialInterval time.Duration
}

// Client is a rate-limited HTTP client that retries transient failures.
type Client struct {
	httpClient      *http.Client
	limiter         *rate.Limiter
	maxRetryTimeout time.Duration
	retryInitial    time.Duration
}

func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout <= 0 {
		opts.MaxRetryTimeout = 20 * time.Second
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = backoff.DefaultInitialInterval
	}

	return &Client{
		httpClient:      &http.Client{Timeout: opts.Timeout},
		limiter:         rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		maxRetryTimeout: opts.MaxRetryTimeout,
		retryInitial:    opts.RetryInitialInterval,
	}
}

// Get fetches rawURL and returns the body of a 200 response. Network errors,
// 429 and 5xx responses are retried with exponential backoff; other statuses
// fail immediately. Each attempt waits on the rate limiter.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		// every attempt, retries included, takes a limiter token
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		body = data
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = c.retryInitial
	strategy.MaxElapsedTime = c.maxRetryTimeout

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
