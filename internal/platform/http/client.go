package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client is a wrapper for HTTP client with rate limiting
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxRetries int
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetries      int // transport failures only; 0 means a single attempt
	MaxRetryTimeout time.Duration
}

// RequestBuilder creates a fresh request per attempt so the body can be replayed
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// NewClient creates a new HTTP client with rate limiting
func NewClient(opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		MaxRetries: opts.MaxRetries,
	}
}

// Do waits for the rate limiter and performs the request.
// Any HTTP response, whatever its status, is returned to the caller; only
// transport errors are retried, and only MaxRetries times.
func (c *Client) Do(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	// Wait for rate limiter
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp *http.Response
	operation := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err = c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.InitialInterval = 200 * time.Millisecond
	backoffStrategy.MaxElapsedTime = 30 * time.Second

	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoffStrategy, uint64(retries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return resp, nil
}
