package hostfunc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// ClientConfig tunes the production outbound client.
type ClientConfig struct {
	Timeout       time.Duration
	RetryCount    int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	RatePerSecond float64
	RateBurst     int
}

// DefaultClientConfig returns the settings used when the deployment
// does not override them.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      DefaultRequestTimeout,
		RetryCount:   2,
		RetryWaitMin: 250 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
	}
}

// Client is the production Doer. Idempotent failures are retried with
// backoff, and an optional process-wide rate limit smooths bursts from
// chatty modules.
type Client struct {
	rest    *resty.Client
	limiter *rate.Limiter
}

// NewClient builds a Client from cfg, applying defaults for zero values.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRequestTimeout
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = cfg.RetryCount
	if cfg.RetryWaitMin > 0 {
		retry.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retry.RetryWaitMax = cfg.RetryWaitMax
	}
	retry.Logger = nil

	rest := resty.NewWithClient(retry.StandardClient()).SetTimeout(cfg.Timeout)

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{rest: rest, limiter: limiter}
}

// Do performs the call and buffers the full upstream response.
func (c *Client) Do(ctx context.Context, req OutboundRequest) (*OutboundResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	r := c.rest.R().SetContext(ctx)
	for name, value := range req.Header {
		r.SetHeader(name, value)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("outbound request: %w", err)
	}

	return &OutboundResponse{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}
