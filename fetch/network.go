package fetch

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

const DefaultTimeout = 5 * time.Second

// Client is the network boundary: plain HTTP against the backend API with a
// bounded timeout and circuit breaking. Timeouts are treated identically to
// connection failures by callers.
type Client struct {
	client  *fasthttp.Client
	logger  types.Logger
	baseURL string
	timeout time.Duration
	retries int
	breaker *CircuitBreaker
}

func NewClient(logger types.Logger, config *types.NetworkConfig) *Client {
	timeout := utils.ParseDurationOr(config.Timeout, DefaultTimeout)

	return &Client{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		logger:  logger,
		baseURL: config.BaseURL,
		timeout: timeout,
		retries: config.Retries,
		breaker: NewCircuitBreaker(&config.Breaker, logger),
	}
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) Get(ctx context.Context, path string) ([]byte, int, error) {
	return c.Do(ctx, fasthttp.MethodGet, path, nil)
}

func (c *Client) Do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	if !c.breaker.CanExecute() {
		return nil, fasthttp.StatusServiceUnavailable, types.ErrCircuitBreakerOpen
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)

	if body != nil {
		req.SetBody(body)
		req.Header.SetContentType("application/json")
	}

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	var lastErr error
	attempts := c.retries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		err := c.client.DoDeadline(req, resp, deadline)
		if err != nil {
			lastErr = types.WrapError(err, "network request failed")
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status > 299 {
			lastErr = types.Errorf(types.ErrRequestFailed, "status %d for %s %s", status, method, path)
			if status >= 500 {
				continue
			}

			// A 4xx is the backend answering; it says nothing about
			// reachability, so it never counts toward opening the breaker.
			return nil, status, lastErr
		}

		c.breaker.RecordSuccess()

		out := make([]byte, len(resp.Body()))
		copy(out, resp.Body())
		return out, status, nil
	}

	c.breaker.RecordFailure()
	c.logger.Debug("Network request exhausted attempts",
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(lastErr))

	return nil, fasthttp.StatusServiceUnavailable, lastErr
}
