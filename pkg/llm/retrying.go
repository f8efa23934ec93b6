package llm

import (
	"context"
	"time"

	"github.com/askdb-io/askdb-engine/pkg/retry"
)

// retryingClient wraps a ChatClient with backoff on transient provider
// failures (rate limits, 5xx, network) and a per-call deadline so a hung
// provider cannot stall its caller. Permanent errors pass straight
// through; the *Error returned by the providers declares retryability.
type retryingClient struct {
	inner   ChatClient
	cfg     *retry.Config
	timeout time.Duration
}

// WithRetry wraps client with transient-failure retries. A nil cfg uses
// the default backoff schedule. Each attempt gets its own deadline of
// timeout; zero means no per-call deadline beyond the caller's context.
func WithRetry(client ChatClient, cfg *retry.Config, timeout time.Duration) ChatClient {
	return &retryingClient{inner: client, cfg: cfg, timeout: timeout}
}

func (c *retryingClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	var out string
	err := retry.DoIfRetryable(ctx, c.cfg, func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		resp, err := c.inner.GenerateResponse(callCtx, prompt, systemMessage, temperature)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *retryingClient) GetModel() string { return c.inner.GetModel() }

func (c *retryingClient) GetProvider() string { return c.inner.GetProvider() }

var _ ChatClient = (*retryingClient)(nil)
