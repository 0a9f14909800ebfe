package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
)

// RetryConfig holds retry configuration for LLM requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults for LLM requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// RetryingClient retries transient failures of an underlying client and
// records call metrics.
type RetryingClient struct {
	Client
	config RetryConfig
	logger *logger.Logger
}

// WithRetry wraps c with retry and metrics.
func WithRetry(c Client, cfg RetryConfig, log *logger.Logger) *RetryingClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryingClient{Client: c, config: cfg, logger: logger.OrGlobal(log)}
}

// Complete calls the wrapped client until it succeeds, fails fatally, or
// runs out of attempts.
func (c *RetryingClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	backoff := c.config.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		start := time.Now()
		resp, err := c.Client.Complete(ctx, req)
		if err == nil {
			metrics.RecordLLMCall(resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
			return resp, nil
		}
		lastErr = err
		metrics.RecordLLMCall(req.Model, "error", time.Since(start).Seconds(), 0, 0)

		if !IsTransient(err) || attempt == c.config.MaxAttempts {
			break
		}

		c.logger.Warn("LLM request failed, retrying",
			zap.String("provider", c.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, NewFatalError(ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * c.config.BackoffMultiplier)
		if c.config.MaxBackoff > 0 && backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}

	return nil, lastErr
}
