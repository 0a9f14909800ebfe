package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

type flakyClient struct {
	failures int
	err      error
	calls    int
}

func (f *flakyClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &CompletionResponse{Content: "ok", Model: "flaky"}, nil
}

func (f *flakyClient) Name() string     { return "flaky" }
func (f *flakyClient) Models() []string { return []string{"flaky"} }

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 2,
		MaxBackoff:        5 * time.Millisecond,
	}
}

func TestRetryingClient_RetriesTransient(t *testing.T) {
	inner := &flakyClient{failures: 2, err: NewTransientError(errors.New("503"))}
	c := WithRetry(inner, fastRetry(), logger.Nop())

	resp, err := c.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingClient_StopsOnFatal(t *testing.T) {
	inner := &flakyClient{failures: 5, err: NewFatalError(errors.New("400 bad request"))}
	c := WithRetry(inner, fastRetry(), logger.Nop())

	_, err := c.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingClient_GivesUp(t *testing.T) {
	inner := &flakyClient{failures: 10, err: NewTransientError(errors.New("timeout"))}
	c := WithRetry(inner, fastRetry(), logger.Nop())

	_, err := c.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, inner.calls)
}

func TestClassify(t *testing.T) {
	assert.True(t, IsFatal(classify(context.Canceled)))
	assert.True(t, IsTransient(classify(errors.New("connection reset"))))
	assert.Nil(t, classify(nil))
}
