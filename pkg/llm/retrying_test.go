package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-io/askdb-engine/pkg/retry"
)

func fastRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:       3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		Multiplier:       2.0,
		MaxSameErrorType: 10,
	}
}

func TestWithRetry_RetriesTransientErrors(t *testing.T) {
	mock := NewMockChatClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		if mock.GenerateResponseCalls < 3 {
			return "", NewError(ErrorTypeEndpoint, "rate limited", true, nil)
		}
		return "SELECT 1", nil
	}

	client := WithRetry(mock, fastRetryConfig(), 0)

	resp, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", resp)
	assert.Equal(t, 3, mock.GenerateResponseCalls)
}

func TestWithRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	mock := NewMockChatClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		return "", NewError(ErrorTypeAuth, "invalid api key", false, nil)
	}

	client := WithRetry(mock, fastRetryConfig(), 0)

	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.Equal(t, 1, mock.GenerateResponseCalls)
}

func TestWithRetry_CancelsSlowCalls(t *testing.T) {
	mock := NewMockChatClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}

	client := WithRetry(mock, fastRetryConfig(), 20*time.Millisecond)

	start := time.Now()
	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "slow call must be cut off by the per-call deadline")
}

func TestWithRetry_DelegatesMetadata(t *testing.T) {
	mock := NewMockChatClient()
	client := WithRetry(mock, nil, 0)

	assert.Equal(t, "mock-model", client.GetModel())
	assert.Equal(t, "mock", client.GetProvider())
}
