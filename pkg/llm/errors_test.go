package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{
			name:          "401 unauthorized",
			err:           errors.New("error, status code: 401, message: invalid api key"),
			wantType:      ErrorTypeAuth,
			wantRetryable: false,
		},
		{
			name:          "model not found",
			err:           errors.New("the model `gpt-99` does not exist"),
			wantType:      ErrorTypeModel,
			wantRetryable: false,
		},
		{
			name:          "connection refused",
			err:           errors.New("dial tcp 127.0.0.1:443: connection refused"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:          "deadline exceeded",
			err:           errors.New("context deadline exceeded"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:          "rate limit",
			err:           errors.New("error, status code: 429, message: rate limit reached"),
			wantType:      ErrorTypeUnknown,
			wantRetryable: true,
		},
		{
			name:          "server error",
			err:           errors.New("error, status code: 503, message: overloaded"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:          "unknown error",
			err:           errors.New("something odd happened"),
			wantType:      ErrorTypeUnknown,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyError(tt.err)
			if classified.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", classified.Type, tt.wantType)
			}
			if classified.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", classified.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestClassifyErrorPassesThroughStructured(t *testing.T) {
	original := NewError(ErrorTypeAuth, "authentication failed", false, errors.New("401"))
	wrapped := fmt.Errorf("generation failed: %w", original)

	classified := ClassifyError(wrapped)
	if classified != original {
		t.Error("expected structured error returned unchanged")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(ErrorTypeEndpoint, "connection failed", true, cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewError(ErrorTypeEndpoint, "timeout", true, nil)) {
		t.Error("expected retryable error")
	}
	if IsRetryable(NewError(ErrorTypeAuth, "auth", false, nil)) {
		t.Error("expected non-retryable error")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("plain errors are not retryable")
	}
}
