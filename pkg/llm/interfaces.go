// Package llm provides chat completion clients for the supported model
// providers.
package llm

import (
	"context"
)

// ChatClient defines the interface for model generation operations.
// Use this interface for dependency injection to enable mocking in tests.
type ChatClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetProvider returns the provider identifier ("openai", "anthropic").
	GetProvider() string
}
