package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewChatClient builds a ChatClient for the named provider, wrapped with
// transient-failure retries. One provider serves the whole deployment.
func NewChatClient(provider string, cfg *Config, logger *zap.Logger) (ChatClient, error) {
	var client ChatClient
	var err error
	switch provider {
	case "openai":
		client, err = NewOpenAIClient(cfg, logger)
	case "anthropic":
		client, err = NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(client, nil, cfg.Timeout), nil
}
