package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/pkg/config"
)

// LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LLMRequest is a single-turn completion request
type LLMRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// LLMClient completes a prompt and returns the raw assistant text
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (string, error)
	Provider() string
}

// NewLLMClient returns the provider selected by cfg.Provider
func NewLLMClient(cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIChatClient(cfg, logger), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// llmRetryInterval is the first backoff step between transient LLM failures
var llmRetryInterval = 500 * time.Millisecond

// completeWithRetry repeats call while it fails with a retryable LLMCallError, up to maxRetries extra attempts
func completeWithRetry(ctx context.Context, maxRetries uint64, logger *zap.Logger, call func() (string, error)) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = llmRetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)

	attempt := 0
	return backoff.RetryWithData(func() (string, error) {
		attempt++
		text, err := call()
		if err == nil {
			return text, nil
		}
		var callErr *LLMCallError
		if errors.As(err, &callErr) && callErr.Retryable() {
			if logger != nil {
				logger.Warn("⚠️ LLM call failed, retrying",
					zap.String("provider", callErr.Provider),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
			return "", err
		}
		return "", backoff.Permanent(err)
	}, policy)
}
