package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/pkg/config"
)

const (
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
	anthropicVersion      = "2023-06-01"
)

// AnthropicClient calls the Anthropic messages API
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries uint64
	client     *http.Client
	logger     *zap.Logger
}

// NewAnthropicClient creates a messages API client from cfg
func NewAnthropicClient(cfg config.LLMConfig, logger *zap.Logger) *AnthropicClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.anthropic.com"
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClient{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		model:      model,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicClient) Provider() string { return ProviderAnthropic }

// Complete sends req and concatenates the text blocks of the reply
func (a *AnthropicClient) Complete(ctx context.Context, req LLMRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body, err := json.Marshal(anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []ChatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}

	return completeWithRetry(ctx, a.maxRetries, a.logger, func() (string, error) {
		return a.do(ctx, body)
	})
}

func (a *AnthropicClient) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", &LLMCallError{Provider: ProviderAnthropic, Err: err}
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &LLMCallError{Provider: ProviderAnthropic, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &LLMCallError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(b)))}
	}

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", &LLMCallError{Provider: ProviderAnthropic, Err: fmt.Errorf("decode response: %w", err)}
	}

	var sb strings.Builder
	for _, c := range ar.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &LLMCallError{Provider: ProviderAnthropic, Err: errors.New("empty response")}
	}
	return sb.String(), nil
}
