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

const defaultOpenAIChatModel = "gpt-4o-mini"

// OpenAIChatClient talks to any OpenAI-compatible chat completions endpoint
type OpenAIChatClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries uint64
	client     *http.Client
	logger     *zap.Logger
}

// NewOpenAIChatClient creates a chat client from cfg
func NewOpenAIChatClient(cfg config.LLMConfig, logger *zap.Logger) *OpenAIChatClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIChatModel
	}
	return &OpenAIChatClient{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		model:      model,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// ChatMessage is one message of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIChatClient) Provider() string { return ProviderOpenAI }

// Complete sends req as a system and user message pair
func (o *OpenAIChatClient) Complete(ctx context.Context, req LLMRequest) (string, error) {
	messages := make([]ChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(ChatRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	return completeWithRetry(ctx, o.maxRetries, o.logger, func() (string, error) {
		return o.do(ctx, body)
	})
}

func (o *OpenAIChatClient) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &LLMCallError{Provider: ProviderOpenAI, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &LLMCallError{Provider: ProviderOpenAI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &LLMCallError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(b)))}
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &LLMCallError{Provider: ProviderOpenAI, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(cr.Choices) == 0 {
		return "", &LLMCallError{Provider: ProviderOpenAI, Err: errors.New("empty response")}
	}
	return cr.Choices[0].Message.Content, nil
}
