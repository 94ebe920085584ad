package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pulpitwriter/pulpit/internal/llm"
)

// ProviderName identifies the OpenAI-compatible provider.
const ProviderName = "openai"

// Provider adapts Client to llm.Provider.
type Provider struct {
	// client sends chat/completions requests.
	client *Client
}

// NewProvider builds a provider for an OpenAI-compatible gateway.
func NewProvider(baseURL string, apiKey string, timeout time.Duration) (*Provider, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, &llm.ProviderError{Provider: ProviderName, Message: "base URL is required", Err: llm.ErrProviderUnavailable}
	}
	return &Provider{client: NewClient(baseURL, apiKey, timeout)}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// Stream runs a streaming chat completion and forwards text deltas.
func (p *Provider) Stream(ctx context.Context, prompt llm.Prompt, handle llm.DeltaHandler) (string, error) {
	if strings.TrimSpace(prompt.Model) == "" {
		return "", &llm.ProviderError{Provider: ProviderName, Message: "model is required", Err: llm.ErrInvalidModel}
	}
	messages := make([]Message, 0, 2)
	if prompt.System != "" {
		messages = append(messages, Message{Role: "system", Content: prompt.System})
	}
	messages = append(messages, Message{Role: "user", Content: prompt.User})
	request := &ChatRequest{
		Model:       prompt.Model,
		Messages:    messages,
		Temperature: prompt.Temperature,
	}
	if prompt.MaxTokens > 0 {
		maxTokens := prompt.MaxTokens
		request.MaxTokens = &maxTokens
	}

	accumulator := NewStreamAccumulator()
	_, err := p.client.ChatCompletionsStream(ctx, request, func(event StreamResponse) error {
		if delta := accumulator.Apply(event); delta != "" {
			return handle(delta)
		}
		return nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return "", &llm.ProviderError{
				Provider:   ProviderName,
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Body,
				Err:        llm.ClassifyStatus(apiErr.StatusCode),
			}
		}
		return "", err
	}
	if accumulator.FinishReason() == finishContentFilter {
		return "", &llm.ProviderError{
			Provider: ProviderName,
			Message:  "completion blocked by the content filter",
			Err:      llm.ErrProviderUnavailable,
		}
	}
	return accumulator.Content(), nil
}
