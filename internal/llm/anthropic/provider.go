// Package anthropic streams text from Claude models through the official SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pulpitwriter/pulpit/internal/llm"
)

// ProviderName identifies the Anthropic provider.
const ProviderName = "anthropic"

// defaultMaxTokens applies when the prompt leaves MaxTokens unset.
const defaultMaxTokens = 4096

// Provider implements llm.Provider for Anthropic models.
type Provider struct {
	// client is the SDK client.
	client *anthropic.Client
}

// NewProvider creates a provider with the given API key and optional base URL.
func NewProvider(apiKey string, baseURL string) (*Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &llm.ProviderError{Provider: ProviderName, Message: "api key is required", Err: llm.ErrInvalidAPIKey}
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Provider{client: &client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// SupportsModel reports whether model is a Claude model.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// Stream runs a streaming Messages request and forwards text deltas.
func (p *Provider) Stream(ctx context.Context, prompt llm.Prompt, handle llm.DeltaHandler) (string, error) {
	if !p.SupportsModel(prompt.Model) {
		return "", &llm.ProviderError{
			Provider: ProviderName,
			Message:  fmt.Sprintf("model %q not supported (must start with 'claude-')", prompt.Model),
			Err:      llm.ErrInvalidModel,
		}
	}

	stream := p.client.Messages.NewStreaming(ctx, buildParams(prompt))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok || delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
			continue
		}
		full.WriteString(delta.Delta.Text)
		if err := handle(delta.Delta.Text); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &llm.ProviderError{
				Provider:   ProviderName,
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Error(),
				Err:        llm.ClassifyStatus(apiErr.StatusCode),
			}
		}
		return "", fmt.Errorf("anthropic streaming error: %w", err)
	}
	return full.String(), nil
}

// buildParams converts a prompt into SDK request parameters.
func buildParams(prompt llm.Prompt) anthropic.MessageNewParams {
	maxTokens := int64(prompt.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(prompt.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}
	if prompt.Temperature != nil {
		params.Temperature = anthropic.Float(*prompt.Temperature)
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}
	return params
}
