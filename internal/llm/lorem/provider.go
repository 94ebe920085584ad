// Package lorem is an offline provider that streams lorem ipsum sermon drafts.
package lorem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/pulpitwriter/pulpit/internal/llm"
)

// ProviderName identifies the lorem provider.
const ProviderName = "lorem"

// defaultParagraphs is the body length when MaxTokens is unset.
const defaultParagraphs = 3

// Provider generates placeholder text word by word.
// Models are named lorem-<speed>: lorem-slow, lorem-fast, lorem-instant;
// a model containing "fail" reports an error halfway through.
type Provider struct {
	// mu guards generator, which is not safe for concurrent use.
	mu sync.Mutex
	// generator produces lorem ipsum text.
	generator *loremgen.Lorem
	// delay overrides the per-word delay derived from the model.
	delay *time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithDelay fixes the delay between streamed words.
func WithDelay(delay time.Duration) Option {
	return func(p *Provider) { p.delay = &delay }
}

// NewProvider creates a lorem provider.
func NewProvider(opts ...Option) *Provider {
	provider := &Provider{generator: loremgen.New()}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

// SupportsModel reports whether model is a lorem model.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem")
}

// Stream emits a heading and paragraphs one word at a time.
func (p *Provider) Stream(ctx context.Context, prompt llm.Prompt, handle llm.DeltaHandler) (string, error) {
	if !p.SupportsModel(prompt.Model) {
		return "", &llm.ProviderError{
			Provider: ProviderName,
			Message:  fmt.Sprintf("model %q not supported (must start with 'lorem')", prompt.Model),
			Err:      llm.ErrInvalidModel,
		}
	}
	text := p.generate(paragraphCount(prompt.MaxTokens))
	words := splitWords(text)
	failAt := -1
	if strings.Contains(prompt.Model, "fail") {
		failAt = len(words) / 2
	}
	delay := p.streamDelay(prompt.Model)

	var full strings.Builder
	for i, word := range words {
		if i == failAt {
			return "", &llm.ProviderError{Provider: ProviderName, Message: "simulated failure", Err: llm.ErrProviderUnavailable}
		}
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
		full.WriteString(word)
		if err := handle(word); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func (p *Provider) generate(paragraphs int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	parts := make([]string, 0, paragraphs+1)
	parts = append(parts, "## "+strings.TrimSuffix(p.generator.Sentence(3, 6), "."))
	for i := 0; i < paragraphs; i++ {
		parts = append(parts, p.generator.Paragraph(2, 4))
	}
	return strings.Join(parts, "\n\n")
}

func (p *Provider) streamDelay(model string) time.Duration {
	if p.delay != nil {
		return *p.delay
	}
	switch {
	case strings.Contains(model, "instant"):
		return 0
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// paragraphCount estimates paragraphs from a token budget of roughly 80 tokens each.
func paragraphCount(maxTokens int) int {
	if maxTokens <= 0 {
		return defaultParagraphs
	}
	count := maxTokens / 80
	if count < 1 {
		return 1
	}
	return count
}

// splitWords cuts text after each space or line break run, keeping separators.
func splitWords(text string) []string {
	var words []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' || (text[i] == '\n' && (i+1 == len(text) || text[i+1] != '\n')) {
			words = append(words, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		words = append(words, text[start:])
	}
	return words
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
