// Package agent runs a provider for one generation request and speaks the token protocol.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/llm"
)

// ErrProviderRequired indicates a Runner without a provider.
var ErrProviderRequired = errors.New("provider is required")

// Sink receives raw stream values in order.
type Sink func(raw string) error

// RunResult captures the outcome of one generation.
type RunResult struct {
	// Full is the trimmed generated text.
	Full string
	// NumTokens counts the literal tokens emitted.
	NumTokens int
	// Duration is the total runtime.
	Duration time.Duration
}

// Runner executes a single generation against a provider.
type Runner struct {
	// Provider streams generated text.
	Provider llm.Provider
	// Model is the provider model identifier.
	Model string
	// MaxTokens limits the output; zero selects the provider default.
	MaxTokens int
	// Temperature is optional sampling temperature.
	Temperature *float64
	// SystemPrompt overrides DefaultSystemPrompt when set.
	SystemPrompt string
	// Logger records generation progress.
	Logger *zap.Logger
}

// Run streams the generation for request into emit.
//
// Literal text is emitted as it arrives, followed by the full-content
// sentinel and the done sentinel. A provider failure is reported in-band
// with the error sentinel and also returned. Sink errors abort the run
// without further output.
func (r *Runner) Run(ctx context.Context, request assist.Request, emit Sink) (*RunResult, error) {
	if r.Provider == nil {
		return nil, ErrProviderRequired
	}
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}
	userPrompt, err := UserPrompt(request)
	if err != nil {
		return nil, err
	}
	systemPrompt := r.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt()
	}
	logger := r.logger().With(
		zap.String("session", request.SessionID),
		zap.String("kind", string(request.PromptKind)),
		zap.String("provider", r.Provider.Name()),
	)

	result := &RunResult{}
	startTime := time.Now()
	var sinkErr error
	full, err := r.Provider.Stream(ctx, llm.Prompt{
		Model:       r.Model,
		System:      systemPrompt,
		User:        userPrompt,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	}, func(delta string) error {
		if token := assist.Decode(delta); token.Kind != assist.TokenLiteral {
			logger.Warn("provider delta matches a sentinel", zap.String("delta", delta))
		}
		if err := emit(delta); err != nil {
			sinkErr = err
			return err
		}
		result.NumTokens++
		return nil
	})
	result.Duration = time.Since(startTime)
	if sinkErr != nil {
		return result, fmt.Errorf("emit token: %w", sinkErr)
	}
	if err != nil {
		logger.Warn("generation failed", zap.Error(err), zap.Int("tokens", result.NumTokens))
		if emitErr := emit(assist.Encode(assist.Failure(failureMessage(err)))); emitErr != nil {
			return result, errors.Join(err, fmt.Errorf("emit error token: %w", emitErr))
		}
		return result, err
	}

	// Sent verbatim: edge spacing joins the text to the document around it.
	result.Full = full
	if err := emit(assist.Encode(assist.FullContent(result.Full))); err != nil {
		return result, fmt.Errorf("emit full content: %w", err)
	}
	if err := emit(assist.Encode(assist.Done())); err != nil {
		return result, fmt.Errorf("emit done: %w", err)
	}
	logger.Info("generation complete",
		zap.Int("tokens", result.NumTokens),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// failureMessage is the user-facing text carried by the error sentinel.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "generation cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	case errors.Is(err, llm.ErrInvalidAPIKey):
		return "the provider rejected the API key"
	case errors.Is(err, llm.ErrInvalidModel):
		return "the configured model is not available"
	case errors.Is(err, llm.ErrProviderUnavailable):
		return "the provider is unavailable, try again shortly"
	default:
		return err.Error()
	}
}
