// Package llm defines the streaming text provider contract used by the producer.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidModel indicates the requested model is not supported by the provider.
	ErrInvalidModel = errors.New("invalid or unsupported model")
	// ErrInvalidAPIKey indicates the API key is missing or rejected.
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrProviderUnavailable indicates the provider could not be reached.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrUnknownProvider indicates a provider name with no implementation.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Prompt is a single-turn generation request.
type Prompt struct {
	// Model is the provider model identifier.
	Model string
	// System is the system instruction.
	System string
	// User is the user message.
	User string
	// MaxTokens limits the output; zero selects the provider default.
	MaxTokens int
	// Temperature is optional sampling temperature.
	Temperature *float64
}

// DeltaHandler receives streamed text in order. Returning an error aborts the stream.
type DeltaHandler func(delta string) error

// Provider streams generated text.
type Provider interface {
	// Name returns the provider identifier.
	Name() string
	// Stream generates text for prompt, calling handle for each delta,
	// and returns the complete text.
	Stream(ctx context.Context, prompt Prompt, handle DeltaHandler) (string, error)
}

// ProviderError is an error reported by a provider API.
type ProviderError struct {
	// Provider names the failing provider.
	Provider string
	// StatusCode is the HTTP status, when known.
	StatusCode int
	// Message is the provider's error text.
	Message string
	// Err is the wrapped sentinel or transport error.
	Err error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status to the matching sentinel error.
func ClassifyStatus(statusCode int) error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return ErrInvalidAPIKey
	case statusCode == 404:
		return ErrInvalidModel
	case statusCode == 429 || statusCode >= 500:
		return ErrProviderUnavailable
	default:
		return nil
	}
}
