package anthropic

import (
	"context"
	"testing"

	"github.com/pulpitwriter/pulpit/internal/llm"
	"github.com/pulpitwriter/pulpit/internal/testutil"
)

// TestNewProviderRequiresKey verifies a blank key is rejected.
func TestNewProviderRequiresKey(testingHandle *testing.T) {
	_, err := NewProvider("  ", "")
	testutil.RequireErrorIs(testingHandle, err, llm.ErrInvalidAPIKey, "missing key")
}

// TestStreamRejectsForeignModel verifies non-Claude models fail before any request.
func TestStreamRejectsForeignModel(testingHandle *testing.T) {
	// Arrange
	provider, err := NewProvider("sk-test", "http://127.0.0.1:1")
	testutil.RequireNoError(testingHandle, err, "new provider")

	// Act
	_, err = provider.Stream(context.Background(), llm.Prompt{Model: "gpt-4o", User: "hi"}, func(string) error { return nil })

	// Assert
	testutil.RequireErrorIs(testingHandle, err, llm.ErrInvalidModel, "non-claude model")
}

// TestBuildParamsDefaults verifies prompt fields map onto message params.
func TestBuildParamsDefaults(testingHandle *testing.T) {
	// Arrange
	temperature := 0.4

	// Act
	params := buildParams(llm.Prompt{Model: "claude-sonnet-4-5", System: "sys", User: "hi", Temperature: &temperature})

	// Assert
	testutil.RequireEqual(testingHandle, params.MaxTokens, int64(defaultMaxTokens), "default max tokens")
	testutil.RequireEqual(testingHandle, string(params.Model), "claude-sonnet-4-5", "model")
	testutil.RequireEqual(testingHandle, len(params.System), 1, "system block")
	testutil.RequireEqual(testingHandle, params.System[0].Text, "sys", "system text")
	testutil.RequireEqual(testingHandle, len(params.Messages), 1, "one user message")
}
