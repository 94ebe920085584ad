package openai

import (
	"strings"
)

// StreamAccumulator builds the full assistant text from streaming deltas.
type StreamAccumulator struct {
	// contentBuilder accumulates streamed text content.
	contentBuilder strings.Builder
	// finishReason stores the latest finish reason.
	finishReason string
	// usage stores token usage when provided.
	usage Usage
	// hasUsage reports whether usage was supplied.
	hasUsage bool
}

// NewStreamAccumulator creates a new accumulator for a streaming response.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Apply ingests a streaming event and returns the text delta it carried.
func (acc *StreamAccumulator) Apply(event StreamResponse) string {
	if event.Usage != nil {
		acc.usage = *event.Usage
		acc.hasUsage = true
	}
	var delta strings.Builder
	for _, choice := range event.Choices {
		if choice.Index != 0 {
			continue
		}
		if choice.Delta.Content != "" {
			acc.contentBuilder.WriteString(choice.Delta.Content)
			delta.WriteString(choice.Delta.Content)
		}
		if choice.FinishReason != nil {
			acc.finishReason = *choice.FinishReason
		}
	}
	return delta.String()
}

// Content returns the aggregated assistant text.
func (acc *StreamAccumulator) Content() string {
	return acc.contentBuilder.String()
}

// FinishReason returns the most recent finish reason.
func (acc *StreamAccumulator) FinishReason() string {
	return acc.finishReason
}

// Usage returns the final usage and whether it was provided.
func (acc *StreamAccumulator) Usage() (Usage, bool) {
	return acc.usage, acc.hasUsage
}
