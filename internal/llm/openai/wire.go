package openai

// ChatRequest is the chat/completions request body.
type ChatRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
}

// Message is one system or user turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamOptions asks the gateway to append usage to the stream.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// Usage counts tokens for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamResponse is a single data payload of the event stream.
type StreamResponse struct {
	ID      string         `json:"id,omitempty"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices,omitempty"`
	// Usage arrives on the last payload only.
	Usage *Usage `json:"usage,omitempty"`
}

// StreamChoice carries the delta for one choice index.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

// StreamDelta is the text added by one payload.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamHandler receives each decoded payload.
type StreamHandler func(event StreamResponse) error

// StreamSummary is what remains after a stream ends.
type StreamSummary struct {
	ID       string
	Model    string
	Usage    Usage
	HasUsage bool
}

// finishContentFilter is the finish reason for a blocked completion.
const finishContentFilter = "content_filter"
