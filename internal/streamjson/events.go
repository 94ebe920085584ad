package streamjson

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Event type tags.
const (
	TypeToken   = "token"
	TypeSession = "session"
	TypeResult  = "result"
)

// Result subtypes.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// maxLineBytes bounds a single JSON line; full-content tokens can be large.
const maxLineBytes = 10 * 1024 * 1024

// ErrUnknownEvent indicates a line whose type tag is not recognized.
var ErrUnknownEvent = errors.New("unknown stream-json event")

// TokenEvent carries one raw stream value for a session.
type TokenEvent struct {
	// Type is always "token".
	Type string `json:"type"`
	// SessionID scopes the event to a generation session.
	SessionID string `json:"session_id"`
	// Seq is the zero-based position of the token in its session.
	Seq int `json:"seq"`
	// Token is the raw value, sentinels included.
	Token string `json:"token"`
}

// SessionEvent records the start of a generation.
type SessionEvent struct {
	// Type is always "session".
	Type string `json:"type"`
	// SessionID scopes the event to a generation session.
	SessionID string `json:"session_id"`
	// PromptKind is the requested generation.
	PromptKind string `json:"prompt_kind"`
	// Provider names the content source.
	Provider string `json:"provider,omitempty"`
	// Model is the model identifier.
	Model string `json:"model,omitempty"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
}

// ResultEvent records the terminal outcome of a generation.
type ResultEvent struct {
	// Type is always "result".
	Type string `json:"type"`
	// Subtype is success, error or cancelled.
	Subtype string `json:"subtype"`
	// IsError reports whether the result indicates an error.
	IsError bool `json:"is_error"`
	// DurationMS is the total runtime in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// NumTokens counts the literal tokens emitted.
	NumTokens int `json:"num_tokens"`
	// Result contains the final text.
	Result string `json:"result,omitempty"`
	// SessionID scopes the event to a generation session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
	// Errors holds error messages for error subtypes.
	Errors []string `json:"errors,omitempty"`
}

// NewTokenEvent builds a token event.
func NewTokenEvent(sessionID string, seq int, token string) TokenEvent {
	return TokenEvent{Type: TypeToken, SessionID: sessionID, Seq: seq, Token: token}
}

// NewSessionEvent builds a session start event.
func NewSessionEvent(sessionID string, promptKind string, provider string, model string) SessionEvent {
	return SessionEvent{
		Type:       TypeSession,
		SessionID:  sessionID,
		PromptKind: promptKind,
		Provider:   provider,
		Model:      model,
		UUID:       NewUUID(),
	}
}

// Writer emits stream-json events as JSON Lines.
type Writer struct {
	writer io.Writer
}

// NewWriter constructs a stream-json writer.
func NewWriter(writer io.Writer) *Writer {
	return &Writer{writer: writer}
}

// Write emits a single event as a JSON line.
func (w *Writer) Write(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream-json event: %w", err)
	}
	if _, err := w.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write stream-json event: %w", err)
	}
	return nil
}

// Reader decodes stream-json events from JSON Lines.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader constructs a stream-json reader.
func NewReader(reader io.Reader) *Reader {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{scanner: scanner}
}

// Next returns the next event as a TokenEvent, SessionEvent or ResultEvent.
// Blank lines are skipped; io.EOF marks the end of input.
func (r *Reader) Next() (any, error) {
	for r.scanner.Scan() {
		r.line++
		data := r.scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		event, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		return event, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream-json: %w", err)
	}
	return nil, io.EOF
}

// Decode parses a single JSON event by its type tag.
func Decode(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode stream-json event: %w", err)
	}
	switch envelope.Type {
	case TypeToken:
		var event TokenEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode token event: %w", err)
		}
		return event, nil
	case TypeSession:
		var event SessionEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode session event: %w", err)
		}
		return event, nil
	case TypeResult:
		var event ResultEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decode result event: %w", err)
		}
		return event, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.Type)
	}
}

// NewUUID returns a new UUID string for stream-json events.
func NewUUID() string {
	return uuid.NewString()
}
