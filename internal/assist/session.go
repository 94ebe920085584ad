package assist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Session lifecycle states.
const (
	StateIdle      = "idle"
	StateStreaming = "streaming"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
	StateFailed    = "failed"
)

// Session lifecycle events.
const (
	eventOpen     = "open"
	eventComplete = "complete"
	eventCancel   = "cancel"
	eventFail     = "fail"
)

// Mode selects where streamed content lands.
type Mode int

const (
	// ModeAppend streams new content at the cursor.
	ModeAppend Mode = iota
	// ModeInlineEdit replaces a highlighted selection on completion.
	ModeInlineEdit
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeInlineEdit {
		return "inline_edit"
	}
	return "append"
}

// Range is a half-open document span.
type Range struct {
	// From is the first offset.
	From int
	// To is the offset after the span.
	To int
}

// Session is one generation request/response cycle.
type Session struct {
	// ID correlates the token stream with this session.
	ID string
	// Kind is the prompt that started the session.
	Kind PromptKind
	// Mode selects append or inline edit.
	Mode Mode
	// Target is the highlighted range in inline edit mode.
	Target Range

	lifecycle *fsm.FSM
}

// NewSessionID returns a time-ordered random identifier.
func NewSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return id.String(), nil
}

func newSession(id string, kind PromptKind, mode Mode, target Range) *Session {
	return &Session{
		ID:     id,
		Kind:   kind,
		Mode:   mode,
		Target: target,
		lifecycle: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventOpen, Src: []string{StateIdle}, Dst: StateStreaming},
				{Name: eventComplete, Src: []string{StateStreaming}, Dst: StateCompleted},
				{Name: eventCancel, Src: []string{StateStreaming}, Dst: StateCancelled},
				{Name: eventFail, Src: []string{StateIdle, StateStreaming}, Dst: StateFailed},
			},
			fsm.Callbacks{},
		),
	}
}

// State returns the lifecycle state.
func (s *Session) State() string {
	return s.lifecycle.Current()
}

// Active reports whether the session is streaming.
func (s *Session) Active() bool {
	return s.lifecycle.Is(StateStreaming)
}

func (s *Session) transition(event string) error {
	if err := s.lifecycle.Event(context.Background(), event); err != nil {
		return fmt.Errorf("session %s %s: %w", s.ID, event, err)
	}
	return nil
}
