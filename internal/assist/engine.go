package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnknownKind indicates an unrecognized prompt kind.
	ErrUnknownKind = errors.New("unknown prompt kind")
	// ErrPromptTextRequired indicates a custom prompt without text.
	ErrPromptTextRequired = errors.New("prompt text required")
	// ErrInlineKind indicates an inline-edit kind passed to Start.
	ErrInlineKind = errors.New("prompt kind requires an inline edit")
	// ErrAppendKind indicates an append kind passed to StartInlineEdit.
	ErrAppendKind = errors.New("prompt kind does not edit a selection")
	// ErrEmptySelection indicates an inline edit without selected text.
	ErrEmptySelection = errors.New("selection is empty")
	// ErrSessionIDRequired indicates a request without a correlation id.
	ErrSessionIDRequired = errors.New("session id required")
	// ErrInitiation indicates the generation request could not be started.
	ErrInitiation = errors.New("start generation")
)

// errorNoticePrefix is shown to the user when a generation fails.
const errorNoticePrefix = "Something went wrong generating content"

// Surface is the editor capability the engine drives.
type Surface interface {
	Selection() (int, int)
	Cursor() int
	SetCursor(offset int)
	DeleteRange(from int, to int) error
	InsertText(text string)
	InsertMarkdown(markdown string) error
	SetHighlight(from int, to int)
	ClearHighlight(from int, to int)
	InStructure() bool
	ExitStructure()
	PlainText() string
	TextRange(from int, to int) string
	Title() string
}

// Generator starts content generation for a request.
type Generator interface {
	Generate(ctx context.Context, request Request) error
}

// Subscriber opens a token stream scoped to one session.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string, deliver func(raw string)) (Subscription, error)
}

// Subscription is an open token stream. Close must not block on delivery.
type Subscription interface {
	Close() error
}

// NoticeKind classifies a session outcome shown to the user.
type NoticeKind int

const (
	// NoticeCompleted reports a reconciled generation.
	NoticeCompleted NoticeKind = iota
	// NoticeCancelled reports a stopped generation.
	NoticeCancelled
	// NoticeError reports a failed generation.
	NoticeError
)

// Notice is a transient user-facing message about a session.
type Notice struct {
	// Kind is the outcome.
	Kind NoticeKind
	// SessionID identifies the finished session.
	SessionID string
	// Message is set for errors.
	Message string
}

// Notifier receives session outcomes.
type Notifier interface {
	Notify(notice Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(notice Notice)

// Notify calls f.
func (f NotifierFunc) Notify(notice Notice) { f(notice) }

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the outcome receiver.
func WithNotifier(notifier Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIDGenerator replaces the session id source.
func WithIDGenerator(next func() (string, error)) Option {
	return func(e *Engine) {
		if next != nil {
			e.newID = next
		}
	}
}

// Engine reconciles one streamed generation at a time into a Surface.
//
// All entry points are serialized by mu, so the sub-steps of a token are
// atomic with respect to other tokens and to Stop. Subscriptions are closed
// and notices sent after mu is released.
type Engine struct {
	// mu guards every field below.
	mu sync.Mutex
	// surface is the document being edited.
	surface Surface
	// generator starts producer requests.
	generator Generator
	// subscriber opens token streams.
	subscriber Subscriber
	// notifier receives session outcomes; may be nil.
	notifier Notifier
	// logger records drops and failures.
	logger *zap.Logger
	// newID mints session ids.
	newID func() (string, error)

	// session is the active session or nil.
	session *Session
	// subscription is the active session's stream.
	subscription Subscription
	// accumulator buffers streamed text.
	accumulator Accumulator
	// tracker brackets the streamed region.
	tracker Tracker
	// dirty marks unsaved reconciled content.
	dirty bool
}

// NewEngine builds an engine over surface.
func NewEngine(surface Surface, generator Generator, subscriber Subscriber, opts ...Option) *Engine {
	engine := &Engine{
		surface:    surface,
		generator:  generator,
		subscriber: subscriber,
		logger:     zap.NewNop(),
		newID:      NewSessionID,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Start begins an append generation and returns its session id.
// It returns an empty id and no error when a session is already active.
func (e *Engine) Start(ctx context.Context, prompt Prompt) (string, error) {
	if !prompt.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, prompt.Kind)
	}
	if prompt.Kind.Inline() {
		return "", fmt.Errorf("%w: %s", ErrInlineKind, prompt.Kind)
	}
	if kindTraits[prompt.Kind].needsPrompt && strings.TrimSpace(prompt.Text) == "" {
		return "", ErrPromptTextRequired
	}
	return e.begin(ctx, prompt, ModeAppend)
}

// StartInlineEdit begins a generation that replaces the current selection.
// It returns an empty id and no error when a session is already active.
func (e *Engine) StartInlineEdit(ctx context.Context, prompt Prompt) (string, error) {
	if !prompt.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, prompt.Kind)
	}
	if !prompt.Kind.Inline() {
		return "", fmt.Errorf("%w: %s", ErrAppendKind, prompt.Kind)
	}
	if kindTraits[prompt.Kind].needsPrompt && strings.TrimSpace(prompt.Text) == "" {
		return "", ErrPromptTextRequired
	}
	return e.begin(ctx, prompt, ModeInlineEdit)
}

func (e *Engine) begin(ctx context.Context, prompt Prompt, mode Mode) (string, error) {
	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		e.logger.Debug("start ignored while a session is active", zap.String("kind", string(prompt.Kind)))
		return "", nil
	}
	var target Range
	if mode == ModeInlineEdit {
		from, to := e.surface.Selection()
		if from == to {
			e.mu.Unlock()
			return "", ErrEmptySelection
		}
		target = Range{From: from, To: to}
	}
	id, err := e.newID()
	if err != nil {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %w", ErrInitiation, err)
	}
	session := newSession(id, prompt.Kind, mode, target)
	if err := session.transition(eventOpen); err != nil {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %w", ErrInitiation, err)
	}
	request := buildRequest(e.surface, prompt, id)
	if mode == ModeInlineEdit {
		e.surface.SetHighlight(target.From, target.To)
	}
	e.session = session
	e.accumulator.Reset()
	e.tracker.Reset()
	e.mu.Unlock()

	logger := e.logger.With(zap.String("session", id))
	logger.Debug("session opened", zap.String("kind", string(prompt.Kind)), zap.Stringer("mode", mode))

	subscription, err := e.subscriber.Subscribe(ctx, id, func(raw string) {
		e.Receive(id, raw)
	})
	if err != nil {
		e.abandon(session)
		logger.Warn("subscribe failed", zap.Error(err))
		return "", fmt.Errorf("%w: subscribe: %w", ErrInitiation, err)
	}

	e.mu.Lock()
	if e.session != session {
		e.mu.Unlock()
		// The session ended before the request went out.
		e.closeSubscription(logger, subscription)
		return "", fmt.Errorf("%w: session %s ended before the request was sent", ErrInitiation, id)
	}
	e.subscription = subscription
	e.mu.Unlock()

	if err := e.generator.Generate(ctx, request); err != nil {
		e.abandon(session)
		logger.Warn("generate failed", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrInitiation, err)
	}
	return id, nil
}

// abandon clears a session whose request never started.
func (e *Engine) abandon(session *Session) {
	e.mu.Lock()
	if e.session != session {
		e.mu.Unlock()
		return
	}
	if session.Mode == ModeInlineEdit {
		e.surface.ClearHighlight(session.Target.From, session.Target.To)
	}
	if err := session.transition(eventFail); err != nil {
		e.logger.Debug("session transition", zap.Error(err))
	}
	settled := e.finish(nil)
	e.mu.Unlock()
	e.settle(settled)
}

// Stop cancels the active session, reconciling the streamed text received so far.
// It is a no-op without an active session.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return
	}
	settled := e.cancel()
	e.mu.Unlock()
	e.settle(settled)
}

// Receive decodes a raw stream value for sessionID and handles it.
func (e *Engine) Receive(sessionID string, raw string) {
	e.Handle(sessionID, Decode(raw))
}

// Handle applies one decoded token. Tokens for any session other than the
// active one are dropped without touching the surface.
func (e *Engine) Handle(sessionID string, token Token) {
	e.mu.Lock()
	session := e.session
	if session == nil || !session.Active() || session.ID != sessionID {
		e.mu.Unlock()
		e.logger.Debug("dropped token for inactive session",
			zap.String("session", sessionID),
			zap.Stringer("token", token.Kind),
		)
		return
	}
	var settled *settlement
	switch token.Kind {
	case TokenFullContent:
		e.accumulator.SetFull(token.Text)
	case TokenDone:
		settled = e.complete()
	case TokenError:
		settled = e.fail(token.Text)
	default:
		e.ingest(token.Text)
	}
	e.mu.Unlock()
	e.settle(settled)
}

// ingest appends a literal token and shows it live in append mode.
func (e *Engine) ingest(text string) {
	e.accumulator.Append(text)
	if e.session.Mode == ModeInlineEdit {
		return
	}
	e.tracker.Begin(e.surface.Cursor())
	e.surface.InsertText(text)
	e.tracker.Advance(e.surface.Cursor())
	if e.accumulator.ChunkComplete() {
		e.renderChunk()
	}
}

// Active reports whether a session is streaming.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && e.session.Active()
}

// SessionID returns the active session id, or "".
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.ID
}

// Dirty reports whether reconciled content is unsaved.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// MarkSaved clears the unsaved flag.
func (e *Engine) MarkSaved() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = false
}

// Snapshot is a point-in-time view of engine state.
type Snapshot struct {
	SessionID   string
	Active      bool
	Mode        Mode
	Chunk       string
	Full        string
	Local       string
	Tracking    bool
	StreamStart int
	ChunkStart  int
	StreamEnd   int
}

// Snapshot captures the current session bookkeeping.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := Snapshot{
		Chunk:    e.accumulator.Chunk(),
		Full:     e.accumulator.Full(),
		Local:    e.accumulator.Local(),
		Tracking: e.tracker.Started(),
	}
	snapshot.StreamStart, _ = e.tracker.Start()
	snapshot.ChunkStart, _ = e.tracker.ChunkStart()
	snapshot.StreamEnd, _ = e.tracker.End()
	if e.session != nil {
		snapshot.SessionID = e.session.ID
		snapshot.Active = e.session.Active()
		snapshot.Mode = e.session.Mode
	}
	return snapshot
}
