package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulpitwriter/pulpit/internal/agent"
	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/streamjson"
)

// ErrClosed indicates a generator that no longer accepts requests.
var ErrClosed = errors.New("generator closed")

// TranscriptRecorder persists stream-json events for a session.
type TranscriptRecorder interface {
	AppendTranscript(sessionID string, event any) error
}

// LocalOption configures a LocalGenerator.
type LocalOption func(*LocalGenerator)

// WithRecorder records every generation transcript.
func WithRecorder(recorder TranscriptRecorder) LocalOption {
	return func(g *LocalGenerator) { g.recorder = recorder }
}

// WithLocalLogger sets the generator logger.
func WithLocalLogger(logger *zap.Logger) LocalOption {
	return func(g *LocalGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// LocalGenerator runs the producer in-process and publishes to a Broker.
// A generation stops early once its session has no subscribers left.
type LocalGenerator struct {
	// runner produces the token stream.
	runner *agent.Runner
	// broker receives published tokens.
	broker *Broker
	// recorder stores transcripts; may be nil.
	recorder TranscriptRecorder
	// logger records generation outcomes.
	logger *zap.Logger

	// ctx bounds every generation; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	// mu guards closed.
	mu     sync.Mutex
	closed bool
}

// NewLocalGenerator creates a generator that publishes runner output to broker.
func NewLocalGenerator(runner *agent.Runner, broker *Broker, opts ...LocalOption) *LocalGenerator {
	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	generator := &LocalGenerator{
		runner: runner,
		broker: broker,
		logger: zap.NewNop(),
		ctx:    groupCtx,
		cancel: cancel,
		group:  group,
	}
	for _, opt := range opts {
		opt(generator)
	}
	return generator
}

// Generate validates request and starts its generation in the background.
// ctx only covers the hand-off; the generation runs until it finishes, loses
// its subscribers or the generator is closed.
func (g *LocalGenerator) Generate(ctx context.Context, request assist.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := request.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.group.Go(func() error {
		g.run(request)
		return nil
	})
	return nil
}

// Close cancels running generations and waits for them to finish.
func (g *LocalGenerator) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()
	return g.group.Wait()
}

func (g *LocalGenerator) run(request assist.Request) {
	sessionID := request.SessionID
	logger := g.logger.With(zap.String("session", sessionID))
	g.record(logger, sessionID, streamjson.NewSessionEvent(sessionID, string(request.PromptKind), g.providerName(), g.runner.Model))

	seq := 0
	result, err := g.runner.Run(g.ctx, request, func(raw string) error {
		g.record(logger, sessionID, streamjson.NewTokenEvent(sessionID, seq, raw))
		seq++
		return g.broker.Publish(sessionID, raw)
	})

	event := streamjson.ResultEvent{
		Type:      streamjson.TypeResult,
		Subtype:   streamjson.ResultSuccess,
		SessionID: sessionID,
		UUID:      streamjson.NewUUID(),
	}
	if result != nil {
		event.DurationMS = result.Duration.Milliseconds()
		event.NumTokens = result.NumTokens
		event.Result = result.Full
	}
	switch {
	case err == nil:
		logger.Debug("generation published", zap.Int("tokens", seq))
	case errors.Is(err, ErrNoSubscribers) || errors.Is(err, context.Canceled):
		event.Subtype = streamjson.ResultCancelled
		logger.Debug("generation abandoned", zap.Error(err))
	default:
		event.Subtype = streamjson.ResultError
		event.IsError = true
		event.Errors = []string{err.Error()}
		logger.Warn("generation failed", zap.Error(err))
	}
	g.record(logger, sessionID, event)
}

func (g *LocalGenerator) record(logger *zap.Logger, sessionID string, event any) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.AppendTranscript(sessionID, event); err != nil {
		logger.Warn("record transcript", zap.Error(fmt.Errorf("session %s: %w", sessionID, err)))
	}
}

func (g *LocalGenerator) providerName() string {
	if g.runner.Provider == nil {
		return ""
	}
	return g.runner.Provider.Name()
}
