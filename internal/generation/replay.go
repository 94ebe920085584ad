package generation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulpitwriter/pulpit/internal/assist"
)

// Replayer re-emits a recorded token sequence for each generation request,
// under the requesting session's id. It implements assist.Generator and
// assist.Subscriber.
type Replayer struct {
	// broker delivers replayed tokens.
	broker *Broker
	// tokens is the recorded raw sequence.
	tokens []string
	// delay spaces out tokens.
	delay time.Duration
	// logger records replay progress.
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	// mu guards closed.
	mu     sync.Mutex
	closed bool
}

// NewReplayer creates a replayer for tokens, pausing delay between them.
func NewReplayer(tokens []string, delay time.Duration, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	return &Replayer{
		broker: NewBroker(logger),
		tokens: append([]string(nil), tokens...),
		delay:  delay,
		logger: logger,
		ctx:    groupCtx,
		cancel: cancel,
		group:  group,
	}
}

// Subscribe registers deliver for sessionID.
func (r *Replayer) Subscribe(ctx context.Context, sessionID string, deliver func(raw string)) (assist.Subscription, error) {
	return r.broker.Subscribe(ctx, sessionID, deliver)
}

// Generate starts replaying the recording to the request's session.
func (r *Replayer) Generate(ctx context.Context, request assist.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if request.SessionID == "" {
		return assist.ErrSessionIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.group.Go(func() error {
		r.replay(request.SessionID)
		return nil
	})
	return nil
}

// Close stops running replays and waits for them.
func (r *Replayer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	return r.group.Wait()
}

func (r *Replayer) replay(sessionID string) {
	logger := r.logger.With(zap.String("session", sessionID))
	for i, raw := range r.tokens {
		if i > 0 && !sleep(r.ctx, r.delay) {
			logger.Debug("replay cancelled", zap.Int("sent", i))
			return
		}
		if err := r.broker.Publish(sessionID, raw); err != nil {
			logger.Debug("replay abandoned", zap.Int("sent", i), zap.Error(err))
			return
		}
	}
	logger.Debug("replay finished", zap.Int("sent", len(r.tokens)))
}

// sleep waits for delay and reports false if ctx ended first.
func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
