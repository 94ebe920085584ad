// Package generation moves token streams between producers and the engine.
package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pulpitwriter/pulpit/internal/assist"
)

// ErrNoSubscribers indicates a publish that reached nobody.
var ErrNoSubscribers = errors.New("no subscribers for session")

// Broker fans raw stream values out to the subscribers of each session.
type Broker struct {
	// mu guards subscribers and nextID.
	mu sync.Mutex
	// subscribers holds open subscriptions by session id.
	subscribers map[string]map[uint64]*brokerSubscription
	// nextID numbers subscriptions.
	nextID uint64
	// logger records subscription changes.
	logger *zap.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subscribers: make(map[string]map[uint64]*brokerSubscription),
		logger:      logger,
	}
}

type brokerSubscription struct {
	broker    *Broker
	sessionID string
	id        uint64
	deliver   func(raw string)
	closed    atomic.Bool
	// stop detaches the context watcher; guarded by broker.mu.
	stop func() bool
}

// Subscribe registers deliver for sessionID until the subscription is closed
// or ctx is done.
func (b *Broker) Subscribe(ctx context.Context, sessionID string, deliver func(raw string)) (assist.Subscription, error) {
	if sessionID == "" {
		return nil, assist.ErrSessionIDRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.nextID++
	subscription := &brokerSubscription{broker: b, sessionID: sessionID, id: b.nextID, deliver: deliver}
	sessionSubscribers := b.subscribers[sessionID]
	if sessionSubscribers == nil {
		sessionSubscribers = make(map[uint64]*brokerSubscription)
		b.subscribers[sessionID] = sessionSubscribers
	}
	sessionSubscribers[subscription.id] = subscription
	b.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = subscription.Close() })
	b.mu.Lock()
	subscription.stop = stop
	b.mu.Unlock()
	if subscription.closed.Load() {
		stop()
	}
	b.logger.Debug("subscribed", zap.String("session", sessionID), zap.Uint64("subscription", subscription.id))
	return subscription, nil
}

// Publish delivers raw to every open subscriber of sessionID in the caller's
// goroutine, after releasing the broker lock. Callers publish a session's
// values from one goroutine so subscribers observe them in order.
func (b *Broker) Publish(sessionID string, raw string) error {
	b.mu.Lock()
	targets := make([]*brokerSubscription, 0, len(b.subscribers[sessionID]))
	for _, subscription := range b.subscribers[sessionID] {
		targets = append(targets, subscription)
	}
	b.mu.Unlock()

	delivered := 0
	for _, subscription := range targets {
		if subscription.closed.Load() {
			continue
		}
		subscription.deliver(raw)
		delivered++
	}
	if delivered == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// Subscribers returns the number of open subscriptions for sessionID.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[sessionID])
}

// Close removes the subscription. It never waits for an in-flight delivery.
func (s *brokerSubscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	b := s.broker
	b.mu.Lock()
	stop := s.stop
	sessionSubscribers := b.subscribers[s.sessionID]
	delete(sessionSubscribers, s.id)
	if len(sessionSubscribers) == 0 {
		delete(b.subscribers, s.sessionID)
	}
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
	b.logger.Debug("unsubscribed", zap.String("session", s.sessionID), zap.Uint64("subscription", s.id))
	return nil
}
