package assist

import (
	"go.uber.org/zap"
)

// settlement is the work left after a session ends, run without the engine lock.
type settlement struct {
	subscription Subscription
	notice       *Notice
	logger       *zap.Logger
}

// complete reconciles the streamed region with the final content.
func (e *Engine) complete() *settlement {
	session := e.session
	if session.Mode == ModeInlineEdit {
		content := e.accumulator.Full()
		if content == "" {
			content = e.accumulator.Chunk()
		}
		e.replaceTarget(session.Target, content)
	} else if content := e.accumulator.Final(); content != "" {
		e.replaceStream(content)
	}
	if err := session.transition(eventComplete); err != nil {
		e.logger.Debug("session transition", zap.Error(err))
	}
	return e.finish(&Notice{Kind: NoticeCompleted, SessionID: session.ID})
}

// cancel reconciles the streamed region with the local accumulation.
func (e *Engine) cancel() *settlement {
	session := e.session
	content := e.accumulator.Local()
	if session.Mode == ModeInlineEdit {
		e.replaceTarget(session.Target, content)
	} else if content != "" {
		e.replaceStream(content)
	}
	if err := session.transition(eventCancel); err != nil {
		e.logger.Debug("session transition", zap.Error(err))
	}
	return e.finish(&Notice{Kind: NoticeCancelled, SessionID: session.ID})
}

// fail leaves streamed text in place and reports the producer's message.
func (e *Engine) fail(message string) *settlement {
	session := e.session
	if session.Mode == ModeInlineEdit {
		e.surface.ClearHighlight(session.Target.From, session.Target.To)
	}
	e.logger.Error("generation failed",
		zap.String("session", session.ID),
		zap.String("kind", string(session.Kind)),
		zap.String("message", message),
	)
	if err := session.transition(eventFail); err != nil {
		e.logger.Debug("session transition", zap.Error(err))
	}
	text := errorNoticePrefix
	if message != "" {
		text += ": " + message
	}
	return e.finish(&Notice{Kind: NoticeError, SessionID: session.ID, Message: text})
}

// replaceStream deletes the tracked region and inserts content structurally.
func (e *Engine) replaceStream(content string) {
	start, ok := e.tracker.Start()
	end, _ := e.tracker.End()
	if !ok {
		start = e.surface.Cursor()
		end = start
	}
	if err := e.surface.DeleteRange(start, end); err != nil {
		e.logger.Error("reconcile streamed region", zap.String("session", e.session.ID), zap.Error(err))
		return
	}
	e.surface.SetCursor(start)
	e.insertStructured(content)
	e.dirty = true
}

// replaceTarget unhighlights an inline-edit target and replaces it with content.
func (e *Engine) replaceTarget(target Range, content string) {
	e.surface.ClearHighlight(target.From, target.To)
	if content == "" {
		return
	}
	if err := e.surface.DeleteRange(target.From, target.To); err != nil {
		e.logger.Error("replace inline target", zap.String("session", e.session.ID), zap.Error(err))
		return
	}
	e.surface.SetCursor(target.From)
	e.insertStructured(content)
	e.dirty = true
}

// finish clears all session state and hands back what must run after unlock.
func (e *Engine) finish(notice *Notice) *settlement {
	settled := &settlement{subscription: e.subscription, notice: notice, logger: e.logger}
	if e.session != nil {
		settled.logger = e.logger.With(zap.String("session", e.session.ID))
		settled.logger.Debug("session closed", zap.String("state", e.session.State()))
	}
	e.session = nil
	e.subscription = nil
	e.accumulator.Reset()
	e.tracker.Reset()
	return settled
}

// settle closes the finished subscription and delivers the notice.
func (e *Engine) settle(settled *settlement) {
	if settled == nil {
		return
	}
	if settled.subscription != nil {
		e.closeSubscription(settled.logger, settled.subscription)
	}
	if settled.notice != nil && e.notifier != nil {
		e.notifier.Notify(*settled.notice)
	}
}

func (e *Engine) closeSubscription(logger *zap.Logger, subscription Subscription) {
	if err := subscription.Close(); err != nil {
		logger.Warn("close subscription", zap.Error(err))
	}
}
