package assist

import "go.uber.org/zap"

// renderChunk replaces the raw text of a completed paragraph with its structured form.
func (e *Engine) renderChunk() {
	start, ok := e.tracker.ChunkStart()
	chunk := e.accumulator.Chunk()
	if !ok || chunk == "" {
		return
	}
	end, _ := e.tracker.End()
	if err := e.surface.DeleteRange(start, end); err != nil {
		// The raw text stays; keep streaming from wherever the cursor is.
		e.logger.Warn("chunk render skipped", zap.String("session", e.session.ID), zap.Error(err))
		e.tracker.Rebase(e.surface.Cursor())
		e.accumulator.ResetChunk()
		return
	}
	e.surface.SetCursor(start)
	e.insertStructured(chunk)
	if e.surface.InStructure() {
		e.surface.ExitStructure()
	}
	e.tracker.Rebase(e.surface.Cursor())
	e.accumulator.ResetChunk()
}

// insertStructured inserts markdown, falling back to literal text.
func (e *Engine) insertStructured(content string) {
	if err := e.surface.InsertMarkdown(content); err != nil {
		e.logger.Warn("structured insert failed, inserting text", zap.Error(err))
		e.surface.InsertText(content)
	}
}
