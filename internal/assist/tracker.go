package assist

// Tracker brackets the streamed region of the document.
//
// streamStart <= chunkStart <= streamEnd holds while started.
type Tracker struct {
	streamStart int
	chunkStart  int
	streamEnd   int
	started     bool
}

// Begin fixes the stream start at offset. Later calls are ignored.
func (t *Tracker) Begin(offset int) {
	if t.started {
		return
	}
	t.streamStart = offset
	t.chunkStart = offset
	t.streamEnd = offset
	t.started = true
}

// Advance records the insertion point after the latest token.
func (t *Tracker) Advance(offset int) {
	if !t.started {
		return
	}
	if offset < t.chunkStart {
		offset = t.chunkStart
	}
	t.streamEnd = offset
}

// Rebase moves the chunk start and stream end to offset after a chunk render.
func (t *Tracker) Rebase(offset int) {
	if !t.started {
		return
	}
	if offset < t.streamStart {
		offset = t.streamStart
	}
	t.chunkStart = offset
	t.streamEnd = offset
}

// Started reports whether any token has been tracked.
func (t *Tracker) Started() bool { return t.started }

// Start returns the fixed stream start offset.
func (t *Tracker) Start() (int, bool) { return t.streamStart, t.started }

// ChunkStart returns the start of the unrendered chunk.
func (t *Tracker) ChunkStart() (int, bool) { return t.chunkStart, t.started }

// End returns the offset after the latest tracked token.
func (t *Tracker) End() (int, bool) { return t.streamEnd, t.started }

// Reset forgets all offsets.
func (t *Tracker) Reset() {
	*t = Tracker{}
}
