package assist

import "strings"

// paragraphBreak terminates a chunk.
const paragraphBreak = "\n\n"

// Accumulator buffers streamed text for one session.
//
// local holds every literal token in arrival order; chunk holds the tokens
// since the last rendered paragraph; full is the producer's declared text.
type Accumulator struct {
	chunk strings.Builder
	local strings.Builder
	full  string
}

// Append records a literal token.
func (a *Accumulator) Append(text string) {
	a.chunk.WriteString(text)
	a.local.WriteString(text)
}

// SetFull stores the authoritative full text.
func (a *Accumulator) SetFull(text string) {
	a.full = text
}

// Chunk returns the text since the last chunk render.
func (a *Accumulator) Chunk() string { return a.chunk.String() }

// Local returns every literal token received this session.
func (a *Accumulator) Local() string { return a.local.String() }

// Full returns the declared full text, empty until it arrives.
func (a *Accumulator) Full() string { return a.full }

// ChunkComplete reports whether the chunk ends on a paragraph break.
func (a *Accumulator) ChunkComplete() bool {
	return strings.HasSuffix(a.chunk.String(), paragraphBreak)
}

// ResetChunk clears the chunk after it was rendered.
func (a *Accumulator) ResetChunk() {
	a.chunk.Reset()
}

// Final returns the full text when declared, else the local accumulation.
func (a *Accumulator) Final() string {
	if a.full != "" {
		return a.full
	}
	return a.local.String()
}

// Reset clears all buffers.
func (a *Accumulator) Reset() {
	a.chunk.Reset()
	a.local.Reset()
	a.full = ""
}
