package assist

import (
	"fmt"
	"strings"
)

// PromptKind names a generation the assistant can perform.
type PromptKind string

const (
	KindContinue     PromptKind = "continue"
	KindIntroduction PromptKind = "introduction"
	KindIllustration PromptKind = "illustration"
	KindApplication  PromptKind = "application"
	KindConclusion   PromptKind = "conclusion"
	KindOutline      PromptKind = "outline"
	KindCustom       PromptKind = "custom"

	KindRewrite      PromptKind = "rewrite"
	KindExpand       PromptKind = "expand"
	KindShorten      PromptKind = "shorten"
	KindInlineCustom PromptKind = "inline_custom"
)

// kindTrait declares the context a prompt kind sends to the producer.
type kindTrait struct {
	// inline marks kinds that replace a selection instead of appending.
	inline bool
	// needsDocument sends the whole document text.
	needsDocument bool
	// needsHighlight sends the selected text.
	needsHighlight bool
	// needsPrompt requires custom prompt text.
	needsPrompt bool
}

var kindTraits = map[PromptKind]kindTrait{
	KindContinue:     {needsDocument: true},
	KindIntroduction: {needsDocument: true},
	KindIllustration: {needsDocument: true, needsHighlight: true},
	KindApplication:  {needsDocument: true, needsHighlight: true},
	KindConclusion:   {needsDocument: true},
	KindOutline:      {needsDocument: true},
	KindCustom:       {needsDocument: true, needsHighlight: true, needsPrompt: true},
	KindRewrite:      {inline: true, needsDocument: true, needsHighlight: true},
	KindExpand:       {inline: true, needsDocument: true, needsHighlight: true},
	KindShorten:      {inline: true, needsHighlight: true},
	KindInlineCustom: {inline: true, needsDocument: true, needsHighlight: true, needsPrompt: true},
}

// Kinds returns every known prompt kind in display order.
func Kinds() []PromptKind {
	return []PromptKind{
		KindContinue, KindIntroduction, KindIllustration, KindApplication, KindConclusion,
		KindOutline, KindCustom, KindRewrite, KindExpand, KindShorten, KindInlineCustom,
	}
}

// Valid reports whether k is a known prompt kind.
func (k PromptKind) Valid() bool {
	_, ok := kindTraits[k]
	return ok
}

// Inline reports whether k replaces a selection.
func (k PromptKind) Inline() bool {
	return kindTraits[k].inline
}

// ParsePromptKind resolves a kind name.
func ParsePromptKind(name string) (PromptKind, error) {
	kind := PromptKind(strings.ToLower(strings.TrimSpace(name)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return kind, nil
}

// Prompt is the user's generation intent.
type Prompt struct {
	// Kind selects the generation.
	Kind PromptKind
	// Text is the custom instruction for custom kinds.
	Text string
}

// Request is the outbound content-generation call.
type Request struct {
	// PromptKind selects the generation.
	PromptKind PromptKind `json:"promptKind"`
	// CustomPromptText carries the user's instruction for custom kinds.
	CustomPromptText string `json:"customPromptText,omitempty"`
	// DocumentTitle is the document's title for context.
	DocumentTitle string `json:"documentTitle,omitempty"`
	// DocumentPlainText is the whole document text.
	DocumentPlainText string `json:"documentPlainText,omitempty"`
	// HighlightedText is the selected text.
	HighlightedText string `json:"highlightedText,omitempty"`
	// SessionID correlates the token stream with this request.
	SessionID string `json:"sessionId"`
}

// Validate checks the request shape accepted by producers.
func (r Request) Validate() error {
	traits, ok := kindTraits[r.PromptKind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.PromptKind)
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return ErrSessionIDRequired
	}
	if traits.needsPrompt && strings.TrimSpace(r.CustomPromptText) == "" {
		return ErrPromptTextRequired
	}
	if traits.inline && strings.TrimSpace(r.HighlightedText) == "" {
		return ErrEmptySelection
	}
	return nil
}

// buildRequest collects the context fields the kind declares.
func buildRequest(surface Surface, prompt Prompt, sessionID string) Request {
	traits := kindTraits[prompt.Kind]
	request := Request{
		PromptKind:    prompt.Kind,
		DocumentTitle: surface.Title(),
		SessionID:     sessionID,
	}
	if traits.needsPrompt {
		request.CustomPromptText = strings.TrimSpace(prompt.Text)
	}
	if traits.needsDocument {
		request.DocumentPlainText = surface.PlainText()
	}
	if traits.needsHighlight {
		from, to := surface.Selection()
		request.HighlightedText = surface.TextRange(from, to)
	}
	return request
}
