package assist

import "strings"

// Wire sentinels multiplexed into the producer's token stream.
const (
	FullContentPrefix = "[FULL]"
	DoneSentinel      = "[DONE]"
	ErrorPrefix       = "[ERROR]"
)

// TokenKind tags a decoded stream value.
type TokenKind int

const (
	// TokenLiteral is ordinary generated text.
	TokenLiteral TokenKind = iota
	// TokenFullContent declares the authoritative final text.
	TokenFullContent
	// TokenDone marks successful completion.
	TokenDone
	// TokenError marks a failed generation; Text holds the message.
	TokenError
)

// String returns the kind name used in logs.
func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "literal"
	case TokenFullContent:
		return "full_content"
	case TokenDone:
		return "done"
	case TokenError:
		return "error"
	default:
		return "unknown"
	}
}

// Token is one decoded value of the generation stream.
type Token struct {
	// Kind selects how Text is interpreted.
	Kind TokenKind
	// Text is the literal text, full content payload or error message.
	Text string
}

// Literal builds an ordinary text token.
func Literal(text string) Token { return Token{Kind: TokenLiteral, Text: text} }

// FullContent builds an authoritative full-text token.
func FullContent(text string) Token { return Token{Kind: TokenFullContent, Text: text} }

// Done builds the completion token.
func Done() Token { return Token{Kind: TokenDone} }

// Failure builds an error token carrying message.
func Failure(message string) Token { return Token{Kind: TokenError, Text: message} }

// Decode parses a raw stream value. Sentinel prefixes are only recognized here.
func Decode(raw string) Token {
	switch {
	case raw == DoneSentinel:
		return Done()
	case strings.HasPrefix(raw, FullContentPrefix):
		return FullContent(strings.TrimPrefix(raw, FullContentPrefix))
	case strings.HasPrefix(raw, ErrorPrefix):
		return Failure(strings.TrimPrefix(raw, ErrorPrefix))
	default:
		return Literal(raw)
	}
}

// Encode renders a token in its wire form.
func Encode(token Token) string {
	switch token.Kind {
	case TokenFullContent:
		return FullContentPrefix + token.Text
	case TokenDone:
		return DoneSentinel
	case TokenError:
		return ErrorPrefix + token.Text
	default:
		return token.Text
	}
}

// Terminal reports whether the token ends a session.
func (t Token) Terminal() bool {
	return t.Kind == TokenDone || t.Kind == TokenError
}
