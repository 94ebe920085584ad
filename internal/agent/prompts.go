package agent

import (
	"fmt"
	"strings"

	"github.com/pulpitwriter/pulpit/internal/assist"
)

// DefaultSystemPrompt returns the base system prompt for sermon drafting.
func DefaultSystemPrompt() string {
	builder := strings.Builder{}
	builder.WriteString("You are Pulpit, a writing assistant for preachers preparing sermons.\n")
	builder.WriteString("Write in a warm, clear pastoral voice suited to being read aloud.\n")
	builder.WriteString("Format output as Markdown: use headings, lists and block quotes only where they help.\n")
	builder.WriteString("Separate paragraphs with a blank line.\n")
	builder.WriteString("Return only the requested text, without preamble or commentary.")
	return builder.String()
}

// instructions holds the task line for each prompt kind.
var instructions = map[assist.PromptKind]string{
	assist.KindContinue:     "Continue the sermon from where the draft ends. Add one or two paragraphs that follow naturally.",
	assist.KindIntroduction: "Write an engaging introduction for this sermon that draws listeners into its theme.",
	assist.KindIllustration: "Write a short, vivid illustration or story that makes the sermon's point concrete.",
	assist.KindApplication:  "Write a practical application section showing how listeners can live out this message this week.",
	assist.KindConclusion:   "Write a conclusion that gathers the sermon's main points and closes with a clear call to respond.",
	assist.KindOutline:      "Write a sermon outline as a Markdown list of main points with brief sub-points.",
	assist.KindCustom:       "Follow the preacher's instruction below.",
	assist.KindRewrite:      "Rewrite the selected passage so it reads more clearly while keeping its meaning.",
	assist.KindExpand:       "Expand the selected passage with more depth and detail.",
	assist.KindShorten:      "Shorten the selected passage while keeping its core message.",
	assist.KindInlineCustom: "Revise the selected passage following the preacher's instruction below.",
}

// UserPrompt renders the user message for a generation request.
func UserPrompt(request assist.Request) (string, error) {
	instruction, ok := instructions[request.PromptKind]
	if !ok {
		return "", fmt.Errorf("%w: %q", assist.ErrUnknownKind, request.PromptKind)
	}
	builder := strings.Builder{}
	builder.WriteString(instruction)
	builder.WriteString("\n")
	if request.CustomPromptText != "" {
		builder.WriteString("\nInstruction: ")
		builder.WriteString(request.CustomPromptText)
		builder.WriteString("\n")
	}
	if request.DocumentTitle != "" {
		builder.WriteString("\nSermon title: ")
		builder.WriteString(request.DocumentTitle)
		builder.WriteString("\n")
	}
	if request.HighlightedText != "" {
		builder.WriteString("\nSelected passage:\n<selection>\n")
		builder.WriteString(request.HighlightedText)
		builder.WriteString("\n</selection>\n")
	}
	if request.DocumentPlainText != "" {
		builder.WriteString("\nCurrent draft:\n<draft>\n")
		builder.WriteString(request.DocumentPlainText)
		builder.WriteString("\n</draft>\n")
	}
	if request.PromptKind.Inline() {
		builder.WriteString("\nReturn only the replacement for the selected passage.")
	}
	return builder.String(), nil
}
