package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/llm"
)

// newMarkdownRenderer returns a glamour renderer, or nil when none can be built.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	rendererOpts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		rendererOpts = append(rendererOpts, glamour.WithWordWrap(width))
	}
	renderer, err := glamour.NewTermRenderer(rendererOpts...)
	if err != nil {
		return nil
	}
	return renderer
}

// renderMarkdown converts markdown into terminal-friendly output when possible.
func renderMarkdown(renderer *glamour.TermRenderer, content string) string {
	if renderer == nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// printDocument writes markdown, styled when out is a terminal.
func printDocument(out io.Writer, markdown string) {
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		width, _, err := term.GetSize(int(file.Fd()))
		if err != nil {
			width = 0
		}
		fmt.Fprint(out, renderMarkdown(newMarkdownRenderer(width), markdown))
		return
	}
	fmt.Fprint(out, markdown)
	if !strings.HasSuffix(markdown, "\n") {
		fmt.Fprintln(out)
	}
}

// withInterrupt builds a context that is cancelled on SIGINT, calling
// onInterrupt first.
func withInterrupt(parent context.Context, onInterrupt func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	done := make(chan struct{})

	go func() {
		select {
		case <-interrupt:
			if onInterrupt != nil {
				onInterrupt()
			}
			cancel()
		case <-done:
			return
		}
	}()

	return ctx, func() {
		close(done)
		signal.Stop(interrupt)
		cancel()
	}
}

// noticeText is the status line for a finished session.
func noticeText(notice assist.Notice) string {
	switch notice.Kind {
	case assist.NoticeCompleted:
		return "Content generated."
	case assist.NoticeCancelled:
		return "Generation stopped."
	default:
		return notice.Message
	}
}

// formatStartError normalizes errors from starting a generation.
func formatStartError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, assist.ErrEmptySelection):
		return "Select some text first (/select <from> <to>)."
	case errors.Is(err, assist.ErrPromptTextRequired):
		return "That prompt needs some instructions."
	case errors.Is(err, llm.ErrInvalidAPIKey):
		return "The provider rejected the API key."
	case errors.Is(err, assist.ErrInitiation):
		return "Could not start generation: " + err.Error()
	default:
		return err.Error()
	}
}

// truncateForDisplay shortens long strings without breaking runes.
func truncateForDisplay(value string, max int) string {
	if max <= 0 {
		return value
	}
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max]) + "..."
}

// padRight pads a string with spaces to the target width.
func padRight(value string, width int) string {
	runes := []rune(value)
	if len(runes) >= width {
		return value
	}
	return value + strings.Repeat(" ", width-len(runes))
}
