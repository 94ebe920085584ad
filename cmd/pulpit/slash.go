package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pulpitwriter/pulpit/internal/assist"
)

var (
	// errUnknownCommand reports a slash command that does not exist.
	errUnknownCommand = errors.New("unknown command")
	// errUsage reports a slash command with bad arguments.
	errUsage = errors.New("usage")
)

// commandAction is what a line of editor input asks for.
type commandAction int

const (
	actionNone commandAction = iota
	actionGenerate
	actionInlineEdit
	actionSelect
	actionStop
	actionSave
	actionHelp
	actionQuit
)

// editorCommand is a parsed line of editor input.
type editorCommand struct {
	// Action selects the handler.
	Action commandAction
	// Kind is the prompt kind for generate and inline edits.
	Kind assist.PromptKind
	// Text is a custom instruction or a save name.
	Text string
	// From and To bound a selection.
	From int
	To   int
}

// generateCommands maps slash names to append prompt kinds.
var generateCommands = map[string]assist.PromptKind{
	"continue":     assist.KindContinue,
	"intro":        assist.KindIntroduction,
	"introduction": assist.KindIntroduction,
	"illustration": assist.KindIllustration,
	"application":  assist.KindApplication,
	"conclusion":   assist.KindConclusion,
	"outline":      assist.KindOutline,
}

// inlineCommands maps slash names to inline-edit prompt kinds.
var inlineCommands = map[string]assist.PromptKind{
	"rewrite": assist.KindRewrite,
	"expand":  assist.KindExpand,
	"shorten": assist.KindShorten,
	"edit":    assist.KindInlineCustom,
}

// helpText lists the editor commands.
const helpText = `/continue /intro /illustration /application /conclusion /outline  generate at the cursor
/rewrite /expand /shorten  rewrite the selection
/edit <instruction>        rewrite the selection your way
/select <from> <to>        select a range (character offsets)
/stop                      stop the running generation
/save [name]               save the document
/help /quit
Any other text asks for custom content at the cursor.`

// parseEditorInput turns a line of input into a command. Text without a
// leading slash is a custom prompt.
func parseEditorInput(line string) (editorCommand, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return editorCommand{Action: actionNone}, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return editorCommand{Action: actionGenerate, Kind: assist.KindCustom, Text: trimmed}, nil
	}
	name, rest, _ := strings.Cut(strings.TrimPrefix(trimmed, "/"), " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)

	if kind, ok := generateCommands[name]; ok {
		return editorCommand{Action: actionGenerate, Kind: kind}, nil
	}
	if kind, ok := inlineCommands[name]; ok {
		if kind == assist.KindInlineCustom && rest == "" {
			return editorCommand{}, fmt.Errorf("%w: /edit <instruction>", errUsage)
		}
		return editorCommand{Action: actionInlineEdit, Kind: kind, Text: rest}, nil
	}
	switch name {
	case "select":
		return parseSelect(rest)
	case "stop":
		return editorCommand{Action: actionStop}, nil
	case "save":
		return editorCommand{Action: actionSave, Text: rest}, nil
	case "help", "?":
		return editorCommand{Action: actionHelp}, nil
	case "quit", "exit":
		return editorCommand{Action: actionQuit}, nil
	case "":
		return editorCommand{Action: actionNone}, nil
	default:
		return editorCommand{}, fmt.Errorf("%w: /%s", errUnknownCommand, name)
	}
}

func parseSelect(rest string) (editorCommand, error) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return editorCommand{}, fmt.Errorf("%w: /select <from> <to>", errUsage)
	}
	from, errFrom := strconv.Atoi(fields[0])
	to, errTo := strconv.Atoi(fields[1])
	if errFrom != nil || errTo != nil || from < 0 || to < 0 {
		return editorCommand{}, fmt.Errorf("%w: /select takes two non-negative offsets", errUsage)
	}
	if from > to {
		from, to = to, from
	}
	return editorCommand{Action: actionSelect, From: from, To: to}, nil
}
