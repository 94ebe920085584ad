package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/document"
)

// tokenMsg carries one streamed value into the TUI event loop.
type tokenMsg struct {
	// SessionID scopes the value.
	SessionID string
	// Raw is the undecoded stream value.
	Raw string
}

// programSubscriber hands deliveries to the event loop so the document is
// only mutated on the UI goroutine.
type programSubscriber struct {
	// inner opens the real stream.
	inner assist.Subscriber
	// send posts a message to the running program.
	send func(tea.Msg)
}

// Subscribe opens the inner stream and forwards each value as a tokenMsg.
func (s *programSubscriber) Subscribe(ctx context.Context, sessionID string, _ func(raw string)) (assist.Subscription, error) {
	return s.inner.Subscribe(ctx, sessionID, func(raw string) {
		s.send(tokenMsg{SessionID: sessionID, Raw: raw})
	})
}

// editorModel drives the terminal editor.
type editorModel struct {
	// engine reconciles generations into doc.
	engine *assist.Engine
	// doc is the sermon being written.
	doc *document.Document
	// docName is the save name.
	docName string
	// backendLabel describes where content comes from.
	backendLabel string
	// save persists the document under a name.
	save func(name string) error
	// logger records editor events.
	logger *zap.Logger
	// docView renders the document.
	docView viewport.Model
	// input collects commands and prompts.
	input textarea.Model
	// markdownRenderer formats the document when available.
	markdownRenderer *glamour.TermRenderer
	// statusText is the bottom status line.
	statusText string
	// showHelp swaps the document pane for the command list.
	showHelp bool
	// docAutoScroll keeps the document pinned to the bottom.
	docAutoScroll bool
	// width tracks the terminal width.
	width int
	// height tracks the terminal height.
	height int
	// quitting indicates a user-requested exit.
	quitting bool
}

// editorConfig collects what the editor needs.
type editorConfig struct {
	doc          *document.Document
	docName      string
	generator    assist.Generator
	subscriber   assist.Subscriber
	backendLabel string
	save         func(name string, doc *document.Document) error
	logger       *zap.Logger
	renderer     *glamour.TermRenderer
}

// newEditorModel constructs the editor and its engine. Deliveries are posted
// through the returned subscriber's send func, which the caller sets.
func newEditorModel(cfg editorConfig) (*editorModel, *programSubscriber) {
	input := textarea.New()
	input.Placeholder = "Type a prompt or /help..."
	input.Focus()
	input.CharLimit = 0
	input.Prompt = "> "
	input.ShowLineNumbers = false
	input.SetHeight(2)
	input.SetWidth(20)

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &editorModel{
		doc:              cfg.doc,
		docName:          cfg.docName,
		backendLabel:     cfg.backendLabel,
		logger:           logger,
		docView:          viewport.New(20, 10),
		input:            input,
		markdownRenderer: cfg.renderer,
		statusText:       "Enter: send | Ctrl+S: save | Ctrl+C: stop/quit | PgUp/PgDn: scroll | /help",
		docAutoScroll:    true,
	}
	m.save = func(name string) error {
		if cfg.save == nil {
			return errors.New("saving is not available")
		}
		return cfg.save(name, m.doc)
	}
	subscriber := &programSubscriber{inner: cfg.subscriber, send: func(tea.Msg) {}}
	m.engine = assist.NewEngine(cfg.doc, cfg.generator, subscriber,
		assist.WithLogger(logger),
		assist.WithNotifier(assist.NotifierFunc(m.onNotice)),
	)
	m.refreshDoc()
	return m, subscriber
}

// writeCommand opens the terminal editor.
func writeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "write [document]",
		Short: "Open a sermon in the terminal editor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(0) || !term.IsTerminal(1) {
				return errors.New("the editor requires a TTY; use generate instead")
			}
			rt, err := loadRuntime(opts, true)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()

			name := rt.resolveDocumentName(args)
			doc, err := rt.openDocument(name)
			if err != nil {
				return err
			}
			be, err := rt.newBackend(!opts.NoTranscripts)
			if err != nil {
				return err
			}
			defer func() {
				if err := be.close(); err != nil {
					rt.logger.Warn("close backend", zap.Error(err))
				}
			}()

			model, subscriber := newEditorModel(editorConfig{
				doc:          doc,
				docName:      name,
				generator:    be.generator,
				subscriber:   be.subscriber,
				backendLabel: be.label,
				save:         rt.saveDocument,
				logger:       rt.logger,
				renderer:     newMarkdownRenderer(0),
			})
			program := tea.NewProgram(model, tea.WithAltScreen())
			subscriber.send = program.Send
			_, err = program.Run()
			return err
		},
	}
}

// Init starts the blinking cursor for the input field.
func (m *editorModel) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles UI events and streamed tokens.
func (m *editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.applyWindowSize(typed)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case tokenMsg:
		m.engine.Receive(typed.SessionID, typed.Raw)
		m.refreshDoc()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the full UI layout.
func (m *editorModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.renderBody(), m.renderInput(), m.renderStatus())
}

// handleKey routes keyboard input and command submission.
func (m *editorModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		if m.engine.Active() {
			m.engine.Stop()
			m.refreshDoc()
			return m, nil
		}
		return m.quit()
	case "ctrl+q":
		return m.quit()
	case "ctrl+s":
		m.saveAs(m.docName)
		return m, nil
	case "pgup":
		m.docAutoScroll = false
		m.docView.LineUp(10)
		return m, nil
	case "pgdown":
		m.docView.LineDown(10)
		m.docAutoScroll = m.docView.AtBottom()
		return m, nil
	case "esc":
		m.showHelp = false
		m.refreshDoc()
		return m, nil
	}

	if key.Type == tea.KeyEnter && !key.Alt {
		return m.submitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

// quit stops any running session so its text is kept, then exits.
func (m *editorModel) quit() (tea.Model, tea.Cmd) {
	m.engine.Stop()
	m.quitting = true
	return m, tea.Quit
}

// submitInput runs the current input line.
func (m *editorModel) submitInput() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	m.input.SetValue("")
	command, err := parseEditorInput(value)
	if err != nil {
		m.statusText = err.Error()
		return m, nil
	}
	if m.showHelp && command.Action != actionHelp {
		m.showHelp = false
	}

	switch command.Action {
	case actionGenerate, actionInlineEdit:
		m.startGeneration(command)
	case actionSelect:
		m.doc.Select(command.From, command.To)
		from, to := m.doc.Selection()
		m.statusText = fmt.Sprintf("Selected %d-%d: %q", from, to, truncateForDisplay(m.doc.TextRange(from, to), 60))
	case actionStop:
		if !m.engine.Active() {
			m.statusText = "Nothing is generating."
		}
		m.engine.Stop()
	case actionSave:
		name := m.docName
		if command.Text != "" {
			name = command.Text
		}
		m.saveAs(name)
	case actionHelp:
		m.showHelp = true
	case actionQuit:
		return m.quit()
	}
	m.refreshDoc()
	return m, nil
}

// startGeneration begins an append or inline session.
func (m *editorModel) startGeneration(command editorCommand) {
	if m.engine.Active() {
		m.statusText = "A generation is running; /stop or Ctrl+C first."
		return
	}
	prompt := assist.Prompt{Kind: command.Kind, Text: command.Text}
	start := m.engine.Start
	if command.Action == actionInlineEdit {
		start = m.engine.StartInlineEdit
	} else if from, to := m.doc.Selection(); from == to {
		m.doc.MoveToEnd()
	}
	id, err := start(context.Background(), prompt)
	if err != nil {
		m.logger.Warn("start generation", zap.Error(err))
		m.statusText = formatStartError(err)
		return
	}
	if id == "" {
		m.statusText = "A generation is already running."
		return
	}
	m.docAutoScroll = true
	m.statusText = fmt.Sprintf("Writing %s...", strings.ReplaceAll(string(command.Kind), "_", " "))
}

// saveAs persists the document and clears the unsaved marker.
func (m *editorModel) saveAs(name string) {
	if err := m.save(name); err != nil {
		m.statusText = err.Error()
		return
	}
	m.docName = name
	m.engine.MarkSaved()
	m.statusText = "Saved " + name
}

// onNotice shows a session outcome in the status line.
func (m *editorModel) onNotice(notice assist.Notice) {
	m.statusText = noticeText(notice)
	m.logger.Debug("session settled", zap.String("session", notice.SessionID), zap.String("status", m.statusText))
}

// refreshDoc rebuilds the document viewport content.
func (m *editorModel) refreshDoc() {
	if m.showHelp {
		m.docView.SetContent(helpText)
		m.docView.GotoTop()
		return
	}
	markdown := m.doc.Markdown()
	if strings.TrimSpace(markdown) == "" {
		m.docView.SetContent("Empty sermon. Try /outline or /intro.")
		return
	}
	m.docView.SetContent(renderMarkdown(m.markdownRenderer, markdown))
	if m.docAutoScroll {
		m.docView.GotoBottom()
	}
}

// applyWindowSize recalculates the layout for a new window size.
func (m *editorModel) applyWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	statusHeight := 1
	inputHeight := m.input.Height() + 2
	bodyHeight := m.height - headerHeight - statusHeight - inputHeight
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	m.docView.Width = m.width - 4
	m.docView.Height = bodyHeight - 3
	m.input.SetWidth(m.width - 4)
	m.refreshDoc()
}

// renderHeader builds the top status line.
func (m *editorModel) renderHeader() string {
	style := lipgloss.NewStyle().Bold(true)
	name := m.docName
	if m.engine.Dirty() {
		name += " *"
	}
	header := fmt.Sprintf("Pulpit | %s | %s", name, m.backendLabel)
	if title := m.doc.Title(); title != "" {
		header = fmt.Sprintf("%s | %s", header, truncateForDisplay(title, 40))
	}
	if m.engine.Active() {
		header += " | writing"
	}
	return style.Render(padRight(header, m.width))
}

// renderBody renders the document pane.
func (m *editorModel) renderBody() string {
	style := lipgloss.NewStyle().Border(m.border()).Padding(0, 1)
	title := "[Sermon]"
	if m.showHelp {
		title = "[Commands]"
	}
	pane := lipgloss.JoinVertical(lipgloss.Left, title, m.docView.View())
	return style.Width(m.width - 2).Render(pane)
}

// renderInput returns the input box rendering.
func (m *editorModel) renderInput() string {
	style := lipgloss.NewStyle().Border(m.border()).Padding(0, 1)
	return style.Render(m.input.View())
}

// renderStatus returns the bottom status line.
func (m *editorModel) renderStatus() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	text := m.statusText
	if text == "" {
		text = "Ready"
	}
	if from, to := m.doc.Selection(); from != to {
		text = fmt.Sprintf("%s | sel:%d-%d", text, from, to)
	}
	return style.Render(padRight(text, m.width))
}

// border defines a simple ASCII border to avoid Unicode dependencies.
func (m *editorModel) border() lipgloss.Border {
	return lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}
}
