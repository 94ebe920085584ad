package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/document"
)

// sessionFlags selects what a one-shot generation asks for.
type sessionFlags struct {
	// Kind is the prompt kind name.
	Kind string
	// Prompt is the custom instruction.
	Prompt string
	// Select is an optional from,to selection for inline edits.
	Select []int
}

func (f *sessionFlags) register(cmd *cobra.Command, defaultKind string) {
	cmd.Flags().StringVarP(&f.Kind, "kind", "k", defaultKind, "Prompt kind ("+kindNames()+")")
	cmd.Flags().StringVarP(&f.Prompt, "prompt", "p", "", "Custom instruction for custom and inline_custom kinds")
	cmd.Flags().IntSliceVar(&f.Select, "select", nil, "Selection offsets from,to for inline edits")
}

func kindNames() string {
	names := ""
	for i, kind := range assist.Kinds() {
		if i > 0 {
			names += "|"
		}
		names += string(kind)
	}
	return names
}

// generateCommand runs one generation against a saved document.
func generateCommand(opts *options) *cobra.Command {
	flags := &sessionFlags{}
	var noSave bool
	cmd := &cobra.Command{
		Use:   "generate [document]",
		Short: "Generate content into a document and print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(opts, false)
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

			notice, runErr := runSession(cmd.Context(), doc, be.generator, be.subscriber, flags, rt.logger)
			if runErr == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), noticeText(notice))
			}
			if !noSave && (runErr == nil || errors.Is(runErr, errSessionFailed)) {
				if err := rt.saveDocument(name, doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", name)
			}
			printDocument(cmd.OutOrStdout(), doc.Markdown())
			return runErr
		},
	}
	flags.register(cmd, string(assist.KindContinue))
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the document")
	return cmd
}

// errSessionFailed marks a session that ended with an error notice.
var errSessionFailed = errors.New("generation failed")

// runSession starts one session on doc and blocks until it settles. SIGINT
// stops the session, reconciling what has streamed so far.
func runSession(
	parent context.Context,
	doc *document.Document,
	generator assist.Generator,
	subscriber assist.Subscriber,
	flags *sessionFlags,
	logger *zap.Logger,
) (assist.Notice, error) {
	if parent == nil {
		parent = context.Background()
	}
	kind, err := assist.ParsePromptKind(flags.Kind)
	if err != nil {
		return assist.Notice{}, err
	}
	if len(flags.Select) > 0 {
		if len(flags.Select) != 2 {
			return assist.Notice{}, fmt.Errorf("--select takes from,to")
		}
		doc.Select(flags.Select[0], flags.Select[1])
	}

	notices := make(chan assist.Notice, 1)
	engine := assist.NewEngine(doc, generator, subscriber,
		assist.WithLogger(logger),
		assist.WithNotifier(assist.NotifierFunc(func(notice assist.Notice) {
			select {
			case notices <- notice:
			default:
			}
		})),
	)

	ctx, stop := withInterrupt(parent, engine.Stop)
	defer stop()

	prompt := assist.Prompt{Kind: kind, Text: flags.Prompt}
	start := engine.Start
	if kind.Inline() {
		start = engine.StartInlineEdit
	}
	if _, err := start(ctx, prompt); err != nil {
		return assist.Notice{}, err
	}

	select {
	case notice := <-notices:
		if notice.Kind == assist.NoticeError {
			return notice, fmt.Errorf("%w: %s", errSessionFailed, notice.Message)
		}
		return notice, nil
	case <-parent.Done():
		engine.Stop()
		return <-notices, parent.Err()
	}
}
