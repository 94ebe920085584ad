package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pulpitwriter/pulpit/internal/document"
	"github.com/pulpitwriter/pulpit/internal/generation"
	"github.com/pulpitwriter/pulpit/internal/streamjson"
)

// replayCommand feeds a recorded transcript through a fresh engine.
func replayCommand(opts *options) *cobra.Command {
	flags := &sessionFlags{}
	var delay time.Duration
	var save bool
	cmd := &cobra.Command{
		Use:   "replay <session-id> [document]",
		Short: "Replay a recorded generation into a document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(opts, false)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()

			sessionID := args[0]
			events, err := rt.store.LoadTranscript(sessionID)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no transcript for session %s", sessionID)
				}
				return err
			}
			tokens, err := rt.store.TranscriptTokens(sessionID)
			if err != nil {
				return err
			}
			if len(tokens) == 0 {
				return fmt.Errorf("transcript %s has no tokens", sessionID)
			}
			if !cmd.Flags().Changed("kind") {
				if kind := recordedKind(events); kind != "" {
					flags.Kind = kind
				}
			}

			doc := document.New()
			name := ""
			if len(args) > 1 {
				name = args[1]
				doc, err = rt.openDocument(name)
				if err != nil {
					return err
				}
			}

			replayer := generation.NewReplayer(tokens, delay, rt.logger)
			defer func() {
				if err := replayer.Close(); err != nil {
					rt.logger.Warn("close replayer", zap.Error(err))
				}
			}()

			notice, runErr := runSession(cmd.Context(), doc, replayer, replayer, flags, rt.logger)
			if runErr == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), noticeText(notice))
			}
			if save && name != "" {
				if err := rt.saveDocument(name, doc); err != nil {
					return err
				}
			}
			printDocument(cmd.OutOrStdout(), doc.Markdown())
			return runErr
		},
	}
	flags.register(cmd, "continue")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between replayed tokens")
	cmd.Flags().BoolVar(&save, "save", false, "Save the document after replaying")
	return cmd
}

// recordedKind returns the prompt kind from a transcript's session event.
func recordedKind(events []any) string {
	for _, event := range events {
		if session, ok := event.(streamjson.SessionEvent); ok {
			return session.PromptKind
		}
	}
	return ""
}
