package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version is the CLI build version.
const version = "0.1.0"

// options holds the persistent CLI flags.
type options struct {
	// ConfigPath is an explicit config file.
	ConfigPath string
	// EnvFile is a dotenv file read for overrides.
	EnvFile string
	// Provider overrides the configured provider.
	Provider string
	// Model overrides the configured model.
	Model string
	// ServerURL routes generation through a remote server.
	ServerURL string
	// LogLevel overrides the configured log level.
	LogLevel string
	// LogFile writes logs to a file instead of stderr.
	LogFile string
	// Verbose is shorthand for debug logging.
	Verbose bool
	// NoTranscripts disables transcript recording.
	NoTranscripts bool
}

// main wires Cobra and executes the CLI.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "pulpit",
		Short:         "Pulpit - a streaming sermon writing assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	applyFlags(rootCmd.PersistentFlags(), opts)

	rootCmd.AddCommand(writeCommand(opts))
	rootCmd.AddCommand(generateCommand(opts))
	rootCmd.AddCommand(serveCommand(opts))
	rootCmd.AddCommand(replayCommand(opts))
	rootCmd.AddCommand(doctorCommand(opts))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return rootCmd
}

// applyFlags defines the persistent flags shared by every command.
func applyFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.ConfigPath, "config", "", "Config file (JSON or YAML)")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "Dotenv file with overrides")
	flags.StringVar(&opts.Provider, "provider", "", "Content provider (lorem|openai|anthropic)")
	flags.StringVar(&opts.Model, "model", "", "Model id or alias")
	flags.StringVar(&opts.ServerURL, "server", "", "Generation server URL")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	flags.StringVar(&opts.LogFile, "log-file", "", "Write logs to a file")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose logging")
	flags.BoolVar(&opts.NoTranscripts, "no-transcripts", false, "Do not record generation transcripts")
}
