package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pulpitwriter/pulpit/internal/agent"
	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/config"
	"github.com/pulpitwriter/pulpit/internal/document"
	"github.com/pulpitwriter/pulpit/internal/generation"
	"github.com/pulpitwriter/pulpit/internal/llm"
	"github.com/pulpitwriter/pulpit/internal/llm/anthropic"
	"github.com/pulpitwriter/pulpit/internal/llm/lorem"
	"github.com/pulpitwriter/pulpit/internal/llm/openai"
	"github.com/pulpitwriter/pulpit/internal/logging"
	"github.com/pulpitwriter/pulpit/internal/store"
)

// untitled names a document created without a name.
const untitled = "untitled"

// runtime carries the loaded config and shared services for a command.
type runtime struct {
	cfg    *config.Config
	model  string
	logger *zap.Logger
	store  *store.Store
	cwd    string
}

// loadRuntime resolves config, logging and storage. Interactive commands log
// to a file so output does not corrupt the terminal.
func loadRuntime(opts *options, interactive bool) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get cwd: %w", err)
	}
	lookup := overrideLookup(opts)
	cfg, err := config.Load(config.Options{
		Path:     opts.ConfigPath,
		Cwd:      cwd,
		EnvFiles: []string{opts.EnvFile},
		Lookup:   lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dataStore := &store.Store{BaseDir: cfg.DataDir}
	if dataStore.BaseDir == "" {
		dataStore, err = store.NewStore()
		if err != nil {
			return nil, err
		}
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}
	logPath := opts.LogFile
	if logPath == "" && interactive {
		if err := os.MkdirAll(dataStore.BaseDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		logPath = filepath.Join(dataStore.BaseDir, "pulpit.log")
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.LogFormat, Path: logPath})
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		model:  config.ResolveModel(cfg, opts.Model),
		logger: logger,
		store:  dataStore,
		cwd:    cwd,
	}, nil
}

// overrideLookup layers flag values over the process environment.
func overrideLookup(opts *options) func(string) (string, bool) {
	flags := map[string]string{}
	if opts.Provider != "" {
		flags[config.EnvProvider] = opts.Provider
	}
	if opts.ServerURL != "" {
		flags[config.EnvServerURL] = opts.ServerURL
	}
	return func(key string) (string, bool) {
		if value, ok := flags[key]; ok {
			return value, true
		}
		return os.LookupEnv(key)
	}
}

// newProvider constructs the configured content provider.
func newProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case config.ProviderLorem:
		return lorem.NewProvider(), nil
	case config.ProviderOpenAI:
		return openai.NewProvider(cfg.APIBaseURL, cfg.APIKey, cfg.Timeout())
	case config.ProviderAnthropic:
		return anthropic.NewProvider(cfg.APIKey, cfg.APIBaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, cfg.Provider)
	}
}

// backend is the generator and subscriber pair an engine talks to.
type backend struct {
	generator  assist.Generator
	subscriber assist.Subscriber
	// label describes the backend for headers and logs.
	label string
	close func() error
}

// newBackend connects to a remote server when configured, otherwise runs the
// provider in-process.
func (r *runtime) newBackend(recordTranscripts bool) (*backend, error) {
	if r.cfg.ServerURL != "" {
		client := generation.NewClient(r.cfg.ServerURL, generation.WithClientLogger(r.logger))
		return &backend{
			generator:  client,
			subscriber: client,
			label:      "server " + r.cfg.ServerURL,
			close:      func() error { return nil },
		}, nil
	}
	runner, err := r.newRunner()
	if err != nil {
		return nil, err
	}
	broker := generation.NewBroker(r.logger)
	localOpts := []generation.LocalOption{generation.WithLocalLogger(r.logger)}
	if recordTranscripts {
		localOpts = append(localOpts, generation.WithRecorder(r.store))
	}
	local := generation.NewLocalGenerator(runner, broker, localOpts...)
	return &backend{
		generator:  local,
		subscriber: broker,
		label:      fmt.Sprintf("%s %s", runner.Provider.Name(), r.model),
		close:      local.Close,
	}, nil
}

// newRunner builds the producer for the configured provider.
func (r *runtime) newRunner() (*agent.Runner, error) {
	provider, err := newProvider(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return &agent.Runner{
		Provider:    provider,
		Model:       r.model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Logger:      r.logger,
	}, nil
}

// openDocument loads a saved document, or starts an empty one when it does
// not exist yet. The cursor is placed at the end.
func (r *runtime) openDocument(name string) (*document.Document, error) {
	markdown, err := r.store.LoadDocument(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document.New(), nil
		}
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	doc := document.Parse(markdown)
	doc.MoveToEnd()
	return doc, nil
}

// resolveDocumentName picks the argument, then the project's last document.
func (r *runtime) resolveDocumentName(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSuffix(strings.TrimSpace(args[0]), ".md")
	}
	if name, err := r.store.LoadLastDocument(store.ProjectHash(r.cwd)); err == nil && name != "" {
		return name
	}
	return untitled
}

// saveDocument persists markdown and remembers it as the project's last document.
func (r *runtime) saveDocument(name string, doc *document.Document) error {
	if err := r.store.SaveDocument(name, doc.Markdown()); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := r.store.SaveLastDocument(store.ProjectHash(r.cwd), name); err != nil {
		r.logger.Warn("remember last document", zap.Error(err))
	}
	return nil
}
