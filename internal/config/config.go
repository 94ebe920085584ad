package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderLorem     = "lorem"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Defaults applied after every source has been read.
const (
	DefaultProvider   = ProviderLorem
	DefaultLoremModel = "lorem-fast"
	DefaultTimeoutMS  = 600000
	DefaultMaxTokens  = 1024
	DefaultListenAddr = "127.0.0.1:8787"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

var (
	// ErrConfigInvalid is returned when required fields are missing or inconsistent.
	ErrConfigInvalid = errors.New("config invalid")
)

// Config defines how pulpit reaches a content provider and where it keeps data.
type Config struct {
	// Provider selects lorem, openai or anthropic.
	Provider string `json:"provider" yaml:"provider"`
	// Model is the provider model id or an alias.
	Model string `json:"model" yaml:"model"`
	// APIKey authenticates against the provider.
	APIKey string `json:"api_key" yaml:"api_key"`
	// APIBaseURL is the OpenAI-compatible base URL, or an Anthropic override.
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url"`
	// TimeoutMS configures provider request timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms" yaml:"timeout_ms"`
	// MaxTokens limits each generation.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// Temperature is optional sampling temperature.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// ModelAliases maps friendly names (e.g., quick) to provider model ids.
	ModelAliases map[string]string `json:"model_aliases" yaml:"model_aliases"`
	// ServerURL points the editor at a remote generation server instead of
	// running the provider in-process.
	ServerURL string `json:"server_url" yaml:"server_url"`
	// ListenAddr is the serve command's bind address.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	// DataDir overrides the document and transcript root.
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// LogFormat is console or json.
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// Options controls where Load reads from.
type Options struct {
	// Path is an explicit config file; empty searches the user and project dirs.
	Path string
	// Cwd locates the project config; empty uses the working directory.
	Cwd string
	// EnvFiles are dotenv files read for overrides; missing files are skipped.
	EnvFiles []string
	// Lookup replaces os.LookupEnv.
	Lookup func(key string) (string, bool)
}

// Dir returns the default pulpit directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".pulpit"), nil
}

// Load reads the layered config sources, applies environment overrides and
// defaults, then validates the result.
func Load(opts Options) (*Config, error) {
	cfg, err := loadLayers(opts)
	if err != nil {
		return nil, err
	}
	env, err := newEnvironment(opts.EnvFiles, opts.Lookup)
	if err != nil {
		return nil, err
	}
	env.apply(cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills optional fields.
func (c *Config) applyDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Model == "" && c.Provider == ProviderLorem {
		c.Model = DefaultLoremModel
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.ModelAliases == nil {
		c.ModelAliases = make(map[string]string)
	}
}

// Validate checks that the selected provider has what it needs.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLorem:
	case ProviderOpenAI:
		if c.APIBaseURL == "" || c.APIKey == "" {
			return fmt.Errorf("%w: openai requires api_base_url and api_key", ErrConfigInvalid)
		}
	case ProviderAnthropic:
		if c.APIKey == "" {
			return fmt.Errorf("%w: anthropic requires api_key", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrConfigInvalid, c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required for %s", ErrConfigInvalid, c.Provider)
	}
	return nil
}

// Timeout returns the provider request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ResolveModel returns the model for a run. A flag value takes precedence
// over the configured model; both resolve through aliases.
func ResolveModel(cfg *Config, flagModel string) string {
	if flagModel != "" {
		return aliasModel(cfg, flagModel)
	}
	if cfg == nil {
		return ""
	}
	return aliasModel(cfg, cfg.Model)
}

// aliasModel resolves an alias to a provider model name.
func aliasModel(cfg *Config, name string) string {
	if cfg == nil {
		return name
	}
	if aliased, ok := cfg.ModelAliases[name]; ok {
		return aliased
	}
	return name
}
