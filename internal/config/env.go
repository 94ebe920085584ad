package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvProvider        = "PULPIT_PROVIDER"
	EnvModel           = "PULPIT_MODEL"
	EnvAPIKey          = "PULPIT_API_KEY"
	EnvAPIBaseURL      = "PULPIT_API_BASE_URL"
	EnvServerURL       = "PULPIT_SERVER_URL"
	EnvMaxTokens       = "PULPIT_MAX_TOKENS"
	EnvLogLevel        = "PULPIT_LOG_LEVEL"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// environment resolves variables from the process first and dotenv files second.
type environment struct {
	lookup func(key string) (string, bool)
	dotenv map[string]string
}

func newEnvironment(files []string, lookup func(key string) (string, bool)) (*environment, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := &environment{lookup: lookup, dotenv: map[string]string{}}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", file, err)
		}
		for key, value := range values {
			// Earlier files win, matching godotenv.Load.
			if _, ok := env.dotenv[key]; !ok {
				env.dotenv[key] = value
			}
		}
	}
	return env, nil
}

func (e *environment) get(key string) string {
	if value, ok := e.lookup(key); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(e.dotenv[key])
}

// apply overrides cfg with any variables that are set.
func (e *environment) apply(cfg *Config) {
	mergeString(&cfg.Provider, e.get(EnvProvider))
	mergeString(&cfg.Model, e.get(EnvModel))
	mergeString(&cfg.APIBaseURL, e.get(EnvAPIBaseURL))
	mergeString(&cfg.ServerURL, e.get(EnvServerURL))
	mergeString(&cfg.LogLevel, e.get(EnvLogLevel))
	if raw := e.get(EnvMaxTokens); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxTokens = value
		}
	}

	// A provider-specific key only fills in when nothing more specific is set.
	if key := e.get(EnvAPIKey); key != "" {
		cfg.APIKey = key
		return
	}
	if cfg.APIKey != "" {
		return
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic:
		cfg.APIKey = e.get(EnvAnthropicAPIKey)
	case ProviderOpenAI:
		cfg.APIKey = e.get(EnvOpenAIAPIKey)
	}
}
