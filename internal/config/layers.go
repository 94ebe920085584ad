package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// configNames are tried in order inside a config directory.
var configNames = []string{"config.yaml", "config.yml", "config.json"}

type configSource struct {
	Source string
	Dir    string
}

// loadLayers merges the user config with the project config, project last.
func loadLayers(opts Options) (*Config, error) {
	if opts.Path != "" {
		cfg, err := loadFile(opts.Path)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	cwd := opts.Cwd
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working dir: %w", err)
		}
	}
	sources, err := configSources(cwd)
	if err != nil {
		return nil, err
	}

	merged := &Config{}
	for _, source := range sources {
		path, ok := findConfigFile(source.Dir)
		if !ok {
			continue
		}
		layer, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s config: %w", source.Source, err)
		}
		merged = mergeConfig(merged, layer)
	}
	return merged, nil
}

// configSources resolves the user and project config directories.
func configSources(cwd string) ([]configSource, error) {
	userDir, err := Dir()
	if err != nil {
		return nil, err
	}
	projectDir := filepath.Join(FindProjectRoot(cwd), ".pulpit")
	sources := []configSource{{Source: "user", Dir: userDir}}
	if filepath.Clean(projectDir) != filepath.Clean(userDir) {
		sources = append(sources, configSource{Source: "project", Dir: projectDir})
	}
	return sources, nil
}

// findConfigFile returns the first config file present in dir.
func findConfigFile(dir string) (string, bool) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// loadFile reads a JSON or YAML config file, chosen by extension.
func loadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrConfigInvalid, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(raw, filepath.Ext(path))
}

// parseConfig decodes raw as JSON for ".json" and YAML otherwise.
func parseConfig(raw []byte, ext string) (*Config, error) {
	var cfg Config
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// mergeConfig applies the set fields of overlay on top of base.
func mergeConfig(base *Config, overlay *Config) *Config {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}
	merged := *base
	mergeString(&merged.Provider, overlay.Provider)
	mergeString(&merged.Model, overlay.Model)
	mergeString(&merged.APIKey, overlay.APIKey)
	mergeString(&merged.APIBaseURL, overlay.APIBaseURL)
	mergeString(&merged.ServerURL, overlay.ServerURL)
	mergeString(&merged.ListenAddr, overlay.ListenAddr)
	mergeString(&merged.DataDir, overlay.DataDir)
	mergeString(&merged.LogLevel, overlay.LogLevel)
	mergeString(&merged.LogFormat, overlay.LogFormat)
	if overlay.TimeoutMS > 0 {
		merged.TimeoutMS = overlay.TimeoutMS
	}
	if overlay.MaxTokens > 0 {
		merged.MaxTokens = overlay.MaxTokens
	}
	if overlay.Temperature != nil {
		merged.Temperature = overlay.Temperature
	}

	merged.ModelAliases = make(map[string]string, len(base.ModelAliases)+len(overlay.ModelAliases))
	for key, value := range base.ModelAliases {
		merged.ModelAliases[key] = value
	}
	for key, value := range overlay.ModelAliases {
		merged.ModelAliases[key] = value
	}
	return &merged
}

func mergeString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// FindProjectRoot locates the nearest parent directory containing .git.
func FindProjectRoot(cwd string) string {
	current := filepath.Clean(cwd)
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			// If no repository root is found, fall back to the current directory.
			return cwd
		}
		current = parent
	}
}
