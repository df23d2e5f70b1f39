package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"forge/internal/fileutil"
)

// Load reads configuration from path (or the default location when path is
// empty), then applies .env and environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = GetConfigPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	loadFromEnv(cfg)

	if cfg.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.Workspace = wd
	}

	return cfg, nil
}

// GetConfigPath returns the default config file path.
func GetConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "forge", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "forge", "config.yaml")
}

// DataDir returns the directory for persisted threads and logs.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "forge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "forge")
	}
	return filepath.Join(home, ".local", "share", "forge")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("FORGE_PROVIDER"); v != "" {
		cfg.Provider.Active = strings.ToLower(v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Provider.Claude.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Provider.OpenAI.APIKey = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.Provider.DeepSeek.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		cfg.Provider.Ollama.BaseURL = v
	}
	// FORGE_MODEL applies to whichever provider is active.
	if v := os.Getenv("FORGE_MODEL"); v != "" {
		cfg.SetModel(cfg.Provider.Active, v)
	}
	if v := os.Getenv("FORGE_WORKSPACE"); v != "" {
		cfg.Workspace = v
	}
	if v := os.Getenv("FORGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// SetModel overrides the model name of a provider.
func (c *Config) SetModel(provider, model string) {
	switch provider {
	case ProviderClaude:
		c.Provider.Claude.Model = model
	case ProviderOpenAI:
		c.Provider.OpenAI.Model = model
	case ProviderDeepSeek:
		c.Provider.DeepSeek.Model = model
	case ProviderOllama:
		c.Provider.Ollama.Model = model
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	ep, ok := c.Provider.Endpoint(c.Provider.Active)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider.Active)
	}
	if !IsLocal(c.Provider.Active) && ep.APIKey == "" {
		return fmt.Errorf("%w for provider %s", ErrMissingAuth, c.Provider.Active)
	}
	if ep.Model == "" {
		return fmt.Errorf("no model configured for provider %s", c.Provider.Active)
	}
	if c.Agent.MaxIterations <= 0 || c.Agent.LocalMaxIterations <= 0 {
		return fmt.Errorf("agent iteration ceilings must be positive")
	}
	switch c.Store.Backend {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// ConfigError is a sentinel configuration error.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrMissingAuth     ConfigError = "missing API key: set ANTHROPIC_API_KEY, OPENAI_API_KEY or DEEPSEEK_API_KEY"
	ErrUnknownProvider ConfigError = "unknown provider"
)

// Save writes the configuration to path (or the default location).
func (c *Config) Save(path string) error {
	if path == "" {
		path = GetConfigPath()
	}
	if path == "" {
		return fmt.Errorf("could not determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// May hold API keys.
	if err := fileutil.AtomicWrite(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
