package provider

import (
	"fmt"

	"forge/internal/config"
	"forge/internal/logging"
)

// New creates the adapter for the named provider. An empty name selects
// provider.active from cfg.
func New(cfg *config.Config, name string) (Provider, error) {
	if name == "" {
		name = cfg.Provider.Active
	}
	endpoint, ok := cfg.Provider.Endpoint(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, name)
	}

	retry := RetryConfig{
		MaxRetries: cfg.Provider.Retry.MaxRetries,
		RetryDelay: cfg.Provider.Retry.RetryDelay,
		MaxDelay:   DefaultRetryConfig().MaxDelay,
	}
	timeout := cfg.Provider.Retry.HTTPTimeout
	temperature := cfg.Provider.Temperature

	logging.Debug("creating provider", "provider", name, "model", endpoint.Model)

	switch name {
	case config.ProviderClaude:
		return NewClaude(ClaudeConfig{
			APIKey:      endpoint.APIKey,
			BaseURL:     endpoint.BaseURL,
			Model:       endpoint.Model,
			MaxTokens:   cfg.Provider.MaxTokens,
			Temperature: &temperature,
			HTTPTimeout: timeout,
			Retry:       retry,
		})
	case config.ProviderOpenAI, config.ProviderDeepSeek:
		return NewOpenAI(OpenAIConfig{
			Name:        name,
			APIKey:      endpoint.APIKey,
			BaseURL:     endpoint.BaseURL,
			Model:       endpoint.Model,
			MaxTokens:   cfg.Provider.MaxTokens,
			Temperature: &temperature,
			HTTPTimeout: timeout,
			Retry:       retry,
		})
	default:
		return NewOllama(OllamaConfig{
			BaseURL:     endpoint.BaseURL,
			APIKey:      endpoint.APIKey,
			Model:       endpoint.Model,
			MaxTokens:   cfg.Provider.MaxTokens,
			Temperature: &temperature,
			HTTPTimeout: timeout,
			Retry:       retry,
		})
	}
}

// NewLocal creates the local fallback provider.
func NewLocal(cfg *config.Config) (Provider, error) {
	return New(cfg, config.ProviderOllama)
}
