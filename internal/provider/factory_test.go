package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/config"
)

func TestNewSelectsAdapter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Claude.APIKey = "a"
	cfg.Provider.OpenAI.APIKey = "b"
	cfg.Provider.DeepSeek.APIKey = "c"

	tests := []struct {
		name  string
		want  string
		local bool
	}{
		{config.ProviderClaude, "claude", false},
		{config.ProviderOpenAI, "openai", false},
		{config.ProviderDeepSeek, "deepseek", false},
		{config.ProviderOllama, "ollama", true},
	}
	for _, tt := range tests {
		p, err := New(cfg, tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, p.Name())
		assert.Equal(t, tt.local, p.Local())
	}

	local, err := NewLocal(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Provider.Ollama.Model, local.Model())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.DefaultConfig(), "gemini")
	assert.ErrorIs(t, err, config.ErrUnknownProvider)
}

func TestNewUsesActiveProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	p, err := New(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, cfg.Provider.Active, p.Name())
}

func TestZeroTemperatureIsSent(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Temperature = 0
	cfg.Provider.Claude.APIKey = "a"
	cfg.Provider.OpenAI.APIKey = "b"

	claude, err := New(cfg, config.ProviderClaude)
	require.NoError(t, err)
	body := claude.(*ClaudeProvider).buildRequest(&Request{})
	assert.Equal(t, 0.0, body["temperature"])

	openai, err := New(cfg, config.ProviderOpenAI)
	require.NoError(t, err)
	data, err := json.Marshal(openai.(*OpenAIProvider).buildRequest(&Request{}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"temperature":0`)

	ollama, err := New(cfg, config.ProviderOllama)
	require.NoError(t, err)
	chat := ollama.(*OllamaProvider).buildRequest(&Request{})
	assert.Equal(t, 0.0, chat.Options["temperature"])
}

func TestRequestTemperatureOverridesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Claude.APIKey = "a"

	p, err := New(cfg, config.ProviderClaude)
	require.NoError(t, err)
	c := p.(*ClaudeProvider)

	assert.Equal(t, cfg.Provider.Temperature, c.buildRequest(&Request{})["temperature"])
	assert.Equal(t, 0.0, c.buildRequest(&Request{Temperature: ptr(0.0)})["temperature"])

	bare, err := NewClaude(ClaudeConfig{APIKey: "a", Model: "m"})
	require.NoError(t, err)
	assert.NotContains(t, bare.buildRequest(&Request{}), "temperature")
}
