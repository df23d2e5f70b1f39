package config

import "time"

// Default configuration values.
const (
	// Providers
	DefaultProvider       = "ollama"
	DefaultOllamaBaseURL  = "http://localhost:11434"
	DefaultOllamaModel    = "qwen2.5-coder:7b"
	DefaultClaudeBaseURL  = "https://api.anthropic.com"
	DefaultClaudeModel    = "claude-sonnet-4-20250514"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultDeepSeekURL    = "https://api.deepseek.com/v1"
	DefaultDeepSeekModel  = "deepseek-chat"
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 4096
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 1 * time.Second
	DefaultHTTPTimeout    = 120 * time.Second
	DefaultMaxIterations  = 10
	DefaultLocalMaxIter   = 3
	DefaultHistoryTurns   = 10
	DefaultServerAddr     = "127.0.0.1:7878"
	DefaultStoreBackend   = "json"
	DefaultLogLevel       = "info"

	// Tools
	DefaultCommandTimeout = 30 * time.Second
	DefaultStdoutLimit    = 10000
	DefaultStderrLimit    = 5000
	DefaultReadMaxLines   = 2000
	DefaultListLimit      = 100
	DefaultSearchLimit    = 200
	DefaultWebResults     = 5
)
