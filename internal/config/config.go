package config

import "time"

// Provider names accepted in provider.active.
const (
	ProviderClaude   = "claude"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
)

// Config holds the complete application configuration.
type Config struct {
	Workspace string         `yaml:"workspace,omitempty"`
	Provider  ProviderConfig `yaml:"provider"`
	Agent     AgentConfig    `yaml:"agent"`
	Tools     ToolsConfig    `yaml:"tools"`
	Store     StoreConfig    `yaml:"store"`
	Server    ServerConfig   `yaml:"server"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// ProviderConfig selects and configures model providers.
type ProviderConfig struct {
	Active      string      `yaml:"active"`
	Temperature float64     `yaml:"temperature"`
	MaxTokens   int         `yaml:"max_tokens"`
	Claude      Endpoint    `yaml:"claude"`
	OpenAI      Endpoint    `yaml:"openai"`
	DeepSeek    Endpoint    `yaml:"deepseek"`
	Ollama      Endpoint    `yaml:"ollama"`
	Retry       RetryConfig `yaml:"retry"`
}

// Endpoint is the connection info for one provider.
type Endpoint struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// RetryConfig holds retry settings for provider requests.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	MaxIterations      int  `yaml:"max_iterations"`
	LocalMaxIterations int  `yaml:"local_max_iterations"`
	HistoryTurns       int  `yaml:"history_turns"`
	Fallback           bool `yaml:"fallback"`
}

// ToolsConfig holds tool execution limits.
type ToolsConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
	StdoutLimit    int           `yaml:"stdout_limit"`
	StderrLimit    int           `yaml:"stderr_limit"`
	ReadMaxLines   int           `yaml:"read_max_lines"`
	ListLimit      int           `yaml:"list_limit"`
	SearchLimit    int           `yaml:"search_limit"`
	WebResults     int           `yaml:"web_results"`
}

// StoreConfig selects the thread store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // json, sqlite or memory
	Path    string `yaml:"path,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins are browser origins, besides the server's own, that
	// may call the API.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Active:      DefaultProvider,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			Claude:      Endpoint{BaseURL: DefaultClaudeBaseURL, Model: DefaultClaudeModel},
			OpenAI:      Endpoint{BaseURL: DefaultOpenAIBaseURL, Model: DefaultOpenAIModel},
			DeepSeek:    Endpoint{BaseURL: DefaultDeepSeekURL, Model: DefaultDeepSeekModel},
			Ollama:      Endpoint{BaseURL: DefaultOllamaBaseURL, Model: DefaultOllamaModel},
			Retry: RetryConfig{
				MaxRetries:  DefaultMaxRetries,
				RetryDelay:  DefaultRetryDelay,
				HTTPTimeout: DefaultHTTPTimeout,
			},
		},
		Agent: AgentConfig{
			MaxIterations:      DefaultMaxIterations,
			LocalMaxIterations: DefaultLocalMaxIter,
			HistoryTurns:       DefaultHistoryTurns,
			Fallback:           true,
		},
		Tools: ToolsConfig{
			CommandTimeout: DefaultCommandTimeout,
			StdoutLimit:    DefaultStdoutLimit,
			StderrLimit:    DefaultStderrLimit,
			ReadMaxLines:   DefaultReadMaxLines,
			ListLimit:      DefaultListLimit,
			SearchLimit:    DefaultSearchLimit,
			WebResults:     DefaultWebResults,
		},
		Store: StoreConfig{
			Backend: DefaultStoreBackend,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Endpoint returns the endpoint settings for a provider name.
func (p ProviderConfig) Endpoint(name string) (Endpoint, bool) {
	switch name {
	case ProviderClaude:
		return p.Claude, true
	case ProviderOpenAI:
		return p.OpenAI, true
	case ProviderDeepSeek:
		return p.DeepSeek, true
	case ProviderOllama:
		return p.Ollama, true
	}
	return Endpoint{}, false
}

// IsLocal reports whether the named provider runs on the local machine.
func IsLocal(name string) bool {
	return name == ProviderOllama
}
