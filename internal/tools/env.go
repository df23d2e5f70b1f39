package tools

import (
	"net/http"
	"time"

	"forge/internal/config"
	"forge/internal/workspace"
)

// Limits bounds tool output and run time.
type Limits struct {
	CommandTimeout time.Duration
	StdoutLimit    int
	StderrLimit    int
	ReadMaxLines   int
	ListLimit      int
	SearchLimit    int
	WebResults     int
}

// LimitsFromConfig converts the tools section of the config.
func LimitsFromConfig(c config.ToolsConfig) Limits {
	return Limits{
		CommandTimeout: c.CommandTimeout,
		StdoutLimit:    c.StdoutLimit,
		StderrLimit:    c.StderrLimit,
		ReadMaxLines:   c.ReadMaxLines,
		ListLimit:      c.ListLimit,
		SearchLimit:    c.SearchLimit,
		WebResults:     c.WebResults,
	}
}

// DefaultLimits returns the limits of the default config.
func DefaultLimits() Limits {
	return LimitsFromConfig(config.DefaultConfig().Tools)
}

// Env is shared by every tool of a registry.
type Env struct {
	Workspace *workspace.Workspace
	Limits    Limits
	// Editor is optional.
	Editor Editor
	// HTTPClient and SearchURL serve web_search.
	HTTPClient *http.Client
	SearchURL  string
}

// NewDefaultRegistry registers the full tool catalog.
func NewDefaultRegistry(env *Env) *Registry {
	if env.HTTPClient == nil {
		env.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if env.SearchURL == "" {
		env.SearchURL = DefaultSearchURL
	}

	r := NewRegistry()
	r.MustRegister(&ReadFileTool{env: env})
	r.MustRegister(&ListFilesTool{env: env})
	r.MustRegister(&SearchFilesTool{env: env})
	r.MustRegister(&WriteFileTool{env: env})
	r.MustRegister(&DeleteFileTool{env: env})
	r.MustRegister(&ApplyEditTool{env: env})
	r.MustRegister(&InsertTextTool{env: env})
	r.MustRegister(&RunCommandTool{env: env})
	r.MustRegister(&AddTaskTool{})
	r.MustRegister(&UpdateTaskTool{})
	r.MustRegister(&WebSearchTool{env: env})
	r.MustRegister(&DiagnosticsTool{env: env})
	r.MustRegister(&SymbolsTool{env: env})
	r.MustRegister(&ReferencesTool{env: env})
	return r
}
