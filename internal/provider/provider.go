// Package provider adapts the provider-agnostic conversation model to the
// Claude Messages, OpenAI Chat Completions and Ollama chat wire protocols.
package provider

import (
	"context"
	"time"

	"forge/internal/llm"
)

// Provider sends one conversation round to a model.
type Provider interface {
	// Name identifies the provider ("claude", "openai", "deepseek", "ollama").
	Name() string
	// Model returns the configured model name.
	Model() string
	// Local reports whether the provider runs on this machine. Local
	// providers are the fallback target and are never themselves retried
	// against another provider.
	Local() bool
	// Send performs one request/response cycle. A non-nil error is always a
	// transport failure; parse problems are absorbed by the adapter.
	Send(ctx context.Context, req *Request) (*Turn, error)
}

// Request is one provider call. A nil Temperature uses the adapter's
// configured value.
type Request struct {
	System      string
	Messages    []llm.Message
	Tools       []llm.ToolDefinition
	Temperature *float64
	MaxTokens   int
}

// Turn is the parsed model response of one call.
type Turn struct {
	Text         string
	Invocations  []llm.ToolInvocation
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Message returns the assistant message to append to the running history.
func (t *Turn) Message() llm.Message {
	return llm.Message{
		Role:      llm.RoleAssistant,
		Content:   t.Text,
		ToolCalls: t.Invocations,
		Timestamp: time.Now(),
	}
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
	Healthcheck(ctx context.Context) error
}

// temperatureFor picks the request temperature over the configured one. A
// zero temperature is a real value and is sent as such.
func temperatureFor(configured, requested *float64) *float64 {
	if requested != nil {
		return requested
	}
	return configured
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
