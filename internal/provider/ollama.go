package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"forge/internal/llm"
	"forge/internal/logging"
)

// OllamaConfig holds configuration for an Ollama server.
type OllamaConfig struct {
	BaseURL     string // Default: "http://localhost:11434"
	APIKey      string // Optional, for remote servers behind auth
	Model       string
	Temperature *float64 // nil leaves the server default
	MaxTokens   int
	HTTPTimeout time.Duration
	Retry       RetryConfig
}

// OllamaProvider speaks the Ollama chat API through the official client.
type OllamaProvider struct {
	client      *api.Client
	config      OllamaConfig
	nativeTools bool
}

// authTransport adds an Authorization header to every request.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(clone)
}

// lenientStreamTransport drops lines of a successful NDJSON chat stream
// that are not valid JSON, so one corrupt chunk does not abort the call.
type lenientStreamTransport struct {
	base http.RoundTripper
}

func (t *lenientStreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest && strings.HasSuffix(req.URL.Path, "/api/chat") {
		resp.Body = &jsonLineFilter{src: resp.Body, r: bufio.NewReader(resp.Body)}
		resp.ContentLength = -1
	}
	return resp, nil
}

// jsonLineFilter passes through the newline-terminated lines of src that
// parse as JSON.
type jsonLineFilter struct {
	src     io.ReadCloser
	r       *bufio.Reader
	pending []byte
	err     error
}

func (f *jsonLineFilter) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		line, err := f.r.ReadBytes('\n')
		f.err = err
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			logging.Warn("dropping malformed ollama stream line", "line", truncate(string(line), 200))
			continue
		}
		f.pending = append(line, '\n')
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *jsonLineFilter) Close() error {
	return f.src.Close()
}

// NewOllama creates an Ollama adapter.
func NewOllama(config OllamaConfig) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 120 * time.Second
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if baseURL.Scheme == "http" {
		if host := baseURL.Hostname(); host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("Ollama connection uses unencrypted HTTP to remote host", "host", host)
		}
	}

	var transport http.RoundTripper = http.DefaultTransport
	if config.APIKey != "" {
		transport = &authTransport{base: transport, apiKey: config.APIKey}
	}
	httpClient := &http.Client{
		Timeout:   config.HTTPTimeout,
		Transport: &lenientStreamTransport{base: transport},
	}

	return &OllamaProvider{
		client:      api.NewClient(baseURL, httpClient),
		config:      config,
		nativeTools: SupportsNativeTools(config.Model),
	}, nil
}

func (p *OllamaProvider) Name() string  { return "ollama" }
func (p *OllamaProvider) Model() string { return p.config.Model }
func (p *OllamaProvider) Local() bool   { return true }

// Send performs one chat call. Structured tool_calls win; when the model
// returned none, the content is scanned for an embedded JSON tool call.
// Tool-call-shaped JSON is always removed from the visible text.
func (p *OllamaProvider) Send(ctx context.Context, req *Request) (*Turn, error) {
	chatReq := p.buildRequest(req)

	start := time.Now()
	var turn *Turn
	err := withRetry(ctx, p.config.Retry, p.Name(), func() error {
		t, err := p.doChat(ctx, chatReq)
		if err != nil {
			return err
		}
		turn = t
		return nil
	})
	if err != nil {
		return nil, wrapOllamaError(err)
	}

	extracted := ExtractToolCall(turn.Text)
	turn.Text = extracted.Text
	if len(turn.Invocations) == 0 && extracted.Invocation != nil {
		logging.Debug("tool call extracted from content", "tool", extracted.Invocation.Name)
		turn.Invocations = []llm.ToolInvocation{*extracted.Invocation}
	}
	for i := range turn.Invocations {
		if turn.Invocations[i].ID == "" {
			turn.Invocations[i].ID = "call_" + uuid.NewString()[:8]
		}
	}

	logging.Info("provider request completed",
		"provider", p.Name(),
		"model", p.config.Model,
		"duration", time.Since(start),
		"tool_calls", len(turn.Invocations),
		"malformed_tool_call", extracted.Malformed,
		"input_tokens", turn.InputTokens,
		"output_tokens", turn.OutputTokens)
	return turn, nil
}

func (p *OllamaProvider) buildRequest(req *Request) *api.ChatRequest {
	system := req.System
	if !p.nativeTools {
		system += ToolCallPrompt(req.Tools)
	}

	maxTokens := p.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	chatReq := &api.ChatRequest{
		Model:    p.config.Model,
		Messages: p.messages(system, req.Messages),
		Stream:   ptr(true),
		Options: map[string]any{
			"num_predict": maxTokens,
		},
	}
	if t := temperatureFor(p.config.Temperature, req.Temperature); t != nil {
		chatReq.Options["temperature"] = *t
	}
	if p.nativeTools && len(req.Tools) > 0 {
		chatReq.Tools = toOllamaTools(req.Tools)
	}
	return chatReq
}

func (p *OllamaProvider) doChat(ctx context.Context, req *api.ChatRequest) (*Turn, error) {
	turn := &Turn{}
	var content strings.Builder

	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		for _, tc := range resp.Message.ToolCalls {
			turn.Invocations = append(turn.Invocations, llm.ToolInvocation{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments.ToMap(),
			})
		}
		if resp.Done {
			turn.StopReason = resp.DoneReason
			turn.InputTokens = resp.PromptEvalCount
			turn.OutputTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	turn.Text = content.String()
	return turn, nil
}

// messages converts history to Ollama messages. Tool results go out as one
// role:tool message each, without a correlation id requirement. For models
// without native tool support, earlier tool calls are replayed as the JSON
// text the model is asked to produce.
func (p *OllamaProvider) messages(system string, history []llm.Message) []api.Message {
	out := make([]api.Message, 0, len(history)+1)
	if system != "" {
		out = append(out, api.Message{Role: "system", Content: system})
	}

	for _, m := range history {
		switch m.Role {
		case llm.RoleSystem:
			continue

		case llm.RoleUser:
			out = append(out, api.Message{Role: "user", Content: m.Content})

		case llm.RoleAssistant:
			msg := api.Message{Role: "assistant", Content: m.Content}
			for _, call := range m.ToolCalls {
				if p.nativeTools {
					args := api.NewToolCallFunctionArguments()
					for k, v := range call.Arguments {
						args.Set(k, v)
					}
					msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
						ID:       call.ID,
						Function: api.ToolCallFunction{Name: call.Name, Arguments: args},
					})
					continue
				}
				encoded, _ := json.Marshal(map[string]any{"name": call.Name, "arguments": call.Arguments})
				if msg.Content != "" {
					msg.Content += "\n"
				}
				msg.Content += "```json\n" + string(encoded) + "\n```"
			}
			out = append(out, msg)

		case llm.RoleTool:
			for _, r := range m.ToolResults {
				content := r.Content
				if !p.nativeTools {
					content = fmt.Sprintf("Tool result for %s:\n%s", r.Name, r.Content)
				}
				out = append(out, api.Message{
					Role:       "tool",
					Content:    content,
					ToolName:   r.Name,
					ToolCallID: r.CallID,
				})
			}
		}
	}
	return out
}

// ListModels returns the models installed on the server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, wrapOllamaError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Healthcheck verifies that the server answers.
func (p *OllamaProvider) Healthcheck(ctx context.Context) error {
	_, err := p.client.List(ctx)
	return wrapOllamaError(err)
}

// wrapOllamaError adds a hint for the common local failure modes.
func wrapOllamaError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("Ollama server is not running (start it with `ollama serve`): %w", err)
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return fmt.Errorf("Ollama request timed out, the model may still be loading: %w", err)
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("model not found, pull it with `ollama pull`: %w", err)
	}
	return err
}

func ptr[T any](v T) *T {
	return &v
}
