package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"forge/internal/llm"
	"forge/internal/logging"
)

// OpenAIConfig holds configuration for an OpenAI-compatible Chat Completions
// endpoint (OpenAI, DeepSeek).
type OpenAIConfig struct {
	Name        string // "openai" or "deepseek"
	APIKey      string
	BaseURL     string // including the /v1 prefix
	Model       string
	MaxTokens   int
	Temperature *float64 // nil leaves the server default
	HTTPTimeout time.Duration
	Retry       RetryConfig
}

// OpenAIProvider speaks the Chat Completions API without streaming.
type OpenAIProvider struct {
	config     OpenAIConfig
	httpClient *http.Client
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role      string           `json:"role"`
			Content   *string          `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAI creates an OpenAI-compatible adapter.
func NewOpenAI(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.Name == "" {
		config.Name = "openai"
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 120 * time.Second
	}

	return &OpenAIProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.HTTPTimeout},
	}, nil
}

func (p *OpenAIProvider) Name() string  { return p.config.Name }
func (p *OpenAIProvider) Model() string { return p.config.Model }
func (p *OpenAIProvider) Local() bool   { return false }

// Send performs one Chat Completions call.
func (p *OpenAIProvider) Send(ctx context.Context, req *Request) (*Turn, error) {
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	var turn *Turn
	err = withRetry(ctx, p.config.Retry, p.Name(), func() error {
		t, err := p.doSend(ctx, body)
		if err != nil {
			return err
		}
		turn = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("provider request completed",
		"provider", p.Name(),
		"model", p.config.Model,
		"duration", time.Since(start),
		"tool_calls", len(turn.Invocations),
		"input_tokens", turn.InputTokens,
		"output_tokens", turn.OutputTokens)
	return turn, nil
}

func (p *OpenAIProvider) buildRequest(req *Request) openAIRequest {
	r := openAIRequest{
		Model:       p.config.Model,
		Messages:    openAIMessages(req.System, req.Messages),
		Temperature: temperatureFor(p.config.Temperature, req.Temperature),
		MaxTokens:   p.config.MaxTokens,
	}
	if req.MaxTokens > 0 {
		r.MaxTokens = req.MaxTokens
	}
	for _, def := range req.Tools {
		r.Tools = append(r.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  schemaToJSON(def.Schema),
			},
		})
	}
	return r
}

func (p *OpenAIProvider) doSend(ctx context.Context, body []byte) (*Turn, error) {
	url := strings.TrimSuffix(p.config.BaseURL, "/") + "/chat/completions"
	logging.Debug("chat completions request", "provider", p.Name(), "url", url, "body", truncate(string(body), 2000))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Warn("chat completions API error", "provider", p.Name(), "status", resp.StatusCode, "body", truncate(string(data), 500))
		return nil, &HTTPError{Provider: p.Name(), StatusCode: resp.StatusCode, Body: string(data)}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", p.Name(), err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s API error: %s", p.Name(), parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", p.Name())
	}

	choice := parsed.Choices[0]
	turn := &Turn{
		StopReason:   choice.FinishReason,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}
	if choice.Message.Content != nil {
		turn.Text = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		turn.Invocations = append(turn.Invocations, llm.ToolInvocation{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseArgumentString(tc.Function.Name, tc.Function.Arguments),
		})
	}
	return turn, nil
}

// openAIMessages puts the system prompt first and expands each tool round
// into one role:tool message per result, following the assistant message
// that requested them.
func openAIMessages(system string, history []llm.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, openAIMessage{Role: "system", Content: system})
	}

	for _, m := range history {
		switch m.Role {
		case llm.RoleSystem:
			continue

		case llm.RoleUser:
			out = append(out, openAIMessage{Role: "user", Content: m.Content})

		case llm.RoleAssistant:
			msg := openAIMessage{Role: "assistant", Content: m.Content}
			for _, call := range m.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				encoded, err := json.Marshal(args)
				if err != nil {
					encoded = []byte("{}")
				}
				tc := openAIToolCall{ID: call.ID, Type: "function"}
				tc.Function.Name = call.Name
				tc.Function.Arguments = string(encoded)
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
			out = append(out, msg)

		case llm.RoleTool:
			for _, r := range m.ToolResults {
				out = append(out, openAIMessage{Role: "tool", ToolCallID: r.CallID, Content: r.Content})
			}
		}
	}
	return out
}
