package provider

import (
	"bufio"
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

const anthropicVersion = "2023-06-01"

// ClaudeConfig holds configuration for the Claude Messages API.
type ClaudeConfig struct {
	APIKey      string
	BaseURL     string // Default: "https://api.anthropic.com"
	Model       string
	MaxTokens   int
	Temperature *float64 // nil leaves the server default
	HTTPTimeout time.Duration
	Retry       RetryConfig
}

// ClaudeProvider speaks the Claude Messages API with streaming enabled.
type ClaudeProvider struct {
	config     ClaudeConfig
	httpClient *http.Client
}

// NewClaude creates a Claude adapter.
func NewClaude(config ClaudeConfig) (*ClaudeProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if !strings.HasPrefix(config.BaseURL, "http://") && !strings.HasPrefix(config.BaseURL, "https://") {
		return nil, fmt.Errorf("invalid BaseURL: must start with http:// or https://")
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 120 * time.Second
	}

	return &ClaudeProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.HTTPTimeout},
	}, nil
}

func (p *ClaudeProvider) Name() string  { return "claude" }
func (p *ClaudeProvider) Model() string { return p.config.Model }
func (p *ClaudeProvider) Local() bool   { return false }

// Send streams one Messages API call and accumulates it into a Turn.
func (p *ClaudeProvider) Send(ctx context.Context, req *Request) (*Turn, error) {
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

func (p *ClaudeProvider) buildRequest(req *Request) map[string]any {
	maxTokens := p.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	body := map[string]any{
		"model":      p.config.Model,
		"max_tokens": maxTokens,
		"messages":   claudeMessages(req.Messages),
		"stream":     true,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if t := temperatureFor(p.config.Temperature, req.Temperature); t != nil {
		body["temperature"] = *t
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, def := range req.Tools {
			tools = append(tools, map[string]any{
				"name":         def.Name,
				"description":  def.Description,
				"input_schema": schemaToJSON(def.Schema),
			})
		}
		body["tools"] = tools
	}
	return body
}

func (p *ClaudeProvider) doSend(ctx context.Context, body []byte) (*Turn, error) {
	url := strings.TrimSuffix(p.config.BaseURL, "/") + "/v1/messages"
	logging.Debug("claude request", "url", url, "model", p.config.Model, "body", truncate(string(body), 2000))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err != nil {
			data = []byte("(failed to read response body)")
		}
		logging.Warn("claude API error", "status", resp.StatusCode, "body", truncate(string(data), 500))
		return nil, &HTTPError{Provider: p.Name(), StatusCode: resp.StatusCode, Body: string(data)}
	}

	return readClaudeStream(resp.Body)
}

// claudeStream accumulates Messages API stream events into a Turn.
type claudeStream struct {
	turn      Turn
	text      strings.Builder
	toolID    string
	toolName  string
	toolInput strings.Builder
	inTool    bool
	done      bool
}

// readClaudeStream reads SSE lines until message_stop or EOF. A line that is
// not valid JSON is logged and skipped.
func readClaudeStream(r io.Reader) (*Turn, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	s := &claudeStream{}
	for scanner.Scan() {
		line := scanner.Text()
		var data string
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		default:
			continue
		}
		if data == "[DONE]" {
			break
		}

		var event map[string]any
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			logging.Warn("failed to parse SSE event", "error", err, "data", truncate(data, 100))
			continue
		}
		if err := s.handle(event); err != nil {
			return nil, err
		}
		if s.done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("claude stream: %w", err)
	}

	s.finishTool()
	s.turn.Text = s.text.String()
	return &s.turn, nil
}

func (s *claudeStream) handle(event map[string]any) error {
	eventType, _ := event["type"].(string)

	switch eventType {
	case "message_start":
		if msg, ok := event["message"].(map[string]any); ok {
			if usage, ok := msg["usage"].(map[string]any); ok {
				s.turn.InputTokens = intField(usage, "input_tokens")
			}
		}

	case "content_block_start":
		block, _ := event["content_block"].(map[string]any)
		if blockType, _ := block["type"].(string); blockType == "tool_use" {
			s.inTool = true
			s.toolID, _ = block["id"].(string)
			s.toolName, _ = block["name"].(string)
			s.toolInput.Reset()
		} else if text, _ := block["text"].(string); text != "" {
			s.text.WriteString(text)
		}

	case "content_block_delta":
		delta, _ := event["delta"].(map[string]any)
		switch delta["type"] {
		case "text_delta":
			text, _ := delta["text"].(string)
			s.text.WriteString(text)
		case "input_json_delta":
			partial, _ := delta["partial_json"].(string)
			s.toolInput.WriteString(partial)
		}

	case "content_block_stop":
		s.finishTool()

	case "message_delta":
		if delta, ok := event["delta"].(map[string]any); ok {
			if reason, ok := delta["stop_reason"].(string); ok {
				s.turn.StopReason = reason
			}
		}
		if usage, ok := event["usage"].(map[string]any); ok {
			s.turn.OutputTokens = intField(usage, "output_tokens")
		}

	case "message_stop":
		s.done = true

	case "error":
		errData, _ := event["error"].(map[string]any)
		errType, _ := errData["type"].(string)
		errMsg, _ := errData["message"].(string)
		logging.Error("claude stream error event", "type", errType, "message", errMsg)
		if errType == "overloaded_error" {
			return &HTTPError{Provider: "claude", StatusCode: 529, Body: errMsg}
		}
		return fmt.Errorf("claude stream error: %s - %s", errType, errMsg)
	}
	return nil
}

func (s *claudeStream) finishTool() {
	if !s.inTool {
		return
	}
	s.turn.Invocations = append(s.turn.Invocations, llm.ToolInvocation{
		ID:        s.toolID,
		Name:      s.toolName,
		Arguments: parseArgumentString(s.toolName, s.toolInput.String()),
	})
	s.inTool = false
	s.toolID = ""
	s.toolName = ""
	s.toolInput.Reset()
}

// claudeMessages converts history to Messages API turns. System messages are
// dropped (they travel in the system field), and every result of one tool
// round becomes a single user message of tool_result blocks. Consecutive
// turns of the same role are merged since the API requires alternation.
func claudeMessages(history []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(history))

	push := func(role string, blocks []map[string]any) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1]["role"] == role {
			prev := out[n-1]["content"].([]map[string]any)
			out[n-1]["content"] = append(prev, blocks...)
			return
		}
		out = append(out, map[string]any{"role": role, "content": blocks})
	}

	for _, m := range history {
		switch m.Role {
		case llm.RoleSystem:
			continue

		case llm.RoleUser:
			if m.Content != "" {
				push("user", []map[string]any{{"type": "text", "text": m.Content}})
			}

		case llm.RoleAssistant:
			var blocks []map[string]any
			if m.Content != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": m.Content})
			}
			for _, call := range m.ToolCalls {
				input := call.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    call.ID,
					"name":  call.Name,
					"input": input,
				})
			}
			push("assistant", blocks)

		case llm.RoleTool:
			blocks := make([]map[string]any, 0, len(m.ToolResults))
			for _, r := range m.ToolResults {
				block := map[string]any{
					"type":        "tool_result",
					"tool_use_id": r.CallID,
					"content":     r.Content,
				}
				if strings.HasPrefix(r.Content, "Error:") {
					block["is_error"] = true
				}
				blocks = append(blocks, block)
			}
			push("user", blocks)
		}
	}
	return out
}

func intField(m map[string]any, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
