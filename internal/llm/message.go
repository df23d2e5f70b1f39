// Package llm holds the provider-agnostic conversation model shared by the
// agent loop, the tool executor and every provider adapter.
package llm

import (
	"time"

	"google.golang.org/genai"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation. Messages are append-only.
//
// An assistant message may carry the tool invocations the model requested.
// A tool message carries every result produced in one loop round; adapters
// decide whether to send those results as one wire message or one per call.
type Message struct {
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	ToolCalls   []ToolInvocation `json:"tool_calls,omitempty"`
	ToolResults []ToolResult     `json:"tool_results,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewMessage returns a plain text message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// ToolInvocation is a model-requested call. ID is empty for protocols that do
// not correlate results to calls.
type ToolInvocation struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the text outcome of one executed invocation.
type ToolResult struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ToolDefinition is the declarative contract of a tool, shared by all
// adapters. Schema is reshaped per wire protocol.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      *genai.Schema
}

// TrimHistory keeps the last turns user/assistant messages of history,
// dropping system and tool messages and assistant tool-call scaffolding.
// A turn is one user or one assistant message. The result never starts with
// an assistant message.
func TrimHistory(history []Message, turns int) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		if m.Content == "" {
			continue
		}
		out = append(out, Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	if turns > 0 && len(out) > turns {
		out = out[len(out)-turns:]
	}
	for len(out) > 0 && out[0].Role == RoleAssistant {
		out = out[1:]
	}
	return out
}
