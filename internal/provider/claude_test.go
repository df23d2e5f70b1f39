package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/llm"
)

const claudeToolStream = `event: message_start
data: {"type":"message_start","message":{"usage":{"input_tokens":42}}}

data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Reading "}}

data: not-json

data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"both files."}}

data: {"type":"content_block_stop","index":0}

data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"read_file"}}

data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\":"}}

data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"a.py\"}"}}

data: {"type":"content_block_stop","index":1}

data: {"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_2","name":"read_file"}}

data: {"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{broken"}}

data: {"type":"content_block_stop","index":2}

data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":17}}

data: {"type":"message_stop"}

`

func TestClaudeSendParsesStream(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, claudeToolStream)
	}))
	defer srv.Close()

	p, err := NewClaude(ClaudeConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "claude-test"})
	require.NoError(t, err)

	turn, err := p.Send(context.Background(), &Request{
		System:   "be brief",
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, "read a.py and b.py")},
		Tools:    []llm.ToolDefinition{{Name: "read_file", Description: "Read a file."}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Reading both files.", turn.Text)
	assert.Equal(t, "tool_use", turn.StopReason)
	assert.Equal(t, 42, turn.InputTokens)
	assert.Equal(t, 17, turn.OutputTokens)
	require.Len(t, turn.Invocations, 2)
	assert.Equal(t, llm.ToolInvocation{ID: "toolu_1", Name: "read_file", Arguments: map[string]any{"path": "a.py"}}, turn.Invocations[0])
	assert.Equal(t, map[string]any{}, turn.Invocations[1].Arguments)

	assert.Equal(t, "be brief", gotBody["system"])
	assert.Equal(t, true, gotBody["stream"])
	tools := gotBody["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "read_file", tools[0].(map[string]any)["name"])
}

func TestClaudeSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"authentication_error"}}`)
	}))
	defer srv.Close()

	p, err := NewClaude(ClaudeConfig{APIKey: "bad", BaseURL: srv.URL, Model: "claude-test"})
	require.NoError(t, err)

	_, err = p.Send(context.Background(), &Request{Messages: []llm.Message{llm.NewMessage(llm.RoleUser, "hi")}})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.False(t, IsRetryable(err))
}

func TestClaudeMessagesBatchesToolResults(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleSystem, Content: "ignored"},
		{Role: llm.RoleUser, Content: "read both"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolInvocation{
			{ID: "t1", Name: "read_file", Arguments: map[string]any{"path": "a"}},
			{ID: "t2", Name: "read_file"},
		}},
		{Role: llm.RoleTool, ToolResults: []llm.ToolResult{
			{CallID: "t1", Name: "read_file", Content: "aaa"},
			{CallID: "t2", Name: "read_file", Content: "Error: File not found: b"},
		}},
	}

	out := claudeMessages(history)
	require.Len(t, out, 3)
	assert.Equal(t, "user", out[0]["role"])
	assert.Equal(t, "assistant", out[1]["role"])

	results := out[2]["content"].([]map[string]any)
	assert.Equal(t, "user", out[2]["role"])
	require.Len(t, results, 2)
	assert.Equal(t, "t1", results[0]["tool_use_id"])
	assert.Nil(t, results[0]["is_error"])
	assert.Equal(t, true, results[1]["is_error"])

	uses := out[1]["content"].([]map[string]any)
	assert.Equal(t, map[string]any{}, uses[1]["input"])
}

func TestClaudeStreamOverloaded(t *testing.T) {
	stream := `data: {"type":"error","error":{"type":"overloaded_error","message":"busy"}}` + "\n"
	_, err := readClaudeStream(strings.NewReader(stream))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}
