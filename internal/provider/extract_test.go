package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToolCall(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTool  string
		wantArgs  map[string]any
		wantText  string
		malformed bool
	}{
		{
			name:     "plain text",
			content:  "Nothing to do here.",
			wantText: "Nothing to do here.",
		},
		{
			name:     "fenced name and arguments",
			content:  "Let me look.\n```json\n{\"name\": \"read_file\", \"arguments\": {\"path\": \"x.py\"}}\n```",
			wantTool: "read_file",
			wantArgs: map[string]any{"path": "x.py"},
			wantText: "Let me look.",
		},
		{
			name:     "bare tool and args",
			content:  `I'll list. {"tool": "list_files", "args": {"path": "."}} done`,
			wantTool: "list_files",
			wantArgs: map[string]any{"path": "."},
			wantText: "I'll list.  done",
		},
		{
			name:     "nested function with string arguments",
			content:  `{"function": {"name": "run_command", "arguments": "{\"command\": \"ls\"}"}}`,
			wantTool: "run_command",
			wantArgs: map[string]any{"command": "ls"},
			wantText: "",
		},
		{
			name:     "braces inside strings",
			content:  `{"name": "write_file", "arguments": {"path": "a.go", "content": "func f() { }"}}`,
			wantTool: "write_file",
			wantArgs: map[string]any{"path": "a.go", "content": "func f() { }"},
		},
		{
			name:     "ordinary json is kept",
			content:  `The config is {"port": 8080}.`,
			wantText: `The config is {"port": 8080}.`,
		},
		{
			name:      "unterminated tool call is stripped",
			content:   `Reading now {"name": "read_file", "arguments": {"path": "x`,
			wantText:  "Reading now",
			malformed: true,
		},
		{
			name:     "malformed string arguments become empty object",
			content:  `{"name": "list_files", "arguments": "{not json"}`,
			wantTool: "list_files",
			wantArgs: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractToolCall(tt.content)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.malformed, got.Malformed)
			if tt.wantTool == "" {
				assert.Nil(t, got.Invocation)
				return
			}
			require.NotNil(t, got.Invocation)
			assert.Equal(t, tt.wantTool, got.Invocation.Name)
			assert.Equal(t, tt.wantArgs, got.Invocation.Arguments)
		})
	}
}

func TestExtractToolCallKeepsFirstOfMany(t *testing.T) {
	content := `{"name": "read_file", "arguments": {"path": "a"}}
{"name": "read_file", "arguments": {"path": "b"}}`

	got := ExtractToolCall(content)
	require.NotNil(t, got.Invocation)
	assert.Equal(t, "a", got.Invocation.Arguments["path"])
	assert.Empty(t, got.Text)
}
