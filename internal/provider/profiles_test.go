package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"forge/internal/llm"
)

func TestSupportsNativeTools(t *testing.T) {
	cases := map[string]bool{
		"llama3.1:8b":            true,
		"qwen2.5-coder:7b":       true,
		"qwen:4b":                false,
		"codellama":              false,
		"library/mistral:latest": true,
		"something-new":          false,
	}
	for model, want := range cases {
		assert.Equal(t, want, SupportsNativeTools(model), model)
	}
}

func TestToolCallPrompt(t *testing.T) {
	assert.Empty(t, ToolCallPrompt(nil))

	prompt := ToolCallPrompt([]llm.ToolDefinition{{
		Name:        "read_file",
		Description: "Read a file.",
		Schema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path":      {Type: genai.TypeString, Description: "File path"},
				"max_lines": {Type: genai.TypeInteger, Description: "Line cap"},
			},
			Required: []string{"path"},
		},
	}})

	assert.Contains(t, prompt, `{"name": "tool_name", "arguments": {"param": "value"}}`)
	assert.Contains(t, prompt, "### read_file")
	assert.Contains(t, prompt, "- `path` (required): File path")
	assert.Contains(t, prompt, "- `max_lines`: Line cap")
}

func TestSchemaToJSON(t *testing.T) {
	got := schemaToJSON(&genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"line": {Type: genai.TypeInteger},
		},
		Required: []string{"line"},
	})
	assert.Equal(t, "object", got["type"])
	assert.Equal(t, map[string]any{"line": map[string]any{"type": "integer"}}, got["properties"])
	assert.Equal(t, []string{"line"}, got["required"])

	empty := schemaToJSON(nil)
	assert.Equal(t, "object", empty["type"])
}
