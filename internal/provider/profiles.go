package provider

import (
	"fmt"
	"sort"
	"strings"

	"forge/internal/llm"
)

// nativeToolSupport maps Ollama model name prefixes to whether the model
// fills the structured tool_calls field. Models without it are prompted to
// write tool calls as JSON in their content.
var nativeToolSupport = map[string]bool{
	"llama3.2":       true,
	"llama3.1":       true,
	"llama3":         true,
	"llama2":         false,
	"qwen2.5-coder":  true,
	"qwen2.5":        true,
	"qwen2":          true,
	"qwen3":          true,
	"qwen":           false,
	"mistral-nemo":   true,
	"mistral":        true,
	"mixtral":        true,
	"phi4":           true,
	"phi3":           false,
	"codellama":      false,
	"starcoder2":     false,
	"deepseek-coder": false,
	"codegemma":      false,
	"gemma":          false,
	"command-r":      true,
}

// SupportsNativeTools reports whether an Ollama model supports structured
// tool calls, by longest prefix of the untagged model name. Unknown models
// are assumed not to.
func SupportsNativeTools(model string) bool {
	base := strings.ToLower(model)
	if idx := strings.Index(base, ":"); idx > 0 {
		base = base[:idx]
	}
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}

	best := ""
	for prefix := range nativeToolSupport {
		if strings.HasPrefix(base, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return false
	}
	return nativeToolSupport[best]
}

// ToolCallPrompt is appended to the system prompt of models that write tool
// calls into their content.
func ToolCallPrompt(defs []llm.ToolDefinition) string {
	if len(defs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\n## Tool Calling\n\n")
	sb.WriteString("To call a tool, reply with ONLY a JSON object in a code block:\n\n")
	sb.WriteString("```json\n{\"name\": \"tool_name\", \"arguments\": {\"param\": \"value\"}}\n```\n\n")
	sb.WriteString("Call one tool at a time and wait for its result. Use the exact parameter names below.\n\n")

	for _, def := range defs {
		fmt.Fprintf(&sb, "### %s\n%s\n", def.Name, def.Description)
		if def.Schema == nil || len(def.Schema.Properties) == 0 {
			sb.WriteString("\n")
			continue
		}
		required := make(map[string]bool, len(def.Schema.Required))
		for _, r := range def.Schema.Required {
			required[r] = true
		}
		names := make([]string, 0, len(def.Schema.Properties))
		for name := range def.Schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			mark := ""
			if required[name] {
				mark = " (required)"
			}
			fmt.Fprintf(&sb, "- `%s`%s: %s\n", name, mark, def.Schema.Properties[name].Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
