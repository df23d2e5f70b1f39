package provider

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"forge/internal/logging"
	"forge/internal/llm"
)

// ExtractResult is the outcome of scanning free text for a tool call that a
// model wrote into its content instead of the structured tool_calls field.
type ExtractResult struct {
	// Invocation is nil when the text holds no parseable tool call.
	Invocation *llm.ToolInvocation
	// Text is the content with every tool-call-shaped fragment removed.
	Text string
	// Malformed is set when a tool-call-shaped fragment could not be parsed.
	// It is independent of Invocation: text can hold one good call and one
	// broken one.
	Malformed bool
}

var (
	fencedPattern   = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\n?\\s*(\\{.*?\\})\\s*```")
	nameKeyPattern  = regexp.MustCompile(`"(?:name|tool)"\s*:\s*"`)
	argsKeyPattern  = regexp.MustCompile(`"(?:arguments|args|parameters)"\s*:`)
	funcKeyPattern  = regexp.MustCompile(`"function"\s*:\s*\{`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
)

type span struct {
	start, end int
	body       string
	complete   bool
}

// ExtractToolCall finds a tool call embedded in free text. Accepted shapes,
// fenced or bare:
//
//	{"name": "read_file", "arguments": {"path": "x.py"}}
//	{"tool": "read_file", "args": {"path": "x.py"}}
//	{"function": {"name": "read_file", "arguments": "{\"path\":\"x.py\"}"}}
func ExtractToolCall(content string) ExtractResult {
	result := ExtractResult{Text: content}
	if !strings.Contains(content, "{") {
		return result
	}

	spans := findToolSpans(content)
	if len(spans) == 0 {
		return result
	}

	for _, s := range spans {
		if !s.complete {
			result.Malformed = true
			continue
		}
		inv, ok := parseToolCall(s.body)
		if !ok {
			result.Malformed = true
			continue
		}
		if result.Invocation == nil {
			result.Invocation = inv
		} else {
			logging.Debug("ignoring additional tool call in content", "tool", inv.Name)
		}
	}

	if result.Malformed {
		logging.Warn("malformed tool call in model content", "preview", truncate(content, 200))
	}

	result.Text = stripSpans(content, spans)
	return result
}

// findToolSpans returns the byte ranges of tool-call-shaped JSON in text,
// fenced blocks first, then bare objects outside those blocks.
func findToolSpans(text string) []span {
	var spans []span

	for _, m := range fencedPattern.FindAllStringSubmatchIndex(text, -1) {
		body := text[m[2]:m[3]]
		if looksLikeToolCall(body) {
			spans = append(spans, span{start: m[0], end: m[1], body: body, complete: true})
		}
	}

	covered := func(i int) bool {
		for _, s := range spans {
			if i >= s.start && i < s.end {
				return true
			}
		}
		return false
	}

	i := 0
	for i < len(text) {
		if text[i] != '{' || covered(i) {
			i++
			continue
		}
		end, ok := matchBrace(text, i)
		if !ok {
			// Unterminated object: strip it if it is clearly a tool call.
			rest := text[i:]
			if looksLikeToolCall(rest) {
				spans = append(spans, span{start: i, end: len(text), body: rest})
				break
			}
			i++
			continue
		}
		body := text[i : end+1]
		if looksLikeToolCall(body) {
			spans = append(spans, span{start: i, end: end + 1, body: body, complete: true})
		}
		i = end + 1
	}

	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	return spans
}

// matchBrace returns the index of the brace closing the object opened at
// start, skipping braces inside JSON strings.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for j := start; j < len(text); j++ {
		ch := text[j]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, true
			}
		}
	}
	return 0, false
}

func looksLikeToolCall(s string) bool {
	if funcKeyPattern.MatchString(s) {
		return true
	}
	return nameKeyPattern.MatchString(s) && argsKeyPattern.MatchString(s)
}

func parseToolCall(body string) (*llm.ToolInvocation, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &raw); err != nil {
		return nil, false
	}

	if fn, ok := raw["function"].(map[string]any); ok {
		raw = fn
	}

	name, _ := raw["name"].(string)
	if name == "" {
		name, _ = raw["tool"].(string)
	}
	if name == "" {
		return nil, false
	}

	var args any
	for _, key := range []string{"arguments", "args", "parameters"} {
		if v, ok := raw[key]; ok {
			args = v
			break
		}
	}

	return &llm.ToolInvocation{Name: name, Arguments: decodeArguments(name, args)}, true
}

// decodeArguments accepts an object or a JSON-encoded object string.
// Anything else degrades to an empty object.
func decodeArguments(tool string, v any) map[string]any {
	switch a := v.(type) {
	case map[string]any:
		return a
	case string:
		return parseArgumentString(tool, a)
	case nil:
		return map[string]any{}
	default:
		logging.Warn("tool arguments are not an object", "tool", tool)
		return map[string]any{}
	}
}

// parseArgumentString decodes a JSON-encoded argument object, logging and
// returning an empty object when it is malformed.
func parseArgumentString(tool, s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
		logging.Warn("malformed tool arguments, using empty object",
			"tool", tool, "error", err, "arguments", truncate(s, 200))
		return map[string]any{}
	}
	return args
}

func stripSpans(text string, spans []span) string {
	var b strings.Builder
	last := 0
	for _, s := range spans {
		if s.start < last {
			continue
		}
		b.WriteString(text[last:s.start])
		last = s.end
	}
	b.WriteString(text[last:])

	out := blankRunPattern.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}
