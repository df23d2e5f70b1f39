package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"forge/internal/fileutil"
)

// ApplyEditArgs are the arguments of apply_edit.
type ApplyEditArgs struct {
	Path    string
	OldText string
	NewText string
}

func (ApplyEditArgs) ToolName() string { return "apply_edit" }

// ApplyEditTool replaces one unique occurrence of a text in a file. Unlike
// write_file it writes to disk immediately.
type ApplyEditTool struct {
	env *Env
}

func (t *ApplyEditTool) Name() string { return "apply_edit" }

func (t *ApplyEditTool) Description() string {
	return "Replace old_text with new_text in a file. old_text must occur exactly once; include surrounding lines to make it unique. Applied immediately."
}

func (t *ApplyEditTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "File path relative to the workspace root",
				},
				"old_text": {
					Type:        genai.TypeString,
					Description: "Exact text to replace; must occur once in the file",
				},
				"new_text": {
					Type:        genai.TypeString,
					Description: "Replacement text",
				},
			},
			Required: []string{"path", "old_text", "new_text"},
		},
	}
}

func (t *ApplyEditTool) Decode(raw map[string]any) (Args, error) {
	path, err := RequireString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	oldText, ok, err := GetString(raw, "old_text", "old_string", "search")
	if err != nil {
		return nil, err
	}
	if !ok || oldText == "" {
		return nil, NewValidationError("old_text", "is required")
	}
	newText, ok, err := GetString(raw, "new_text", "new_string", "replace")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewValidationError("new_text", "is required")
	}
	if oldText == newText {
		return nil, NewValidationError("new_text", "must be different from old_text")
	}
	return ApplyEditArgs{Path: path, OldText: oldText, NewText: newText}, nil
}

func (t *ApplyEditTool) Execute(ctx context.Context, a Args) Result {
	args := a.(ApplyEditArgs)

	abs, content, res := t.env.loadForEdit(args.Path)
	if res != nil {
		return *res
	}
	rel := t.env.Workspace.Rel(abs)

	switch n := strings.Count(content, args.OldText); {
	case n == 0:
		return NewErrorResult("old_text not found in " + rel)
	case n > 1:
		return NewErrorResult(fmt.Sprintf("old_text appears %d times in %s; include more surrounding context to make it unique", n, rel))
	}

	updated := strings.Replace(content, args.OldText, args.NewText, 1)
	if err := writeInPlace(abs, updated); err != nil {
		return NewErrorResult(fmt.Sprintf("writing %s: %v", rel, err))
	}
	recordEdited(ctx, rel)
	return NewSuccessResult("Success: Edited " + rel)
}

// InsertTextArgs are the arguments of insert_text.
type InsertTextArgs struct {
	Path string
	Line int
	Text string
}

func (InsertTextArgs) ToolName() string { return "insert_text" }

// InsertTextTool inserts text before a line of a file, on disk.
type InsertTextTool struct {
	env *Env
}

func (t *InsertTextTool) Name() string { return "insert_text" }

func (t *InsertTextTool) Description() string {
	return "Insert text before the given 1-based line of a file. Use line = number of lines + 1 to append. Applied immediately."
}

func (t *InsertTextTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "File path relative to the workspace root",
				},
				"line": {
					Type:        genai.TypeInteger,
					Description: "1-based line number to insert before",
				},
				"text": {
					Type:        genai.TypeString,
					Description: "Text to insert",
				},
			},
			Required: []string{"path", "line", "text"},
		},
	}
}

func (t *InsertTextTool) Decode(raw map[string]any) (Args, error) {
	path, err := RequireString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	line, ok, err := GetInt(raw, "line")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewValidationError("line", "is required")
	}
	if line < 1 {
		return nil, NewValidationError("line", "must be at least 1")
	}
	text, ok, err := GetString(raw, "text", "content")
	if err != nil {
		return nil, err
	}
	if !ok || text == "" {
		return nil, NewValidationError("text", "is required")
	}
	return InsertTextArgs{Path: path, Line: line, Text: text}, nil
}

func (t *InsertTextTool) Execute(ctx context.Context, a Args) Result {
	args := a.(InsertTextArgs)

	abs, content, res := t.env.loadForEdit(args.Path)
	if res != nil {
		return *res
	}
	rel := t.env.Workspace.Rel(abs)

	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if args.Line > len(lines)+1 {
		return NewErrorResult(fmt.Sprintf("line %d is out of range, %s has %d lines", args.Line, rel, len(lines)))
	}

	text := args.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	idx := args.Line - 1
	if idx == len(lines) && idx > 0 && !strings.HasSuffix(lines[idx-1], "\n") {
		lines[idx-1] += "\n"
	}

	var b strings.Builder
	for _, l := range lines[:idx] {
		b.WriteString(l)
	}
	b.WriteString(text)
	for _, l := range lines[idx:] {
		b.WriteString(l)
	}

	if err := writeInPlace(abs, b.String()); err != nil {
		return NewErrorResult(fmt.Sprintf("writing %s: %v", rel, err))
	}
	recordEdited(ctx, rel)
	return NewSuccessResult(fmt.Sprintf("Success: Inserted %d line(s) at line %d of %s", strings.Count(text, "\n"), args.Line, rel))
}

// loadForEdit resolves and reads an existing file. A non-nil Result reports
// the failure.
func (e *Env) loadForEdit(path string) (string, string, *Result) {
	abs, err := e.Workspace.Resolve(path)
	if err != nil {
		r := NewErrorResult(err.Error())
		return "", "", &r
	}
	content, err := readExisting(abs)
	if err != nil {
		r := NewErrorResult(err.Error())
		return "", "", &r
	}
	if content == nil {
		r := NewErrorResult("File not found: " + path)
		return "", "", &r
	}
	return abs, *content, nil
}

func writeInPlace(abs, content string) error {
	return fileutil.AtomicWrite(abs, []byte(content), fileutil.FileMode(abs, 0644))
}

// recordEdited notes the file on the session, if any. Direct edits work
// without a thread.
func recordEdited(ctx context.Context, rel string) {
	if s, ok := SessionFrom(ctx); ok {
		if err := s.RecordEditedFile(rel); err != nil {
			s.Notify("warn", fmt.Sprintf("could not record edited file %s: %v", rel, err))
		}
	}
}
