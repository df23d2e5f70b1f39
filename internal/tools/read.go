package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"
)

// ReadFileArgs are the arguments of read_file.
type ReadFileArgs struct {
	Path     string
	MaxLines int
}

func (ReadFileArgs) ToolName() string { return "read_file" }

// ReadFileTool returns the contents of a workspace file.
type ReadFileTool struct {
	env *Env
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file in the workspace. Long files are truncated to max_lines."
}

func (t *ReadFileTool) Declaration() *genai.FunctionDeclaration {
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
				"max_lines": {
					Type:        genai.TypeInteger,
					Description: "Maximum number of lines to return",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadFileTool) Decode(raw map[string]any) (Args, error) {
	path, err := RequireString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	maxLines, err := GetIntDefault(raw, "max_lines", t.env.Limits.ReadMaxLines)
	if err != nil {
		return nil, err
	}
	if maxLines < 0 {
		return nil, NewValidationError("max_lines", "must not be negative")
	}
	return ReadFileArgs{Path: path, MaxLines: maxLines}, nil
}

func (t *ReadFileTool) Execute(ctx context.Context, a Args) Result {
	args := a.(ReadFileArgs)

	abs, err := t.env.Workspace.Resolve(args.Path)
	if err != nil {
		return NewErrorResult(err.Error())
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult("File not found: " + args.Path)
		}
		return NewErrorResult(fmt.Sprintf("cannot access %s: %v", args.Path, err))
	}
	if info.IsDir() {
		return NewErrorResult(args.Path + " is a directory, use list_files")
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("reading file: %v", err))
	}
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}

	return NewSuccessResult(truncateLines(content, args.MaxLines))
}

// truncateLines keeps the first max lines and notes how many were dropped.
// max <= 0 means no limit.
func truncateLines(content string, max int) string {
	if max <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= max {
		return content
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-max)
}
