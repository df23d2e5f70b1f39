package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"
)

// ListFilesArgs are the arguments of list_files.
type ListFilesArgs struct {
	Path    string
	Pattern string
}

func (ListFilesArgs) ToolName() string { return "list_files" }

// ListFilesTool lists workspace files matching a glob, recursively.
type ListFilesTool struct {
	env *Env
}

func (t *ListFilesTool) Name() string { return "list_files" }

func (t *ListFilesTool) Description() string {
	return "List files under a directory, recursively. Hidden files, node_modules and __pycache__ are skipped."
}

func (t *ListFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "Directory relative to the workspace root (default \".\")",
				},
				"pattern": {
					Type:        genai.TypeString,
					Description: "Glob pattern such as \"*.go\" or \"src/**/*.ts\" (default all files)",
				},
			},
		},
	}
}

func (t *ListFilesTool) Decode(raw map[string]any) (Args, error) {
	p, ok, err := GetString(raw, "path", "directory")
	if err != nil {
		return nil, err
	}
	if !ok || p == "" {
		p = "."
	}
	pattern, ok, err := GetString(raw, "pattern", "glob")
	if err != nil {
		return nil, err
	}
	if !ok || pattern == "" {
		pattern = "**/*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, NewValidationError("pattern", "is not a valid glob")
	}
	return ListFilesArgs{Path: p, Pattern: pattern}, nil
}

func (t *ListFilesTool) Execute(ctx context.Context, a Args) Result {
	args := a.(ListFilesArgs)

	abs, err := t.env.Workspace.Resolve(args.Path)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult("Path not found: " + args.Path)
		}
		return NewErrorResult(fmt.Sprintf("cannot access %s: %v", args.Path, err))
	}
	if !info.IsDir() {
		return NewSuccessResult(t.env.Workspace.Rel(abs))
	}

	files, err := globFiles(abs, args.Pattern)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("listing %s: %v", args.Path, err))
	}
	if len(files) == 0 {
		return NewSuccessResult("No files found")
	}

	rels := make([]string, len(files))
	for i, f := range files {
		rels[i] = t.env.Workspace.Rel(f)
	}

	limit := t.env.Limits.ListLimit
	var b strings.Builder
	for i, rel := range rels {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&b, "... (%d more files)\n", len(rels)-limit)
			break
		}
		b.WriteString(rel)
		b.WriteString("\n")
	}
	return NewSuccessResult(strings.TrimRight(b.String(), "\n"))
}

// globFiles returns the absolute paths of regular files under dir matching
// pattern, sorted. A pattern without "**" or "/" matches at any depth.
func globFiles(dir, pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		if ignoredPath(m) {
			continue
		}
		files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
	}
	sort.Strings(files)
	return files, nil
}

// ignoredPath reports whether a slash-separated relative path lies in a
// hidden or dependency directory.
func ignoredPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
		if part == "node_modules" || part == "__pycache__" {
			return true
		}
	}
	return false
}
