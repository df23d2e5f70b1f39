package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"
)

const (
	maxSearchFileSize = 1 << 20
	maxSearchLineLen  = 200
)

// SearchFilesArgs are the arguments of search_files.
type SearchFilesArgs struct {
	Query *regexp.Regexp
	Glob  string
	Path  string
}

func (SearchFilesArgs) ToolName() string { return "search_files" }

// SearchFilesTool greps workspace files for a regular expression.
type SearchFilesTool struct {
	env *Env
}

func (t *SearchFilesTool) Name() string { return "search_files" }

func (t *SearchFilesTool) Description() string {
	return "Search file contents for a regular expression. Returns matching lines as path:line: text."
}

func (t *SearchFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "Regular expression (RE2 syntax) to search for",
				},
				"glob": {
					Type:        genai.TypeString,
					Description: "Only search files matching this glob, e.g. \"**/*.py\"",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "Directory to search (default \".\")",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *SearchFilesTool) Decode(raw map[string]any) (Args, error) {
	query, err := RequireString(raw, "query", "pattern", "regex")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(query)
	if err != nil {
		return nil, NewValidationError("query", "invalid regular expression: "+err.Error())
	}
	glob, ok, err := GetString(raw, "glob", "include")
	if err != nil {
		return nil, err
	}
	if !ok || glob == "" {
		glob = "**/*"
	}
	if !doublestar.ValidatePattern(glob) {
		return nil, NewValidationError("glob", "is not a valid glob")
	}
	p, ok, err := GetString(raw, "path")
	if err != nil {
		return nil, err
	}
	if !ok || p == "" {
		p = "."
	}
	return SearchFilesArgs{Query: re, Glob: glob, Path: p}, nil
}

func (t *SearchFilesTool) Execute(ctx context.Context, a Args) Result {
	args := a.(SearchFilesArgs)

	abs, err := t.env.Workspace.Resolve(args.Path)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult("Path not found: " + args.Path)
		}
		return NewErrorResult(fmt.Sprintf("cannot access %s: %v", args.Path, err))
	}

	files, err := globFiles(abs, args.Glob)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("searching %s: %v", args.Path, err))
	}

	limit := t.env.Limits.SearchLimit
	var b strings.Builder
	matches := 0
	truncated := false

	for _, file := range files {
		if ctx.Err() != nil {
			return NewErrorResult("search cancelled")
		}
		hits := searchFile(file, args.Query)
		rel := t.env.Workspace.Rel(file)
		for _, h := range hits {
			if limit > 0 && matches >= limit {
				truncated = true
				break
			}
			fmt.Fprintf(&b, "%s:%d: %s\n", rel, h.line, h.text)
			matches++
		}
		if truncated {
			break
		}
	}

	if matches == 0 {
		return NewSuccessResult(fmt.Sprintf("No matches for %q", args.Query.String()))
	}
	if truncated {
		fmt.Fprintf(&b, "... (results limited to %d matches)\n", limit)
	}
	return NewSuccessResult(strings.TrimRight(b.String(), "\n"))
}

type searchHit struct {
	line int
	text string
}

// searchFile returns matching lines of a text file. Large and binary files
// are skipped.
func searchFile(path string, re *regexp.Regexp) []searchHit {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxSearchFileSize {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil || bytes.IndexByte(data[:min(len(data), 8000)], 0) >= 0 {
		return nil
	}

	var hits []searchHit
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxSearchFileSize)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if !re.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(line)
		if len(line) > maxSearchLineLen {
			line = strings.ToValidUTF8(line[:maxSearchLineLen], "") + "..."
		}
		hits = append(hits, searchHit{line: n, text: line})
	}
	return hits
}
