package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DiagnosticsArgs are the arguments of get_diagnostics.
type DiagnosticsArgs struct {
	Path string
}

func (DiagnosticsArgs) ToolName() string { return "get_diagnostics" }

// DiagnosticsTool asks the attached editor for errors and warnings.
type DiagnosticsTool struct {
	env *Env
}

func (t *DiagnosticsTool) Name() string { return "get_diagnostics" }

func (t *DiagnosticsTool) Description() string {
	return "Get compiler and linter diagnostics reported by the editor, for one file or the whole workspace."
}

func (t *DiagnosticsTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "File path; omit for all files",
				},
			},
		},
	}
}

func (t *DiagnosticsTool) Decode(raw map[string]any) (Args, error) {
	path, _, err := GetString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	return DiagnosticsArgs{Path: path}, nil
}

func (t *DiagnosticsTool) Execute(ctx context.Context, a Args) Result {
	args := a.(DiagnosticsArgs)

	if t.env.Editor == nil {
		return errNoEditor("diagnostics")
	}

	target := ""
	if args.Path != "" {
		abs, err := t.env.Workspace.Resolve(args.Path)
		if err != nil {
			return NewErrorResult(err.Error())
		}
		target = abs
	}

	out, err := t.env.Editor.Diagnostics(ctx, target)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("diagnostics: %v", err))
	}
	if out == "" {
		return NewSuccessResult("No diagnostics")
	}
	return NewSuccessResult(out)
}

// SymbolsArgs are the arguments of get_symbols.
type SymbolsArgs struct {
	Path string
}

func (SymbolsArgs) ToolName() string { return "get_symbols" }

// SymbolsTool asks the attached editor for a file's outline.
type SymbolsTool struct {
	env *Env
}

func (t *SymbolsTool) Name() string { return "get_symbols" }

func (t *SymbolsTool) Description() string {
	return "List the functions, types and other declarations of a file, as indexed by the editor."
}

func (t *SymbolsTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "File path relative to the workspace",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *SymbolsTool) Decode(raw map[string]any) (Args, error) {
	path, err := RequireString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	return SymbolsArgs{Path: path}, nil
}

func (t *SymbolsTool) Execute(ctx context.Context, a Args) Result {
	args := a.(SymbolsArgs)

	if t.env.Editor == nil {
		return errNoEditor("symbols")
	}
	abs, err := t.env.Workspace.Resolve(args.Path)
	if err != nil {
		return NewErrorResult(err.Error())
	}

	out, err := t.env.Editor.Symbols(ctx, abs)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("symbols: %v", err))
	}
	if out == "" {
		return NewSuccessResult("No symbols in " + args.Path)
	}
	return NewSuccessResult(out)
}

// ReferencesArgs are the arguments of find_references.
type ReferencesArgs struct {
	Path   string
	Symbol string
}

func (ReferencesArgs) ToolName() string { return "find_references" }

// ReferencesTool asks the attached editor where a symbol is used.
type ReferencesTool struct {
	env *Env
}

func (t *ReferencesTool) Name() string { return "find_references" }

func (t *ReferencesTool) Description() string {
	return "Find every usage of a symbol across the workspace, starting from the file that declares or uses it."
}

func (t *ReferencesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "File containing the symbol",
				},
				"symbol": {
					Type:        genai.TypeString,
					Description: "Symbol name",
				},
			},
			Required: []string{"path", "symbol"},
		},
	}
}

func (t *ReferencesTool) Decode(raw map[string]any) (Args, error) {
	path, err := RequireString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	symbol, err := RequireString(raw, "symbol", "name")
	if err != nil {
		return nil, err
	}
	return ReferencesArgs{Path: path, Symbol: symbol}, nil
}

func (t *ReferencesTool) Execute(ctx context.Context, a Args) Result {
	args := a.(ReferencesArgs)

	if t.env.Editor == nil {
		return errNoEditor("references")
	}
	abs, err := t.env.Workspace.Resolve(args.Path)
	if err != nil {
		return NewErrorResult(err.Error())
	}

	out, err := t.env.Editor.References(ctx, abs, args.Symbol)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("references: %v", err))
	}
	if out == "" {
		return NewSuccessResult(fmt.Sprintf("No references to %s", args.Symbol))
	}
	return NewSuccessResult(out)
}

func errNoEditor(what string) Result {
	return NewErrorResult(what + " are not available without an attached editor")
}
