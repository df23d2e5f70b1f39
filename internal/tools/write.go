package tools

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"forge/internal/ledger"
)

// WriteFileArgs are the arguments of write_file.
type WriteFileArgs struct {
	Path    string
	Content string
}

func (WriteFileArgs) ToolName() string { return "write_file" }

// WriteFileTool stages a full-file write for review. Nothing is written
// until the edit is accepted.
type WriteFileTool struct {
	env *Env
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Create or overwrite a file with the given content. The change is staged for user review and applied once accepted."
}

func (t *WriteFileTool) Declaration() *genai.FunctionDeclaration {
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
				"content": {
					Type:        genai.TypeString,
					Description: "The complete new file content",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *WriteFileTool) Decode(raw map[string]any) (Args, error) {
	path, err := RequireString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	content, ok, err := GetString(raw, "content")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewValidationError("content", "is required")
	}
	return WriteFileArgs{Path: path, Content: content}, nil
}

func (t *WriteFileTool) Execute(ctx context.Context, a Args) Result {
	args := a.(WriteFileArgs)

	session, ok := SessionFrom(ctx)
	if !ok {
		return NewErrorResult("no active thread to stage the edit in")
	}
	abs, err := t.env.Workspace.Resolve(args.Path)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	rel := t.env.Workspace.Rel(abs)

	before, err := readExisting(abs)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	typ := ledger.Create
	if before != nil {
		if *before == args.Content {
			return NewSuccessResult(fmt.Sprintf("Success: %s already has this content, nothing staged", rel))
		}
		typ = ledger.Modify
	}

	content := args.Content
	index, err := session.StageEdit(abs, typ, before, &content)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("staging edit: %v", err))
	}
	if err := session.RecordEditedFile(rel); err != nil {
		return NewErrorResult(fmt.Sprintf("recording edit: %v", err))
	}
	return NewSuccessResult(fmt.Sprintf("Success: Staged %s of %s (edit #%d, pending review)", typ, rel, index))
}

// DeleteFileArgs are the arguments of delete_file.
type DeleteFileArgs struct {
	Path string
}

func (DeleteFileArgs) ToolName() string { return "delete_file" }

// DeleteFileTool stages the deletion of a file for review.
type DeleteFileTool struct {
	env *Env
}

func (t *DeleteFileTool) Name() string { return "delete_file" }

func (t *DeleteFileTool) Description() string {
	return "Delete a file. The deletion is staged for user review and applied once accepted."
}

func (t *DeleteFileTool) Declaration() *genai.FunctionDeclaration {
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
			},
			Required: []string{"path"},
		},
	}
}

func (t *DeleteFileTool) Decode(raw map[string]any) (Args, error) {
	path, err := RequireString(raw, "path", "file_path")
	if err != nil {
		return nil, err
	}
	return DeleteFileArgs{Path: path}, nil
}

func (t *DeleteFileTool) Execute(ctx context.Context, a Args) Result {
	args := a.(DeleteFileArgs)

	session, ok := SessionFrom(ctx)
	if !ok {
		return NewErrorResult("no active thread to stage the edit in")
	}
	abs, err := t.env.Workspace.Resolve(args.Path)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	rel := t.env.Workspace.Rel(abs)

	before, err := readExisting(abs)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	if before == nil {
		return NewErrorResult("File not found: " + args.Path)
	}

	index, err := session.StageEdit(abs, ledger.Delete, before, nil)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("staging edit: %v", err))
	}
	if err := session.RecordEditedFile(rel); err != nil {
		return NewErrorResult(fmt.Sprintf("recording edit: %v", err))
	}
	return NewSuccessResult(fmt.Sprintf("Success: Staged deletion of %s (edit #%d, pending review)", rel, index))
}

// readExisting returns the content of a regular file, or nil if it does not
// exist.
func readExisting(abs string) (*string, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot access file: %v", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading file: %v", err)
	}
	s := string(data)
	return &s, nil
}
