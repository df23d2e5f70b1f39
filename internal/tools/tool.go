// Package tools implements the tool catalog offered to the model and the
// executor that dispatches invocations to it.
package tools

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"forge/internal/ledger"
)

// Tool defines the interface for all tools.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Declaration returns the function declaration sent to providers.
	Declaration() *genai.FunctionDeclaration

	// Decode validates raw model arguments into the tool's argument type.
	Decode(raw map[string]any) (Args, error)

	// Execute runs the tool. Failures are reported in the Result.
	Execute(ctx context.Context, args Args) Result
}

// Args is the decoded, validated argument set of one tool. Each tool has its
// own concrete type; ToolName identifies the variant.
type Args interface {
	ToolName() string
}

// Result represents the result of a tool execution.
type Result struct {
	Content string
	Error   string
	Success bool
}

// NewSuccessResult creates a successful tool result.
func NewSuccessResult(content string) Result {
	return Result{Content: content, Success: true}
}

// NewErrorResult creates a failed tool result.
func NewErrorResult(errMsg string) Result {
	return Result{Error: errMsg, Success: false}
}

// Text renders the result for the model. Failures carry the "Error:" prefix.
func (r Result) Text() string {
	if r.Success {
		return r.Content
	}
	if strings.HasPrefix(r.Error, "Error:") {
		return r.Error
	}
	return "Error: " + r.Error
}

// TaskUpdate is a partial update of a task. Empty fields are left unchanged.
type TaskUpdate struct {
	State      string
	Error      string
	TokensUsed *int
}

// Session gives tools access to the thread the current run belongs to.
type Session interface {
	// StageEdit records a pending edit and returns its ledger index.
	StageEdit(path string, typ ledger.EditType, before, after *string) (int, error)
	// RecordEditedFile notes a workspace-relative path touched by the agent.
	RecordEditedFile(path string) error
	// AddTask creates a task and returns its id.
	AddTask(name, parentID string) (string, error)
	// UpdateTask applies u and returns the task name.
	UpdateTask(id string, u TaskUpdate) (string, error)
	// Notify surfaces a message to the user.
	Notify(level, message string)
}

// Editor is the editor introspection collaborator. It is optional; tools
// that need it fail with an error result when none is attached.
type Editor interface {
	// Diagnostics lists problems in path, or in every open file when path
	// is empty.
	Diagnostics(ctx context.Context, path string) (string, error)
	// Symbols outlines the declarations of the file at path.
	Symbols(ctx context.Context, path string) (string, error)
	// References lists the usages of symbol as seen from the file at path.
	References(ctx context.Context, path, symbol string) (string, error)
}

type sessionKey struct{}

// WithSession returns a context carrying the session tools operate on.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s != nil
}
