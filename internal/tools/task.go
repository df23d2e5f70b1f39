package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Task states accepted by update_task.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskComplete   = "complete"
	TaskFailed     = "failed"
)

// normalizeState maps common spellings to a task state.
func normalizeState(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "pending", "todo":
		return TaskPending, true
	case "in_progress", "started", "running":
		return TaskInProgress, true
	case "complete", "completed", "done":
		return TaskComplete, true
	case "failed", "error":
		return TaskFailed, true
	}
	return "", false
}

// AddTaskArgs are the arguments of add_task.
type AddTaskArgs struct {
	Name     string
	ParentID string
}

func (AddTaskArgs) ToolName() string { return "add_task" }

// AddTaskTool adds a task to the current thread's plan.
type AddTaskTool struct{}

func (t *AddTaskTool) Name() string { return "add_task" }

func (t *AddTaskTool) Description() string {
	return "Add a task to the plan for this conversation. Use parent_id to add a subtask."
}

func (t *AddTaskTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name": {
					Type:        genai.TypeString,
					Description: "Short task description",
				},
				"parent_id": {
					Type:        genai.TypeString,
					Description: "Id of the parent task, for subtasks",
				},
			},
			Required: []string{"name"},
		},
	}
}

func (t *AddTaskTool) Decode(raw map[string]any) (Args, error) {
	name, err := RequireString(raw, "name", "title")
	if err != nil {
		return nil, err
	}
	parent, _, err := GetString(raw, "parent_id", "parentId")
	if err != nil {
		return nil, err
	}
	return AddTaskArgs{Name: strings.TrimSpace(name), ParentID: parent}, nil
}

func (t *AddTaskTool) Execute(ctx context.Context, a Args) Result {
	args := a.(AddTaskArgs)

	session, ok := SessionFrom(ctx)
	if !ok {
		return NewErrorResult("no active thread")
	}
	id, err := session.AddTask(args.Name, args.ParentID)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	return NewSuccessResult(fmt.Sprintf("Success: Added task %s: %s", id, args.Name))
}

// UpdateTaskArgs are the arguments of update_task.
type UpdateTaskArgs struct {
	ID     string
	Update TaskUpdate
}

func (UpdateTaskArgs) ToolName() string { return "update_task" }

// UpdateTaskTool moves a task through its states.
type UpdateTaskTool struct{}

func (t *UpdateTaskTool) Name() string { return "update_task" }

func (t *UpdateTaskTool) Description() string {
	return "Update a task: set its state (pending, in_progress, complete, failed), an error message, or tokens used."
}

func (t *UpdateTaskTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id": {
					Type:        genai.TypeString,
					Description: "Task id returned by add_task",
				},
				"state": {
					Type:        genai.TypeString,
					Description: "New state",
					Enum:        []string{TaskPending, TaskInProgress, TaskComplete, TaskFailed},
				},
				"error": {
					Type:        genai.TypeString,
					Description: "Failure reason, for state failed",
				},
				"tokens_used": {
					Type:        genai.TypeInteger,
					Description: "Tokens spent on the task",
				},
			},
			Required: []string{"id"},
		},
	}
}

func (t *UpdateTaskTool) Decode(raw map[string]any) (Args, error) {
	id, err := RequireString(raw, "id", "task_id")
	if err != nil {
		return nil, err
	}

	var u TaskUpdate
	state, ok, err := GetString(raw, "state", "status")
	if err != nil {
		return nil, err
	}
	if ok && state != "" {
		normalized, valid := normalizeState(state)
		if !valid {
			return nil, NewValidationError("state", fmt.Sprintf("unknown state %q", state))
		}
		u.State = normalized
	}
	if u.Error, _, err = GetString(raw, "error"); err != nil {
		return nil, err
	}
	tokens, ok, err := GetInt(raw, "tokens_used")
	if err != nil {
		return nil, err
	}
	if ok {
		u.TokensUsed = &tokens
	}
	if u.State == "" && u.Error == "" && u.TokensUsed == nil {
		return nil, NewValidationError("state", "nothing to update")
	}
	return UpdateTaskArgs{ID: id, Update: u}, nil
}

func (t *UpdateTaskTool) Execute(ctx context.Context, a Args) Result {
	args := a.(UpdateTaskArgs)

	session, ok := SessionFrom(ctx)
	if !ok {
		return NewErrorResult("no active thread")
	}
	name, err := session.UpdateTask(args.ID, args.Update)
	if err != nil {
		return NewErrorResult(err.Error())
	}

	switch args.Update.State {
	case TaskComplete:
		session.Notify("info", "Task complete: "+name)
	case TaskFailed:
		msg := "Task failed: " + name
		if args.Update.Error != "" {
			msg += " (" + args.Update.Error + ")"
		}
		session.Notify("warn", msg)
	}

	if args.Update.State != "" {
		return NewSuccessResult(fmt.Sprintf("Success: Task %s is now %s", args.ID, args.Update.State))
	}
	return NewSuccessResult(fmt.Sprintf("Success: Updated task %s", args.ID))
}
