package thread

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a Task.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskComplete   TaskState = "complete"
	TaskFailed     TaskState = "failed"
)

// ErrInvalidTransition is returned when a task cannot move to a state.
var ErrInvalidTransition = errors.New("invalid task transition")

// Task is a unit of work the model tracks for itself. Tasks form a tree
// one level deep through ParentID.
type Task struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	State      TaskState  `json:"state"`
	ParentID   string     `json:"parent_id,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	TokensUsed int        `json:"tokens_used"`
	Error      string     `json:"error,omitempty"`
}

func newTask(name, parentID string) Task {
	return Task{
		ID:       uuid.NewString()[:8],
		Name:     name,
		State:    TaskPending,
		ParentID: parentID,
	}
}

// Start moves a pending task to in_progress and stamps StartTime.
func (t *Task) Start() error {
	if t.State != TaskPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, TaskInProgress)
	}
	now := time.Now()
	t.State = TaskInProgress
	t.StartTime = &now
	return nil
}

// Complete moves an in_progress task to complete and stamps EndTime.
func (t *Task) Complete() error {
	return t.finish(TaskComplete)
}

// Fail moves an in_progress task to failed, recording reason.
func (t *Task) Fail(reason string) error {
	if err := t.finish(TaskFailed); err != nil {
		return err
	}
	t.Error = reason
	return nil
}

func (t *Task) finish(to TaskState) error {
	if t.State != TaskInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
	}
	now := time.Now()
	t.State = to
	t.EndTime = &now
	return nil
}

// Transition moves the task to state. A pending task asked to finish is
// started first, so models that skip in_progress still get both timestamps.
// Moving to the current state is a no-op.
func (t *Task) Transition(to TaskState, reason string) error {
	if t.State == to {
		return nil
	}
	if t.State == TaskPending && (to == TaskComplete || to == TaskFailed) {
		if err := t.Start(); err != nil {
			return err
		}
	}
	switch to {
	case TaskInProgress:
		return t.Start()
	case TaskComplete:
		return t.Complete()
	case TaskFailed:
		return t.Fail(reason)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
}

// Terminal reports whether the task is complete or failed.
func (t *Task) Terminal() bool {
	return t.State == TaskComplete || t.State == TaskFailed
}
