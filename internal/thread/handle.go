package thread

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"forge/internal/ledger"
	"forge/internal/llm"
	"forge/internal/logging"
	"forge/internal/tools"
)

const saveTimeout = 10 * time.Second

// Handle is exclusive access to one thread, obtained from Manager.Acquire.
// Every mutation writes a full snapshot to the store. Persistence is best
// effort: a failed save is logged and the in-memory state stays
// authoritative until the next successful one.
type Handle struct {
	store  Store
	thread *Thread
	lock   chan struct{}
	once   sync.Once

	// OnNotify receives task notifications. Nil logs them.
	OnNotify func(level, message string)
}

var _ tools.Session = (*Handle)(nil)

// Release unlocks the thread. Calling it more than once is safe.
func (h *Handle) Release() {
	h.once.Do(func() { <-h.lock })
}

// ID returns the thread id.
func (h *Handle) ID() string {
	return h.thread.ID
}

// Snapshot returns a copy of the thread.
func (h *Handle) Snapshot() *Thread {
	return h.thread.Clone()
}

// Messages returns a copy of the conversation.
func (h *Handle) Messages() []llm.Message {
	return slices.Clone(h.thread.Messages)
}

// AppendMessage adds a message to the conversation.
func (h *Handle) AppendMessage(m llm.Message) {
	h.thread.appendMessage(m)
	h.save()
}

// Rename sets the thread name.
func (h *Handle) Rename(name string) {
	h.thread.Name = name
	h.save()
}

func (h *Handle) save() {
	h.thread.touch()
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := h.store.Put(ctx, h.thread); err != nil {
		logging.Error("failed to save thread", "id", h.thread.ID, "error", err)
	}
}

// StageEdit appends a pending edit to the ledger.
func (h *Handle) StageEdit(path string, typ ledger.EditType, before, after *string) (int, error) {
	index := h.thread.Edits.Stage(path, typ, before, after)
	h.save()
	return index, nil
}

// RecordEditedFile notes a workspace-relative path as touched by the agent.
func (h *Handle) RecordEditedFile(path string) error {
	h.thread.recordEditedFile(path)
	h.save()
	return nil
}

// AddTask creates a pending task. Subtasks may not have subtasks.
func (h *Handle) AddTask(name, parentID string) (string, error) {
	if parentID != "" {
		parent, ok := h.thread.Task(parentID)
		if !ok {
			return "", fmt.Errorf("parent task not found: %s", parentID)
		}
		if parent.ParentID != "" {
			return "", fmt.Errorf("task %s is already a subtask; subtasks cannot have subtasks", parentID)
		}
	}
	t := newTask(name, parentID)
	h.thread.Tasks = append(h.thread.Tasks, t)
	h.save()
	return t.ID, nil
}

// UpdateTask applies u to a task and returns the task name.
func (h *Handle) UpdateTask(id string, u tools.TaskUpdate) (string, error) {
	t, ok := h.thread.Task(id)
	if !ok {
		return "", fmt.Errorf("task not found: %s", id)
	}

	if u.State != "" {
		if err := t.Transition(TaskState(u.State), u.Error); err != nil {
			return "", err
		}
	} else if u.Error != "" {
		t.Error = u.Error
	}
	if u.TokensUsed != nil {
		t.TokensUsed = *u.TokensUsed
	}
	h.save()
	return t.Name, nil
}

// Notify forwards a task notification.
func (h *Handle) Notify(level, message string) {
	if h.OnNotify != nil {
		h.OnNotify(level, message)
		return
	}
	logging.Info("task notification", "thread", h.thread.ID, "level", level, "message", message)
}

// Edits returns a copy of the ledger.
func (h *Handle) Edits() ledger.Ledger {
	return slices.Clone(h.thread.Edits)
}

// Accept applies a pending edit.
func (h *Handle) Accept(index int) ledger.Outcome {
	out := h.thread.Edits.Accept(index)
	if out.OK() {
		h.save()
	}
	return out
}

// Reject discards a pending edit.
func (h *Handle) Reject(index int) ledger.Outcome {
	out := h.thread.Edits.Reject(index)
	if out.OK() {
		h.save()
	}
	return out
}

// AcceptAll applies every pending edit.
func (h *Handle) AcceptAll() ledger.Summary {
	s := h.thread.Edits.AcceptAll()
	h.save()
	return s
}

// RejectAll discards every pending edit.
func (h *Handle) RejectAll() ledger.Summary {
	s := h.thread.Edits.RejectAll()
	h.save()
	return s
}
