package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskTools(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	s := &fakeSession{}
	ctx := sessionCtx(s)

	got := exec.Execute(ctx, "add_task", map[string]any{"name": "Refactor parser"})
	assert.Equal(t, "Success: Added task t1: Refactor parser", got)

	got = exec.Execute(ctx, "add_task", map[string]any{"title": "Write tests", "parent_id": "t1"})
	assert.Equal(t, "Success: Added task t2: Write tests", got)
	require.Len(t, s.tasks, 2)
	assert.Equal(t, "t1", s.tasks[1].parent)

	got = exec.Execute(ctx, "update_task", map[string]any{"id": "t1", "state": "in-progress"})
	assert.Equal(t, "Success: Task t1 is now in_progress", got)
	assert.Empty(t, s.notes)

	got = exec.Execute(ctx, "update_task", map[string]any{"id": "t1", "state": "done", "tokens_used": float64(1200)})
	assert.Equal(t, "Success: Task t1 is now complete", got)
	assert.Equal(t, 1200, s.tasks[0].tokens)

	got = exec.Execute(ctx, "update_task", map[string]any{"id": "t2", "state": "failed", "error": "flaky"})
	assert.True(t, strings.HasPrefix(got, "Success: "))
	assert.Equal(t, []string{"info: Task complete: Refactor parser", "warn: Task failed: Write tests (flaky)"}, s.notes)

	got = exec.Execute(ctx, "update_task", map[string]any{"id": "t9", "state": "done"})
	assert.Equal(t, "Error: task not found: t9", got)
}

func TestUpdateTaskValidation(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := sessionCtx(&fakeSession{})

	got := exec.Execute(ctx, "update_task", map[string]any{"id": "t1"})
	assert.Equal(t, "Error: invalid arguments for update_task: state: nothing to update", got)

	got = exec.Execute(ctx, "update_task", map[string]any{"id": "t1", "state": "paused"})
	assert.Equal(t, `Error: invalid arguments for update_task: state: unknown state "paused"`, got)

	got = exec.Execute(context.Background(), "add_task", map[string]any{"name": "x"})
	assert.Equal(t, "Error: no active thread", got)
}
