package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	task := newTask("build", "")
	assert.Equal(t, TaskPending, task.State)
	assert.Len(t, task.ID, 8)

	require.NoError(t, task.Start())
	require.NotNil(t, task.StartTime)
	assert.Nil(t, task.EndTime)

	require.NoError(t, task.Complete())
	require.NotNil(t, task.EndTime)
	assert.True(t, task.Terminal())

	assert.ErrorIs(t, task.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, task.Fail("late"), ErrInvalidTransition)
	assert.Equal(t, TaskComplete, task.State)
}

func TestTaskFinishRequiresInProgress(t *testing.T) {
	task := newTask("x", "")
	assert.ErrorIs(t, task.Complete(), ErrInvalidTransition)
	assert.Nil(t, task.EndTime)
}

func TestTaskTransition(t *testing.T) {
	task := newTask("x", "")
	require.NoError(t, task.Transition(TaskFailed, "boom"))
	assert.Equal(t, TaskFailed, task.State)
	assert.Equal(t, "boom", task.Error)
	assert.NotNil(t, task.StartTime, "skipping in_progress still stamps the start")
	assert.NotNil(t, task.EndTime)

	require.NoError(t, task.Transition(TaskFailed, ""), "same state is a no-op")
	assert.ErrorIs(t, task.Transition(TaskPending, ""), ErrInvalidTransition)
	assert.ErrorIs(t, task.Transition("paused", ""), ErrInvalidTransition)
}
