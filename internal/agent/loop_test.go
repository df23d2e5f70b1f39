package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/llm"
	"forge/internal/provider"
)

func TestLoopPlainAnswer(t *testing.T) {
	f := newFixture(t)
	h := f.acquire(t)
	h.AppendMessage(llm.NewMessage(llm.RoleUser, "hi"))
	p := &scriptedProvider{name: "claude", turns: []*provider.Turn{textTurn("Hello!")}}

	events, err := collect(NewLoop(p, f.executor, testOptions(f.dir)).Run(context.Background(), h))
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindText, KindSummary}, kinds(events))
	s := lastSummary(t, events)
	assert.Equal(t, "Hello!", s.Text)
	assert.Equal(t, 1, s.Iterations)
	assert.Equal(t, "claude", s.Provider)
	assert.False(t, s.CeilingHit)

	require.Len(t, p.requests, 1)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi", Timestamp: h.Messages()[0].Timestamp}}, p.requests[0])
}

func TestLoopStopsAtCeiling(t *testing.T) {
	tests := []struct {
		name  string
		local bool
		want  int
	}{
		{name: "remote", local: false, want: 4},
		{name: "local", local: true, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.writeFile(t, "a.txt", "x")
			h := f.acquire(t)
			h.AppendMessage(llm.NewMessage(llm.RoleUser, "loop forever"))

			p := &scriptedProvider{name: "p", local: tt.local, turns: []*provider.Turn{
				toolTurn("", call("c", "read_file", map[string]any{"path": "a.txt"})),
			}}

			events, err := collect(NewLoop(p, f.executor, testOptions(f.dir)).Run(context.Background(), h))
			require.NoError(t, err)

			assert.Equal(t, tt.want, p.calls(), "provider calls are bounded by the ceiling")
			s := lastSummary(t, events)
			assert.True(t, s.CeilingHit)
			assert.Equal(t, tt.want, s.Iterations)
			assert.Equal(t, tt.want, s.ToolCalls)
			assert.Equal(t, CeilingNotice, s.Text)

			notice := events[len(events)-2]
			assert.Equal(t, KindText, notice.Kind)
			assert.Equal(t, CeilingNotice, notice.Text)
		})
	}
}

func TestLoopUnknownToolContinues(t *testing.T) {
	f := newFixture(t)
	h := f.acquire(t)
	h.AppendMessage(llm.NewMessage(llm.RoleUser, "do it"))

	p := &scriptedProvider{name: "openai", turns: []*provider.Turn{
		toolTurn("Trying.", call("call_1", "frobnicate", map[string]any{})),
		textTurn("That tool does not exist, done."),
	}}

	events, err := collect(NewLoop(p, f.executor, testOptions(f.dir)).Run(context.Background(), h))
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindText, KindToolStart, KindToolEnd, KindText, KindSummary}, kinds(events))
	end := events[2]
	assert.Equal(t, "Error: Unknown tool: frobnicate", end.Result)
	assert.True(t, end.Failed)

	require.Equal(t, 2, p.calls())
	second := p.requests[1]
	require.Len(t, second, 3)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	assert.Equal(t, "frobnicate", second[1].ToolCalls[0].Name)
	assert.Equal(t, llm.RoleTool, second[2].Role)
	assert.Equal(t, []llm.ToolResult{{CallID: "call_1", Name: "frobnicate", Content: "Error: Unknown tool: frobnicate"}}, second[2].ToolResults)

	assert.Equal(t, "Trying.\n\nThat tool does not exist, done.", lastSummary(t, events).Text)
}

func TestLoopRunsToolsInModelOrder(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "main.go", "package main\n\nconst version = 1\n")
	h := f.acquire(t)
	h.AppendMessage(llm.NewMessage(llm.RoleUser, "bump the version"))

	p := &scriptedProvider{name: "claude", turns: []*provider.Turn{
		toolTurn("",
			call("t1", "apply_edit", map[string]any{"path": "main.go", "old_text": "version = 1", "new_text": "version = 2"}),
			call("t2", "read_file", map[string]any{"path": "main.go"}),
		),
		textTurn("Bumped."),
	}}

	events, err := collect(NewLoop(p, f.executor, testOptions(f.dir)).Run(context.Background(), h))
	require.NoError(t, err)

	var ends []Event
	for _, ev := range events {
		if ev.Kind == KindToolEnd {
			ends = append(ends, ev)
		}
	}
	require.Len(t, ends, 2)
	assert.Equal(t, "apply_edit", ends[0].Tool)
	assert.Equal(t, "read_file", ends[1].Tool)
	assert.Contains(t, ends[1].Result, "version = 2", "the read observes the earlier edit")

	results := p.requests[1][2].ToolResults
	require.Len(t, results, 2, "results of one round travel in one tool message")
	assert.Equal(t, "t1", results[0].CallID)
	assert.Equal(t, "t2", results[1].CallID)
	assert.Equal(t, []string{"main.go"}, h.Snapshot().EditedFiles)
}

func TestLoopStagesWritesAndEmitsTaskNotifications(t *testing.T) {
	f := newFixture(t)
	h := f.acquire(t)
	h.AppendMessage(llm.NewMessage(llm.RoleUser, "create a.py"))

	p := &scriptedProvider{name: "claude", turns: []*provider.Turn{
		toolTurn("",
			call("1", "add_task", map[string]any{"title": "Create a.py"}),
			call("2", "write_file", map[string]any{"path": "a.py", "content": "print(1)"}),
		),
		textTurn("Staged."),
	}}
	events, err := collect(NewLoop(p, f.executor, testOptions(f.dir)).Run(context.Background(), h))
	require.NoError(t, err)
	assert.Equal(t, KindToolStart, events[0].Kind)
	assert.Contains(t, events[0].Args, "title")

	snap := h.Snapshot()
	require.Len(t, snap.Tasks, 1)
	require.Len(t, snap.Edits, 1)
	assert.NoFileExists(t, f.dir+"/a.py")

	taskID := snap.Tasks[0].ID
	p2 := &scriptedProvider{name: "claude", turns: []*provider.Turn{
		toolTurn("", call("3", "update_task", map[string]any{"id": taskID, "state": "complete"})),
		textTurn("Done."),
	}}
	events, err = collect(NewLoop(p2, f.executor, testOptions(f.dir)).Run(context.Background(), h))
	require.NoError(t, err)

	var logs []string
	for _, ev := range events {
		if ev.Kind == KindLog {
			logs = append(logs, ev.Level+": "+ev.Text)
		}
	}
	assert.Equal(t, []string{"info: Task complete: Create a.py"}, logs)
}

func TestLoopProviderErrorEndsStream(t *testing.T) {
	f := newFixture(t)
	h := f.acquire(t)
	p := &scriptedProvider{name: "claude", err: assert.AnError}

	events, err := collect(NewLoop(p, f.executor, testOptions(f.dir)).Run(context.Background(), h))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, events)
}

func TestLoopConsumerCanStopEarly(t *testing.T) {
	f := newFixture(t)
	h := f.acquire(t)
	p := &scriptedProvider{name: "claude", turns: []*provider.Turn{
		toolTurn("first", call("c", "list_files", nil)),
	}}

	n := 0
	for range NewLoop(p, f.executor, testOptions(f.dir)).Run(context.Background(), h) {
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, p.calls())
}

func TestLoopCancelledContext(t *testing.T) {
	f := newFixture(t)
	h := f.acquire(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{name: "claude", turns: []*provider.Turn{textTurn("never")}}
	_, err := collect(NewLoop(p, f.executor, testOptions(f.dir)).Run(ctx, h))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.calls())
}

func TestSystemPromptVariesByLocality(t *testing.T) {
	remote := SystemPrompt(&scriptedProvider{name: "claude"}, "/ws")
	local := SystemPrompt(&scriptedProvider{name: "ollama", local: true}, "/ws")

	assert.Contains(t, remote, "Workspace root: /ws")
	assert.Contains(t, remote, "several tools in one turn")
	assert.Contains(t, local, "at most one tool per reply")
	assert.False(t, strings.Contains(local, "several tools"))
}
