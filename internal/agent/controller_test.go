package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/llm"
	"forge/internal/provider"
)

func TestSendAppendsConversation(t *testing.T) {
	f := newFixture(t)
	primary := &scriptedProvider{name: "claude", turns: []*provider.Turn{textTurn("Hi there.")}}
	c := NewController(f.threads, f.executor, primary, nil, testOptions(f.dir))

	events, err := collect(c.Send(context.Background(), "", "hello"))
	require.NoError(t, err)
	s := lastSummary(t, events)
	assert.False(t, s.FellBack)
	assert.Equal(t, "claude", s.Provider)

	cur, err := f.threads.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, cur.Messages, 2)
	assert.Equal(t, llm.RoleUser, cur.Messages[0].Role)
	assert.Equal(t, "hello", cur.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, cur.Messages[1].Role)
	assert.Equal(t, "Hi there.", cur.Messages[1].Content)
	assert.Equal(t, "hello", cur.Name)

	_, err = collect(c.Send(context.Background(), "", "again"))
	require.NoError(t, err)
	require.Len(t, primary.requests, 2)
	assert.Len(t, primary.requests[1], 3, "history carries the previous exchange")
}

func TestSendFallsBackExactlyOnce(t *testing.T) {
	f := newFixture(t)
	primary := &scriptedProvider{name: "claude", err: errors.New("claude API error (HTTP 529): overloaded")}
	local := &scriptedProvider{name: "ollama", local: true, turns: []*provider.Turn{textTurn("Local answer.")}}
	c := NewController(f.threads, f.executor, primary, local, testOptions(f.dir))

	events, err := collect(c.Send(context.Background(), "", "hello"))
	require.NoError(t, err)

	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 1, local.calls())
	assert.Equal(t, []Kind{KindLog, KindText, KindText, KindSummary}, kinds(events))
	assert.Contains(t, events[0].Text, "overloaded")
	assert.Equal(t, "[claude failed, falling back to local model ollama-model]", events[1].Text)

	s := lastSummary(t, events)
	assert.True(t, s.FellBack)
	assert.Equal(t, "ollama", s.Provider)
	assert.Equal(t, "Local answer.", s.Text)

	cur, err := f.threads.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, cur.Messages, 2)
	assert.Equal(t, "Local answer.", cur.Messages[1].Content)
}

func TestSendCombinedError(t *testing.T) {
	f := newFixture(t)
	primaryErr := errors.New("connection refused")
	localErr := errors.New("model not found")
	primary := &scriptedProvider{name: "deepseek", err: primaryErr}
	local := &scriptedProvider{name: "ollama", local: true, err: localErr}
	c := NewController(f.threads, f.executor, primary, local, testOptions(f.dir))

	_, err := collect(c.Send(context.Background(), "", "hello"))
	require.Error(t, err)

	var fe *FallbackError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, primaryErr)
	assert.ErrorIs(t, err, localErr)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "model not found")
	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 1, local.calls())

	cur, err := f.threads.Current(context.Background())
	require.NoError(t, err)
	assert.Len(t, cur.Messages, 1, "no assistant message is recorded for a failed run")
}

func TestSendNoFallbackWhenPrimaryIsLocal(t *testing.T) {
	f := newFixture(t)
	primary := &scriptedProvider{name: "ollama", local: true, err: assert.AnError}
	other := &scriptedProvider{name: "ollama-2", local: true, turns: []*provider.Turn{textTurn("x")}}
	c := NewController(f.threads, f.executor, primary, other, testOptions(f.dir))

	_, err := collect(c.Send(context.Background(), "", "hello"))
	assert.ErrorIs(t, err, assert.AnError)

	var fe *FallbackError
	assert.False(t, errors.As(err, &fe))
	assert.Zero(t, other.calls())
}

func TestSendFallbackDisabled(t *testing.T) {
	f := newFixture(t)
	primary := &scriptedProvider{name: "claude", err: assert.AnError}
	local := &scriptedProvider{name: "ollama", local: true, turns: []*provider.Turn{textTurn("x")}}
	opts := testOptions(f.dir)
	opts.Fallback = false
	c := NewController(f.threads, f.executor, primary, local, opts)

	_, err := collect(c.Send(context.Background(), "", "hello"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, local.calls())
}

func TestSendUnknownThread(t *testing.T) {
	f := newFixture(t)
	c := NewController(f.threads, f.executor, &scriptedProvider{name: "claude"}, nil, testOptions(f.dir))

	_, err := collect(c.Send(context.Background(), "no-such-thread", "hello"))
	assert.Error(t, err)
}

func TestSendReleasesThreadWhenConsumerStops(t *testing.T) {
	f := newFixture(t)
	primary := &scriptedProvider{name: "claude", turns: []*provider.Turn{
		toolTurn("working", call("c", "list_files", nil)),
		textTurn("done"),
	}}
	c := NewController(f.threads, f.executor, primary, nil, testOptions(f.dir))

	for range c.Send(context.Background(), "", "hello") {
		break
	}

	h, err := f.threads.Acquire(context.Background(), "")
	require.NoError(t, err, "the thread lock is released")
	h.Release()
}

func TestSendWithOllamaContentToolCall(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "x.py", "print('from x')\n")

	var round atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		if round.Add(1) == 1 {
			fmt.Fprintln(w, `{"model":"codellama","message":{"role":"assistant","content":"{\"name\":\"read_file\",\"arguments\":{\"path\":\"x.py\"}}"},"done":true,"done_reason":"stop"}`)
			return
		}
		fmt.Fprintln(w, `{"model":"codellama","message":{"role":"assistant","content":"x.py prints a greeting."},"done":true,"done_reason":"stop"}`)
	}))
	defer srv.Close()

	local, err := provider.NewOllama(provider.OllamaConfig{BaseURL: srv.URL, Model: "codellama"})
	require.NoError(t, err)
	c := NewController(f.threads, f.executor, local, nil, testOptions(f.dir))

	events, err := collect(c.Send(context.Background(), "", "what does x.py do?"))
	require.NoError(t, err)

	var sawRead bool
	for _, ev := range events {
		switch ev.Kind {
		case KindText:
			assert.NotContains(t, ev.Text, `"arguments"`, "raw tool-call JSON never reaches the user")
		case KindToolEnd:
			assert.Equal(t, "read_file", ev.Tool)
			assert.Equal(t, "print('from x')\n", ev.Result)
			sawRead = true
		}
	}
	assert.True(t, sawRead)
	s := lastSummary(t, events)
	assert.Equal(t, "x.py prints a greeting.", s.Text)
	assert.Equal(t, 2, s.Iterations)
	assert.False(t, strings.Contains(s.Text, "{"))
}
