package thread

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/config"
	"forge/internal/ledger"
	"forge/internal/llm"
)

func storeBackends() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"json": func(t *testing.T) Store {
			s, err := NewJSONStore(filepath.Join(t.TempDir(), "threads"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "threads.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			th := New("refactor")
			th.appendMessage(llm.NewMessage(llm.RoleUser, "hello"))
			th.appendMessage(llm.Message{
				Role:      llm.RoleAssistant,
				ToolCalls: []llm.ToolInvocation{{ID: "c1", Name: "read_file", Arguments: map[string]any{"path": "a.go"}}},
			})
			after := "x"
			th.Edits.Stage("/ws/a.go", ledger.Create, nil, &after)
			th.Tasks = append(th.Tasks, newTask("step one", ""))
			th.recordEditedFile("a.go")
			require.NoError(t, s.Put(ctx, th))

			got, err := s.Get(ctx, th.ID)
			require.NoError(t, err)
			assert.Equal(t, "refactor", got.Name)
			require.Len(t, got.Messages, 2)
			assert.Equal(t, "read_file", got.Messages[1].ToolCalls[0].Name)
			require.Len(t, got.Edits, 1)
			assert.Nil(t, got.Edits[0].Before)
			assert.Equal(t, ledger.Pending, got.Edits[0].Status)
			assert.Equal(t, "step one", got.Tasks[0].Name)
			assert.Equal(t, []string{"a.go"}, got.EditedFiles)

			got.Name = "changed"
			again, err := s.Get(ctx, th.ID)
			require.NoError(t, err)
			assert.Equal(t, "refactor", again.Name, "returned threads are copies")
		})
	}
}

func TestStoreListDeleteAndCurrent(t *testing.T) {
	for name, open := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)

			cur, err := s.CurrentID(ctx)
			require.NoError(t, err)
			assert.Empty(t, cur)

			a, b := New("a"), New("b")
			b.CreatedAt = a.CreatedAt.Add(time.Second)
			require.NoError(t, s.Put(ctx, b))
			require.NoError(t, s.Put(ctx, a))

			all, err := s.ListAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, a.ID, all[0].ID)
			assert.Equal(t, b.ID, all[1].ID)

			require.NoError(t, s.SetCurrentID(ctx, b.ID))
			cur, err = s.CurrentID(ctx)
			require.NoError(t, err)
			assert.Equal(t, b.ID, cur)

			b.Name = "renamed"
			require.NoError(t, s.Put(ctx, b))
			got, err := s.Get(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, "renamed", got.Name)

			require.NoError(t, s.Delete(ctx, b.ID))
			cur, err = s.CurrentID(ctx)
			require.NoError(t, err)
			assert.Empty(t, cur, "deleting the current thread clears the pointer")

			all, err = s.ListAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestJSONStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), New("ok")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0600))

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.Get(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Put(context.Background(), &Thread{ID: "a/b"}))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.StoreConfig{Backend: "json", Path: filepath.Join(dir, "j")})
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}
