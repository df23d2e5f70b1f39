package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"forge/internal/ledger"
	"forge/internal/workspace"
)

type fakeTask struct {
	id, name, parent, state, err string
	tokens                       int
}

type fakeSession struct {
	edits  ledger.Ledger
	files  []string
	tasks  []*fakeTask
	notes  []string
	nextID int
}

func (s *fakeSession) StageEdit(path string, typ ledger.EditType, before, after *string) (int, error) {
	return s.edits.Stage(path, typ, before, after), nil
}

func (s *fakeSession) RecordEditedFile(path string) error {
	s.files = append(s.files, path)
	return nil
}

func (s *fakeSession) AddTask(name, parentID string) (string, error) {
	s.nextID++
	id := fmt.Sprintf("t%d", s.nextID)
	s.tasks = append(s.tasks, &fakeTask{id: id, name: name, parent: parentID, state: TaskPending})
	return id, nil
}

func (s *fakeSession) UpdateTask(id string, u TaskUpdate) (string, error) {
	for _, t := range s.tasks {
		if t.id == id {
			if u.State != "" {
				t.state = u.State
			}
			if u.Error != "" {
				t.err = u.Error
			}
			if u.TokensUsed != nil {
				t.tokens = *u.TokensUsed
			}
			return t.name, nil
		}
	}
	return "", fmt.Errorf("task not found: %s", id)
}

func (s *fakeSession) Notify(level, message string) {
	s.notes = append(s.notes, level+": "+message)
}

// newTestEnv returns an Env rooted at a fresh temp dir.
func newTestEnv(t *testing.T) (*Env, string) {
	t.Helper()
	dir := t.TempDir()
	ws, err := workspace.New(dir)
	require.NoError(t, err)
	return &Env{Workspace: ws, Limits: DefaultLimits()}, ws.Root()
}

func newTestExecutor(t *testing.T) (*Executor, *Env, string) {
	t.Helper()
	env, dir := newTestEnv(t)
	return NewExecutor(NewDefaultRegistry(env)), env, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func sessionCtx(s Session) context.Context {
	return WithSession(context.Background(), s)
}
