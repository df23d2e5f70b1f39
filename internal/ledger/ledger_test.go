package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestStageCreateThenAccept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.py")

	var l Ledger
	idx := l.Stage(path, Create, nil, ptr("print(1)"))
	assert.Equal(t, 0, idx)
	assert.Nil(t, l[0].Before)
	assert.Equal(t, Pending, l[0].Status)
	assert.NoFileExists(t, path, "staging must not touch disk")

	out := l.Accept(0)
	require.NoError(t, out.Err)
	assert.Equal(t, Applied, out.Status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))
	assert.Equal(t, Applied, l[0].Status)
	assert.NotNil(t, l[0].ResolvedAt)
}

func TestStageThenRejectLeavesFileUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.txt")
	original := []byte("line one\nline two\n")
	require.NoError(t, os.WriteFile(path, original, 0644))

	var l Ledger
	l.Stage(path, Modify, ptr(string(original)), ptr("replaced"))
	l.Stage(path, Delete, ptr(string(original)), nil)

	out := l.Reject(0)
	require.NoError(t, out.Err)
	assert.Equal(t, Rejected, out.Status)
	s := l.RejectAll()
	assert.Equal(t, 1, s.Rejected)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestResolvedEditsNeverReturnToPending(t *testing.T) {
	dir := t.TempDir()
	var l Ledger
	l.Stage(filepath.Join(dir, "a"), Create, nil, ptr("a"))
	l.Stage(filepath.Join(dir, "b"), Create, nil, ptr("b"))

	require.NoError(t, l.Accept(0).Err)
	require.NoError(t, l.Reject(1).Err)

	for _, i := range []int{0, 1} {
		before := l[i].Status

		again := l.Accept(i)
		assert.ErrorIs(t, again.Err, ErrAlreadyResolved)
		assert.Equal(t, before, again.Status)

		again = l.Reject(i)
		assert.ErrorIs(t, again.Err, ErrAlreadyResolved)
		assert.Equal(t, before, l[i].Status)
	}
	assert.Empty(t, l.Pending())
}

func TestNoSuchEdit(t *testing.T) {
	var l Ledger
	assert.ErrorIs(t, l.Accept(0).Err, ErrNoSuchEdit)
	assert.ErrorIs(t, l.Reject(-1).Err, ErrNoSuchEdit)
}

func TestAcceptAllToleratesFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	var l Ledger
	l.Stage(filepath.Join(dir, "done.txt"), Create, nil, ptr("done"))
	l.Stage(filepath.Join(dir, "skip.txt"), Create, nil, ptr("skip"))
	l.Stage(filepath.Join(dir, "ok.txt"), Create, nil, ptr("ok"))
	// A file in place of a parent directory makes the write fail.
	l.Stage(filepath.Join(blocker, "child.txt"), Create, nil, ptr("nope"))
	l.Stage(filepath.Join(dir, "del.txt"), Delete, ptr("gone"), nil)

	require.NoError(t, l.Accept(0).Err)
	require.NoError(t, l.Reject(1).Err)

	s := l.AcceptAll()
	assert.Equal(t, 2, s.Applied)
	assert.Equal(t, 1, s.Failed)
	assert.Len(t, s.Outcomes, 3)

	assert.Equal(t, Applied, l[0].Status)
	assert.Equal(t, Rejected, l[1].Status)
	assert.Equal(t, Applied, l[2].Status)
	assert.Equal(t, Pending, l[3].Status)
	assert.Equal(t, Applied, l[4].Status, "deleting a missing file succeeds")
	assert.Equal(t, []int{3}, l.Pending())
	assert.NoFileExists(t, filepath.Join(dir, "skip.txt"))
}

func TestAcceptModifyPreservesMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo a\n"), 0755))

	var l Ledger
	l.Stage(path, Modify, ptr("echo a\n"), ptr("echo b\n"))
	require.NoError(t, l.Accept(0).Err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestAcceptDeleteRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.txt")
	require.NoError(t, os.WriteFile(path, []byte("bye"), 0644))

	var l Ledger
	l.Stage(path, Delete, ptr("bye"), nil)
	require.NoError(t, l.Accept(0).Err)
	assert.NoFileExists(t, path)
}

func TestPreview(t *testing.T) {
	e := FileEdit{
		Path:   "/ws/main.go",
		Type:   Modify,
		Before: ptr("package main\n\nfunc a() {}\n"),
		After:  ptr("package main\n\nfunc b() {}\n"),
	}

	got := e.Preview("main.go")
	assert.Equal(t, "--- a/main.go\n+++ b/main.go\n package main\n \n-func a() {}\n+func b() {}\n", got)

	added, removed := e.Stats()
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	created := FileEdit{Path: "/ws/new.txt", Type: Create, After: ptr("hello")}
	assert.Equal(t, "--- /dev/null\n+++ b/new.txt\n+hello\n", created.Preview("new.txt"))
}
