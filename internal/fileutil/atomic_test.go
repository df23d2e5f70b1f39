package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, AtomicWrite(path, []byte("new"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, os.FileMode(0600), FileMode(path, 0644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteFileAllCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x", "y", "z.go")

	require.NoError(t, WriteFileAll(path, []byte("package z\n"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package z\n", string(data))
}

func TestFileModeFallback(t *testing.T) {
	assert.Equal(t, os.FileMode(0640), FileMode(filepath.Join(t.TempDir(), "missing"), 0640))
}
