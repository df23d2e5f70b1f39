package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		" error ": LevelError,
		"info":    LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConfigureFiltersByLevel(t *testing.T) {
	t.Cleanup(Close)

	var buf bytes.Buffer
	Configure(LevelWarn, &buf)

	Info("hidden", "k", 1)
	Warn("shown", "tool", "read_file")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "tool=read_file")
}

func TestEnableFileLogging(t *testing.T) {
	t.Cleanup(Close)

	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, EnableFileLogging(dir, LevelDebug))

	Debug("file entry", "n", 2)

	data, err := os.ReadFile(filepath.Join(dir, "forge.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"file entry"`)
}
