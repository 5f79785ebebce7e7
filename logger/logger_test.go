package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvastrmnl/errors"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })
	return &buf
}

func TestLevels(t *testing.T) {
	buf := captureOutput(t)

	Info("installed %s", "consumer")
	Warn(errors.NewError("canvas", "fetch failed", nil))
	Debug("hidden")
	require.NoError(t, Sync())

	got := buf.String()
	assert.Contains(t, got, "INFO installed consumer")
	assert.Contains(t, got, "WARN canvas: fetch failed")
	assert.NotContains(t, got, "hidden")

	SetDebug(true)
	defer SetDebug(false)
	Debug("visible")
	assert.Contains(t, buf.String(), "DEBUG visible")
}

func TestNamed(t *testing.T) {
	buf := captureOutput(t)

	Named("trmnl.generate").With("trmnlId", "abc").Error("query failed: %v", "boom")
	line := buf.String()
	assert.True(t, strings.Contains(line, "ERROR trmnl.generate query failed: boom"), line)
	assert.Contains(t, line, `"trmnlId": "abc"`)
}

func TestUseConfigFile(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()
	require.NoError(t, UseConfigFile(dir))
	t.Cleanup(func() { out.setFile(nil) })

	Info("to file")
	require.NoError(t, Sync())

	b, err := os.ReadFile(logFileName)
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}
