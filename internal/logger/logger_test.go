package logger

import (
	"bytes"
	"os"
	"testing"

	"cvscanner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesLevelFiles(t *testing.T) {
	dir := t.TempDir()
	log := NewLogger(&config.Config{LogDirectory: dir})

	log.Info("intake %s", "started")
	log.Warning("camera %d busy", 0)
	log.Error("upload failed")

	for level, want := range map[string]string{
		"info":    "intake started",
		"warning": "camera 0 busy",
		"error":   "upload failed",
	} {
		data, err := os.ReadFile(log.FilePath(level))
		require.NoError(t, err)
		assert.Contains(t, string(data), want)
	}
}

func TestLogger_CleanLogs(t *testing.T) {
	dir := t.TempDir()
	log := NewLogger(&config.Config{LogDirectory: dir})

	log.Warning("something odd")
	require.NoError(t, log.CleanLogs("warning"))

	data, err := os.ReadFile(log.FilePath("warning"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsole(&buf)

	log.Info("hello %d", 1)

	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "hello 1")
	assert.Empty(t, log.FilePath("info"))
	assert.NoError(t, log.CleanLogs("info"))
}
