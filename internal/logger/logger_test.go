package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vogtb/go-spreadsheet/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("verbose"))
}

func TestJSONConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	log := build(config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"}, &buf)

	log.Debug("hidden")
	log.Info("evaluated", zap.String("cell", "A1"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "evaluated", entry["msg"])
	assert.Equal(t, "A1", entry["cell"])
	assert.Contains(t, entry, "caller")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := build(config.LoggingConfig{Level: "debug", Format: "console", Output: "stdout"}, &buf)

	log.Debug("parsed formula")
	require.NoError(t, log.Sync())
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "parsed formula")
}

func TestFileOutput(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "fx.log")
	log := build(config.LoggingConfig{
		Level:    "warn",
		Format:   "json",
		Output:   "file",
		FilePath: path,
		MaxSize:  1,
	}, &console)

	log.Warn("circular reference", zap.String("cell", "Sheet1!B2"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "circular reference")
	assert.Empty(t, console.String())
}

func TestFileOutputWithoutPath(t *testing.T) {
	log := build(config.LoggingConfig{Level: "warn", Output: "file"}, &bytes.Buffer{})
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}
