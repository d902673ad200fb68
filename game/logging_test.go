package game

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/prowl/config"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := NewLogger(config.LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closeLog()

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Info("dropped")
	logger.Warn("kept", "npc", "guard_east")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "guard_east", rec["npc"])
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	logger, _, err := NewLogger(config.LoggingConfig{}, nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, _, err := NewLogger(config.LoggingConfig{Level: "loud"}, nil)
	assert.Error(t, err)
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prowl.log")
	var buf bytes.Buffer
	logger, closeLog, err := NewLogger(config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)

	logger.Debug("path solved", "ticks", 2)
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"path solved"`)
	assert.Equal(t, buf.String(), string(data))
}
