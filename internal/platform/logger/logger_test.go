package logger

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

	"github.com/storyreel/storyreel/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "uppercase", input: "DEBUG", want: slog.LevelDebug},
		{name: "mixed case", input: "Warn", want: slog.LevelWarn},
		{name: "invalid defaults to info", input: "verbose", want: slog.LevelInfo},
		{name: "empty defaults to info", input: "", want: slog.LevelInfo},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseLevel(tc.input))
		})
	}
}

func TestSetupWithWriters(t *testing.T) {
	t.Run("writes to both streams", func(t *testing.T) {
		var stdout, file bytes.Buffer
		logger := SetupWithWriters(&stdout, &file, slog.LevelInfo)

		logger.Info("render started", "scenes", 3)

		for name, buf := range map[string]*bytes.Buffer{"stdout": &stdout, "file": &file} {
			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record), name)
			assert.Equal(t, "render started", record["msg"], name)
			assert.Equal(t, float64(3), record["scenes"], name)
		}
	})

	t.Run("level filters both streams", func(t *testing.T) {
		var stdout, file bytes.Buffer
		logger := SetupWithWriters(&stdout, &file, slog.LevelWarn)

		logger.Info("too quiet")

		assert.Zero(t, stdout.Len())
		assert.Zero(t, file.Len())
	})

	t.Run("nil file writer is stdout only", func(t *testing.T) {
		var stdout bytes.Buffer
		logger := SetupWithWriters(&stdout, nil, slog.LevelInfo)

		logger.Info("solo")

		assert.Contains(t, stdout.String(), "solo")
	})
}

func TestSetup(t *testing.T) {
	t.Run("mirrors records to the log file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "server.log")
		logger, cleanup := Setup(config.ServerConfig{LogLevel: "info", LogFile: logFile})
		require.NotNil(t, logger)

		logger.Info("log file check")
		require.NoError(t, cleanup())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "log file check")
	})

	t.Run("unopenable log file degrades to stdout only", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "missing", "nested", "server.log")
		logger, cleanup := Setup(config.ServerConfig{LogLevel: "info", LogFile: logFile})
		require.NotNil(t, logger)
		assert.NoError(t, cleanup())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, cleanup := Setup(config.ServerConfig{LogLevel: "shout"})
		defer func() { _ = cleanup() }()
		require.NotNil(t, logger)

		ctx := context.Background()
		assert.True(t, logger.Handler().Enabled(ctx, slog.LevelInfo))
		assert.False(t, logger.Handler().Enabled(ctx, slog.LevelDebug))
	})
}
