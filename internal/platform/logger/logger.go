package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/storyreel/storyreel/internal/config"
)

// Setup initializes and configures the application's logging system based on
// the provided configuration: a structured JSON handler on stdout, fanned out
// to a JSON log file when one is configured. The returned logger is also set
// as the process default so the slog package functions go through it.
//
// The cleanup function closes the log file; it is safe to call when no file
// was opened. A file that cannot be opened downgrades to stdout-only with a
// warning rather than failing startup.
func Setup(cfg config.ServerConfig) (*slog.Logger, func() error) {
	level := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	stdoutHandler := slog.NewJSONHandler(os.Stdout, opts)
	handler := slog.Handler(stdoutHandler)
	cleanup := func() error { return nil }

	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.New(stdoutHandler).Warn("failed to open log file, using stdout only",
				"log_file", cfg.LogFile,
				"error", err)
		} else {
			handler = slogmulti.Fanout(stdoutHandler, slog.NewJSONHandler(file, opts))
			cleanup = file.Close
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup
}

// SetupCLI builds a logger for command line use: human-readable text on
// stderr at the given level, keeping stdout free for command output. The
// returned logger is also set as the process default.
func SetupCLI(levelName string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(levelName)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// SetupWithWriters builds the same fanout logger over caller-provided
// writers, so tests can capture both streams. A nil file writer yields a
// stdout-only logger.
func SetupWithWriters(stdout, file io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	stdoutHandler := slog.NewJSONHandler(stdout, opts)
	if file == nil {
		return slog.New(stdoutHandler)
	}
	return slog.New(slogmulti.Fanout(stdoutHandler, slog.NewJSONHandler(file, opts)))
}

// parseLevel maps the configured level name to a slog.Level
// (case-insensitive). Unrecognized values warn and fall back to info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", name,
			"default_level", "info")
		return slog.LevelInfo
	}
}
