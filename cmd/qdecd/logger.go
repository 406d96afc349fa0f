package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dikkadev/prettyslog"
)

// LogLevel represents the available logging levels
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// parseLogLevel converts a string to a LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// setupLogger creates a slog logger for the given level and format.
// format is text (default), json, or pretty for an interactive terminal.
func setupLogger(level LogLevel, format string) *slog.Logger {
	return slog.New(newLogHandler(os.Stdout, level, format))
}

func newLogHandler(w io.Writer, level LogLevel, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level.slogLevel(),
	}

	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "pretty":
		// prettyslog always writes to stdout
		return prettyslog.NewPrettyslogHandler("qdecd", prettyslog.WithLevel(level.slogLevel()))
	default:
		return slog.NewTextHandler(w, opts)
	}
}
