package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 5
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Options selects where and how logs are written.
type Options struct {
	// Level is one of debug, info, warn or error. Anything else means info.
	Level string
	// Format is text or json. Anything else means text.
	Format string
	// File is the path of a rotated log file. When empty, logs go to Fallback.
	File string
	// Fallback receives the logs when File is empty. Nil discards them.
	Fallback io.Writer
}

// New builds a logger from opts and installs it as the slog default.
func New(opts Options) (*slog.Logger, error) {
	handlerOptions := &slog.HandlerOptions{Level: parseLogLevel(opts.Level)}

	out := opts.Fallback
	if out == nil {
		out = io.Discard
	}

	var err error
	if logPath := strings.TrimSpace(opts.File); logPath != "" {
		if mkErr := os.MkdirAll(filepath.Dir(logPath), 0700); mkErr != nil {
			err = fmt.Errorf("failed to create log directory: %w", mkErr)
		} else {
			out = &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    maxLogSizeMB,
				MaxBackups: maxLogBackups,
				MaxAge:     maxLogAgeDays,
				Compress:   true,
			}
		}
	}

	logger := slog.New(newHandler(opts.Format, out, handlerOptions))
	slog.SetDefault(logger)
	return logger, err
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return slog.NewJSONHandler(out, opts)
	default:
		return slog.NewTextHandler(out, opts)
	}
}
