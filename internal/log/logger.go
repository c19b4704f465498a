package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger with the given level string (debug, info, warn, error).
func New(level string) *zerolog.Logger {
	return newLogger(level, consoleWriter(os.Stdout))
}

// NewWithFile behaves like New and additionally appends JSON lines to path.
// The returned closer releases the file; it is a no-op when path is empty.
func NewWithFile(level, path string) (*zerolog.Logger, io.Closer, error) {
	if path == "" {
		return New(level), nopCloser{}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	writer := zerolog.MultiLevelWriter(consoleWriter(os.Stdout), f)
	return newLogger(level, writer), f, nil
}

func newLogger(level string, w io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &logger
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
