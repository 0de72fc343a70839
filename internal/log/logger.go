package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
)

// Setup initializes the global logger. Invalid levels fall back to INFO and
// unknown formats fall back to JSON, so a bad config never loses log output.
func Setup(level, format string) {
	mu.Lock()
	defer mu.Unlock()
	logger = build(os.Stderr, level, format)
	slog.SetDefault(logger)
}

// SetupWriter is Setup with an explicit sink, used by tests.
func SetupWriter(w io.Writer, level, format string) {
	mu.Lock()
	defer mu.Unlock()
	logger = build(w, level, format)
}

func build(w io.Writer, level, format string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: l}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = build(os.Stderr, "INFO", "json")
		slog.SetDefault(logger)
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithExecution returns a logger with the execution_id field set.
func WithExecution(id string) *slog.Logger {
	return Get().With(slog.String("execution_id", id))
}

// WithCommand returns a logger with the command field set.
func WithCommand(cmd string) *slog.Logger {
	return Get().With(slog.String("command", cmd))
}
