package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
	level      = new(slog.LevelVar)
)

// Logger returns a singleton slog logger, starting at the LOG_LEVEL level.
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		level.Set(ParseLevel(os.Getenv("LOG_LEVEL")))
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	})
	return logger
}

// SetLevel changes the level of the singleton logger.
func SetLevel(name string) {
	Logger()
	level.Set(ParseLevel(name))
}

// NewLogger builds a text logger writing to w at the named level.
func NewLogger(w io.Writer, name string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(name)}))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
