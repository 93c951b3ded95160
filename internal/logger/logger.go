// Package logger provides the process-wide structured logger.
//
// It fronts log/slog with a colored text handler for terminals and a JSON
// handler for machine consumption. The lock library emits diagnostics
// through this package only; diagnostic output never affects returned
// statuses.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	mu       sync.RWMutex
	output   io.Writer = os.Stderr
	useColor bool
	slogger  *slog.Logger
)

func init() {
	if f, ok := output.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	reconfigure("INFO", "text")
}

// Init configures the logger. Output may be "stdout", "stderr" or a file
// path, which is opened for appending.
func Init(cfg Config) error {
	mu.Lock()
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			mu.Unlock()
			return fmt.Errorf("failed to open log output: %w", err)
		}
		output = f
	}
	if f, ok := output.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	} else {
		useColor = false
	}
	mu.Unlock()

	reconfigure(cfg.Level, cfg.Format)
	return nil
}

// reconfigure rebuilds the slog handler from the current settings.
func reconfigure(level, format string) {
	mu.Lock()
	defer mu.Unlock()

	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(level))
	opts := &slog.HandlerOptions{Level: levelVar}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level with key/value attributes.
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs at info level with key/value attributes.
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs at warn level with key/value attributes.
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs at error level with key/value attributes.
func Error(msg string, args ...any) { current().Error(msg, args...) }
