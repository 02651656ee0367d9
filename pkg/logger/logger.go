package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	Logger *slog.Logger
	// handlerLevel follows SetLogLevel so the handler never filters records
	// the package-level gate has let through.
	handlerLevel = new(slog.LevelVar)
	currentLevel = INFO
)

func init() {
	handlerLevel.Set(slogLevel(currentLevel))
	Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: handlerLevel}))
}

type Options struct {
	Level  string
	File   string
	Format string
}

// Configure rebuilds Logger from opts. Invalid values are ignored and
// reported together in the returned error: the level stays as it was, the
// file is skipped and the format falls back to text.
func Configure(opts Options) error {
	var errs []error

	level := currentLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := ParseLogLevel(opts.Level)
		if err != nil {
			errs = append(errs, err)
		} else {
			level = parsed
		}
	}

	writer, err := openOutput(opts.File)
	if err != nil {
		errs = append(errs, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: handlerLevel}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatText:
		handler = slog.NewTextHandler(writer, handlerOpts)
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, handlerOpts)
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", opts.Format))
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	SetLogLevel(level)
	Logger = slog.New(handler)
	return errors.Join(errs...)
}

// openOutput returns stdout, teed into path when one is given.
func openOutput(path string) (io.Writer, error) {
	if strings.TrimSpace(path) == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout, fmt.Errorf("open log file: %w", err)
	}
	return io.MultiWriter(os.Stdout, file), nil
}

func SetLogLevel(level LogLevel) {
	currentLevel = level
	handlerLevel.Set(slogLevel(level))
}

func Enabled(level LogLevel) bool {
	return currentLevel <= level
}

func ParseLogLevel(value string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("invalid log level %q", value)
	}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, args ...any) {
	if Enabled(DEBUG) {
		Logger.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if Enabled(INFO) {
		Logger.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Enabled(WARN) {
		Logger.Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Enabled(ERROR) {
		Logger.Error(msg, args...)
	}
}
