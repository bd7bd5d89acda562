package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	level *slog.LevelVar
	log   *slog.Logger
}

func New(w io.Writer, format string, level string) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(level))

	opts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{level: lv, log: slog.New(handler)}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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

func (l *Logger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log.Error(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.log.Error(msg, args...)
	os.Exit(1)
}

// Slog exposes the underlying logger for components that take a *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.log
}

// Global logger instance
var GlobalLogger = New(os.Stdout, "text", "info")

// Configure replaces the global logger and makes it the slog default.
func Configure(format, level string) {
	GlobalLogger = New(os.Stdout, format, level)
	slog.SetDefault(GlobalLogger.Slog())
}

// With returns a component logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return GlobalLogger.Slog().With(args...)
}

// Convenience functions
func Info(msg string, args ...any) {
	GlobalLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	GlobalLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	GlobalLogger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	GlobalLogger.Debug(msg, args...)
}

func Fatal(msg string, args ...any) {
	GlobalLogger.Fatal(msg, args...)
}
