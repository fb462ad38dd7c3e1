package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// StdoutLogger is the structured logger used by the service and the CLI.
// It implements Logger and prints JSON lines through a SecureHandler, so
// tokens and tool API keys are masked before they reach the output.
type StdoutLogger struct {
	l *slog.Logger
}

// NewStdoutLogger creates a JSON logger writing to stdout at info level.
// component is optional and is attached to every line.
func NewStdoutLogger(component string) *StdoutLogger {
	return NewLogger(os.Stdout, component, "info")
}

// NewLogger creates a JSON logger writing to w. level is one of
// debug, info, warn, error; anything else means info.
func NewLogger(w io.Writer, component, level string) *StdoutLogger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	l := slog.New(NewSecureHandler(slog.NewJSONHandler(w, opts)))
	if component != "" {
		l = l.With(slog.String("component", component))
	}
	return &StdoutLogger{l: l}
}

// ParseLevel maps a level name to a slog.Level.
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

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func (s *StdoutLogger) log(level slog.Level, msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), level, msg, toAttrs(fields)...)
}

func (s *StdoutLogger) Debug(msg string, fields ...Field) {
	s.log(slog.LevelDebug, msg, fields...)
}

func (s *StdoutLogger) Info(msg string, fields ...Field) {
	s.log(slog.LevelInfo, msg, fields...)
}

func (s *StdoutLogger) Warn(msg string, fields ...Field) {
	s.log(slog.LevelWarn, msg, fields...)
}

func (s *StdoutLogger) Error(msg string, fields ...Field) {
	s.log(slog.LevelError, msg, fields...)
}

func (s *StdoutLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, a := range toAttrs(fields) {
		args = append(args, a)
	}
	return &StdoutLogger{l: s.l.With(args...)}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &StdoutLogger{l: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}
