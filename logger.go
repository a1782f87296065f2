package accounts

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
)

// NewLogger adapts a logr.Logger to the package Logger. Debug messages are
// emitted at V(1).
func NewLogger(l logr.Logger) Logger {
	return &logrLogger{l: l.WithName("accounts")}
}

// DefaultLogger writes text records to stderr.
func DefaultLogger() Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return NewLogger(logr.FromSlogHandler(h))
}

// DiscardLogger drops everything.
func DiscardLogger() Logger {
	return NewLogger(logr.Discard())
}

type logrLogger struct {
	l logr.Logger
}

func (g *logrLogger) Debug(format string, args ...any) {
	g.l.V(1).Info(fmt.Sprintf(format, args...))
}

func (g *logrLogger) Info(format string, args ...any) {
	g.l.Info(fmt.Sprintf(format, args...))
}

func (g *logrLogger) Warn(format string, args ...any) {
	g.l.Info(fmt.Sprintf(format, args...), "level", "warn")
}

func (g *logrLogger) Error(format string, args ...any) {
	g.l.Error(nil, fmt.Sprintf(format, args...))
}

func resolveLogger(l Logger) Logger {
	if l == nil {
		return DefaultLogger()
	}
	return l
}
