package chainmap

import (
	"context"
	"log/slog"
	"time"
)

// LogEvent describes one chain operation or evaluation for logging.
type LogEvent struct {
	Op       string
	Chain    string
	Key      any
	Layer    int
	Scope    string
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// Logger records chain events.
type Logger interface {
	LogEvent(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvent implements Logger.
func (f LoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvent(LogEvent) {}

// SlogLogger writes events to logger. Successful operations are logged at
// debug level, failures at warn.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) LogEvent(event LogEvent) {
	attrs := []slog.Attr{slog.String("op", event.Op)}
	if event.Chain != "" {
		attrs = append(attrs, slog.String("chain", event.Chain))
	}
	if event.Key != nil {
		attrs = append(attrs, slog.Any("key", event.Key))
	}
	if event.Engine != "" {
		attrs = append(attrs,
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.Duration("duration", event.Duration),
		)
	} else {
		attrs = append(attrs, slog.Int("layer", event.Layer))
	}
	if event.Scope != "" {
		attrs = append(attrs, slog.String("scope", event.Scope))
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, "chainmap "+event.Op, attrs...)
}
