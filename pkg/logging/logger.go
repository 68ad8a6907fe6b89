// Package logging provides the structured logger shared by all engine
// components.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Level represents the severity level of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config holds configuration for the structured logger.
type Config struct {
	Level     Level  `json:"level" yaml:"level"`
	Format    string `json:"format" yaml:"format"` // "json" or "text"
	Service   string `json:"service" yaml:"service"`
	AddSource bool   `json:"add_source" yaml:"add_source"`
}

// Logger wraps slog with service and component context.
type Logger struct {
	*slog.Logger
	service string
}

// NewLogger creates a structured logger writing to stdout.
func NewLogger(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}

	return &Logger{Logger: logger, service: config.Service}
}

// WithComponent returns a logger scoped to a specific component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:  l.Logger.With("component", component),
		service: l.service,
	}
}

func parseLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
