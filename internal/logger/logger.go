// Package logger wraps the zap logger used by both binaries.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger holds the process-wide structured logger.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger that discards everything until Init is called.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces the no-op logger with a production JSON logger writing to
// stderr at the given level ("debug", "info", "warn", "error").
func (l *Logger) Init(level string) error {
	return l.build(level, zap.NewProductionConfig())
}

// InitConsole is like Init but uses the human-readable console encoder.
// The interactive client uses it so log lines stay readable next to the shell.
func (l *Logger) InitConsole(level string) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	return l.build(level, cfg)
}

func (l *Logger) build(level string, cfg zap.Config) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	l.Log = zl
	return nil
}
