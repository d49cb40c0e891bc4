// Package observability owns logger construction. The process-wide
// logger is initialized once at startup and injected into everything
// that logs; the package-level accessor exists for the CLI layer only.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process logger. Nil until InitCLILogger runs; call
// it first thing in main.
var CLILogger *zap.Logger

// InitCLILogger builds and installs the process logger. level is a zap
// level name ("debug", "info", ...); structured selects JSON output,
// otherwise the console encoder is used.
func InitCLILogger(level string, structured bool) error {
	logger, err := NewLogger(level, structured)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// NewLogger builds a logger without installing it.
func NewLogger(level string, structured bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if structured {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Sync flushes buffered log entries. Safe to call with no logger
// installed.
func Sync() {
	if CLILogger != nil {
		_ = CLILogger.Sync()
	}
}
