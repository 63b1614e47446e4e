// Package logging builds the zap loggers used by each host.
//
// The CLI and the watcher log human-readable lines to stderr. The TUI owns
// the terminal, so it logs JSON to a file under the vault's state directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// LevelEnv overrides the log level
const LevelEnv = "FIELDMARK_LOG_LEVEL"

// Config holds logging configuration
type Config struct {
	Level  zapcore.Level
	Format string // "console" or "json"
	// File is the log file path; empty means stderr
	File string
}

// NewDefaultConfig returns the console configuration at info level, with the
// level taken from FIELDMARK_LOG_LEVEL when set.
func NewDefaultConfig() *Config {
	cfg := &Config{Level: zapcore.InfoLevel, Format: "console"}
	if v := os.Getenv(LevelEnv); v != "" {
		if lvl, err := ParseLevel(v); err == nil {
			cfg.Level = lvl
		}
	}
	return cfg
}

// FileConfig logs JSON to <stateDir>/logs/fieldmark.log
func FileConfig(stateDir string) *Config {
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.File = filepath.Join(stateDir, "logs", "fieldmark.log")
	return cfg
}

// ParseLevel accepts zap level names, case-insensitively
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// Validate checks config for errors
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	return nil
}

// New builds a logger from cfg
func New(cfg *Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(out), cfg.Level)
	return zap.New(core), nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.TimeKey = ""
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// NewObserved returns a logger that records every entry at or above level,
// for tests that assert on log output.
func NewObserved(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(level)
	return zap.New(core), observed
}
