package marker

import (
	"crypto/sha256"
	"encoding/hex"

	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/models"
)

// Config is an immutable snapshot of settings with the pattern compiled once.
// A new Config is built whenever settings change; passes already running
// keep the snapshot they started with.
type Config struct {
	Settings models.Settings
	Pattern  Pattern

	// Err is the ConfigurationError from compiling the pattern, if any.
	// Reconciliation is skipped while it is set.
	Err error
}

// NewConfig compiles the pattern in s. It never returns nil; an invalid
// pattern is recorded in Config.Err.
func NewConfig(s models.Settings) *Config {
	cfg := &Config{Settings: s}
	pattern, err := CompilePattern(s.StatRegex, s.Dialect())
	if err != nil {
		cfg.Err = apperrors.ConfigurationError(s.StatRegex, err)
		return cfg
	}
	cfg.Pattern = pattern
	return cfg
}

// Valid reports whether the snapshot can be used for reconciliation
func (c *Config) Valid() bool {
	return c != nil && c.Err == nil && c.Pattern != nil
}

// Prefix returns the marker prefix
func (c *Config) Prefix() string {
	return c.Settings.UnfilledStatPrefix
}

// Fingerprint identifies the settings that affect classification results.
// Cached per-note summaries are invalidated when it changes.
func (c *Config) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{
		c.Settings.StatRegex,
		string(c.Settings.Dialect()),
		c.Settings.UnfilledStatPrefix,
		c.Settings.TemplatesDirectory,
		c.Settings.TargetHighlightingDirectory,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
