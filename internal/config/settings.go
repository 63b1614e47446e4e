package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/natefinch/atomic"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

const (
	// StateDirName is the per-vault directory holding settings, cache and logs
	StateDirName = ".fieldmark"
	settingsFile = "settings.yaml"
	envPrefix    = "FIELDMARK_"
)

// envKeys maps environment variables to settings keys. Anything else with
// the FIELDMARK_ prefix (FIELDMARK_DIR, FIELDMARK_LOG_LEVEL) is ignored here.
var envKeys = map[string]string{
	"FIELDMARK_STAT_REGEX":    "statRegex",
	"FIELDMARK_PREFIX":        "unfilledStatPrefix",
	"FIELDMARK_TEMPLATES_DIR": "templatesDirectory",
	"FIELDMARK_TARGET_DIR":    "targetHighlightingDirectory",
	"FIELDMARK_TRIGGER":       "trigger",
	"FIELDMARK_DIALECT":       "patternDialect",
}

// Store loads and saves a vault's settings blob.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FIELDMARK_PREFIX, FIELDMARK_STAT_REGEX, ...)
//  2. <vault>/.fieldmark/settings.yaml
//  3. Variant defaults
//
// Keys absent from the file keep their default, so older files pick up new
// settings without migration.
type Store struct {
	baseDir string
	path    string
	variant marker.Variant
	mu      sync.Mutex
}

// NewStore creates a settings store for the vault at baseDir
func NewStore(baseDir string, variant marker.Variant) (*Store, error) {
	stateDir := filepath.Join(baseDir, StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{
		baseDir: baseDir,
		path:    filepath.Join(stateDir, settingsFile),
		variant: variant,
	}, nil
}

// Path returns the settings file path
func (s *Store) Path() string { return s.path }

// StateDir returns <vault>/.fieldmark
func (s *Store) StateDir() string { return filepath.Dir(s.path) }

// Variant returns the variant whose defaults back this store
func (s *Store) Variant() marker.Variant { return s.variant }

// Exists reports whether a settings file has been saved
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load merges the file over the variant defaults, then applies environment
// overrides. A missing file is not an error.
func (s *Store) Load() (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := koanf.New(".")

	defaults, err := yamlv3.Marshal(s.variant.Defaults())
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return models.Settings{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	content, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return models.Settings{}, fmt.Errorf("failed to load settings file %s: %w", s.path, err)
		}
	case !os.IsNotExist(err):
		return models.Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return envKeys[key]
	}), nil); err != nil {
		return models.Settings{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var settings models.Settings
	if err := k.UnmarshalWithConf("", &settings, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return models.Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	settings.TemplatesDirectory = NormalizePath(settings.TemplatesDirectory)
	settings.TargetHighlightingDirectory = NormalizePath(settings.TargetHighlightingDirectory)

	return settings, nil
}

// Save writes settings atomically. Every key is written, including empty ones,
// so an emptied target directory stays empty on the next load.
func (s *Store) Save(settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yamlv3.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Reset removes the settings file and returns the defaults
func (s *Store) Reset() (models.Settings, error) {
	s.mu.Lock()
	err := os.Remove(s.path)
	s.mu.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return models.Settings{}, fmt.Errorf("failed to remove settings: %w", err)
	}
	return s.Load()
}

// Keys lists the settable keys in display order
func Keys() []string {
	return []string{
		"statRegex",
		"unfilledStatPrefix",
		"templatesDirectory",
		"targetHighlightingDirectory",
		"trigger",
		"patternDialect",
	}
}

var keyAliases = map[string]string{
	"pattern":   "statRegex",
	"regex":     "statRegex",
	"prefix":    "unfilledStatPrefix",
	"marker":    "unfilledStatPrefix",
	"templates": "templatesDirectory",
	"target":    "targetHighlightingDirectory",
	"dialect":   "patternDialect",
}

// CanonicalKey resolves aliases like "prefix" to the stored key name
func CanonicalKey(key string) (string, bool) {
	if alias, ok := keyAliases[strings.ToLower(key)]; ok {
		return alias, true
	}
	for _, k := range Keys() {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

// Get returns the value of key
func Get(settings models.Settings, key string) (string, error) {
	canonical, ok := CanonicalKey(key)
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	switch canonical {
	case "statRegex":
		return settings.StatRegex, nil
	case "unfilledStatPrefix":
		return settings.UnfilledStatPrefix, nil
	case "templatesDirectory":
		return settings.TemplatesDirectory, nil
	case "targetHighlightingDirectory":
		return settings.TargetHighlightingDirectory, nil
	case "trigger":
		return string(settings.TriggerOrDefault()), nil
	default:
		return string(settings.Dialect()), nil
	}
}

// Set returns settings with key changed to value. Directory values are
// normalized; nothing is validated here.
func Set(settings models.Settings, key, value string) (models.Settings, error) {
	canonical, ok := CanonicalKey(key)
	if !ok {
		return settings, fmt.Errorf("unknown setting %q", key)
	}
	switch canonical {
	case "statRegex":
		settings.StatRegex = value
	case "unfilledStatPrefix":
		settings.UnfilledStatPrefix = value
	case "templatesDirectory":
		settings.TemplatesDirectory = NormalizePath(value)
	case "targetHighlightingDirectory":
		settings.TargetHighlightingDirectory = NormalizePath(value)
	case "trigger":
		settings.Trigger = models.TriggerKind(strings.ToLower(strings.TrimSpace(value)))
	case "patternDialect":
		settings.PatternDialect = models.PatternDialect(strings.ToLower(strings.TrimSpace(value)))
	}
	return settings, nil
}
