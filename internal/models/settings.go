package models

// TriggerKind names the event class that starts a reconciliation pass
type TriggerKind string

const (
	TriggerKeyUp     TriggerKind = "keyup"
	TriggerClick     TriggerKind = "click"
	TriggerFileWrite TriggerKind = "file-write"
)

// PatternDialect selects the regular expression engine used for statRegex
type PatternDialect string

const (
	DialectRE2        PatternDialect = "re2"
	DialectECMAScript PatternDialect = "ecmascript"
)

// Settings is the persisted, user-editable configuration.
// The yaml keys match the Obsidian plugin's data.json, so a data.json copied
// into the vault loads unchanged.
type Settings struct {
	StatRegex                   string         `yaml:"statRegex" json:"statRegex"`
	UnfilledStatPrefix          string         `yaml:"unfilledStatPrefix" json:"unfilledStatPrefix"`
	TemplatesDirectory          string         `yaml:"templatesDirectory" json:"templatesDirectory"`
	TargetHighlightingDirectory string         `yaml:"targetHighlightingDirectory" json:"targetHighlightingDirectory"`
	Trigger                     TriggerKind    `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	PatternDialect              PatternDialect `yaml:"patternDialect,omitempty" json:"patternDialect,omitempty"`
}

// Dialect returns the configured dialect, defaulting to RE2
func (s Settings) Dialect() PatternDialect {
	if s.PatternDialect == "" {
		return DialectRE2
	}
	return s.PatternDialect
}

// TriggerOrDefault returns the configured trigger, defaulting to keyup
func (s Settings) TriggerOrDefault() TriggerKind {
	if s.Trigger == "" {
		return TriggerKeyUp
	}
	return s.Trigger
}
