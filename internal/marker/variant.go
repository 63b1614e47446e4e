package marker

import (
	"sort"

	"github.com/dpshade/fieldmark/internal/models"
)

// DefaultPattern matches a line ending in ": ", a field label with nothing after it
const DefaultPattern = `^.*\: $`

// Variant bundles the defaults that distinguish one highlighting flavour from
// another. Both variants share the same classification core.
type Variant struct {
	Name           string
	Trigger        models.TriggerKind
	Scope          ScopePolicy
	DefaultPrefix  string
	DefaultPattern string
	TemplatesDir   string
	TargetDir      string
}

var (
	// Journal marks fields on every key release, only inside the journal directory
	Journal = Variant{
		Name:           "journal",
		Trigger:        models.TriggerKeyUp,
		Scope:          ScopeTargetOnly,
		DefaultPrefix:  "__",
		DefaultPattern: DefaultPattern,
		TemplatesDir:   "Templates",
		TargetDir:      "Journaling",
	}

	// Highlight marks fields on mouse click, everywhere except templates
	Highlight = Variant{
		Name:           "highlight",
		Trigger:        models.TriggerClick,
		Scope:          ScopeExcludeTemplates,
		DefaultPrefix:  "==",
		DefaultPattern: DefaultPattern,
		TemplatesDir:   "Templates",
	}
)

var variants = map[string]Variant{
	Journal.Name:   Journal,
	Highlight.Name: Highlight,
}

// LookupVariant returns the named variant
func LookupVariant(name string) (Variant, bool) {
	v, ok := variants[name]
	return v, ok
}

// VariantNames lists the known variants in sorted order
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the settings a fresh vault starts with
func (v Variant) Defaults() models.Settings {
	s := models.Settings{
		StatRegex:          v.DefaultPattern,
		UnfilledStatPrefix: v.DefaultPrefix,
		TemplatesDirectory: v.TemplatesDir,
		Trigger:            v.Trigger,
		PatternDialect:     models.DialectRE2,
	}
	if v.Scope == ScopeTargetOnly {
		s.TargetHighlightingDirectory = v.TargetDir
	}
	return s
}
