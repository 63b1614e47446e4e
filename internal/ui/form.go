package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dpshade/fieldmark/internal/config"
	"github.com/dpshade/fieldmark/internal/models"
	"github.com/dpshade/fieldmark/internal/validation"
)

// Settings form field indices, in config.Keys order
const (
	statRegexField = iota
	prefixField
	templatesDirField
	targetDirField
	triggerField
	dialectField
)

var settingsLabels = []string{
	"Stat pattern",
	"Unfilled prefix",
	"Templates directory",
	"Target directory",
	"Trigger (keyup, click)",
	"Pattern dialect (re2, ecmascript)",
}

var settingsHelp = []string{
	"Lines matching this pattern are unfilled fields",
	"Inserted at the start of every unfilled line",
	"Notes here are never highlighted",
	"Only notes here are highlighted; empty means the whole vault",
	"Editor event that starts a pass",
	"Regular expression engine for the stat pattern",
}

// SettingsForm edits the settings. Every change is saved as it is typed,
// so the form keeps per-field errors and warnings from the last save.
type SettingsForm struct {
	inputs  []textinput.Model
	focused int

	errors   map[string]string
	warnings map[string]string
	// paused holds the pattern error while highlighting is paused
	paused string
}

// NewSettingsForm creates a settings form
func NewSettingsForm() *SettingsForm {
	inputs := make([]textinput.Model, len(settingsLabels))
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].CharLimit = 1000
		inputs[i].Width = 60
	}
	inputs[statRegexField].Placeholder = `^.*\: $`
	inputs[targetDirField].Placeholder = "(whole vault)"
	inputs[triggerField].Width = 20
	inputs[dialectField].Width = 20
	inputs[0].Focus()

	return &SettingsForm{
		inputs:   inputs,
		errors:   map[string]string{},
		warnings: map[string]string{},
	}
}

// LoadSettings fills the form
func (f *SettingsForm) LoadSettings(s models.Settings) {
	for i, key := range config.Keys() {
		value, _ := config.Get(s, key)
		f.inputs[i].SetValue(value)
	}
}

// ToSettings reads the form back into settings
func (f *SettingsForm) ToSettings(base models.Settings) models.Settings {
	s := base
	for i, key := range config.Keys() {
		s, _ = config.Set(s, key, f.inputs[i].Value())
	}
	return s
}

// Update handles navigation and typing. changed is true when a value was
// edited and the settings should be saved.
func (f *SettingsForm) Update(msg tea.Msg) (changed bool, cmd tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "tab", "down", "enter":
			f.nextField()
			return false, nil
		case "shift+tab", "up":
			f.prevField()
			return false, nil
		}
	}

	before := f.inputs[f.focused].Value()
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return f.inputs[f.focused].Value() != before, cmd
}

func (f *SettingsForm) nextField() {
	f.inputs[f.focused].Blur()
	f.focused = (f.focused + 1) % len(f.inputs)
	f.inputs[f.focused].Focus()
}

func (f *SettingsForm) prevField() {
	f.inputs[f.focused].Blur()
	f.focused = (f.focused - 1 + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focused].Focus()
}

// Focused returns the index of the focused field
func (f *SettingsForm) Focused() int { return f.focused }

// SetResult records the outcome of the last save
func (f *SettingsForm) SetResult(result *validation.ValidationResult, patternErr error) {
	f.errors = map[string]string{}
	f.warnings = map[string]string{}
	f.paused = ""

	if result != nil {
		for _, e := range result.Errors {
			f.errors[e.Field] = e.Message
		}
		for _, w := range result.Warnings {
			f.warnings[w.Field] = w.Message
		}
	}
	if patternErr != nil {
		f.paused = patternErr.Error()
	}
}

// FieldError returns the error shown under the field for key
func (f *SettingsForm) FieldError(key string) string { return f.errors[key] }

// FieldWarning returns the warning shown under the field for key
func (f *SettingsForm) FieldWarning(key string) string { return f.warnings[key] }

// Paused reports whether highlighting is paused by a bad pattern
func (f *SettingsForm) Paused() bool { return f.paused != "" }

func (f *SettingsForm) View() string {
	var b strings.Builder
	keys := config.Keys()

	for i, input := range f.inputs {
		label := settingsLabels[i]
		if i == f.focused {
			b.WriteString(StyleFocused.Render(label))
		} else {
			b.WriteString(StyleFormLabel.Render(label))
		}
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n")

		switch {
		case f.errors[keys[i]] != "":
			b.WriteString(StyleError.Render(f.errors[keys[i]]))
		case f.warnings[keys[i]] != "":
			b.WriteString(StyleWarning.Render(f.warnings[keys[i]]))
		default:
			b.WriteString(StyleFormHelp.Render(settingsHelp[i]))
		}
		b.WriteString("\n\n")
	}

	if f.paused != "" {
		b.WriteString(StyleError.Render("Highlighting paused: " + f.paused))
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().PaddingLeft(1).Render(b.String())
}
