package renderer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

// Renderer handles note rendering
type Renderer struct {
	note *models.Note
	cfg  *marker.Config
}

// NewRenderer creates a new renderer instance. cfg may be nil, in which case
// no field is reported.
func NewRenderer(note *models.Note, cfg *marker.Config) *Renderer {
	return &Renderer{
		note: note,
		cfg:  cfg,
	}
}

// Field is one line the pattern recognises as a field
type Field struct {
	// Line is 1-based
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Marked bool   `json:"marked"`
}

// Report is the JSON form of a note's marker state
type Report struct {
	Path     string  `json:"path"`
	Title    string  `json:"title,omitempty"`
	InScope  bool    `json:"in_scope"`
	Unfilled int     `json:"unfilled"`
	Pending  int     `json:"pending"`
	Fields   []Field `json:"fields"`
}

// RenderText renders the note as plain text
func (r *Renderer) RenderText() (string, error) {
	return r.note.Content, nil
}

// RenderJSON renders the note's fields and counts as JSON
func (r *Renderer) RenderJSON() (string, error) {
	report := Report{
		Path:     r.note.Path,
		Title:    r.note.Frontmatter.Title,
		InScope:  r.note.InScope,
		Unfilled: r.note.Unfilled,
		Pending:  r.note.Pending,
		Fields:   r.Fields(),
	}

	jsonBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	return string(jsonBytes), nil
}

// Fields lists the lines the pattern matches once the prefix is ignored
func (r *Renderer) Fields() []Field {
	fields := []Field{}
	if !r.cfg.Valid() {
		return fields
	}
	prefix := r.cfg.Prefix()
	for i, line := range marker.NewBuffer(r.note.Content).Lines() {
		marked := prefix != "" && strings.HasPrefix(line, prefix)
		text := line
		if marked {
			text = marker.WithoutPrefix(line, prefix)
		}
		if !r.cfg.Pattern.MatchString(text) && !r.cfg.Pattern.MatchString(line) {
			continue
		}
		fields = append(fields, Field{Line: i + 1, Text: strings.TrimSpace(text), Marked: marked})
	}
	return fields
}

// RenderMarkdown rewrites marked lines so they stand out in a markdown
// preview. Lines are otherwise unchanged.
func (r *Renderer) RenderMarkdown() string {
	if !r.cfg.Valid() || r.cfg.Prefix() == "" {
		return r.note.Content
	}
	prefix := r.cfg.Prefix()
	buf := marker.NewBuffer(r.note.Content)
	lines := buf.Lines()
	for i, line := range lines {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		rest := strings.TrimSpace(marker.WithoutPrefix(line, prefix))
		if rest == "" {
			continue
		}
		lines[i] = "**" + rest + "** _(unfilled)_"
	}
	return strings.Join(lines, "\n")
}

// RenderPreview renders the markdown form through glamour
func (r *Renderer) RenderPreview(wordWrap int) (string, error) {
	tr, err := NewGlamourRenderer(wordWrap)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := tr.Render(r.RenderMarkdown())
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// NewGlamourRenderer creates a glamour renderer suited to the terminal
// background. GLAMOUR_STYLE overrides the detection.
func NewGlamourRenderer(wordWrap int) (*glamour.TermRenderer, error) {
	if style := os.Getenv("GLAMOUR_STYLE"); style != "" {
		return glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(wordWrap),
		)
	}

	profile := termenv.ColorProfile()

	var styleOption glamour.TermRendererOption
	switch profile {
	case termenv.TrueColor, termenv.ANSI256:
		if lipgloss.HasDarkBackground() {
			styleOption = glamour.WithStandardStyle("dark")
		} else {
			styleOption = glamour.WithStandardStyle("light")
		}
	default:
		styleOption = glamour.WithAutoStyle()
	}

	return glamour.NewTermRenderer(
		styleOption,
		glamour.WithColorProfile(profile),
		glamour.WithWordWrap(wordWrap),
	)
}
