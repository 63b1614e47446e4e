package models

import (
	"fmt"
	"strings"
	"time"
)

// Frontmatter holds the optional YAML header of a note
type Frontmatter struct {
	Title string   `yaml:"title,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
}

// Note is a markdown document inside the vault
type Note struct {
	Frontmatter Frontmatter `yaml:"-"`

	// Path is vault-relative and always uses forward slashes
	Path        string    `yaml:"-" json:"path"`
	Content     string    `yaml:"-" json:"content,omitempty"`
	ContentHash string    `yaml:"-" json:"content_hash,omitempty"`
	ModTime     time.Time `yaml:"-" json:"mod_time"`

	// Unfilled is the number of marked fields, Pending the number of lines
	// the next reconciliation pass would rewrite
	Unfilled int  `yaml:"-" json:"unfilled"`
	Pending  int  `yaml:"-" json:"pending"`
	InScope  bool `yaml:"-" json:"in_scope"`
}

// Implement list.Item interface for bubbles list component

// FilterValue returns the value used for filtering in lists
func (n Note) FilterValue() string {
	return cleanString(n.Path + " " + n.Frontmatter.Title)
}

// Title satisfies the list.Item interface
func (n Note) Title() string {
	if n.Frontmatter.Title != "" {
		return cleanString(n.Frontmatter.Title)
	}
	return cleanString(n.Path)
}

// Description satisfies the list.Item interface
func (n Note) Description() string {
	var parts []string

	if n.Frontmatter.Title != "" {
		parts = append(parts, n.Path)
	}

	switch {
	case !n.InScope:
		parts = append(parts, "not highlighted")
	case n.Unfilled == 0 && n.Pending == 0:
		parts = append(parts, "all fields filled")
	default:
		parts = append(parts, fmt.Sprintf("%d unfilled", n.Unfilled))
		if n.Pending > 0 {
			parts = append(parts, fmt.Sprintf("%d pending", n.Pending))
		}
	}

	if !n.ModTime.IsZero() {
		parts = append(parts, "Last edited: "+n.ModTime.Format("2006-01-02 15:04"))
	}

	if len(n.Frontmatter.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(n.Frontmatter.Tags, ", "))
	}

	result := strings.Join(parts, " • ")

	// Leave space for list indicator and margins
	maxTotalLength := 100
	if len(result) > maxTotalLength {
		result = result[:maxTotalLength-3] + "..."
	}

	return cleanString(result)
}

// cleanString removes problematic characters that might cause rendering issues
func cleanString(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(' ')
		} else if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
