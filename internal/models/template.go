package models

import (
	"fmt"
	"time"
)

// Template is a note scaffold stored in the templates directory.
// Templates are never reconciled; they are copied verbatim into new notes.
type Template struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Content string    `json:"content,omitempty"`
	ModTime time.Time `json:"mod_time"`

	// Fields lists the template lines the configured pattern treats as fillable
	Fields []string `json:"fields,omitempty"`
}

// FilterValue returns the value used for filtering in lists
func (t Template) FilterValue() string {
	return cleanString(t.Name)
}

// Title satisfies the list.Item interface
func (t Template) Title() string {
	return cleanString(t.Name)
}

// Description satisfies the list.Item interface
func (t Template) Description() string {
	if len(t.Fields) == 0 {
		return cleanString(t.Path)
	}
	return cleanString(t.Path + " • " + pluralFields(len(t.Fields)))
}

func pluralFields(n int) string {
	if n == 1 {
		return "1 field"
	}
	return fmt.Sprintf("%d fields", n)
}
