package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dpshade/fieldmark/internal/hooks"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

// NoteEditor is the active document of the TUI. It wraps a textarea and acts
// as the hooks.Host for key and click triggers.
//
// A trigger pass works on a snapshot of the textarea's lines; writes made by
// subscribers are copied back in one SetValue and the cursor is put back on
// the same line, shifted by the prefix that was added or removed before it.
type NoteEditor struct {
	textarea textarea.Model
	note     *models.Note
	pass     *marker.Buffer
	saved    string
}

// NewNoteEditor creates an empty editor
func NewNoteEditor() *NoteEditor {
	ta := textarea.New()
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.ShowLineNumbers = true
	ta.SetWidth(80)
	ta.SetHeight(20)

	return &NoteEditor{textarea: ta}
}

// Open loads note into the editor and focuses it
func (e *NoteEditor) Open(note *models.Note) {
	e.note = note
	e.saved = note.Content
	e.pass = nil
	e.textarea.SetValue(note.Content)
	e.moveTo(0, 0)
	e.textarea.Focus()
}

// Close detaches the document; later triggers are no-ops
func (e *NoteEditor) Close() {
	e.note = nil
	e.pass = nil
	e.textarea.Blur()
}

// Note returns the open note with its content updated from the editor
func (e *NoteEditor) Note() *models.Note {
	if e.note == nil {
		return nil
	}
	e.note.Content = e.textarea.Value()
	return e.note
}

// IsOpen reports whether a note is loaded
func (e *NoteEditor) IsOpen() bool { return e.note != nil }

// Modified reports whether the text differs from the last save
func (e *NoteEditor) Modified() bool {
	return e.note != nil && e.textarea.Value() != e.saved
}

// MarkSaved records the current text as saved
func (e *NoteEditor) MarkSaved() {
	e.saved = e.textarea.Value()
}

// Value returns the editor text
func (e *NoteEditor) Value() string { return e.textarea.Value() }

// Cursor returns the logical row and column of the cursor
func (e *NoteEditor) Cursor() (row, col int) {
	info := e.textarea.LineInfo()
	return e.textarea.Line(), info.StartColumn + info.ColumnOffset
}

// ActiveDocument implements hooks.Host
func (e *NoteEditor) ActiveDocument() (marker.Document, marker.LineAccessor, bool) {
	if e.note == nil {
		return nil, nil, false
	}
	if e.pass == nil {
		e.pass = marker.NewBufferFromLines(strings.Split(e.textarea.Value(), "\n"))
	}
	return marker.DocumentPath(e.note.Path), e.pass, true
}

// Fire sends a trigger event for the open note and applies whatever the
// subscribers wrote. It returns the number of handlers run.
func (e *NoteEditor) Fire(ctx context.Context, d *hooks.Dispatcher, kind models.TriggerKind) int {
	if e.note == nil {
		return 0
	}
	e.pass = nil
	n := d.Fire(ctx, hooks.Event{Kind: kind, Host: e})
	e.commit()
	return n
}

func (e *NoteEditor) commit() {
	pass := e.pass
	e.pass = nil
	if pass == nil || !pass.Dirty() {
		return
	}

	before := strings.Split(e.textarea.Value(), "\n")
	after := pass.Lines()
	row, col := e.Cursor()
	if row < len(before) && row < len(after) {
		col += len([]rune(after[row])) - len([]rune(before[row]))
	}

	e.textarea.SetValue(strings.Join(after, "\n"))
	e.moveTo(row, col)
}

// moveTo places the cursor on a logical row and column
func (e *NoteEditor) moveTo(row, col int) {
	if row < 0 {
		row = 0
	}
	if col < 0 {
		col = 0
	}
	// SetValue leaves the cursor on the last line
	for guard := 0; e.textarea.Line() > row && guard < 1<<16; guard++ {
		e.textarea.CursorUp()
	}
	for guard := 0; e.textarea.Line() < row && guard < 1<<16; guard++ {
		before := e.textarea.Line()
		e.textarea.CursorDown()
		if e.textarea.Line() == before {
			break
		}
	}
	e.textarea.SetCursor(col)
}

// Update passes a message to the textarea
func (e *NoteEditor) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	e.textarea, cmd = e.textarea.Update(msg)
	return cmd
}

// Resize fits the textarea into the window
func (e *NoteEditor) Resize(width, height int) {
	h := height - 6
	if h < 3 {
		h = 3
	}
	w := width - 4
	if w < 20 {
		w = 20
	}
	e.textarea.SetWidth(w)
	e.textarea.SetHeight(h)
}

func (e *NoteEditor) View() string {
	return e.textarea.View()
}
