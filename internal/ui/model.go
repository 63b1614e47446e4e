package ui

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/dpshade/fieldmark/internal/clipboard"
	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/models"
	"github.com/dpshade/fieldmark/internal/renderer"
	"github.com/dpshade/fieldmark/internal/service"
)

// Commands for async operations
type loadCompleteMsg struct {
	notes     []*models.Note
	templates []*models.Template
	err       error
}

type appliedMsg struct {
	reports []service.ApplyReport
	err     error
}

// loadNotesCmd loads notes and templates (fast with the metadata cache)
func loadNotesCmd(svc *service.Service) tea.Cmd {
	return func() tea.Msg {
		notes, noteErr := svc.ListNotes()
		if noteErr != nil {
			notes = []*models.Note{}
		}

		templates, templateErr := svc.ListTemplates()
		if templateErr != nil {
			templates = []*models.Template{}
		}

		err := noteErr
		if err == nil {
			err = templateErr
		}

		return loadCompleteMsg{
			notes:     notes,
			templates: templates,
			err:       err,
		}
	}
}

func applyAllCmd(ctx context.Context, svc *service.Service) tea.Cmd {
	return func() tea.Msg {
		reports, err := svc.ApplyAll(ctx)
		return appliedMsg{reports: reports, err: err}
	}
}

// ViewMode represents the current view in the TUI
type ViewMode int

const (
	ViewLibrary ViewMode = iota
	ViewEditor
	ViewPreview
	ViewTemplates
	ViewNewNote
	ViewSettings
)

// Model represents the TUI application state
type Model struct {
	ctx        context.Context
	service    *service.Service
	errHandler *apperrors.TUIErrorHandler
	copier     *clipboard.Copier
	viewMode   ViewMode

	// UI components
	noteList     list.Model
	templateList list.Model
	pathInput    textinput.Model
	viewport     viewport.Model
	editor       *NoteEditor
	settingsForm *SettingsForm
	help         help.Model
	keys         KeyMap

	// Data
	notes            []*models.Note
	templates        []*models.Template
	selectedNote     *models.Note
	selectedTemplate *models.Template
	loading          bool

	// Window dimensions
	width  int
	height int

	// Status messages
	statusMsg     string
	statusType    string
	statusTimeout int
}

// KeyMap defines the library key bindings
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Back     key.Binding
	Quit     key.Binding
	Search   key.Binding
	Preview  key.Binding
	New      key.Binding
	Settings key.Binding
	Apply    key.Binding
	Copy     key.Binding
	Reload   key.Binding
	Save     key.Binding
}

// ShortHelp returns keybindings to show in the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Preview, k.New, k.Settings, k.Apply, k.Quit}
}

// FullHelp returns keybindings to show in the full help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Back},
		{k.Search, k.Preview, k.New, k.Settings},
		{k.Apply, k.Copy, k.Reload, k.Save, k.Quit},
	}
}

var keys = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "edit"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Preview: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "preview"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new from template"),
	),
	Settings: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "settings"),
	),
	Apply: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "apply to all"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy note"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("Ctrl+s", "save"),
	),
}

func newList() list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 80, 20)
	l.Title = ""
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	keyMap := list.DefaultKeyMap()
	keyMap.Filter = key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	)
	l.KeyMap = keyMap
	return l
}

// NewModel creates a new TUI model and subscribes the highlighter to the
// configured editor trigger
func NewModel(ctx context.Context, svc *service.Service) (*Model, error) {
	initializeColors()

	if err := svc.Highlighter().Start(); err != nil {
		return nil, fmt.Errorf("failed to start highlighter: %w", err)
	}

	pathInput := textinput.New()
	pathInput.CharLimit = 255
	pathInput.Width = 60

	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return &Model{
		ctx:          ctx,
		service:      svc,
		errHandler:   apperrors.NewTUIErrorHandler(svc.Logger(), false),
		copier:       clipboard.New(os.Stderr),
		viewMode:     ViewLibrary,
		noteList:     newList(),
		templateList: newList(),
		pathInput:    pathInput,
		viewport:     vp,
		editor:       NewNoteEditor(),
		settingsForm: NewSettingsForm(),
		help:         help.New(),
		keys:         keys,
		loading:      true,
	}, nil
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return loadNotesCmd(m.service)
}

// tickMsg is sent to clear the status message
type tickMsg time.Time

// clearStatusCmd returns a command that clears the status message after a delay
func clearStatusCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) setStatus(text, statusType string) tea.Cmd {
	m.statusMsg = text
	m.statusType = statusType
	m.statusTimeout = 3
	return clearStatusCmd()
}

// showError logs err and puts it on the status line unless it is silent
func (m *Model) showError(err error) tea.Cmd {
	if m.errHandler.HandleError(err) == nil {
		return nil
	}
	icon, kind := m.errHandler.GetErrorStyle(err)
	return m.setStatus(icon+" "+m.errHandler.FormatError(err), kind)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tickMsg:
		if m.statusTimeout > 0 {
			m.statusTimeout--
			if m.statusTimeout == 0 {
				m.statusMsg = ""
				return m, nil
			}
			return m, clearStatusCmd()
		}
		return m, nil

	case loadCompleteMsg:
		m.loading = false
		m.notes = msg.notes
		m.templates = msg.templates
		m.refreshLists()
		if msg.err != nil {
			next := m.showError(msg.err)
			return m, next
		}
		return m, nil

	case appliedMsg:
		if msg.err != nil {
			next := tea.Batch(m.showError(msg.err), loadNotesCmd(m.service))
			return m, next
		}
		written := 0
		for _, r := range msg.reports {
			if r.Written {
				written++
			}
		}
		status := m.setStatus(fmt.Sprintf("Updated %d of %d note(s)", written, len(msg.reports)), "success")
		return m, tea.Batch(status, loadNotesCmd(m.service))
	}

	switch m.viewMode {
	case ViewEditor:
		return m.updateEditor(msg)
	case ViewPreview:
		return m.updatePreview(msg)
	case ViewTemplates:
		return m.updateTemplates(msg)
	case ViewNewNote:
		return m.updateNewNote(msg)
	case ViewSettings:
		return m.updateSettings(msg)
	default:
		return m.updateLibrary(msg)
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	listHeight := height - 6
	if listHeight < 5 {
		listHeight = 5
	}
	m.noteList.SetSize(width-4, listHeight)
	m.templateList.SetSize(width-4, listHeight)
	m.viewport.Width = width - 4
	m.viewport.Height = listHeight
	m.editor.Resize(width, height)
}

func (m *Model) refreshLists() {
	items := make([]list.Item, len(m.notes))
	for i, n := range m.notes {
		items[i] = n
	}
	m.noteList.SetItems(items)

	tplItems := make([]list.Item, len(m.templates))
	for i, t := range m.templates {
		tplItems[i] = t
	}
	m.templateList.SetItems(tplItems)
}

func (m Model) updateLibrary(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, isKey := msg.(tea.KeyMsg)
	if !isKey || m.noteList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.noteList, cmd = m.noteList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Enter):
		if note, ok := m.noteList.SelectedItem().(*models.Note); ok {
			next := m.openNote(note.Path)
			return m, next
		}
		return m, nil
	case key.Matches(keyMsg, m.keys.Preview):
		if note, ok := m.noteList.SelectedItem().(*models.Note); ok {
			next := m.openPreview(note.Path)
			return m, next
		}
		return m, nil
	case key.Matches(keyMsg, m.keys.New):
		m.viewMode = ViewTemplates
		return m, nil
	case key.Matches(keyMsg, m.keys.Settings):
		m.settingsForm.LoadSettings(m.service.Settings())
		m.settingsForm.SetResult(m.service.ValidateSettings(m.service.Settings()), m.configErr())
		m.viewMode = ViewSettings
		return m, nil
	case key.Matches(keyMsg, m.keys.Apply):
		next := tea.Batch(m.setStatus("Applying...", "info"), applyAllCmd(m.ctx, m.service))
		return m, next
	case key.Matches(keyMsg, m.keys.Copy):
		if note, ok := m.noteList.SelectedItem().(*models.Note); ok {
			next := m.copyNote(note.Path)
			return m, next
		}
		return m, nil
	case key.Matches(keyMsg, m.keys.Reload):
		m.loading = true
		return m, loadNotesCmd(m.service)
	}

	var cmd tea.Cmd
	m.noteList, cmd = m.noteList.Update(msg)
	return m, cmd
}

func (m *Model) configErr() error {
	if cfg := m.service.Config(); cfg.Err != nil {
		return cfg.Err
	}
	return nil
}

// openNote loads path into the editor and switches to it
func (m *Model) openNote(path string) tea.Cmd {
	note, err := m.service.GetNote(path)
	if err != nil {
		return m.showError(err)
	}
	m.selectedNote = note
	m.editor.Open(note)
	m.viewMode = ViewEditor
	return nil
}

func (m *Model) saveNote() error {
	note := m.editor.Note()
	if note == nil || !m.editor.Modified() {
		return nil
	}
	if err := m.service.SaveNote(note); err != nil {
		return err
	}
	m.editor.MarkSaved()
	return nil
}

func (m Model) updateEditor(msg tea.Msg) (tea.Model, tea.Cmd) {
	dispatcher := m.service.Dispatcher()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+s":
			if err := m.saveNote(); err != nil {
				next := m.showError(err)
				return m, next
			}
			next := m.setStatus("Saved "+m.editor.Note().Path, "success")
			return m, next
		case "esc":
			if err := m.saveNote(); err != nil {
				next := m.showError(err)
				return m, next
			}
			m.editor.Close()
			m.viewMode = ViewLibrary
			return m, loadNotesCmd(m.service)
		case "ctrl+c":
			if err := m.saveNote(); err != nil {
				m.errHandler.HandleError(err)
			}
			return m, tea.Quit
		}

		cmd := m.editor.Update(msg)
		m.editor.Fire(m.ctx, dispatcher, models.TriggerKeyUp)
		return m, cmd

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.editor.Fire(m.ctx, dispatcher, models.TriggerClick)
		}
		return m, nil
	}

	return m, m.editor.Update(msg)
}

// openPreview renders path with glamour into the viewport
func (m *Model) openPreview(path string) tea.Cmd {
	note, err := m.service.GetNote(path)
	if err != nil {
		return m.showError(err)
	}

	width := m.viewport.Width - 2
	if width < 20 {
		width = 60
	}
	rendered, err := renderer.NewRenderer(note, m.service.Config()).RenderPreview(width)
	if err != nil {
		m.service.Logger().Warn("preview failed", zap.String("path", path), zap.Error(err))
		rendered = note.Content
	}

	m.selectedNote = note
	m.viewport.SetContent(rendered)
	m.viewport.GotoTop()
	m.viewMode = ViewPreview
	return nil
}

// copyNote copies the note's current content from disk
func (m *Model) copyNote(path string) tea.Cmd {
	note, err := m.service.GetNote(path)
	if err != nil {
		return m.showError(err)
	}
	text, err := renderer.NewRenderer(note, m.service.Config()).RenderText()
	if err != nil {
		return m.showError(err)
	}
	msg, err := m.copier.Copy(text)
	if err != nil {
		return m.showError(err)
	}
	return m.setStatus(msg, "success")
}

func (m Model) updatePreview(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc", "q":
			m.viewMode = ViewLibrary
			return m, nil
		case "enter", "e":
			if m.selectedNote != nil {
				next := m.openNote(m.selectedNote.Path)
				return m, next
			}
		case "y":
			if m.selectedNote != nil {
				next := m.copyNote(m.selectedNote.Path)
				return m, next
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateTemplates(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, isKey := msg.(tea.KeyMsg)
	if isKey && m.templateList.FilterState() != list.Filtering {
		switch keyMsg.String() {
		case "esc":
			m.viewMode = ViewLibrary
			return m, nil
		case "enter":
			tpl, ok := m.templateList.SelectedItem().(*models.Template)
			if !ok {
				return m, nil
			}
			m.selectedTemplate = tpl
			m.pathInput.SetValue(m.suggestPath())
			m.pathInput.CursorEnd()
			m.pathInput.Focus()
			m.viewMode = ViewNewNote
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.templateList, cmd = m.templateList.Update(msg)
	return m, cmd
}

// suggestPath proposes <target>/<today> for a new note
func (m *Model) suggestPath() string {
	name := time.Now().Format("2006-01-02")
	if dir := m.service.Settings().TargetHighlightingDirectory; dir != "" {
		return path.Join(dir, name)
	}
	return name
}

func (m Model) updateNewNote(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.pathInput.Blur()
			m.viewMode = ViewTemplates
			return m, nil
		case "enter":
			target := strings.TrimSpace(m.pathInput.Value())
			note, _, err := m.service.NewNoteFromTemplate(m.selectedTemplate.Name, target)
			if err != nil {
				next := m.showError(err)
				return m, next
			}
			m.pathInput.Blur()
			status := m.setStatus("Created "+note.Path, "success")
			next := tea.Batch(status, m.openNote(note.Path), loadNotesCmd(m.service))
			return m, next
		}
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) updateSettings(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.viewMode = ViewLibrary
			return m, loadNotesCmd(m.service)
		case "ctrl+c":
			return m, tea.Quit
		}
	}

	changed, cmd := m.settingsForm.Update(msg)
	if !changed {
		return m, cmd
	}

	updated := m.settingsForm.ToSettings(m.service.Settings())
	result, err := m.service.UpdateSettings(updated)
	var patternErr error
	if apperrors.HasCode(err, apperrors.ErrCodeInvalidPattern) {
		patternErr = err
	} else if err != nil && result != nil && result.Valid {
		// storage failure rather than a bad value
		next := tea.Batch(cmd, m.showError(err))
		return m, next
	}
	m.settingsForm.SetResult(result, patternErr)
	return m, cmd
}

// View renders the current view
func (m Model) View() string {
	var content, helpText string

	switch m.viewMode {
	case ViewEditor:
		content = m.renderEditorView()
		helpText = joinHelp("Ctrl+s save", "Esc save and back", "Ctrl+c quit")
	case ViewPreview:
		content = m.renderPreviewView()
		helpText = joinHelp("↑/↓ scroll", "e edit", "Esc back")
	case ViewTemplates:
		content = m.renderTemplatesView()
		helpText = joinHelp("Enter choose", "/ filter", "Esc back")
	case ViewNewNote:
		content = m.renderNewNoteView()
		helpText = joinHelp("Enter create", "Esc back")
	case ViewSettings:
		content = m.renderSettingsView()
		helpText = joinHelp("Tab next field", "Shift+Tab previous", "changes save as you type", "Esc back")
	default:
		content = m.renderLibraryView()
		helpText = m.help.ShortHelpView(m.keys.ShortHelp())
	}

	var parts []string
	parts = append(parts, content)
	if m.statusMsg != "" {
		parts = append(parts, CreateStatus(m.statusMsg, m.statusType))
	}
	parts = append(parts, CreateGuaranteedHelp(helpText, m.width))
	return AddMainPadding(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderLibraryView() string {
	header := CreateMainHeader("fieldmark")
	meta := CreateMetadata(fmt.Sprintf("%s • %s variant", m.service.BaseDir(), m.service.Variant().Name))

	if m.loading {
		return lipgloss.JoinVertical(lipgloss.Left, header, meta, StyleInfo.Render("Loading notes..."))
	}
	if len(m.notes) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, meta, StyleTextMuted.Render("No notes yet. Press n to create one from a template."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, meta, m.noteList.View())
}

func (m Model) renderEditorView() string {
	note := m.editor.Note()
	title := "(no note)"
	if note != nil {
		title = note.Path
		if m.editor.Modified() {
			title += " •"
		}
	}

	cfg := m.service.Config()
	var meta string
	switch {
	case cfg.Err != nil:
		meta = StyleError.Render("Highlighting paused: fix the stat pattern in settings")
	default:
		row, col := m.editor.Cursor()
		meta = CreateMetadata(fmt.Sprintf("Ln %d, Col %d • prefix %q • trigger %s",
			row+1, col+1, cfg.Prefix(), cfg.Settings.TriggerOrDefault()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, CreateMainHeader(title), meta, m.editor.View())
}

func (m Model) renderPreviewView() string {
	title := "Preview"
	if m.selectedNote != nil {
		title = m.selectedNote.Path
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		CreateMainHeader(title),
		StyleContentContainer.Render(m.viewport.View()))
}

func (m Model) renderTemplatesView() string {
	header := CreateMainHeader("New note from template")
	if len(m.templates) == 0 {
		dir := m.service.Settings().TemplatesDirectory
		return lipgloss.JoinVertical(lipgloss.Left, header,
			StyleTextMuted.Render(fmt.Sprintf("No templates in %s", dir)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.templateList.View())
}

func (m Model) renderNewNoteView() string {
	name := ""
	if m.selectedTemplate != nil {
		name = m.selectedTemplate.Name
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		CreateMainHeader("New note from "+name),
		StyleFormLabel.Render("Path"),
		m.pathInput.View(),
		StyleFormHelp.Render(".md is added when missing"))
}

func (m Model) renderSettingsView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		CreateMainHeader("Settings"),
		CreateMetadata(m.service.SettingsPath()),
		m.settingsForm.View())
}
