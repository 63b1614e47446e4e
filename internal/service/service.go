package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dpshade/fieldmark/internal/config"
	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/highlighter"
	"github.com/dpshade/fieldmark/internal/hooks"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
	"github.com/dpshade/fieldmark/internal/storage"
	"github.com/dpshade/fieldmark/internal/validation"
)

// DirEnv points at the vault directory
const DirEnv = "FIELDMARK_DIR"

// Options configures a Service
type Options struct {
	// RootPath overrides FIELDMARK_DIR; both empty means ~/Notes
	RootPath string
	Variant  marker.Variant
	Logger   *zap.Logger
}

// Service provides business logic for highlighting notes in a vault
type Service struct {
	storage     *storage.Storage
	settings    *config.Store
	validator   *validation.Validator
	dispatcher  *hooks.Dispatcher
	highlighter *highlighter.Highlighter
	logger      *zap.Logger

	mu       sync.RWMutex
	current  models.Settings
	watchers []func(*marker.Config)
}

// NewService creates a service for the vault named by FIELDMARK_DIR using
// the journal variant
func NewService() (*Service, error) {
	return NewServiceWithOptions(Options{Variant: marker.Journal})
}

// NewServiceWithOptions creates a service instance
func NewServiceWithOptions(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Variant.Name == "" {
		opts.Variant = marker.Journal
	}

	rootPath, err := ResolveRoot(opts.RootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault directory: %w", err)
	}

	store, err := storage.NewStorage(rootPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	settingsStore, err := config.NewStore(store.GetBaseDir(), opts.Variant)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings: %w", err)
	}

	settings, err := settingsStore.Load()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeFileCorrupted, "Failed to load settings").
			WithContext("path", settingsStore.Path())
	}

	dispatcher := hooks.NewDispatcher()
	svc := &Service{
		storage:     store,
		settings:    settingsStore,
		validator:   validation.NewValidator(),
		dispatcher:  dispatcher,
		highlighter: highlighter.New(dispatcher, marker.NewConfig(settings), logger),
		logger:      logger,
		current:     settings,
	}

	return svc, nil
}

// ResolveRoot picks the vault directory: path, then FIELDMARK_DIR, then ~/Notes
func ResolveRoot(path string) (string, error) {
	if path == "" {
		path = os.Getenv(DirEnv)
	}
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(homeDir, "Notes")
	}
	return path, nil
}

// Close releases every trigger subscription
func (s *Service) Close() {
	s.highlighter.Stop()
	s.dispatcher.Close()
}

// BaseDir returns the vault root
func (s *Service) BaseDir() string { return s.storage.GetBaseDir() }

// StateDir returns <vault>/.fieldmark
func (s *Service) StateDir() string { return s.settings.StateDir() }

// SettingsPath returns the settings file path
func (s *Service) SettingsPath() string { return s.settings.Path() }

// Variant returns the variant backing the defaults
func (s *Service) Variant() marker.Variant { return s.settings.Variant() }

// Dispatcher returns the trigger registry hosts fire events into
func (s *Service) Dispatcher() *hooks.Dispatcher { return s.dispatcher }

// Highlighter returns the trigger-driven reconciler
func (s *Service) Highlighter() *highlighter.Highlighter { return s.highlighter }

// Logger returns the service logger
func (s *Service) Logger() *zap.Logger { return s.logger }

// InitVault creates the vault layout, writes the current settings and adds a
// starter template when the templates directory is empty
func (s *Service) InitVault() error {
	settings := s.Settings()
	if err := s.storage.InitVault(settings.TemplatesDirectory, settings.TargetHighlightingDirectory); err != nil {
		return apperrors.StorageError("init vault", err)
	}

	if !s.settings.Exists() {
		if err := s.settings.Save(settings); err != nil {
			return apperrors.StorageError("save settings", err)
		}
	}

	if settings.TemplatesDirectory == "" {
		return nil
	}
	templates, err := s.storage.ListTemplates(settings.TemplatesDirectory, nil)
	if err != nil {
		return apperrors.StorageError("list templates", err)
	}
	if len(templates) > 0 {
		return nil
	}

	starter := &models.Note{
		Path:    settings.TemplatesDirectory + "/Daily.md",
		Content: starterTemplate,
	}
	if err := s.storage.SaveNote(starter); err != nil {
		return apperrors.StorageError("write starter template", err)
	}
	return nil
}

// field lines end in ": " so the default pattern sees them as unfilled
const starterTemplate = "# Daily\n" +
	"\n" +
	"Mood: \n" +
	"Energy: \n" +
	"Sleep: \n" +
	"Gratitude: \n" +
	"\n" +
	"## Notes\n"

// Settings returns the active settings
func (s *Service) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Config returns the compiled snapshot of the active settings
func (s *Service) Config() *marker.Config {
	return s.highlighter.Config()
}

// ValidateSettings checks settings without saving them
func (s *Service) ValidateSettings(settings models.Settings) *validation.ValidationResult {
	return s.validator.ValidateSettings(settings)
}

// OnSettingsChange registers fn to receive each new snapshot
func (s *Service) OnSettingsChange(fn func(*marker.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// UpdateSettings validates, persists and activates settings.
//
// A bad stat pattern is still saved, the way the settings form saves every
// keystroke, but highlighting pauses and the ConfigurationError is returned
// until a pattern that compiles is saved. Any other invalid value is rejected
// and nothing is written.
func (s *Service) UpdateSettings(settings models.Settings) (*validation.ValidationResult, error) {
	settings.TemplatesDirectory = config.NormalizePath(settings.TemplatesDirectory)
	settings.TargetHighlightingDirectory = config.NormalizePath(settings.TargetHighlightingDirectory)

	result := s.validator.ValidateSettings(settings)
	if !result.Valid && !onlyPatternErrors(result) {
		return result, result.ToAppError()
	}

	if err := s.settings.Save(settings); err != nil {
		return result, apperrors.StorageError("save settings", err)
	}

	cfg := marker.NewConfig(settings)

	s.mu.Lock()
	previousTrigger := s.current.TriggerOrDefault()
	s.current = settings
	watchers := append([]func(*marker.Config){}, s.watchers...)
	s.mu.Unlock()

	s.highlighter.SetConfig(cfg)
	if len(s.highlighter.Triggers()) > 0 && previousTrigger != settings.TriggerOrDefault() && !s.watchMode() {
		if err := s.highlighter.Resubscribe(); err != nil {
			return result, err
		}
	}

	for _, fn := range watchers {
		fn(cfg)
	}

	s.logger.Debug("settings updated",
		zap.String("prefix", settings.UnfilledStatPrefix),
		zap.String("pattern", settings.StatRegex))

	if cfg.Err != nil {
		return result, cfg.Err
	}
	return result, nil
}

// watchMode reports whether the highlighter follows file writes rather than
// the editor trigger setting
func (s *Service) watchMode() bool {
	for _, k := range s.highlighter.Triggers() {
		if k == models.TriggerFileWrite {
			return true
		}
	}
	return false
}

func onlyPatternErrors(result *validation.ValidationResult) bool {
	for _, e := range result.Errors {
		if e.Field != "statRegex" {
			return false
		}
	}
	return true
}

// SetSetting changes one key
func (s *Service) SetSetting(key, value string) (*validation.ValidationResult, error) {
	updated, err := config.Set(s.Settings(), key, value)
	if err != nil {
		return nil, apperrors.InvalidSettingError(key, err.Error())
	}
	return s.UpdateSettings(updated)
}

// ResetSettings restores the variant defaults
func (s *Service) ResetSettings() (models.Settings, error) {
	defaults, err := s.settings.Reset()
	if err != nil {
		return models.Settings{}, apperrors.StorageError("reset settings", err)
	}
	if _, err := s.UpdateSettings(defaults); err != nil {
		return defaults, err
	}
	return defaults, nil
}

// ListNotes returns every note in the vault, annotated for the current settings
func (s *Service) ListNotes() ([]*models.Note, error) {
	notes, err := s.storage.ListNotes(s.Config())
	if err != nil {
		return nil, apperrors.StorageError("list notes", err)
	}
	return notes, nil
}

// SearchNotes fuzzy-matches query against note paths, titles and tags
func (s *Service) SearchNotes(query string) ([]*models.Note, error) {
	notes, err := s.ListNotes()
	if err != nil {
		return nil, err
	}

	if query == "" {
		return notes, nil
	}

	var searchStrings []string
	for _, n := range notes {
		searchStrings = append(searchStrings, fmt.Sprintf("%s %s %s",
			n.Path,
			n.Frontmatter.Title,
			strings.Join(n.Frontmatter.Tags, " ")))
	}

	matches := fuzzy.Find(query, searchStrings)

	var results []*models.Note
	for _, match := range matches {
		results = append(results, notes[match.Index])
	}

	return results, nil
}

// GetNote loads a note with its content and marker counts
func (s *Service) GetNote(path string) (*models.Note, error) {
	path = config.DocumentPath(path)
	if !s.storage.Exists(path) {
		return nil, apperrors.NotFoundError(fmt.Sprintf("note %s", path))
	}
	note, err := s.storage.LoadNote(path)
	if err != nil {
		return nil, apperrors.StorageError("load note", err)
	}
	storage.Annotate(note, s.Config())
	return note, nil
}

// SaveNote writes a note edited by a host
func (s *Service) SaveNote(note *models.Note) error {
	if err := s.storage.SaveNote(note); err != nil {
		return apperrors.StorageError("save note", err)
	}
	storage.Annotate(note, s.Config())
	return nil
}

// CheckNote reports the marker state of a note without changing it
func (s *Service) CheckNote(path string) (*models.Note, marker.Summary, error) {
	note, err := s.GetNote(path)
	if err != nil {
		return nil, marker.Summary{}, err
	}
	if !note.InScope {
		return note, marker.Summary{}, nil
	}
	return note, marker.Summarize(marker.NewBuffer(note.Content).Lines(), s.Config()), nil
}

// ApplyReport is the outcome of reconciling one file on disk
type ApplyReport struct {
	marker.Result
	// ContentHash is the hash of the file as it is now on disk
	ContentHash string
	Written     bool
}

// ApplyNote reconciles one note on disk and saves it when anything changed
func (s *Service) ApplyNote(path string) (ApplyReport, error) {
	note, err := s.GetNote(path)
	if err != nil {
		return ApplyReport{}, err
	}

	buf := marker.NewBuffer(note.Content)
	res, err := s.highlighter.Run(marker.DocumentPath(note.Path), buf)
	report := ApplyReport{Result: res, ContentHash: note.ContentHash}
	if err != nil {
		return report, err
	}
	if !buf.Dirty() {
		return report, nil
	}

	note.Content = buf.String()
	if err := s.storage.SaveNote(note); err != nil {
		return report, apperrors.StorageError("save note", err)
	}
	report.ContentHash = note.ContentHash
	report.Written = true

	s.logger.Debug("applied",
		zap.String("path", note.Path),
		zap.Int("added", res.Added),
		zap.Int("removed", res.Removed))
	return report, nil
}

// ApplyAll reconciles every in-scope note, several files at a time
func (s *Service) ApplyAll(ctx context.Context) ([]ApplyReport, error) {
	if cfg := s.Config(); cfg.Err != nil {
		return nil, cfg.Err
	}

	notes, err := s.ListNotes()
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, n := range notes {
		if n.InScope {
			targets = append(targets, n.Path)
		}
	}

	reports := make([]ApplyReport, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := s.ApplyNote(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// ListTemplates returns the templates in the configured directory
func (s *Service) ListTemplates() ([]*models.Template, error) {
	templates, err := s.storage.ListTemplates(s.Settings().TemplatesDirectory, s.Config())
	if err != nil {
		return nil, apperrors.StorageError("list templates", err)
	}
	return templates, nil
}

// GetTemplate finds a template by name or vault-relative path
func (s *Service) GetTemplate(name string) (*models.Template, error) {
	templates, err := s.ListTemplates()
	if err != nil {
		return nil, err
	}
	wanted := strings.TrimSuffix(config.DocumentPath(name), ".md")
	for _, t := range templates {
		if strings.EqualFold(t.Name, wanted) || strings.TrimSuffix(t.Path, ".md") == wanted {
			return t, nil
		}
	}
	return nil, apperrors.NotFoundError(fmt.Sprintf("template %s", name))
}

// NewNoteFromTemplate copies a template to path and highlights its fields
func (s *Service) NewNoteFromTemplate(templateName, path string) (*models.Note, ApplyReport, error) {
	path = config.DocumentPath(path)
	if !strings.HasSuffix(path, ".md") {
		path += ".md"
	}

	result := s.validator.Validate("new_note", map[string]string{
		"template": templateName,
		"path":     path,
	})
	if !result.Valid {
		return nil, ApplyReport{}, result.ToAppError()
	}

	if s.storage.Exists(path) {
		return nil, ApplyReport{}, apperrors.AlreadyExistsError(fmt.Sprintf("note %s", path))
	}

	template, err := s.GetTemplate(templateName)
	if err != nil {
		return nil, ApplyReport{}, err
	}

	note := &models.Note{Path: path, Content: template.Content}
	if err := s.storage.SaveNote(note); err != nil {
		return nil, ApplyReport{}, apperrors.StorageError("create note", err)
	}

	report, err := s.ApplyNote(path)
	if err != nil && !apperrors.GetAppError(err).Silent() {
		return nil, report, err
	}

	created, err := s.GetNote(path)
	if err != nil {
		return nil, report, err
	}
	return created, report, nil
}

// MigrateReport summarizes a prefix migration
type MigrateReport struct {
	Files    int
	Stripped int
	Applied  []ApplyReport
}

// MigratePrefix removes oldPrefix from the start of lines in every in-scope
// note and then reconciles with the current prefix. Marker changes are not
// migrated automatically; this is the explicit sweep for stale markers.
func (s *Service) MigratePrefix(ctx context.Context, oldPrefix string) (MigrateReport, error) {
	var report MigrateReport

	check := s.validator.Validate("migrate_prefix", map[string]string{"from": oldPrefix})
	if !check.Valid {
		return report, check.ToAppError()
	}

	current := s.Settings().UnfilledStatPrefix
	if oldPrefix == current {
		return report, apperrors.InvalidSettingError("from", "old prefix is the current prefix")
	}

	notes, err := s.ListNotes()
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, n := range notes {
		if !n.InScope {
			continue
		}
		path := n.Path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stripped, err := s.stripPrefix(path, oldPrefix, current)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			applied, err := s.ApplyNote(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if stripped > 0 || applied.Written {
				report.Files++
			}
			report.Stripped += stripped
			report.Applied = append(report.Applied, applied)
			return nil
		})
	}

	err = g.Wait()
	return report, err
}

// stripPrefix removes oldPrefix from lines that carry it but not the current
// prefix, so "__" is not stripped from "___" when the new prefix is "___".
func (s *Service) stripPrefix(path, oldPrefix, current string) (int, error) {
	note, err := s.storage.LoadNote(path)
	if err != nil {
		return 0, apperrors.StorageError("load note", err)
	}

	buf := marker.NewBuffer(note.Content)
	n, _ := buf.LineCount()
	stripped := 0
	for i := 0; i < n; i++ {
		line, _ := buf.Line(i)
		if !strings.HasPrefix(line, oldPrefix) {
			continue
		}
		if current != "" && strings.HasPrefix(line, current) {
			continue
		}
		if err := buf.SetLine(i, marker.WithoutPrefix(line, oldPrefix)); err != nil {
			return stripped, err
		}
		stripped++
	}

	if !buf.Dirty() {
		return 0, nil
	}
	note.Content = buf.String()
	if err := s.storage.SaveNote(note); err != nil {
		return stripped, apperrors.StorageError("save note", err)
	}
	return stripped, nil
}

// RelPath converts an absolute path inside the vault to its vault-relative form
func (s *Service) RelPath(abs string) (string, error) {
	if !filepath.IsAbs(abs) {
		return config.DocumentPath(abs), nil
	}
	return s.storage.Rel(abs)
}
