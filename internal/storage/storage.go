package storage

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dpshade/fieldmark/internal/config"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

// Storage handles all file system operations for notes and templates
type Storage struct {
	rootPath string
	cache    *MetadataCache
	logger   *zap.Logger
}

// NewStorage creates a new storage instance rooted at the vault directory
func NewStorage(rootPath string, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rootPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		rootPath = filepath.Join(homeDir, "Notes")
	}

	cache := NewMetadataCache(rootPath)
	if err := cache.Load(); err != nil {
		// cache is optional
		logger.Warn("failed to load metadata cache", zap.Error(err))
	}

	return &Storage{
		rootPath: rootPath,
		cache:    cache,
		logger:   logger,
	}, nil
}

// InitVault creates the vault, its state directory and the configured folders
func (s *Storage) InitVault(dirs ...string) error {
	all := []string{
		s.rootPath,
		filepath.Join(s.rootPath, config.StateDirName),
		filepath.Join(s.rootPath, config.StateDirName, "cache"),
	}
	for _, d := range dirs {
		if d != "" {
			all = append(all, filepath.Join(s.rootPath, filepath.FromSlash(d)))
		}
	}

	for _, dir := range all {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// GetBaseDir returns the root path of the storage
func (s *Storage) GetBaseDir() string {
	return s.rootPath
}

// Abs returns the absolute path of a vault-relative path
func (s *Storage) Abs(rel string) string {
	return filepath.Join(s.rootPath, filepath.FromSlash(rel))
}

// Rel converts an absolute path inside the vault to the vault-relative form
func (s *Storage) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(s.rootPath, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the vault", abs)
	}
	return config.DocumentPath(filepath.ToSlash(rel)), nil
}

// Exists reports whether a vault-relative file exists
func (s *Storage) Exists(rel string) bool {
	_, err := os.Stat(s.Abs(rel))
	return err == nil
}

// LoadNote loads a note; the whole file, frontmatter included, is its content
func (s *Storage) LoadNote(rel string) (*models.Note, error) {
	fullPath := s.Abs(rel)

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open note: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat note: %w", err)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}

	note := &models.Note{
		Path:        config.DocumentPath(rel),
		Content:     string(content),
		ContentHash: calculateHash(content),
		ModTime:     info.ModTime(),
	}

	fm, err := parseFrontmatter(content)
	if err != nil {
		s.logger.Debug("ignoring unreadable frontmatter", zap.String("path", rel), zap.Error(err))
	} else {
		note.Frontmatter = fm
	}

	return note, nil
}

// SaveNote writes note.Content atomically and refreshes its hash
func (s *Storage) SaveNote(note *models.Note) error {
	fullPath := s.Abs(note.Path)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data := []byte(note.Content)
	if err := atomic.WriteFile(fullPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write note: %w", err)
	}

	note.ContentHash = calculateHash(data)
	if info, err := os.Stat(fullPath); err == nil {
		note.ModTime = info.ModTime()
	}
	return nil
}

// ListNotes returns every markdown note in the vault with marker counts for cfg.
// Hidden directories (.fieldmark, .git, .obsidian) are skipped.
func (s *Storage) ListNotes(cfg *marker.Config) ([]*models.Note, error) {
	var notes []*models.Note
	existingFiles := make(map[string]bool)
	cacheModified := false
	fingerprint := ""
	if cfg != nil {
		fingerprint = cfg.Fingerprint()
	}

	err := s.walkMarkdown("", func(relPath string, info os.FileInfo) {
		existingFiles[relPath] = true

		if cached, valid := s.cache.Get(relPath, info, fingerprint); valid {
			notes = append(notes, cached.ToNote())
			return
		}

		note, err := s.LoadNote(relPath)
		if err != nil {
			s.logger.Warn("failed to load note", zap.String("path", relPath), zap.Error(err))
			return
		}
		Annotate(note, cfg)

		s.cache.Set(relPath, info, fingerprint, note)
		cacheModified = true

		// content is loaded on demand
		note.Content = ""
		notes = append(notes, note)
	})

	s.cache.Cleanup(existingFiles)

	if cacheModified {
		if err := s.cache.Save(); err != nil {
			s.logger.Warn("failed to save metadata cache", zap.Error(err))
		}
	}

	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	return notes, err
}

// Annotate fills the scope flag and marker counts of note from its content
func Annotate(note *models.Note, cfg *marker.Config) {
	if cfg == nil {
		return
	}
	note.InScope = marker.DecideScope(note.Path, cfg.Settings).InScope
	if !note.InScope {
		note.Unfilled, note.Pending = 0, 0
		return
	}
	sum := marker.Summarize(marker.NewBuffer(note.Content).Lines(), cfg)
	note.Unfilled = sum.Unfilled
	note.Pending = sum.Pending
}

// ListTemplates returns the markdown files under templatesDir. When cfg is
// given, each template lists the lines the pattern treats as fields.
func (s *Storage) ListTemplates(templatesDir string, cfg *marker.Config) ([]*models.Template, error) {
	if templatesDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(s.Abs(templatesDir)); os.IsNotExist(err) {
		return []*models.Template{}, nil
	}

	var templates []*models.Template
	err := s.walkMarkdown(templatesDir, func(relPath string, info os.FileInfo) {
		template, err := s.LoadTemplate(relPath, cfg)
		if err != nil {
			s.logger.Warn("failed to load template", zap.String("path", relPath), zap.Error(err))
			return
		}
		templates = append(templates, template)
	})

	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, err
}

// LoadTemplate loads a template file
func (s *Storage) LoadTemplate(rel string, cfg *marker.Config) (*models.Template, error) {
	note, err := s.LoadNote(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	template := &models.Template{
		Name:    strings.TrimSuffix(filepath.Base(note.Path), ".md"),
		Path:    note.Path,
		Content: note.Content,
		ModTime: note.ModTime,
	}

	if cfg.Valid() {
		for _, line := range marker.NewBuffer(note.Content).Lines() {
			if cfg.Pattern.MatchString(line) {
				template.Fields = append(template.Fields, strings.TrimSpace(line))
			}
		}
	}

	return template, nil
}

func (s *Storage) walkMarkdown(relDir string, fn func(relPath string, info os.FileInfo)) error {
	start := s.Abs(relDir)
	return filepath.Walk(start, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == start {
				return err
			}
			s.logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}

		if info.IsDir() {
			if path != start && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".md") {
			return nil
		}

		relPath, err := s.Rel(path)
		if err != nil {
			return nil
		}
		fn(relPath, info)
		return nil
	})
}

// Helper functions

// parseFrontmatter reads an optional leading YAML block delimited by "---".
// Notes without one return an empty Frontmatter.
func parseFrontmatter(content []byte) (models.Frontmatter, error) {
	var fm models.Frontmatter

	scanner := bufio.NewScanner(bytes.NewReader(content))
	if !scanner.Scan() || strings.TrimRight(scanner.Text(), "\r") != "---" {
		return fm, nil
	}

	var frontmatterLines []string
	closed := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "---" {
			closed = true
			break
		}
		frontmatterLines = append(frontmatterLines, line)
	}
	if !closed {
		return fm, fmt.Errorf("unterminated frontmatter")
	}

	if err := yaml.Unmarshal([]byte(strings.Join(frontmatterLines, "\n")), &fm); err != nil {
		return models.Frontmatter{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	return fm, nil
}

func calculateHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashContent returns the content hash used to detect self-writes
func HashContent(content []byte) string {
	return calculateHash(content)
}
