package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/dpshade/fieldmark/internal/config"
	"github.com/dpshade/fieldmark/internal/models"
)

// NoteMetadata represents cached metadata for a note
type NoteMetadata struct {
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ModTime     time.Time `json:"mod_time"`
	Size        int64     `json:"size"`
	FileHash    string    `json:"file_hash"`
	Fingerprint string    `json:"fingerprint"`
	Unfilled    int       `json:"unfilled"`
	Pending     int       `json:"pending"`
	InScope     bool      `json:"in_scope"`
}

// MetadataCache keeps per-note marker counts between runs. An entry is valid
// while the file's mtime and size are unchanged and it was computed with the
// same settings fingerprint.
type MetadataCache struct {
	cacheDir  string
	cacheFile string
	metadata  map[string]*NoteMetadata
	mu        sync.RWMutex
}

// NewMetadataCache creates a new metadata cache
func NewMetadataCache(baseDir string) *MetadataCache {
	cacheDir := filepath.Join(baseDir, config.StateDirName, "cache")
	return &MetadataCache{
		cacheDir:  cacheDir,
		cacheFile: filepath.Join(cacheDir, "metadata.json"),
		metadata:  make(map[string]*NoteMetadata),
	}
}

// Load loads the metadata cache from disk
func (c *MetadataCache) Load() error {
	if _, err := os.Stat(c.cacheFile); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.cacheFile)
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	c.mu.Lock()
	if err := json.Unmarshal(data, &c.metadata); err != nil {
		// corrupted cache, start fresh
		c.metadata = make(map[string]*NoteMetadata)
	}
	c.mu.Unlock()

	return nil
}

// Save saves the metadata cache to disk
func (c *MetadataCache) Save() error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c.metadata, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := atomic.WriteFile(c.cacheFile, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// Get retrieves metadata for a file, checking if the entry is still valid
func (c *MetadataCache) Get(relPath string, fileInfo os.FileInfo, fingerprint string) (*NoteMetadata, bool) {
	c.mu.RLock()
	cached, exists := c.metadata[relPath]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if !fileInfo.ModTime().Equal(cached.ModTime) || fileInfo.Size() != cached.Size {
		return nil, false
	}
	if cached.Fingerprint != fingerprint {
		return nil, false
	}

	return cached, true
}

// Set stores metadata in the cache
func (c *MetadataCache) Set(relPath string, fileInfo os.FileInfo, fingerprint string, note *models.Note) {
	c.mu.Lock()
	c.metadata[relPath] = &NoteMetadata{
		Path:        note.Path,
		Title:       note.Frontmatter.Title,
		Tags:        note.Frontmatter.Tags,
		ModTime:     fileInfo.ModTime(),
		Size:        fileInfo.Size(),
		FileHash:    note.ContentHash,
		Fingerprint: fingerprint,
		Unfilled:    note.Unfilled,
		Pending:     note.Pending,
		InScope:     note.InScope,
	}
	c.mu.Unlock()
}

// Invalidate drops the entry for relPath
func (c *MetadataCache) Invalidate(relPath string) {
	c.mu.Lock()
	delete(c.metadata, relPath)
	c.mu.Unlock()
}

// Len returns the number of cached entries
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metadata)
}

// ToNote converts cached metadata back to a Note (without content)
func (m *NoteMetadata) ToNote() *models.Note {
	return &models.Note{
		Frontmatter: models.Frontmatter{Title: m.Title, Tags: m.Tags},
		Path:        m.Path,
		ContentHash: m.FileHash,
		ModTime:     m.ModTime,
		Unfilled:    m.Unfilled,
		Pending:     m.Pending,
		InScope:     m.InScope,
	}
}

// Cleanup removes cache entries for files that no longer exist
func (c *MetadataCache) Cleanup(existingFiles map[string]bool) {
	c.mu.Lock()
	for filePath := range c.metadata {
		if !existingFiles[filePath] {
			delete(c.metadata, filePath)
		}
	}
	c.mu.Unlock()
}
