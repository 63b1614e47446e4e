package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewStorage(root, nil)
	require.NoError(t, err)
	require.NoError(t, s.InitVault("Templates", "Journaling"))
	return s, root
}

func TestInitVault(t *testing.T) {
	_, root := newTestStorage(t)
	for _, dir := range []string{".fieldmark", ".fieldmark/cache", "Templates", "Journaling"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestLoadNoteWithFrontmatter(t *testing.T) {
	s, root := newTestStorage(t)
	content := "---\ntitle: Monday\ntags: [daily, mood]\n---\nMood: \n"
	writeFile(t, root, "Journaling/2024-01-01.md", content)

	note, err := s.LoadNote("Journaling/2024-01-01.md")
	require.NoError(t, err)

	assert.Equal(t, "Journaling/2024-01-01.md", note.Path)
	assert.Equal(t, content, note.Content, "frontmatter stays part of the content")
	assert.Equal(t, "Monday", note.Frontmatter.Title)
	assert.Equal(t, []string{"daily", "mood"}, note.Frontmatter.Tags)
	assert.Equal(t, HashContent([]byte(content)), note.ContentHash)
}

func TestLoadNoteWithoutFrontmatter(t *testing.T) {
	s, root := newTestStorage(t)
	writeFile(t, root, "idea.md", "just text\n")

	note, err := s.LoadNote("idea.md")
	require.NoError(t, err)
	assert.Empty(t, note.Frontmatter.Title)
	assert.Equal(t, "just text\n", note.Content)
}

func TestLoadNoteBadFrontmatterIsIgnored(t *testing.T) {
	s, root := newTestStorage(t)
	writeFile(t, root, "odd.md", "---\ntitle: [oops\n---\nMood: \n")

	note, err := s.LoadNote("odd.md")
	require.NoError(t, err)
	assert.Empty(t, note.Frontmatter.Title)
}

func TestLoadNoteMissing(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.LoadNote("nope.md")
	assert.Error(t, err)
}

func TestSaveNote(t *testing.T) {
	s, root := newTestStorage(t)
	note := &models.Note{Path: "Journaling/new/2024-01-02.md", Content: "__Mood: \n"}
	require.NoError(t, s.SaveNote(note))

	data, err := os.ReadFile(filepath.Join(root, "Journaling", "new", "2024-01-02.md"))
	require.NoError(t, err)
	assert.Equal(t, "__Mood: \n", string(data))
	assert.Equal(t, HashContent(data), note.ContentHash)
	assert.True(t, s.Exists("Journaling/new/2024-01-02.md"))
}

func TestListNotes(t *testing.T) {
	s, root := newTestStorage(t)
	writeFile(t, root, "Journaling/2024-01-01.md", "__Mood: \nWeight: \n__Sleep: 7h\n")
	writeFile(t, root, "Journaling/2024-01-02.md", "Mood: good\n")
	writeFile(t, root, "Templates/Daily.md", "Mood: \n")
	writeFile(t, root, "Notes/idea.md", "Topic: \n")
	writeFile(t, root, ".obsidian/workspace.md", "ignored")
	writeFile(t, root, "Notes/image.png", "binary")

	cfg := marker.NewConfig(marker.Journal.Defaults())
	notes, err := s.ListNotes(cfg)
	require.NoError(t, err)

	var paths []string
	for _, n := range notes {
		paths = append(paths, n.Path)
		assert.Empty(t, n.Content)
	}
	want := []string{
		"Journaling/2024-01-01.md",
		"Journaling/2024-01-02.md",
		"Notes/idea.md",
		"Templates/Daily.md",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	first := notes[0]
	assert.True(t, first.InScope)
	assert.Equal(t, 1, first.Unfilled)
	assert.Equal(t, 2, first.Pending)

	assert.False(t, notes[2].InScope, "journal variant only highlights the target directory")
	assert.False(t, notes[3].InScope, "templates are never highlighted")
}

func TestListNotesUsesCache(t *testing.T) {
	s, root := newTestStorage(t)
	writeFile(t, root, "Journaling/a.md", "Mood: \n")
	cfg := marker.NewConfig(marker.Journal.Defaults())

	_, err := s.ListNotes(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s.cache.Len())
	assert.FileExists(t, filepath.Join(root, ".fieldmark", "cache", "metadata.json"))

	// a second storage instance reads the persisted cache
	s2, err := NewStorage(root, nil)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(root, "Journaling", "a.md"))
	require.NoError(t, err)
	cached, ok := s2.cache.Get("Journaling/a.md", info, cfg.Fingerprint())
	require.True(t, ok)
	assert.Equal(t, 1, cached.Pending)

	// a settings change invalidates it
	other := marker.Journal.Defaults()
	other.UnfilledStatPrefix = "!!"
	_, ok = s2.cache.Get("Journaling/a.md", info, marker.NewConfig(other).Fingerprint())
	assert.False(t, ok)
}

func TestListNotesRefreshesModifiedFiles(t *testing.T) {
	s, root := newTestStorage(t)
	writeFile(t, root, "Journaling/a.md", "Mood: \n")
	cfg := marker.NewConfig(marker.Journal.Defaults())

	notes, err := s.ListNotes(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, notes[0].Pending)

	writeFile(t, root, "Journaling/a.md", "__Mood: \n")
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(root, "Journaling", "a.md"), later, later))

	notes, err = s.ListNotes(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, notes[0].Pending)
	assert.Equal(t, 1, notes[0].Unfilled)
}

func TestListNotesDropsDeletedFromCache(t *testing.T) {
	s, root := newTestStorage(t)
	writeFile(t, root, "a.md", "x")
	writeFile(t, root, "b.md", "y")
	cfg := marker.NewConfig(marker.Highlight.Defaults())

	_, err := s.ListNotes(cfg)
	require.NoError(t, err)
	require.Equal(t, 2, s.cache.Len())

	require.NoError(t, os.Remove(filepath.Join(root, "b.md")))
	notes, err := s.ListNotes(cfg)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, 1, s.cache.Len())
}

func TestListTemplates(t *testing.T) {
	s, root := newTestStorage(t)
	writeFile(t, root, "Templates/Daily.md", "# {{date}}\nMood: \nWeight: \nNotes\n")
	writeFile(t, root, "Templates/Weekly/Review.md", "Wins: \n")
	writeFile(t, root, "Journaling/a.md", "Mood: \n")

	cfg := marker.NewConfig(marker.Journal.Defaults())
	templates, err := s.ListTemplates("Templates", cfg)
	require.NoError(t, err)
	require.Len(t, templates, 2)

	assert.Equal(t, "Daily", templates[0].Name)
	assert.Equal(t, []string{"Mood:", "Weight:"}, templates[0].Fields)
	assert.Equal(t, "Review", templates[1].Name)
	assert.Equal(t, "Templates/Weekly/Review.md", templates[1].Path)
}

func TestListTemplatesMissingDirectory(t *testing.T) {
	s, _ := newTestStorage(t)
	templates, err := s.ListTemplates("Nope", nil)
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestRel(t *testing.T) {
	s, root := newTestStorage(t)
	rel, err := s.Rel(filepath.Join(root, "Journaling", "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "Journaling/a.md", rel)

	_, err = s.Rel(filepath.Dir(root))
	assert.Error(t, err)
}
