package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/fieldmark/internal/clipboard"
	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
	"github.com/dpshade/fieldmark/internal/service"
)

func setupCLI(t *testing.T) (*CLI, *bytes.Buffer, string) {
	t.Helper()
	root := t.TempDir()

	svc, err := service.NewServiceWithOptions(service.Options{RootPath: root, Variant: marker.Journal})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	require.NoError(t, svc.InitVault())

	out := &bytes.Buffer{}
	return NewCLIWithOutput(svc, out), out, root
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func run(t *testing.T, c *CLI, args ...string) error {
	t.Helper()
	return c.ExecuteCommand(context.Background(), args)
}

func TestUnknownCommand(t *testing.T) {
	c, _, _ := setupCLI(t)
	err := run(t, c, "frobnicate")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCommandNotFound))
}

func TestUsage(t *testing.T) {
	c, out, _ := setupCLI(t)
	require.NoError(t, run(t, c))
	assert.Contains(t, out.String(), "Usage: fieldmark <command>")

	out.Reset()
	require.NoError(t, run(t, c, "help", "apply"))
	assert.Contains(t, out.String(), "fieldmark apply --all")
}

func TestApplyAndCheck(t *testing.T) {
	c, out, root := setupCLI(t)
	write(t, root, "Journaling/a.md", "Mood: \nSleep: 7h\n")

	require.NoError(t, run(t, c, "check"))
	assert.Contains(t, out.String(), "Journaling/a.md: 0 unfilled, 1 pending")
	assert.Contains(t, out.String(), "fieldmark apply")
	assert.Equal(t, "Mood: \nSleep: 7h\n", read(t, root, "Journaling/a.md"))

	out.Reset()
	require.NoError(t, run(t, c, "apply", "--all"))
	assert.Contains(t, out.String(), "Journaling/a.md: +1 -0")
	assert.Contains(t, out.String(), "Updated 1 of 1 note(s)")
	assert.Equal(t, "__Mood: \nSleep: 7h\n", read(t, root, "Journaling/a.md"))

	out.Reset()
	require.NoError(t, run(t, c, "check", "Journaling/a.md"))
	assert.Contains(t, out.String(), "1 unfilled, 0 pending")
	assert.Contains(t, out.String(), "1: __Mood:")
}

func TestApplyByPath(t *testing.T) {
	c, out, root := setupCLI(t)
	write(t, root, "Journaling/a.md", "Mood: \n")

	require.NoError(t, run(t, c, "apply", filepath.Join(root, "Journaling", "a.md")))
	assert.Equal(t, "__Mood: \n", read(t, root, "Journaling/a.md"))

	out.Reset()
	require.NoError(t, run(t, c, "apply", "Templates/Daily.md"))
	assert.Contains(t, out.String(), "skipped (inside templates directory)")

	assert.Error(t, run(t, c, "apply"))
}

func TestListFormats(t *testing.T) {
	c, out, root := setupCLI(t)
	write(t, root, "Journaling/a.md", "Mood: \n")
	write(t, root, "Notes/b.md", "done\n")

	require.NoError(t, run(t, c, "list", "--format", "paths"))
	assert.Equal(t, "Journaling/a.md\nNotes/b.md\nTemplates/Daily.md\n", out.String())

	out.Reset()
	require.NoError(t, run(t, c, "ls", "--unfilled", "-f", "paths"))
	assert.Equal(t, "Journaling/a.md\n", out.String())

	out.Reset()
	require.NoError(t, run(t, c, "list", "--format", "json"))
	var notes []models.Note
	require.NoError(t, json.Unmarshal(out.Bytes(), &notes))
	assert.Len(t, notes, 3)

	out.Reset()
	require.NoError(t, run(t, c, "list", "--format", "table"))
	assert.Contains(t, out.String(), "Unfilled")

	err := run(t, c, "list", "--format", "csv")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidFormat))
}

func TestSearch(t *testing.T) {
	c, out, root := setupCLI(t)
	write(t, root, "Journaling/gratitude.md", "x\n")

	require.NoError(t, run(t, c, "search", "gratitude", "-f", "paths"))
	assert.Contains(t, out.String(), "Journaling/gratitude.md")

	assert.Error(t, run(t, c, "search"))
}

func TestShow(t *testing.T) {
	c, out, root := setupCLI(t)
	write(t, root, "Journaling/a.md", "__Mood: \nWeight: \n")

	require.NoError(t, run(t, c, "show", "Journaling/a.md"))
	assert.Equal(t, "__Mood: \nWeight: \n", out.String())

	out.Reset()
	require.NoError(t, run(t, c, "show", "Journaling/a.md", "--format", "json"))
	assert.Contains(t, out.String(), `"marked": true`)

	err := run(t, c, "show", "Journaling/missing.md")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	err = run(t, c, "show", "Journaling/a.md", "--format", "yaml")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidFormat))
}

func TestShowCopy(t *testing.T) {
	c, out, root := setupCLI(t)
	write(t, root, "Journaling/a.md", "__Mood: \n")

	var term bytes.Buffer
	c.copier = clipboard.NewOSC52(&term)

	require.NoError(t, run(t, c, "show", "Journaling/a.md", "--copy"))
	assert.Equal(t, "Sent to terminal clipboard\n", out.String())
	assert.Contains(t, term.String(), base64.StdEncoding.EncodeToString([]byte("__Mood: \n")))
}

func TestTemplatesAndNew(t *testing.T) {
	c, out, root := setupCLI(t)

	require.NoError(t, run(t, c, "templates"))
	assert.Contains(t, out.String(), "Daily - Templates/Daily.md")
	assert.Contains(t, out.String(), "  Mood:")

	out.Reset()
	require.NoError(t, run(t, c, "new", "Daily", "Journaling/2024-01-01"))
	assert.Contains(t, out.String(), "Created note: Journaling/2024-01-01.md")
	assert.Contains(t, out.String(), "4 field(s) to fill")
	assert.Contains(t, read(t, root, "Journaling/2024-01-01.md"), "__Energy: \n")

	assert.Error(t, run(t, c, "new", "Daily"))
}

func TestSettingsCommands(t *testing.T) {
	c, out, _ := setupCLI(t)

	require.NoError(t, run(t, c, "settings"))
	assert.Contains(t, out.String(), "unfilledStatPrefix")
	assert.Contains(t, out.String(), `"__"`)

	out.Reset()
	require.NoError(t, run(t, c, "settings", "set", "prefix", "!!"))
	assert.Contains(t, out.String(), `Set unfilledStatPrefix = "!!"`)

	out.Reset()
	require.NoError(t, run(t, c, "settings", "get", "unfilledStatPrefix"))
	assert.Equal(t, "!!\n", out.String())

	out.Reset()
	err := run(t, c, "settings", "set", "pattern", "(oops")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidPattern))
	require.NoError(t, run(t, c, "settings", "show"))
	assert.Contains(t, out.String(), "Highlighting paused")

	out.Reset()
	require.NoError(t, run(t, c, "settings", "reset"))
	assert.Contains(t, out.String(), "reset to journal defaults")

	assert.Error(t, run(t, c, "settings", "get", "colour"))
	assert.Error(t, run(t, c, "settings", "bogus"))
}

func TestMigrate(t *testing.T) {
	c, out, root := setupCLI(t)
	write(t, root, "Journaling/a.md", "==Mood: \n")

	require.NoError(t, run(t, c, "migrate", "--from", "=="))
	assert.Contains(t, out.String(), "Migrated 1 note(s)")
	assert.Equal(t, "__Mood: \n", read(t, root, "Journaling/a.md"))

	assert.Error(t, run(t, c, "migrate"))
}

func TestVariants(t *testing.T) {
	c, out, _ := setupCLI(t)
	require.NoError(t, run(t, c, "variants"))
	assert.Contains(t, out.String(), "* journal")
	assert.Contains(t, out.String(), "  highlight")
}
