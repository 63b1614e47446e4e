package renderer

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

func testNote() *models.Note {
	return &models.Note{
		Path:        "Journaling/2024-01-01.md",
		Frontmatter: models.Frontmatter{Title: "Monday"},
		Content:     "# Monday\n__Mood: \nWeight: \nSleep: 7h\n",
		InScope:     true,
		Unfilled:    1,
		Pending:     1,
	}
}

func journal() *marker.Config { return marker.NewConfig(marker.Journal.Defaults()) }

func TestRenderText(t *testing.T) {
	out, err := NewRenderer(testNote(), journal()).RenderText()
	require.NoError(t, err)
	assert.Equal(t, testNote().Content, out)
}

func TestFields(t *testing.T) {
	got := NewRenderer(testNote(), journal()).Fields()
	want := []Field{
		{Line: 2, Text: "Mood:", Marked: true},
		{Line: 3, Text: "Weight:", Marked: false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldsInvalidPattern(t *testing.T) {
	s := marker.Journal.Defaults()
	s.StatRegex = "(oops"
	assert.Empty(t, NewRenderer(testNote(), marker.NewConfig(s)).Fields())
	assert.Empty(t, NewRenderer(testNote(), nil).Fields())
}

func TestRenderJSON(t *testing.T) {
	out, err := NewRenderer(testNote(), journal()).RenderJSON()
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Journaling/2024-01-01.md", report.Path)
	assert.Equal(t, "Monday", report.Title)
	assert.True(t, report.InScope)
	assert.Equal(t, 1, report.Unfilled)
	assert.Len(t, report.Fields, 2)
}

func TestRenderMarkdown(t *testing.T) {
	out := NewRenderer(testNote(), journal()).RenderMarkdown()
	assert.Equal(t, "# Monday\n**Mood:** _(unfilled)_\nWeight: \nSleep: 7h\n", out)
}

func TestRenderMarkdownEmptyPrefix(t *testing.T) {
	s := marker.Journal.Defaults()
	s.UnfilledStatPrefix = ""
	note := testNote()
	assert.Equal(t, note.Content, NewRenderer(note, marker.NewConfig(s)).RenderMarkdown())
}

func TestRenderPreview(t *testing.T) {
	t.Setenv("GLAMOUR_STYLE", "notty")
	out, err := NewRenderer(testNote(), journal()).RenderPreview(80)
	require.NoError(t, err)
	assert.Contains(t, out, "Mood:")
	assert.Contains(t, out, "unfilled")
}
