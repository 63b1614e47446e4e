package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
	"github.com/dpshade/fieldmark/internal/service"
)

func newWatchedVault(t *testing.T) (*service.Service, *Watcher, string) {
	t.Helper()
	root := t.TempDir()

	svc, err := service.NewServiceWithOptions(service.Options{RootPath: root, Variant: marker.Journal})
	require.NoError(t, err)
	require.NoError(t, svc.InitVault())

	w, err := New(svc, 50*time.Millisecond)
	require.NoError(t, err)
	return svc, w, root
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func TestWatcherHighlightsWrittenNotes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc, w, root := newWatchedVault(t)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsWatching())
	assert.Equal(t, []models.TriggerKind{models.TriggerFileWrite}, svc.Highlighter().Triggers())

	note := filepath.Join(root, "Journaling", "2024-01-01.md")
	require.NoError(t, os.WriteFile(note, []byte("Mood: \nSleep: 7h\n"), 0644))

	require.Eventually(t, func() bool {
		return read(t, note) == "__Mood: \nSleep: 7h\n"
	}, 5*time.Second, 20*time.Millisecond)

	// the watcher's own save comes back as an event and is ignored
	require.Eventually(t, func() bool {
		return w.GetStats().SelfWrites >= 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, w.GetStats().Written)

	w.Stop()
	assert.False(t, w.IsWatching())
	assert.Empty(t, svc.Highlighter().Triggers())
}

func TestWatcherLeavesOutOfScopeNotes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc, w, root := newWatchedVault(t)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	template := filepath.Join(root, "Templates", "Weekly.md")
	require.NoError(t, os.WriteFile(template, []byte("Wins: \n"), 0644))

	require.Eventually(t, func() bool {
		return w.GetStats().Processed >= 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "Wins: \n", read(t, template))
	assert.Equal(t, 0, w.GetStats().Written)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc, w, root := newWatchedVault(t)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	dir := filepath.Join(root, "Journaling", "2024")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.Eventually(t, func() bool {
		for _, d := range w.GetWatchedDirs() {
			if d == dir {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	note := filepath.Join(dir, "02.md")
	require.NoError(t, os.WriteFile(note, []byte("Energy: \n"), 0644))
	require.Eventually(t, func() bool {
		return read(t, note) == "__Energy: \n"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherSkipsHiddenDirectories(t *testing.T) {
	svc, w, root := newWatchedVault(t)
	defer svc.Close()
	defer w.watcher.Close()

	require.NoError(t, w.addTree(root))
	for _, d := range w.GetWatchedDirs() {
		assert.NotContains(t, d, ".fieldmark")
	}

	assert.True(t, hidden(root, filepath.Join(root, ".obsidian", "a.md")))
	assert.True(t, hidden(root, filepath.Join(filepath.Dir(root), "a.md")))
	assert.False(t, hidden(root, filepath.Join(root, "Journaling", "a.md")))
}

func TestStopWithoutStart(t *testing.T) {
	svc, w, _ := newWatchedVault(t)
	defer svc.Close()
	defer w.watcher.Close()

	w.Stop()
	assert.False(t, w.IsWatching())
}
