// Package watcher turns file writes in the vault into file-write trigger
// events, so notes edited by other programs are highlighted on save.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dpshade/fieldmark/internal/hooks"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
	"github.com/dpshade/fieldmark/internal/service"
	"github.com/dpshade/fieldmark/internal/storage"
)

// DefaultDebounce is how long a path must be quiet before it is processed
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches every non-hidden directory of the vault
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	svc         *service.Service
	logger      *zap.Logger
	root        string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	// lastWritten holds the hash of the content this watcher wrote per path;
	// the event caused by that write is ignored
	lastWritten map[string]string
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity
type Stats struct {
	Events        int
	Processed     int
	Written       int
	SelfWrites    int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// New creates a watcher for the service's vault
func New(svc *service.Service, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		watcher:     fw,
		svc:         svc,
		logger:      svc.Logger().Named("watcher"),
		root:        svc.BaseDir(),
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		lastWritten: make(map[string]string),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start subscribes the highlighter to file writes, adds the vault
// directories and starts the event loop. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.svc.Highlighter().Start(models.TriggerFileWrite); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	if err := w.addTree(w.root); err != nil {
		w.svc.Highlighter().Stop()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Info("watching vault", zap.String("root", w.root), zap.Int("dirs", len(w.watcher.WatchList())))

	go w.run(ctx)
	return nil
}

// Stop stops the event loop and waits for it to finish
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.svc.Highlighter().Stop()
	if err := w.watcher.Close(); err != nil {
		w.logger.Error("error closing watcher", zap.Error(err))
	}
	w.logger.Info("stopped")
}

// Done is closed when the event loop exits
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounceDur / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".md") || hidden(w.root, event.Name) {
		return
	}

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}

// process fires a file-write event for one settled path and saves the
// result when a subscriber changed it
func (w *Watcher) process(ctx context.Context, abs string) {
	rel, err := w.svc.RelPath(abs)
	if err != nil {
		return
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("failed to read note", zap.String("path", rel), zap.Error(err))
			w.countError()
		}
		return
	}

	hash := storage.HashContent(content)
	w.mu.Lock()
	self := w.lastWritten[rel] == hash
	if self {
		delete(w.lastWritten, rel)
		w.stats.SelfWrites++
	}
	w.mu.Unlock()
	if self {
		return
	}

	host := &fileHost{path: rel, buf: marker.NewBuffer(string(content))}
	w.svc.Dispatcher().Fire(ctx, hooks.Event{Kind: models.TriggerFileWrite, Host: host})

	w.mu.Lock()
	w.stats.Processed++
	w.mu.Unlock()

	if !host.buf.Dirty() {
		return
	}

	note := &models.Note{Path: rel, Content: host.buf.String()}
	if err := w.svc.SaveNote(note); err != nil {
		w.logger.Error("failed to save note", zap.String("path", rel), zap.Error(err))
		w.countError()
		return
	}

	w.mu.Lock()
	w.lastWritten[rel] = note.ContentHash
	w.stats.Written++
	w.mu.Unlock()
	w.logger.Info("highlighted", zap.String("path", rel), zap.Int("lines", host.buf.Writes()))
}

func (w *Watcher) countError() {
	w.mu.Lock()
	w.stats.Errors++
	w.mu.Unlock()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// hidden reports whether any element of path below root starts with a dot
func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// GetStats returns the current watcher statistics
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetWatchedDirs returns the directories being watched
func (w *Watcher) GetWatchedDirs() []string {
	return w.watcher.WatchList()
}

// fileHost presents a note read from disk as the active document
type fileHost struct {
	path string
	buf  *marker.Buffer
}

func (h *fileHost) ActiveDocument() (marker.Document, marker.LineAccessor, bool) {
	return marker.DocumentPath(h.path), h.buf, true
}
