// Package highlighter connects trigger events to the reconciler. It owns the
// current configuration snapshot and the event subscriptions, and serializes
// passes per document so two triggers never interleave line writes.
package highlighter

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/hooks"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

// Observer is told about every pass that got as far as the reconciler
type Observer func(res marker.Result, err error)

// Highlighter reconciles the active document whenever a subscribed trigger fires
type Highlighter struct {
	dispatcher *hooks.Dispatcher
	logger     *zap.Logger

	cfg atomic.Pointer[marker.Config]

	mu    sync.Mutex
	subs  []*hooks.Subscription
	kinds []models.TriggerKind

	locksMu sync.Mutex
	locks   map[string]*docLock

	observer atomic.Pointer[Observer]
}

// New creates a highlighter bound to dispatcher. Nothing is subscribed until Start.
func New(dispatcher *hooks.Dispatcher, cfg *marker.Config, logger *zap.Logger) *Highlighter {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Highlighter{
		dispatcher: dispatcher,
		logger:     logger,
		locks:      make(map[string]*docLock),
	}
	h.SetConfig(cfg)
	return h
}

// Start subscribes to the given triggers, or to the configured trigger when
// none are given. Calling Start again replaces the previous subscriptions.
func (h *Highlighter) Start(kinds ...models.TriggerKind) error {
	if len(kinds) == 0 {
		kind := models.TriggerKeyUp
		if cfg := h.Config(); cfg != nil {
			kind = cfg.Settings.TriggerOrDefault()
		}
		kinds = []models.TriggerKind{kind}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.unsubscribeLocked()

	for _, kind := range kinds {
		sub, err := h.dispatcher.Subscribe(kind, h.handle)
		if err != nil {
			h.unsubscribeLocked()
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidSetting, "Failed to subscribe to trigger").
				WithContext("trigger", string(kind))
		}
		h.subs = append(h.subs, sub)
	}
	h.kinds = kinds

	h.logger.Debug("highlighter started", zap.Any("triggers", kinds))
	return nil
}

// Stop releases every subscription. Safe to call more than once.
func (h *Highlighter) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked()
	h.kinds = nil
}

func (h *Highlighter) unsubscribeLocked() {
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
}

// Triggers returns the kinds currently subscribed
func (h *Highlighter) Triggers() []models.TriggerKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.TriggerKind, len(h.kinds))
	copy(out, h.kinds)
	return out
}

// Config returns the current snapshot
func (h *Highlighter) Config() *marker.Config {
	return h.cfg.Load()
}

// SetConfig swaps in a new snapshot. Passes already running finish with the
// snapshot they started with.
func (h *Highlighter) SetConfig(cfg *marker.Config) {
	h.cfg.Store(cfg)
	if cfg != nil && cfg.Err != nil {
		h.logger.Warn("highlighting paused until the stat pattern is fixed", zap.Error(cfg.Err))
	}
}

// Resubscribe moves the subscription to the configured trigger when the
// highlighter is following settings rather than an explicit trigger list.
func (h *Highlighter) Resubscribe() error {
	return h.Start()
}

// SetObserver installs fn to be called after each pass
func (h *Highlighter) SetObserver(fn Observer) {
	if fn == nil {
		h.observer.Store(nil)
		return
	}
	h.observer.Store(&fn)
}

func (h *Highlighter) handle(ctx context.Context, ev hooks.Event) {
	if ev.Host == nil {
		return
	}
	doc, lines, ok := ev.Host.ActiveDocument()
	if !ok {
		return
	}
	res, err := h.Run(doc, lines)
	if err != nil {
		h.report(err, ev.Kind)
		return
	}
	if res.Changed() {
		h.logger.Debug("reconciled",
			zap.String("path", res.Path),
			zap.String("trigger", string(ev.Kind)),
			zap.Int("added", res.Added),
			zap.Int("removed", res.Removed))
	}
}

// Run performs one pass over doc with the current snapshot
func (h *Highlighter) Run(doc marker.Document, lines marker.LineAccessor) (marker.Result, error) {
	cfg := h.Config()
	if doc == nil || lines == nil {
		return marker.Result{Skipped: "no active document"}, nil
	}

	path := doc.Path()
	lock := h.acquire(path)
	lock.Lock()
	res, err := marker.Reconcile(doc, lines, cfg)
	lock.Unlock()
	h.release(path, lock)

	if obs := h.observer.Load(); obs != nil {
		(*obs)(res, err)
	}
	return res, err
}

// docLock serializes passes over one document. refs counts the passes
// holding or waiting for it; the entry is dropped when it reaches zero.
type docLock struct {
	sync.Mutex
	refs int
}

func (h *Highlighter) acquire(path string) *docLock {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	l, ok := h.locks[path]
	if !ok {
		l = &docLock{}
		h.locks[path] = l
	}
	l.refs++
	return l
}

func (h *Highlighter) release(path string, l *docLock) {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(h.locks, path)
	}
}

// lockCount is the number of documents with a pass running or waiting
func (h *Highlighter) lockCount() int {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	return len(h.locks)
}

func (h *Highlighter) report(err error, kind models.TriggerKind) {
	appErr := apperrors.GetAppError(err)
	fields := []zap.Field{
		zap.String("code", string(appErr.Code)),
		zap.String("trigger", string(kind)),
		zap.Error(err),
	}
	switch {
	case appErr.Silent():
		h.logger.Debug("reconcile skipped", fields...)
	case appErr.Code == apperrors.ErrCodeInvalidPattern:
		// already reported once by SetConfig
		h.logger.Debug("reconcile skipped", fields...)
	default:
		h.logger.Warn("reconcile failed", fields...)
	}
}
