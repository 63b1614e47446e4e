// Package hooks is the trigger-event registry. Hosts fire events (a key
// release in the editor, a mouse click, a file write seen by the watcher) and
// subscribers run synchronously, in subscription order, inside Fire.
//
// Subscriptions are explicit: Subscribe returns a handle that must be
// released with Unsubscribe, and Close releases everything still attached.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

// Host exposes the document the event refers to
type Host interface {
	ActiveDocument() (marker.Document, marker.LineAccessor, bool)
}

// Event is one trigger occurrence
type Event struct {
	Kind models.TriggerKind
	Host Host
	At   time.Time
}

// Handler reacts to an event
type Handler func(ctx context.Context, ev Event)

// ErrClosed is returned by Subscribe after Close
var ErrClosed = fmt.Errorf("dispatcher closed")

// Dispatcher routes events to subscribers
type Dispatcher struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[models.TriggerKind]map[uint64]Handler
	closed bool
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[models.TriggerKind]map[uint64]Handler),
	}
}

// Subscription is the handle for one registered handler
type Subscription struct {
	d    *Dispatcher
	kind models.TriggerKind
	id   uint64
	once sync.Once
}

// Kind returns the trigger the subscription listens to
func (s *Subscription) Kind() models.TriggerKind { return s.kind }

// Unsubscribe detaches the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.d.remove(s.kind, s.id)
	})
}

// Subscribe registers h for events of kind
func (d *Dispatcher) Subscribe(kind models.TriggerKind, h Handler) (*Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("nil handler for %s", kind)
	}
	switch kind {
	case models.TriggerKeyUp, models.TriggerClick, models.TriggerFileWrite:
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	d.nextID++
	id := d.nextID
	if d.subs[kind] == nil {
		d.subs[kind] = make(map[uint64]Handler)
	}
	d.subs[kind][id] = h

	return &Subscription{d: d, kind: kind, id: id}, nil
}

func (d *Dispatcher) remove(kind models.TriggerKind, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs[kind], id)
}

// Fire runs every handler subscribed to ev.Kind and returns how many ran.
// A cancelled context stops the remaining handlers.
// The handler list is copied before running, so handlers may unsubscribe.
func (d *Dispatcher) Fire(ctx context.Context, ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0
	}
	ids := make([]uint64, 0, len(d.subs[ev.Kind]))
	for id := range d.subs[ev.Kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = d.subs[ev.Kind][id]
	}
	d.mu.Unlock()

	ran := 0
	for _, h := range handlers {
		if ctx.Err() != nil {
			break
		}
		h(ctx, ev)
		ran++
	}
	return ran
}

// Count returns the number of handlers attached to kind
func (d *Dispatcher) Count(kind models.TriggerKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs[kind])
}

// Close detaches every handler; later Subscribe calls fail and Fire does nothing
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.subs = make(map[models.TriggerKind]map[uint64]Handler)
}
