package input

import (
	"sort"
	"sync"
	"time"
)

// Tracker turns raw key reports into press and release edges.
//
// Only registered keys produce edges. A key emits Pressed on its first Down
// report and Released on the first Up report after that; any further Down
// reports while held are auto-repeat and are dropped. Edges for one key are
// emitted in order because emit runs under the tracker lock.
type Tracker struct {
	mu         sync.Mutex
	registered map[string]struct{}
	held       map[string]struct{}
	emit       func(KeyEdgeEvent)
}

// NewTracker creates a tracker for keys, delivering edges to emit.
func NewTracker(keys []string, emit func(KeyEdgeEvent)) *Tracker {
	registered := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		registered[k] = struct{}{}
	}
	return &Tracker{
		registered: registered,
		held:       make(map[string]struct{}),
		emit:       emit,
	}
}

// Feed processes one raw report.
func (t *Tracker) Feed(ev RawKeyEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.registered[ev.Key]; !ok {
		return
	}
	_, isHeld := t.held[ev.Key]

	switch {
	case ev.Down && !isHeld:
		t.held[ev.Key] = struct{}{}
		t.emit(KeyEdgeEvent{Key: ev.Key, Edge: Pressed, Timestamp: ev.Timestamp})
	case !ev.Down && isHeld:
		delete(t.held, ev.Key)
		t.emit(KeyEdgeEvent{Key: ev.Key, Edge: Released, Timestamp: ev.Timestamp})
	}
}

// ReleaseAll emits Released for every held key, in key order. Used when a
// source goes away so no key stays latched down.
func (t *Tracker) ReleaseAll(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.held))
	for k := range t.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		delete(t.held, k)
		t.emit(KeyEdgeEvent{Key: k, Edge: Released, Timestamp: at})
	}
}

// Held returns the currently held keys, sorted.
func (t *Tracker) Held() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.held))
	for k := range t.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
