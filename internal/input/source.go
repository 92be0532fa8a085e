package input

import "sync"

// Handler receives raw key reports from a [Source].
type Handler func(RawKeyEvent)

// Source is anything that reports raw key state: an evdev keyboard, GPIO
// buttons, or a websocket relay from the browser.
type Source interface {
	// Subscribe registers h and returns a function that removes it.
	Subscribe(h Handler) (unsubscribe func())
}

// Fanout is a [Source] that delivers every emitted event to all current
// subscribers. Hardware sources embed it.
type Fanout struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	next     uint64
}

// Subscribe implements [Source]. The returned function is idempotent.
func (f *Fanout) Subscribe(h Handler) func() {
	f.mu.Lock()
	if f.handlers == nil {
		f.handlers = make(map[uint64]Handler)
	}
	id := f.next
	f.next++
	f.handlers[id] = h
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.handlers, id)
			f.mu.Unlock()
		})
	}
}

// Emit delivers ev to every subscriber in the calling goroutine.
func (f *Fanout) Emit(ev RawKeyEvent) {
	f.mu.RLock()
	handlers := make([]Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
