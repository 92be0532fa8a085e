package store

import (
	"sort"
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory [Store].
//
// Subscribers get buffered channels and sends never block; a full buffer
// drops the update for that subscriber only.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]WidgetSnapshot

	subMu       sync.RWMutex
	subscribers map[chan WidgetSnapshot]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make(map[string]WidgetSnapshot),
		subscribers: make(map[chan WidgetSnapshot]struct{}),
	}
}

func (m *MemoryStore) Update(result WidgetSnapshot) {
	m.mu.Lock()
	m.snapshots[result.Name] = result
	m.mu.Unlock()

	m.notifySubscribers(result)
}

func (m *MemoryStore) Remove(name string) {
	m.mu.Lock()
	last, ok := m.snapshots[name]
	delete(m.snapshots, name)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.notifySubscribers(WidgetSnapshot{Name: name, Kind: last.Kind, Removed: true})
}

func (m *MemoryStore) Get(name string) (WidgetSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[name]
	return s, ok
}

func (m *MemoryStore) GetAll() []WidgetSnapshot {
	m.mu.RLock()
	results := make([]WidgetSnapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		results = append(results, s)
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func (m *MemoryStore) Subscribe() <-chan WidgetSnapshot {
	ch := make(chan WidgetSnapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

func (m *MemoryStore) Unsubscribe(ch <-chan WidgetSnapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *MemoryStore) notifySubscribers(result WidgetSnapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- result:
		default:
			// slow subscriber
		}
	}
}

var _ Store = (*MemoryStore)(nil)
