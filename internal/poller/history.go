package poller

// History is a bounded FIFO of derived values. When full, pushing drops the
// oldest element. A capacity of zero retains nothing.
//
// History is not safe for concurrent use; [Task] guards it with its own lock.
type History[T any] struct {
	items    []T
	capacity int
}

// NewHistory creates a History holding at most capacity values.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &History[T]{items: make([]T, 0, capacity), capacity: capacity}
}

// Push appends v, evicting the oldest value if the history is full.
func (h *History[T]) Push(v T) {
	if h.capacity == 0 {
		return
	}
	if len(h.items) == h.capacity {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, v)
}

// Values returns a copy of the retained values, oldest first.
func (h *History[T]) Values() []T {
	if len(h.items) == 0 {
		return nil
	}
	out := make([]T, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the number of retained values.
func (h *History[T]) Len() int { return len(h.items) }

// Cap returns the configured capacity.
func (h *History[T]) Cap() int { return h.capacity }
