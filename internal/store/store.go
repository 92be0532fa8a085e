package store

import "time"

// WidgetSnapshot is the stored view of one widget's polling task, shaped
// for JSON (the REST API and SSE).
type WidgetSnapshot struct {
	Name string `json:"name"`

	// Kind is the widget kind (gauge, graph, uptime, logs, cameras, speed,
	// connection).
	Kind string `json:"kind"`

	// Mode is "pull" when the widget polls itself, "push" when a shared feed
	// or local state assigns its value.
	Mode string `json:"mode"`

	// State is idle, in_flight or error.
	State string `json:"state"`

	Labels map[string]string `json:"labels,omitempty"`
	Suffix string            `json:"suffix,omitempty"`

	// Value is the last good value. It survives an error, in which case
	// Stale is true.
	Value   any   `json:"value"`
	History []any `json:"history,omitempty"`
	Stale   bool  `json:"stale"`

	UpdatedAt *time.Time `json:"updated_at"`
	CheckedAt time.Time  `json:"checked_at"`
	LatencyMs int64      `json:"latency_ms"`

	// Error is the last failure, nil after a success.
	Error *string `json:"error"`

	// Removed marks the final notification sent when a widget unmounts.
	Removed bool `json:"removed,omitempty"`
}

// Store holds the latest snapshot per widget and fans updates out to
// subscribers. Implementations must be safe for concurrent use.
type Store interface {
	// Update replaces the snapshot stored under result.Name and notifies
	// subscribers.
	Update(result WidgetSnapshot)

	// Remove deletes a widget and notifies subscribers with Removed set.
	// Unknown names are ignored.
	Remove(name string)

	// Get returns one snapshot.
	Get(name string) (WidgetSnapshot, bool)

	// GetAll returns every snapshot sorted by name.
	GetAll() []WidgetSnapshot

	// Subscribe returns a buffered channel of updates. Slow consumers miss
	// updates. Callers must Unsubscribe.
	Subscribe() <-chan WidgetSnapshot

	// Unsubscribe removes a subscription and closes its channel. Safe to
	// call more than once.
	Unsubscribe(ch <-chan WidgetSnapshot)
}
