// Package store keeps the latest snapshot of every mounted widget and
// publishes changes to the dashboard.
//
// [MemoryStore] is the only implementation. Sends to subscribers are
// non-blocking, so a stalled browser tab misses updates instead of stalling
// the polling tasks that feed the store.
package store
