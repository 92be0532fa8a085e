package console

import (
	"sync"
	"time"

	"github.com/sightsrobotics/console/internal/command"
	"github.com/sightsrobotics/console/internal/input"
)

// KeyBinding describes one logical action and the keys that trigger it.
// Keys use KeyboardEvent.code names ("KeyW", "ArrowUp", "Numpad1").
type KeyBinding struct {
	Action      string
	Description string
	Keys        []string

	// Holdable actions send a start command on press and a stop command on
	// release. Other actions act once per press.
	Holdable bool
}

// Bindings returns the console's key table, sorted by action.
func (c *Console) Bindings() []KeyBinding {
	return toKeyBindings(c.dispatcher.Bindings())
}

// DefaultKeyBindings returns the standard key table without creating a
// console.
func DefaultKeyBindings() []KeyBinding {
	scale, _ := command.NewSpeedScale(command.DefaultSpeed)
	return toKeyBindings(command.DefaultBindings(scale))
}

func toKeyBindings(bindings []command.Binding) []KeyBinding {
	out := make([]KeyBinding, len(bindings))
	for i, b := range bindings {
		out[i] = KeyBinding{
			Action:      b.Action,
			Description: b.Description,
			Keys:        append([]string(nil), b.Keys...),
			Holdable:    b.Holdable,
		}
	}
	return out
}

// InputSession is one connected key source, such as a browser tab. It
// tracks which keys it holds, so repeats are filtered per session and
// closing it releases everything still held.
type InputSession struct {
	name    string
	c       *Console
	tracker *input.Tracker
	once    sync.Once
}

// OpenInput opens a key session. Close it when the source disconnects.
func (c *Console) OpenInput(name string) *InputSession {
	s := &InputSession{
		name:    name,
		c:       c,
		tracker: input.NewTracker(c.dispatcher.Keys(), c.dispatcher.Handle),
	}
	c.mu.Lock()
	c.sessions[s] = struct{}{}
	c.mu.Unlock()
	c.logger.Debug("input session opened", "input", name)
	return s
}

// Name returns the session name.
func (s *InputSession) Name() string { return s.name }

// Feed reports the current state of one key. Unbound keys are ignored.
func (s *InputSession) Feed(key string, down bool) {
	s.tracker.Feed(input.RawKeyEvent{Key: key, Down: down, Timestamp: time.Now()})
}

// Held returns the keys the session currently holds, sorted.
func (s *InputSession) Held() []string {
	return s.tracker.Held()
}

// Close releases every held key. Safe to call more than once.
func (s *InputSession) Close() {
	s.once.Do(func() {
		s.tracker.ReleaseAll(time.Now())
		s.c.mu.Lock()
		delete(s.c.sessions, s)
		s.c.mu.Unlock()
		s.c.logger.Debug("input session closed", "input", s.name)
	})
}
