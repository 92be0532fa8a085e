// Package theme resolves the console's light/dark appearance from several
// independent signals.
package theme

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Mode is the operator's stored preference.
type Mode string

const (
	ModeSystem Mode = "system"
	ModeLight  Mode = "light"
	ModeDark   Mode = "dark"
)

// ParseMode accepts a mode name in any case. Empty means system.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeSystem:
		return ModeSystem, nil
	case ModeLight, ModeDark:
		return m, nil
	default:
		return "", fmt.Errorf("unknown theme mode %q", s)
	}
}

// Next returns the mode after m in the cycle system, light, dark.
func Next(m Mode) Mode {
	switch m {
	case ModeSystem:
		return ModeLight
	case ModeLight:
		return ModeDark
	default:
		return ModeSystem
	}
}

// Appearance is the resolved theme actually shown.
type Appearance string

const (
	Light Appearance = "light"
	Dark  Appearance = "dark"
)

// Signals are the inputs to Resolve. A nil pointer means the source has
// not reported.
type Signals struct {
	Stored     Mode
	SystemDark *bool
	Override   *Appearance
}

// Resolve merges signals with fixed precedence: an external override wins,
// then an explicit stored light or dark, then the system signal, then light.
func Resolve(s Signals) Appearance {
	if s.Override != nil {
		return *s.Override
	}
	switch s.Stored {
	case ModeLight:
		return Light
	case ModeDark:
		return Dark
	}
	if s.SystemDark != nil && *s.SystemDark {
		return Dark
	}
	return Light
}

// Snapshot is the state plus its resolved appearance.
type Snapshot struct {
	Mode       Mode        `json:"mode"`
	SystemDark *bool       `json:"system_dark,omitempty"`
	Override   *Appearance `json:"override,omitempty"`
	Appearance Appearance  `json:"appearance"`
}

// State owns the three signals. Each source writes only its own field and
// the appearance is always recomputed from all three.
type State struct {
	mu       sync.Mutex
	signals  Signals
	onChange []func(Snapshot)
}

// NewState returns a state with the given stored mode.
func NewState(stored Mode) *State {
	if stored == "" {
		stored = ModeSystem
	}
	return &State{signals: Signals{Stored: stored}}
}

// OnChange registers fn to run whenever the resolved appearance or stored
// mode changes. fn must not call back into the State.
func (s *State) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// SetStored records the operator's preference.
func (s *State) SetStored(m Mode) Snapshot {
	return s.update(func(sig *Signals) { sig.Stored = m })
}

// Cycle advances the stored preference.
func (s *State) Cycle() Snapshot {
	return s.update(func(sig *Signals) { sig.Stored = Next(sig.Stored) })
}

// SetSystemDark records the host's color scheme preference.
func (s *State) SetSystemDark(dark bool) Snapshot {
	return s.update(func(sig *Signals) { sig.SystemDark = &dark })
}

// SetOverride forces an appearance. A nil override clears it.
func (s *State) SetOverride(a *Appearance) Snapshot {
	var cp *Appearance
	if a != nil {
		v := *a
		cp = &v
	}
	return s.update(func(sig *Signals) { sig.Override = cp })
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.signals)
}

func (s *State) update(fn func(*Signals)) Snapshot {
	s.mu.Lock()
	before := snapshotOf(s.signals)
	fn(&s.signals)
	after := snapshotOf(s.signals)
	fns := slices.Clone(s.onChange)
	s.mu.Unlock()

	if before.Appearance != after.Appearance || before.Mode != after.Mode {
		for _, f := range fns {
			f(after)
		}
	}
	return after
}

func snapshotOf(sig Signals) Snapshot {
	return Snapshot{
		Mode:       sig.Stored,
		SystemDark: sig.SystemDark,
		Override:   sig.Override,
		Appearance: Resolve(sig),
	}
}
