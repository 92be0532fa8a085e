package console

import (
	"time"

	"github.com/sightsrobotics/console/internal/command"
	"github.com/sightsrobotics/console/internal/health"
	"github.com/sightsrobotics/console/internal/theme"
)

// WidgetState is the polling state of a widget's task.
type WidgetState string

const (
	// StateIdle means the last fetch completed and no fetch is running.
	StateIdle WidgetState = "idle"

	// StateInFlight means a fetch is outstanding. Ticks that arrive in this
	// state are dropped.
	StateInFlight WidgetState = "in_flight"

	// StateError means the last fetch failed. The previous value, if any,
	// is kept and reported as stale.
	StateError WidgetState = "error"
)

// String returns the string representation of the state.
func (s WidgetState) String() string {
	return string(s)
}

// WidgetUpdate is delivered to update callbacks every time a widget's
// value, state or mount status changes.
//
// WidgetUpdate is a copy; callbacks may keep it.
type WidgetUpdate struct {
	// Widget is the display name.
	Widget string

	Kind  WidgetKind
	State WidgetState

	// Value is the last good value: float64 for gauges, map[string]float64
	// for graphs, string for uptime and logs, []string for cameras, int for
	// the speed widget and ConnectionSample for the connection widget. Nil
	// until the first success.
	Value any

	// History holds retained values, oldest first.
	History []any

	// Stale is set when Value predates the most recent failure.
	Stale bool

	// Err is the most recent failure, nil after a success.
	Err error

	UpdatedAt time.Time
	CheckedAt time.Time

	// Latency of the fetch that produced this update. Zero for pushed
	// values.
	Latency time.Duration

	// Removed is set on the final update after a widget unmounts.
	Removed bool
}

// ConnectionSample is the latest robot connection measurement.
type ConnectionSample = health.Sample

// Connection qualities reported in [ConnectionSample].
const (
	QualityConnecting   = health.QualityConnecting
	QualityGood         = health.QualityGood
	QualityDegraded     = health.QualityDegraded
	QualityPoor         = health.QualityPoor
	QualityDisconnected = health.QualityDisconnected
)

// ThemeSnapshot is the resolved dashboard theme.
type ThemeSnapshot = theme.Snapshot

// ThemeMode is the stored theme preference: system, light or dark.
type ThemeMode = theme.Mode

// Theme modes accepted by [WithThemeMode] and [Console.SetThemeMode].
const (
	ThemeSystem = theme.ModeSystem
	ThemeLight  = theme.ModeLight
	ThemeDark   = theme.ModeDark
)

// DispatchStats counts commands sent, failed and dropped by the console.
type DispatchStats = command.Stats

// Transport delivers robot commands.
type Transport = command.Transport

// Command is one robot instruction produced by a key binding.
type Command = command.Command
