package command

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

const (
	MinSpeed     = 1
	MaxSpeed     = 8
	DefaultSpeed = 3

	// DriveCoefficient is the per-step wheel speed; a drive key at scale n
	// commands n*DriveCoefficient.
	DriveCoefficient = 125
)

// SpeedScale is the operator's drive speed setting, always in
// [MinSpeed, MaxSpeed]. Reads are atomic so every drive command built after
// a change sees the new value.
type SpeedScale struct {
	value   atomic.Int32
	initial int32

	mu       sync.Mutex
	onChange []func(int)

	// notifyMu orders hook calls so the last one sees the final value.
	notifyMu sync.Mutex
}

// NewSpeedScale returns a scale starting (and resetting) at initial.
func NewSpeedScale(initial int) (*SpeedScale, error) {
	if initial < MinSpeed || initial > MaxSpeed {
		return nil, fmt.Errorf("speed must be between %d and %d, got %d", MinSpeed, MaxSpeed, initial)
	}
	s := &SpeedScale{initial: int32(initial)}
	s.value.Store(int32(initial))
	return s, nil
}

// Get returns the current scale.
func (s *SpeedScale) Get() int { return int(s.value.Load()) }

// Increment raises the scale by one. At MaxSpeed it is a no-op.
func (s *SpeedScale) Increment() int { return s.step(1) }

// Decrement lowers the scale by one. At MinSpeed it is a no-op.
func (s *SpeedScale) Decrement() int { return s.step(-1) }

// Reset restores the initial scale.
func (s *SpeedScale) Reset() int {
	old := s.value.Swap(s.initial)
	if old != s.initial {
		s.notify()
	}
	return int(s.initial)
}

// Set stores v, which must lie in [MinSpeed, MaxSpeed].
func (s *SpeedScale) Set(v int) error {
	if v < MinSpeed || v > MaxSpeed {
		return fmt.Errorf("speed must be between %d and %d, got %d", MinSpeed, MaxSpeed, v)
	}
	if old := s.value.Swap(int32(v)); old != int32(v) {
		s.notify()
	}
	return nil
}

// OnChange registers fn to run after every change with the current value.
// Hooks run one at a time and must not change the scale.
func (s *SpeedScale) OnChange(fn func(int)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *SpeedScale) step(delta int32) int {
	for {
		cur := s.value.Load()
		next := cur + delta
		if next < MinSpeed || next > MaxSpeed {
			return int(cur)
		}
		if s.value.CompareAndSwap(cur, next) {
			s.notify()
			return int(next)
		}
	}
}

func (s *SpeedScale) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fns := slices.Clone(s.onChange)
	s.mu.Unlock()

	v := s.Get()
	for _, fn := range fns {
		fn(v)
	}
}
