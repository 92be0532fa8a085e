package input

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// DefaultGPIOChip is the chip used when none is configured.
const DefaultGPIOChip = "gpiochip0"

// GPIOSource reports push buttons wired to GPIO lines as keys. Lines are
// pulled up, so a button closing to ground (falling edge) is Down.
type GPIOSource struct {
	Fanout
	chip     string
	buttons  map[int]string
	debounce time.Duration
	logger   *slog.Logger
}

// NewGPIOSource maps line offsets on chip to key names.
func NewGPIOSource(chip string, buttons map[int]string, debounce time.Duration, logger *slog.Logger) (*GPIOSource, error) {
	if len(buttons) == 0 {
		return nil, errors.New("at least one gpio button is required")
	}
	if chip == "" {
		chip = DefaultGPIOChip
	}
	if debounce < 0 {
		return nil, fmt.Errorf("debounce cannot be negative, got %s", debounce)
	}
	if logger == nil {
		logger = slog.Default()
	}

	copied := make(map[int]string, len(buttons))
	for line, key := range buttons {
		if line < 0 {
			return nil, fmt.Errorf("gpio line cannot be negative, got %d", line)
		}
		if key == "" {
			return nil, fmt.Errorf("gpio line %d: key cannot be empty", line)
		}
		copied[line] = key
	}

	return &GPIOSource{chip: chip, buttons: copied, debounce: debounce, logger: logger}, nil
}

// lines returns the configured offsets in ascending order.
func (s *GPIOSource) lines() []int {
	offsets := make([]int, 0, len(s.buttons))
	for o := range s.buttons {
		offsets = append(offsets, o)
	}
	sort.Ints(offsets)
	return offsets
}

// handleEdge emits the key bound to offset.
func (s *GPIOSource) handleEdge(offset int, falling bool, at time.Time) {
	key, ok := s.buttons[offset]
	if !ok {
		return
	}
	s.Emit(RawKeyEvent{Key: key, Down: falling, Timestamp: at})
}
