//go:build linux

package input

import (
	"context"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Run requests every button line with edge detection and blocks until ctx
// is cancelled. Edges arrive on gpiocdev's event goroutine.
func (s *GPIOSource) Run(ctx context.Context) error {
	chip, err := gpiocdev.NewChip(s.chip)
	if err != nil {
		return fmt.Errorf("open gpio chip: %w", err)
	}
	defer chip.Close()

	var lines []*gpiocdev.Line
	defer func() {
		for _, l := range lines {
			if err := l.Close(); err != nil {
				s.logger.Warn("gpio line close failed", "error", err.Error())
			}
		}
	}()

	for _, offset := range s.lines() {
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(s.onLineEvent),
		}
		if s.debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(s.debounce))
		}

		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			return fmt.Errorf("request line %d: %w", offset, err)
		}
		lines = append(lines, line)
	}

	s.logger.Info("gpio source started", "chip", s.chip, "buttons", len(lines))
	<-ctx.Done()
	return nil
}

func (s *GPIOSource) onLineEvent(evt gpiocdev.LineEvent) {
	s.handleEdge(evt.Offset, evt.Type == gpiocdev.LineEventFallingEdge, time.Now())
}
