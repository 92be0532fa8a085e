package input

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupported is returned by hardware sources on platforms without the
// required kernel interface.
var ErrUnsupported = errors.New("input source not supported on this platform")

// Edge is a key state transition.
type Edge int

const (
	Pressed Edge = iota + 1
	Released
)

func (e Edge) String() string {
	switch e {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// RawKeyEvent is a key state report from an input source. Sources that
// auto-repeat send Down repeatedly while a key is held.
type RawKeyEvent struct {
	Key       string
	Down      bool
	Timestamp time.Time
}

// KeyEdgeEvent is one physical transition of a registered key.
type KeyEdgeEvent struct {
	Key       string
	Edge      Edge
	Timestamp time.Time
}
