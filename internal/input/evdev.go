package input

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"time"
)

const (
	evKey = 0x01

	keyUp     = 0
	keyDown   = 1
	keyRepeat = 2
)

// EvdevSource reads keyboards through /dev/input/event* devices. Several
// devices are multiplexed through one epoll loop on Linux; elsewhere Run
// returns [ErrUnsupported].
type EvdevSource struct {
	Fanout
	paths  []string
	logger *slog.Logger
}

// NewEvdevSource creates a source for the given device paths.
func NewEvdevSource(paths []string, logger *slog.Logger) (*EvdevSource, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input devices provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EvdevSource{paths: append([]string(nil), paths...), logger: logger}, nil
}

// Paths returns the configured device paths.
func (s *EvdevSource) Paths() []string {
	return append([]string(nil), s.paths...)
}

// inputEvent mirrors the 64-bit Linux struct input_event:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// inputEventSize is the wire size of one event.
const inputEventSize = 24

// decodeInputEvent parses one little-endian event. buf must hold at least
// inputEventSize bytes.
func decodeInputEvent(buf []byte) inputEvent {
	return inputEvent{
		Sec:   int64(binary.LittleEndian.Uint64(buf[0:8])),
		Usec:  int64(binary.LittleEndian.Uint64(buf[8:16])),
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}
}

// toRawKeyEvent converts key events to raw reports. Kernel auto-repeat
// (value 2) is reported as Down, leaving repeat suppression to [Tracker].
func (ev inputEvent) toRawKeyEvent() (RawKeyEvent, bool) {
	if ev.Type != evKey {
		return RawKeyEvent{}, false
	}
	name, ok := KeyName(ev.Code)
	if !ok {
		return RawKeyEvent{}, false
	}

	var down bool
	switch ev.Value {
	case keyDown, keyRepeat:
		down = true
	case keyUp:
		down = false
	default:
		return RawKeyEvent{}, false
	}

	return RawKeyEvent{
		Key:       name,
		Down:      down,
		Timestamp: time.Unix(ev.Sec, ev.Usec*int64(time.Microsecond)),
	}, true
}
