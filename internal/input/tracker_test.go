package input

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"
)

type edgeRecorder struct {
	mu    sync.Mutex
	edges []KeyEdgeEvent
}

func (r *edgeRecorder) emit(e KeyEdgeEvent) {
	r.mu.Lock()
	r.edges = append(r.edges, e)
	r.mu.Unlock()
}

func (r *edgeRecorder) all() []KeyEdgeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]KeyEdgeEvent(nil), r.edges...)
}

func down(key string) RawKeyEvent { return RawKeyEvent{Key: key, Down: true} }
func up(key string) RawKeyEvent   { return RawKeyEvent{Key: key, Down: false} }

func TestTracker_SuppressesRepeat(t *testing.T) {
	rec := &edgeRecorder{}
	tr := NewTracker([]string{"KeyW"}, rec.emit)

	tr.Feed(down("KeyW"))
	for i := 0; i < 25; i++ {
		tr.Feed(down("KeyW"))
	}
	tr.Feed(up("KeyW"))
	tr.Feed(up("KeyW"))

	edges := rec.all()
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2: %v", len(edges), edges)
	}
	if edges[0].Edge != Pressed || edges[1].Edge != Released {
		t.Errorf("edges = %v, want pressed then released", edges)
	}
}

func TestTracker_IgnoresUnregisteredKeys(t *testing.T) {
	rec := &edgeRecorder{}
	tr := NewTracker([]string{"KeyW"}, rec.emit)

	tr.Feed(down("KeyQ"))
	tr.Feed(up("KeyQ"))

	if got := rec.all(); len(got) != 0 {
		t.Errorf("got %v, want no edges", got)
	}
}

func TestTracker_ReleaseWithoutPress(t *testing.T) {
	rec := &edgeRecorder{}
	tr := NewTracker([]string{"KeyW"}, rec.emit)

	tr.Feed(up("KeyW"))

	if got := rec.all(); len(got) != 0 {
		t.Errorf("got %v, want no edges for stray release", got)
	}
}

func TestTracker_IndependentKeys(t *testing.T) {
	rec := &edgeRecorder{}
	tr := NewTracker([]string{"KeyW", "KeyA"}, rec.emit)

	tr.Feed(down("KeyW"))
	tr.Feed(down("KeyA"))
	tr.Feed(down("KeyW"))
	tr.Feed(up("KeyW"))
	tr.Feed(down("KeyA"))
	tr.Feed(up("KeyA"))

	want := []KeyEdgeEvent{
		{Key: "KeyW", Edge: Pressed},
		{Key: "KeyA", Edge: Pressed},
		{Key: "KeyW", Edge: Released},
		{Key: "KeyA", Edge: Released},
	}
	got := rec.all()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Key != want[i].Key || got[i].Edge != want[i].Edge {
			t.Errorf("edge[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTracker_ReleaseAll(t *testing.T) {
	rec := &edgeRecorder{}
	tr := NewTracker([]string{"KeyW", "KeyD", "Numpad1"}, rec.emit)

	tr.Feed(down("KeyW"))
	tr.Feed(down("KeyD"))
	if got := tr.Held(); len(got) != 2 || got[0] != "KeyD" || got[1] != "KeyW" {
		t.Errorf("Held() = %v, want [KeyD KeyW]", got)
	}

	at := time.Unix(100, 0)
	tr.ReleaseAll(at)

	edges := rec.all()[2:]
	if len(edges) != 2 {
		t.Fatalf("ReleaseAll emitted %v, want two releases", edges)
	}
	for _, e := range edges {
		if e.Edge != Released || !e.Timestamp.Equal(at) {
			t.Errorf("edge = %+v, want released at %v", e, at)
		}
	}
	if len(tr.Held()) != 0 {
		t.Errorf("Held() = %v after ReleaseAll, want none", tr.Held())
	}

	// a new press works after the forced release
	tr.Feed(down("KeyW"))
	if got := rec.all(); got[len(got)-1].Edge != Pressed {
		t.Errorf("last edge = %v, want pressed", got[len(got)-1])
	}
}

func TestTracker_ConcurrentFeeds(t *testing.T) {
	rec := &edgeRecorder{}
	tr := NewTracker([]string{"KeyW"}, rec.emit)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Feed(down("KeyW"))
			}
		}()
	}
	wg.Wait()
	tr.Feed(up("KeyW"))

	if got := rec.all(); len(got) != 2 {
		t.Errorf("got %d edges, want exactly one press and one release", len(got))
	}
}

func TestFanout(t *testing.T) {
	var f Fanout
	var a, b []RawKeyEvent

	unsubA := f.Subscribe(func(ev RawKeyEvent) { a = append(a, ev) })
	f.Subscribe(func(ev RawKeyEvent) { b = append(b, ev) })

	f.Emit(down("KeyW"))
	unsubA()
	unsubA()
	f.Emit(up("KeyW"))

	if len(a) != 1 {
		t.Errorf("unsubscribed handler got %d events, want 1", len(a))
	}
	if len(b) != 2 {
		t.Errorf("subscribed handler got %d events, want 2", len(b))
	}
}

func encodeEvent(typ, code uint16, value int32) []byte {
	buf := make([]byte, inputEventSize)
	binary.LittleEndian.PutUint64(buf[0:8], 1700000000)
	binary.LittleEndian.PutUint64(buf[8:16], 250000)
	binary.LittleEndian.PutUint16(buf[16:18], typ)
	binary.LittleEndian.PutUint16(buf[18:20], code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(value))
	return buf
}

func TestDecodeInputEvent(t *testing.T) {
	tests := []struct {
		name     string
		typ      uint16
		code     uint16
		value    int32
		wantKey  string
		wantDown bool
		wantOK   bool
	}{
		{"press W", evKey, 17, keyDown, "KeyW", true, true},
		{"repeat W", evKey, 17, keyRepeat, "KeyW", true, true},
		{"release W", evKey, 17, keyUp, "KeyW", false, true},
		{"numpad plus", evKey, 78, keyDown, "NumpadAdd", true, true},
		{"arrow up", evKey, 103, keyDown, "ArrowUp", true, true},
		{"sync event", 0, 0, 0, "", false, false},
		{"unknown code", evKey, 999, keyDown, "", false, false},
		{"odd value", evKey, 17, 7, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := decodeInputEvent(encodeEvent(tt.typ, tt.code, tt.value))
			raw, ok := ev.toRawKeyEvent()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if raw.Key != tt.wantKey || raw.Down != tt.wantDown {
				t.Errorf("raw = %+v, want key=%s down=%v", raw, tt.wantKey, tt.wantDown)
			}
			if want := time.Unix(1700000000, 250000000); !raw.Timestamp.Equal(want) {
				t.Errorf("Timestamp = %v, want %v", raw.Timestamp, want)
			}
		})
	}
}

func TestNewEvdevSource_RequiresDevices(t *testing.T) {
	if _, err := NewEvdevSource(nil, nil); err == nil {
		t.Error("NewEvdevSource(nil) error = nil, want error")
	}
}

func TestGPIOSource_HandleEdge(t *testing.T) {
	src, err := NewGPIOSource("", map[int]string{17: "Numpad0", 27: "NumpadDecimal"}, 0, nil)
	if err != nil {
		t.Fatalf("NewGPIOSource() error = %v", err)
	}
	if got := src.lines(); len(got) != 2 || got[0] != 17 {
		t.Errorf("lines() = %v, want [17 27]", got)
	}

	var events []RawKeyEvent
	src.Subscribe(func(ev RawKeyEvent) { events = append(events, ev) })

	src.handleEdge(17, true, time.Now())
	src.handleEdge(17, false, time.Now())
	src.handleEdge(4, true, time.Now())

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Key != "Numpad0" || !events[0].Down || events[1].Down {
		t.Errorf("events = %+v", events)
	}
}

func TestNewGPIOSource_Validation(t *testing.T) {
	tests := []struct {
		name     string
		buttons  map[int]string
		debounce time.Duration
	}{
		{"no buttons", nil, 0},
		{"negative line", map[int]string{-1: "KeyW"}, 0},
		{"empty key", map[int]string{3: ""}, 0},
		{"negative debounce", map[int]string{3: "KeyW"}, -time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGPIOSource("gpiochip0", tt.buttons, tt.debounce, nil); err == nil {
				t.Error("NewGPIOSource() error = nil, want error")
			}
		})
	}
}

func TestKnownKey(t *testing.T) {
	for _, k := range []string{"KeyW", "Numpad5", "Equal", "ArrowDown"} {
		if !KnownKey(k) {
			t.Errorf("KnownKey(%q) = false, want true", k)
		}
	}
	if KnownKey("Hyper") {
		t.Error(`KnownKey("Hyper") = true, want false`)
	}
}
