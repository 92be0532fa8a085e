package command

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDrive_Clamps(t *testing.T) {
	tests := []struct {
		name        string
		left, right int
		wantL       int
		wantR       int
	}{
		{"within range", 375, -375, 375, -375},
		{"above max", 5000, 0, MaxDriveSpeed, 0},
		{"below min", 0, -5000, 0, -MaxDriveSpeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Drive(tt.left, tt.right)
			if c.Left != tt.wantL || c.Right != tt.wantR {
				t.Errorf("Drive(%d,%d) = (%d,%d), want (%d,%d)", tt.left, tt.right, c.Left, c.Right, tt.wantL, tt.wantR)
			}
		})
	}
}

func TestParseServo(t *testing.T) {
	tests := []struct {
		in      string
		want    Servo
		wantErr bool
	}{
		{"SHOULDER", Shoulder, false},
		{"claw", Claw, false},
		{" wristlr ", WristLR, false},
		{"knee", "", true},
	}
	for _, tt := range tests {
		got, err := ParseServo(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseServo(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseServo(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommand_SendRoutesToTransport(t *testing.T) {
	ft := NewFakeTransport()
	cmds := []Command{
		Drive(125, -125),
		DriveStop(),
		MoveServo(Elbow, true),
		HomeArm(),
		HomeArmToPreset("drive"),
		PowerOff(),
		Reboot(),
	}
	for _, c := range cmds {
		if err := c.Send(context.Background(), ft); err != nil {
			t.Fatalf("Send(%s) error: %v", c, err)
		}
	}

	got := ft.Commands()
	if len(got) != len(cmds) {
		t.Fatalf("recorded %d commands, want %d", len(got), len(cmds))
	}
	for i := range cmds {
		if got[i] != cmds[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], cmds[i])
		}
	}
}

func TestCommand_SendUnknownKind(t *testing.T) {
	err := Command{Kind: "jump"}.Send(context.Background(), NewFakeTransport())
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestCommand_String(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Drive(250, 250), "drive(250,250)"},
		{DriveStop(), "drive_stop"},
		{MoveServo(Claw, false), "arm_servo(CLAW,false)"},
		{HomeArmToPreset("drive"), "arm_preset(drive)"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSpeedScale(t *testing.T) {
	t.Run("rejects out of range initial", func(t *testing.T) {
		for _, v := range []int{0, 9, -1} {
			if _, err := NewSpeedScale(v); err == nil {
				t.Errorf("NewSpeedScale(%d) expected error", v)
			}
		}
	})

	t.Run("saturates at bounds", func(t *testing.T) {
		s, err := NewSpeedScale(DefaultSpeed)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			s.Increment()
		}
		if s.Get() != MaxSpeed {
			t.Errorf("Get() = %d after increments, want %d", s.Get(), MaxSpeed)
		}
		for i := 0; i < 20; i++ {
			s.Decrement()
		}
		if s.Get() != MinSpeed {
			t.Errorf("Get() = %d after decrements, want %d", s.Get(), MinSpeed)
		}
	})

	t.Run("reset returns to initial", func(t *testing.T) {
		s, _ := NewSpeedScale(5)
		s.Increment()
		if got := s.Reset(); got != 5 {
			t.Errorf("Reset() = %d, want 5", got)
		}
	})

	t.Run("onChange fires only on change", func(t *testing.T) {
		s, _ := NewSpeedScale(MaxSpeed - 1)
		var got []int
		s.OnChange(func(v int) { got = append(got, v) })

		s.Increment() // 8
		s.Increment() // saturated
		s.Decrement() // 7
		s.Reset()     // already 7

		want := []int{MaxSpeed, MaxSpeed - 1}
		if len(got) != len(want) {
			t.Fatalf("onChange values = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("onChange[%d] = %d, want %d", i, got[i], want[i])
			}
		}
	})

	t.Run("set validates and notifies on change", func(t *testing.T) {
		s, _ := NewSpeedScale(DefaultSpeed)
		var calls int
		s.OnChange(func(int) { calls++ })

		if err := s.Set(0); err == nil {
			t.Error("Set(0) expected error")
		}
		if err := s.Set(MaxSpeed + 1); err == nil {
			t.Errorf("Set(%d) expected error", MaxSpeed+1)
		}
		if err := s.Set(DefaultSpeed); err != nil {
			t.Fatalf("Set(DefaultSpeed) error = %v", err)
		}
		if calls != 0 {
			t.Errorf("onChange calls = %d after unchanged Set, want 0", calls)
		}
		if err := s.Set(7); err != nil {
			t.Fatalf("Set(7) error = %v", err)
		}
		if s.Get() != 7 || calls != 1 {
			t.Errorf("Get() = %d calls = %d, want 7 and 1", s.Get(), calls)
		}
	})

	t.Run("concurrent steps stay in range", func(t *testing.T) {
		s, _ := NewSpeedScale(DefaultSpeed)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); s.Increment() }()
			go func() { defer wg.Done(); s.Decrement() }()
		}
		wg.Wait()
		if v := s.Get(); v < MinSpeed || v > MaxSpeed {
			t.Errorf("Get() = %d, out of range", v)
		}
	})

	t.Run("last notification matches final value", func(t *testing.T) {
		for round := 0; round < 20; round++ {
			s, _ := NewSpeedScale(4)
			var (
				mu   sync.Mutex
				last int
			)
			s.OnChange(func(v int) {
				mu.Lock()
				last = v
				mu.Unlock()
			})

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(2)
				go func() { defer wg.Done(); s.Increment() }()
				go func() { defer wg.Done(); s.Decrement() }()
			}
			wg.Wait()

			mu.Lock()
			got := last
			mu.Unlock()
			if got != 0 && got != s.Get() {
				t.Fatalf("round %d: last notified %d, scale is %d", round, got, s.Get())
			}
		}
	})
}

func TestFormatPayload(t *testing.T) {
	at := time.UnixMilli(1700000000000)

	tests := []struct {
		name string
		cmd  Command
		want map[string]any
	}{
		{
			name: "drive",
			cmd:  Drive(375, -375),
			want: map[string]any{"kind": "drive", "speed": []any{375.0, -375.0}, "sent_at_ms": 1700000000000.0},
		},
		{
			name: "servo false direction is kept",
			cmd:  MoveServo(Claw, false),
			want: map[string]any{"kind": "arm_servo", "servo": "CLAW", "direction": false, "sent_at_ms": 1700000000000.0},
		},
		{
			name: "preset",
			cmd:  HomeArmToPreset("drive"),
			want: map[string]any{"kind": "arm_preset", "preset": "drive", "sent_at_ms": 1700000000000.0},
		},
		{
			name: "stop",
			cmd:  DriveStop(),
			want: map[string]any{"kind": "drive_stop", "sent_at_ms": 1700000000000.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := FormatPayload(tt.cmd, at)
			if err != nil {
				t.Fatalf("FormatPayload error: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("invalid JSON %s: %v", data, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("payload = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				gv, ok := got[k]
				if !ok {
					t.Errorf("missing key %q in %s", k, data)
					continue
				}
				if s, isSlice := v.([]any); isSlice {
					gs, _ := gv.([]any)
					if len(gs) != len(s) || gs[0] != s[0] || gs[1] != s[1] {
						t.Errorf("%s = %v, want %v", k, gv, v)
					}
					continue
				}
				if gv != v {
					t.Errorf("%s = %v, want %v", k, gv, v)
				}
			}
		})
	}
}
