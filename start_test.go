package console

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sightsrobotics/console/internal/command"
)

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	c, _, _ := newTestConsole(t, 19001)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

// TestStart_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Start
// returns immediately if the context is already cancelled.
func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	c, _, _ := newTestConsole(t, 19002)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
}

func TestStart_Twice(t *testing.T) {
	c, _, _ := newTestConsole(t, 19003)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = c.Start(ctx)

	if err := c.Start(context.Background()); err == nil {
		t.Error("second Start() expected error")
	}
}

// TestStart_PortInUse verifies Start fails fast when the dashboard cannot
// bind.
func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":19004")
	if err != nil {
		t.Skipf("cannot reserve port: %v", err)
	}
	defer ln.Close()

	c, _, _ := newTestConsole(t, 19004)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Start(ctx); err == nil {
		t.Fatal("Start() expected bind error")
	}
	if err := c.Mount("anything"); err == nil {
		t.Error("Mount() after failed Start expected error")
	}
}

// TestStart_ShutdownReleasesSessions verifies a key still held at shutdown
// is released, so the robot gets a stop command.
func TestStart_ShutdownReleasesSessions(t *testing.T) {
	c, _, ft := newTestConsole(t, 19005)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	eventually(t, func() bool {
		conn, err := net.Dial("tcp", "localhost:"+strconv.Itoa(c.Port()))
		if err != nil {
			return false
		}
		conn.Close()
		return true
	})

	session := c.OpenInput("held")
	session.Feed("KeyS", true)
	if got := nextCommand(t, ft); got != command.Drive(-375, -375) {
		t.Fatalf("command = %v, want drive back", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}

	if got := nextCommand(t, ft); got != command.DriveStop() {
		t.Errorf("command after shutdown = %v, want drive stop", got)
	}
}

// TestStart_MultipleSequentialRuns verifies a new console can be started
// on the same port after the previous one shuts down.
func TestStart_MultipleSequentialRuns(t *testing.T) {
	for i := 0; i < 3; i++ {
		logs := mustWidget(t, "Logs", KindLogs, WithPeriod(100*time.Millisecond))
		c, _, _ := newTestConsole(t, 19006, WithWidget(logs))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- c.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("iteration %d: Start() returned error: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Start() did not return", i)
		}
	}
}

// TestStart_ConcurrentAccess verifies accessors and input are safe while
// the console runs.
func TestStart_ConcurrentAccess(t *testing.T) {
	cpu := mustWidget(t, "CPU", KindGauge, WithSensor("system_info"), WithField("cpu_percent"), WithPeriod(100*time.Millisecond), WithShared())
	c, _, _ := newTestConsole(t, 19010, WithWidget(cpu))
	startConsole(t, c)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Widgets()
			_ = c.Speed()
			_ = c.Connection()
			_ = c.Mounted()
			if i%2 == 0 {
				_ = c.Unmount("CPU")
			} else {
				_ = c.Mount("CPU")
			}
			s := c.OpenInput("concurrent")
			s.Feed("Equal", true)
			s.Feed("Equal", false)
			s.Close()
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutines did not complete")
	}

	if v := c.Speed(); v < command.MinSpeed || v > command.MaxSpeed {
		t.Errorf("Speed() = %d, out of range", v)
	}
}
