package command

import (
	"context"
	"sync"
)

// FakeTransport records commands for test assertions.
type FakeTransport struct {
	mu       sync.Mutex
	commands []Command
	sent     chan Command

	// Err, if set, is returned by every call after recording the command.
	Err error
}

// NewFakeTransport creates a FakeTransport. Every recorded command is also
// offered, non-blocking, on the channel returned by Sent.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{sent: make(chan Command, 256)}
}

// Commands returns a copy of recorded commands in call order.
func (f *FakeTransport) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.commands...)
}

// Sent delivers each command as it is recorded.
func (f *FakeTransport) Sent() <-chan Command { return f.sent }

// SetErr changes the injected failure.
func (f *FakeTransport) SetErr(err error) {
	f.mu.Lock()
	f.Err = err
	f.mu.Unlock()
}

func (f *FakeTransport) record(c Command) error {
	f.mu.Lock()
	f.commands = append(f.commands, c)
	err := f.Err
	f.mu.Unlock()

	select {
	case f.sent <- c:
	default:
	}
	return err
}

func (f *FakeTransport) Drive(_ context.Context, left, right int) error {
	return f.record(Drive(left, right))
}

func (f *FakeTransport) DriveStop(context.Context) error { return f.record(DriveStop()) }

func (f *FakeTransport) MoveArmServo(_ context.Context, servo Servo, direction bool) error {
	return f.record(MoveServo(servo, direction))
}

func (f *FakeTransport) HomeArm(context.Context) error { return f.record(HomeArm()) }

func (f *FakeTransport) HomeArmToPreset(_ context.Context, preset string) error {
	return f.record(HomeArmToPreset(preset))
}

func (f *FakeTransport) PowerOff(context.Context) error { return f.record(PowerOff()) }

func (f *FakeTransport) Reboot(context.Context) error { return f.record(Reboot()) }

// FakePublisher records MQTT publishes.
type FakePublisher struct {
	mu       sync.Mutex
	Topics   []string
	Payloads [][]byte

	// PublishError, if set, is returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// Publish records the message.
func (f *FakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Topics = append(f.Topics, topic)
	f.Payloads = append(f.Payloads, append([]byte(nil), payload...))
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
