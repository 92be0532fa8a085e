package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sightsrobotics/console/internal/input"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 2 * time.Second
)

// Effect runs when an edge fires. It returns the command to send, or false
// when the effect is purely local (such as changing the speed scale).
type Effect func() (Command, bool)

// Binding ties a logical action to its keys and effects. OnStop only runs
// for holdable actions.
type Binding struct {
	Action      string
	Description string
	Keys        []string
	Holdable    bool
	OnStart     Effect
	OnStop      Effect
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher) error

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		d.logger = l
		return nil
	}
}

// WithQueueSize bounds the number of commands waiting to be sent. Stop
// commands are queued past the bound.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) error {
		if n < 1 {
			return fmt.Errorf("queue size must be at least 1, got %d", n)
		}
		d.queueSize = n
		return nil
	}
}

// WithSendTimeout bounds each transport call.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) error {
		if timeout <= 0 {
			return errors.New("send timeout must be positive")
		}
		d.sendTimeout = timeout
		return nil
	}
}

// WithFailureHook registers fn to run after each failed send, for transient
// operator notifications. It runs on the sender goroutine.
func WithFailureHook(fn func(Command, error)) DispatcherOption {
	return func(d *Dispatcher) error {
		d.onFailure = fn
		return nil
	}
}

// Dispatcher maps key edges to commands.
//
// Effects run synchronously in Handle, so a drive command reads the speed
// scale at the moment the key is pressed. The resulting commands are sent
// in order by one sender goroutine. When the queue is full, start commands
// are dropped but stop commands are still queued, so every release of a
// holdable action reaches the transport. Send failures are logged and
// counted, never retried.
type Dispatcher struct {
	transport   Transport
	bindings    map[string]Binding
	keyAction   map[string]string
	logger      *slog.Logger
	queueSize   int
	sendTimeout time.Duration
	onFailure   func(Command, error)

	mu      sync.Mutex
	pending []Command
	wake    chan struct{}
	started bool
	closed  bool
	wg      sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher validates bindings and returns an unstarted dispatcher.
// Every key may be bound to at most one action.
func NewDispatcher(t Transport, bindings []Binding, opts ...DispatcherOption) (*Dispatcher, error) {
	if t == nil {
		return nil, errors.New("transport is required")
	}

	d := &Dispatcher{
		transport:   t,
		bindings:    make(map[string]Binding, len(bindings)),
		keyAction:   make(map[string]string),
		logger:      slog.Default(),
		queueSize:   defaultQueueSize,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	for i, b := range bindings {
		if b.Action == "" {
			return nil, fmt.Errorf("bindings[%d]: action cannot be empty", i)
		}
		if _, dup := d.bindings[b.Action]; dup {
			return nil, fmt.Errorf("duplicate action %q", b.Action)
		}
		if len(b.Keys) == 0 {
			return nil, fmt.Errorf("action %q: at least one key is required", b.Action)
		}
		if b.OnStart == nil {
			return nil, fmt.Errorf("action %q: start effect is required", b.Action)
		}
		if b.Holdable && b.OnStop == nil {
			return nil, fmt.Errorf("action %q: holdable actions need a stop effect", b.Action)
		}
		for _, k := range b.Keys {
			if other, taken := d.keyAction[k]; taken {
				return nil, fmt.Errorf("key %q bound to both %q and %q", k, other, b.Action)
			}
			d.keyAction[k] = b.Action
		}
		b.Keys = append([]string(nil), b.Keys...)
		d.bindings[b.Action] = b
	}

	d.wake = make(chan struct{}, 1)
	return d, nil
}

// Keys returns every bound key, sorted.
func (d *Dispatcher) Keys() []string {
	keys := make([]string, 0, len(d.keyAction))
	for k := range d.keyAction {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bindings returns the bindings sorted by action.
func (d *Dispatcher) Bindings() []Binding {
	out := make([]Binding, 0, len(d.bindings))
	for _, b := range d.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// ActionFor returns the binding for a key.
func (d *Dispatcher) ActionFor(key string) (Binding, bool) {
	action, ok := d.keyAction[key]
	if !ok {
		return Binding{}, false
	}
	return d.bindings[action], true
}

// Handle applies one edge. Unbound keys and releases of one-shot actions
// are ignored.
func (d *Dispatcher) Handle(ev input.KeyEdgeEvent) {
	b, ok := d.ActionFor(ev.Key)
	if !ok {
		return
	}

	var (
		effect Effect
		stop   bool
	)
	switch ev.Edge {
	case input.Pressed:
		effect = b.OnStart
	case input.Released:
		if !b.Holdable {
			return
		}
		effect, stop = b.OnStop, true
	default:
		return
	}

	cmd, send := effect()
	d.logger.Debug("key edge", "key", ev.Key, "edge", ev.Edge.String(), "action", b.Action)
	if !send {
		return
	}
	d.enqueue(cmd, stop)
}

// enqueue queues cmd for the sender. A stop is queued even past the queue
// size; anything else is dropped when the queue is full.
func (d *Dispatcher) enqueue(cmd Command, stop bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.dropped.Add(1)
		d.logger.Warn("command dropped, dispatcher closed", "command", cmd.String())
		return
	}
	if len(d.pending) >= d.queueSize && !stop {
		d.mu.Unlock()
		d.dropped.Add(1)
		d.logger.Warn("command dropped, queue full", "command", cmd.String())
		return
	}
	d.pending = append(d.pending, cmd)
	d.mu.Unlock()
	d.signal()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest pending command. ok is false once the queue is
// empty; closed reports that no more commands will arrive.
func (d *Dispatcher) next() (cmd Command, ok, closed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return Command{}, false, d.closed
	}
	cmd = d.pending[0]
	d.pending[0] = Command{}
	d.pending = d.pending[1:]
	return cmd, true, d.closed
}

// Start launches the sender goroutine. Calling Start again is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.run()
}

// Close stops accepting commands, sends whatever is queued, and waits for
// the sender to finish. Queued commands (typically a final stop) are still
// delivered because each send has its own timeout.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	if !started {
		// drain without a sender so queued commands are not lost silently
		for {
			cmd, ok, _ := d.next()
			if !ok {
				return
			}
			d.send(cmd)
		}
	}
	d.signal()
	d.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		cmd, ok, closed := d.next()
		if ok {
			d.send(cmd)
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

func (d *Dispatcher) send(cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	start := time.Now()
	if err := cmd.Send(ctx, d.transport); err != nil {
		d.failed.Add(1)
		d.logger.Warn("command failed",
			"command", cmd.String(),
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		d.notifyFailure(cmd, err)
		return
	}
	d.sent.Add(1)
	d.logger.Debug("command sent", "command", cmd.String(), "latency_ms", time.Since(start).Milliseconds())
}

// notifyFailure calls the failure hook with panic recovery.
func (d *Dispatcher) notifyFailure(cmd Command, err error) {
	if d.onFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("failure hook panicked", "panic", r, "command", cmd.String())
		}
	}()
	d.onFailure(cmd, err)
}
