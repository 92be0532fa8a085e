package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the fetch state of a [Task].
type State int

const (
	// StateIdle means no fetch is outstanding.
	StateIdle State = iota
	// StateInFlight means a fetch was issued and has not resolved yet.
	StateInFlight
	// StateError means the most recent fetch failed. The previous value is kept.
	StateError
)

// String returns the snake_case name used in logs and JSON.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode selects who produces a task's values.
type Mode int

const (
	// ModePull tasks own a timer and fetch on every tick.
	ModePull Mode = iota
	// ModePush tasks never fetch; values arrive through [Task.Push].
	ModePush
)

func (m Mode) String() string {
	if m == ModePush {
		return "push"
	}
	return "pull"
}

var (
	// ErrNotPushMode is returned by Push and Fail on a pull-mode task.
	ErrNotPushMode = errors.New("task is not in push mode")

	// ErrStopped is returned by Push and Fail after Stop.
	ErrStopped = errors.New("task stopped")
)

// FetchFunc retrieves one raw value. It should honour ctx cancellation;
// a fetch that never returns stalls its task.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Extractor derives the displayed value from a raw fetch result.
type Extractor[V, O any] func(V) (O, error)

// Identity is an [Extractor] that passes the raw value through unchanged.
func Identity[T any]() Extractor[T, T] {
	return func(v T) (T, error) { return v, nil }
}

// Update is a point-in-time view of a task, delivered to its [Sink] after
// every applied result.
type Update[O any] struct {
	TaskID string
	Mode   Mode
	State  State

	// Value is the last successful result. Only meaningful when HasValue is set.
	Value    O
	HasValue bool

	// History holds retained values, oldest first.
	History []O

	// Err is the failure of the most recent fetch, nil after a success.
	Err error

	// UpdatedAt is when Value was set; CheckedAt is when the last result
	// (success or failure) was applied.
	UpdatedAt time.Time
	CheckedAt time.Time

	// Latency of the fetch that produced this update. Zero for push updates.
	Latency time.Duration
}

// Stale reports whether the update carries a value that is older than the
// latest failed attempt.
func (u Update[O]) Stale() bool {
	return u.HasValue && u.State == StateError
}

// Sink receives task updates. A sink must not call Stop on its own task.
type Sink[O any] func(Update[O])

// TaskConfig configures a [Task]. Fetch selects the mode: non-nil means pull.
type TaskConfig[V, O any] struct {
	ID           string
	Period       time.Duration
	Fetch        FetchFunc[V]
	Extract      Extractor[V, O]
	HistorySize  int
	FetchOnStart bool
	Sink         Sink[O]
	Clock        Clock
	Logger       *slog.Logger
	Now          func() time.Time
}

// Stats are cumulative counters for a task.
type Stats struct {
	Fetches      uint64
	Successes    uint64
	Failures     uint64
	DroppedTicks uint64
	Pushes       uint64
}

// Task is one independently scheduled polling loop.
//
// In pull mode a single goroutine owns the ticker and the in-flight flag, so
// at most one fetch is outstanding at any time and ticks that arrive while a
// fetch is running are dropped rather than queued. Stop cancels the loop and
// waits for it to exit; any fetch that resolves later is discarded.
//
// Start and Stop are idempotent and safe for concurrent use. A stopped task
// cannot be restarted.
type Task[V, O any] struct {
	id           string
	mode         Mode
	period       time.Duration
	fetch        FetchFunc[V]
	extract      Extractor[V, O]
	fetchOnStart bool
	sink         Sink[O]
	clock        Clock
	logger       *slog.Logger
	now          func() time.Time

	// pushMu serializes push deliveries against Stop.
	pushMu sync.Mutex

	mu        sync.Mutex
	state     State
	last      O
	hasValue  bool
	lastErr   error
	updatedAt time.Time
	checkedAt time.Time
	history   *History[O]
	stats     Stats
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// fetchOutcome carries a resolved fetch back to the owning loop.
type fetchOutcome[V any] struct {
	value   V
	err     error
	latency time.Duration
}

// NewTask validates cfg and returns an unstarted task.
func NewTask[V, O any](cfg TaskConfig[V, O]) (*Task[V, O], error) {
	if cfg.ID == "" {
		return nil, errors.New("task id cannot be empty")
	}
	if cfg.HistorySize < 0 {
		return nil, fmt.Errorf("task %q: history size cannot be negative", cfg.ID)
	}

	mode := ModePush
	if cfg.Fetch != nil {
		mode = ModePull
		if cfg.Period <= 0 {
			return nil, fmt.Errorf("task %q: period must be positive", cfg.ID)
		}
		if cfg.Extract == nil {
			return nil, fmt.Errorf("task %q: pull mode requires an extractor", cfg.ID)
		}
	}

	t := &Task[V, O]{
		id:           cfg.ID,
		mode:         mode,
		period:       cfg.Period,
		fetch:        cfg.Fetch,
		extract:      cfg.Extract,
		fetchOnStart: cfg.FetchOnStart,
		sink:         cfg.Sink,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		now:          cfg.Now,
		history:      NewHistory[O](cfg.HistorySize),
	}
	if t.clock == nil {
		t.clock = SystemClock{}
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// ID returns the task identifier.
func (t *Task[V, O]) ID() string { return t.id }

// Mode returns whether the task pulls or is pushed to.
func (t *Task[V, O]) Mode() Mode { return t.mode }

// Period returns the configured tick period. Zero for push tasks.
func (t *Task[V, O]) Period() time.Duration { return t.period }

// Start begins ticking. The ticker is created before Start returns.
// Push tasks only record that they have started.
func (t *Task[V, O]) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	if t.mode == ModePush {
		t.mu.Unlock()
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	ticker := t.clock.NewTicker(t.period)
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(runCtx, ticker)
}

// Stop cancels the timer and blocks until the loop has exited. No sink
// write happens after Stop returns.
func (t *Task[V, O]) Stop() {
	t.pushMu.Lock()
	t.mu.Lock()
	if !t.stopped {
		t.stopped = true
		if t.cancel != nil {
			t.cancel()
		}
	}
	t.mu.Unlock()
	t.pushMu.Unlock()

	t.wg.Wait()
}

// Push assigns a value directly. Only valid for push-mode tasks.
func (t *Task[V, O]) Push(v O) error {
	if t.mode != ModePush {
		return ErrNotPushMode
	}

	t.pushMu.Lock()
	defer t.pushMu.Unlock()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	now := t.now()
	t.history.Push(v)
	t.last = v
	t.hasValue = true
	t.lastErr = nil
	t.updatedAt = now
	t.checkedAt = now
	t.state = StateIdle
	t.stats.Pushes++
	u := t.snapshotLocked()
	t.mu.Unlock()

	t.deliver(u)
	return nil
}

// Fail marks a push-mode task as failed while keeping its last value, used
// when the shared upstream that feeds it fails.
func (t *Task[V, O]) Fail(err error) error {
	if t.mode != ModePush {
		return ErrNotPushMode
	}

	t.pushMu.Lock()
	defer t.pushMu.Unlock()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	t.lastErr = err
	t.checkedAt = t.now()
	t.state = StateError
	u := t.snapshotLocked()
	t.mu.Unlock()

	t.deliver(u)
	return nil
}

// Snapshot returns the current view of the task.
func (t *Task[V, O]) Snapshot() Update[O] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Stats returns a copy of the task counters.
func (t *Task[V, O]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Task[V, O]) snapshotLocked() Update[O] {
	return Update[O]{
		TaskID:    t.id,
		Mode:      t.mode,
		State:     t.state,
		Value:     t.last,
		HasValue:  t.hasValue,
		History:   t.history.Values(),
		Err:       t.lastErr,
		UpdatedAt: t.updatedAt,
		CheckedAt: t.checkedAt,
	}
}

func (t *Task[V, O]) run(ctx context.Context, ticker Ticker) {
	defer t.wg.Done()
	defer ticker.Stop()

	// one slot is enough: only one fetch is ever outstanding, so the send
	// never blocks even after this loop has returned.
	results := make(chan fetchOutcome[V], 1)
	inFlight := false

	if t.fetchOnStart {
		t.launch(ctx, results)
		inFlight = true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if inFlight {
				t.mu.Lock()
				t.stats.DroppedTicks++
				t.mu.Unlock()
				t.logger.Debug("tick dropped, fetch still in flight", "task", t.id)
				continue
			}
			t.launch(ctx, results)
			inFlight = true
		case out := <-results:
			inFlight = false
			if ctx.Err() != nil {
				return
			}
			t.apply(out)
		}
	}
}

func (t *Task[V, O]) launch(ctx context.Context, results chan<- fetchOutcome[V]) {
	t.mu.Lock()
	t.state = StateInFlight
	t.stats.Fetches++
	t.mu.Unlock()

	start := t.now()
	go func() {
		v, err := t.safeFetch(ctx)
		results <- fetchOutcome[V]{value: v, err: err, latency: t.now().Sub(start)}
	}()
}

func (t *Task[V, O]) apply(out fetchOutcome[V]) {
	var value O
	err := out.err
	if err == nil {
		value, err = t.safeExtract(out.value)
	}

	t.mu.Lock()
	t.checkedAt = t.now()
	if err != nil {
		t.state = StateError
		t.lastErr = err
		t.stats.Failures++
	} else {
		t.history.Push(value)
		t.last = value
		t.hasValue = true
		t.lastErr = nil
		t.updatedAt = t.checkedAt
		t.state = StateIdle
		t.stats.Successes++
	}
	u := t.snapshotLocked()
	u.Latency = out.latency
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("fetch failed", "task", t.id, "error", err.Error())
	}
	t.deliver(u)
}

// deliver calls the sink with panic recovery.
func (t *Task[V, O]) deliver(u Update[O]) {
	if t.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("sink panicked", "task", t.id, "panic", fmt.Sprintf("%v", r))
		}
	}()
	t.sink(u)
}

// safeFetch calls the fetch function, converting a panic into an error.
func (t *Task[V, O]) safeFetch(ctx context.Context) (v V, err error) {
	defer t.recoverAs("fetch", &err)
	return t.fetch(ctx)
}

// safeExtract calls the extractor, converting a panic into an error.
func (t *Task[V, O]) safeExtract(raw V) (o O, err error) {
	defer t.recoverAs("extractor", &err)
	return t.extract(raw)
}

// recoverAs logs a recovered panic with its stack under a correlation ID and
// replaces *err with a short error carrying that ID.
func (t *Task[V, O]) recoverAs(what string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	correlationID := uuid.NewString()
	t.logger.Error(what+" panic",
		"task", t.id,
		"correlation_id", correlationID,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()),
	)
	*err = fmt.Errorf("%s panic (correlation_id: %s)", what, correlationID)
}
