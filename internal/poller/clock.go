package poller

import (
	"sync"
	"time"
)

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Tasks take a Clock so tests can drive ticks by hand.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the wall-clock [Clock] backed by [time.Ticker].
type SystemClock struct{}

// NewTicker returns a running ticker firing every d.
func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// ManualClock is a [Clock] whose tickers only fire when [ManualClock.Tick] is
// called. Tick blocks until every live ticker has handed its tick to a
// receiver, so a test knows the tick was observed when Tick returns.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
	created chan struct{}
}

// NewManualClock returns a ManualClock starting at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, created: make(chan struct{}, 64)}
}

// NewTicker registers a ticker; d is ignored.
func (c *ManualClock) NewTicker(_ time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time), done: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	select {
	case c.created <- struct{}{}:
	default:
	}
	return t
}

// WaitForTickers blocks until at least n tickers have been created or the
// timeout elapses. Returns false on timeout.
func (c *ManualClock) WaitForTickers(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		count := len(c.tickers)
		c.mu.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-c.created:
		case <-deadline:
			return false
		}
	}
}

// Tick advances the clock by d and fires every live ticker once.
func (c *ManualClock) Tick(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	live := make([]*manualTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		select {
		case <-t.done:
		default:
			live = append(live, t)
		}
	}
	c.tickers = live
	c.mu.Unlock()

	for _, t := range live {
		select {
		case t.ch <- now:
		case <-t.done:
		}
	}
}

// Now returns the clock's current instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type manualTicker struct {
	ch       chan time.Time
	done     chan struct{}
	stopOnce sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}
