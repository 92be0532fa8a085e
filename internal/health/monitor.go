// Package health measures round-trip latency to the robot and classifies
// the connection.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sightsrobotics/console/internal/poller"
)

// DefaultPeriod is how often the probe runs when no period is configured.
const DefaultPeriod = 2750 * time.Millisecond

const (
	goodThreshold     = 50 * time.Millisecond
	degradedThreshold = 150 * time.Millisecond
)

// Quality classifies a connection sample.
type Quality string

const (
	QualityConnecting   Quality = "connecting"
	QualityGood         Quality = "good"
	QualityDegraded     Quality = "degraded"
	QualityPoor         Quality = "poor"
	QualityDisconnected Quality = "disconnected"
)

// Classify maps a measured round trip to a quality.
func Classify(rtt time.Duration) Quality {
	switch {
	case rtt < goodThreshold:
		return QualityGood
	case rtt < degradedThreshold:
		return QualityDegraded
	default:
		return QualityPoor
	}
}

// Sample is the latest connection measurement. RoundTripMs is nil both
// before the first probe and after a failed one; Quality tells them apart.
type Sample struct {
	RoundTripMs *int64    `json:"round_trip_ms"`
	Quality     Quality   `json:"quality"`
	Connected   bool      `json:"connected"`
	CheckedAt   time.Time `json:"checked_at"`
	Error       *string   `json:"error,omitempty"`
}

// Prober sends one lightweight request to the robot.
type Prober interface {
	Ping(ctx context.Context) error
}

// Config tunes a [Monitor]. Zero values select defaults.
type Config struct {
	Period      time.Duration
	HistorySize int
	Clock       poller.Clock
	Now         func() time.Time
	Logger      *slog.Logger
	Sink        func(Sample)
}

// Monitor probes the robot on a timer. It is a pull-mode [poller.Task] whose
// fetch times the probe.
type Monitor struct {
	task *poller.Task[time.Duration, time.Duration]
	sink func(Sample)

	mu     sync.RWMutex
	sample Sample
}

// NewMonitor creates an unstarted monitor.
func NewMonitor(p Prober, cfg Config) (*Monitor, error) {
	if p == nil {
		return nil, errors.New("prober is required")
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &Monitor{
		sink:   cfg.Sink,
		sample: Sample{Quality: QualityConnecting},
	}

	task, err := poller.NewTask(poller.TaskConfig[time.Duration, time.Duration]{
		ID:     "connection",
		Period: cfg.Period,
		Fetch: func(ctx context.Context) (time.Duration, error) {
			start := now()
			err := p.Ping(ctx)
			return now().Sub(start), err
		},
		Extract:      poller.Identity[time.Duration](),
		HistorySize:  cfg.HistorySize,
		FetchOnStart: true,
		Sink:         m.record,
		Clock:        cfg.Clock,
		Logger:       cfg.Logger,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	m.task = task
	return m, nil
}

// Start begins probing, the first probe immediately.
func (m *Monitor) Start(ctx context.Context) { m.task.Start(ctx) }

// Stop cancels probing and waits for the loop to exit.
func (m *Monitor) Stop() { m.task.Stop() }

// Sample returns the latest classification.
func (m *Monitor) Sample() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sample
}

// History returns retained round trips in milliseconds, oldest first.
func (m *Monitor) History() []int64 {
	values := m.task.Snapshot().History
	out := make([]int64, len(values))
	for i, d := range values {
		out[i] = d.Milliseconds()
	}
	return out
}

func (m *Monitor) record(u poller.Update[time.Duration]) {
	s := Sample{CheckedAt: u.CheckedAt}
	if u.State == poller.StateError {
		s.Quality = QualityDisconnected
		if u.Err != nil {
			msg := u.Err.Error()
			s.Error = &msg
		}
	} else {
		ms := u.Value.Milliseconds()
		s.RoundTripMs = &ms
		s.Quality = Classify(u.Value)
		s.Connected = true
	}

	m.mu.Lock()
	m.sample = s
	m.mu.Unlock()

	if m.sink != nil {
		m.sink(s)
	}
}
