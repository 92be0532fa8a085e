package console

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sightsrobotics/console/internal/poller"
)

// runner is one mounted widget.
type runner interface {
	start(ctx context.Context)
	stop()
}

// taskRunner runs a widget's own polling task.
type taskRunner[V, O any] struct {
	task *poller.Task[V, O]
}

func (r taskRunner[V, O]) start(ctx context.Context) { r.task.Start(ctx) }
func (r taskRunner[V, O]) stop()                     { r.task.Stop() }

// newRunner builds the task for w. Tasks are single use, so every mount
// gets a fresh one.
func (c *Console) newRunner(w Widget) (runner, error) {
	switch {
	case w.shared:
		return c.newSharedRunner(w)
	case w.usesSensor():
		task, err := poller.NewTask(poller.TaskConfig[Reading, any]{
			ID:     w.name,
			Period: w.period,
			Fetch: func(ctx context.Context) (Reading, error) {
				return c.fetcher.GetSensor(ctx, w.sensor)
			},
			Extract:      poller.Extractor[Reading, any](w.extractor),
			HistorySize:  w.history,
			FetchOnStart: true,
			Sink:         widgetSink[any](c, w.name, w.kind, w.labels, w.suffix),
			Clock:        c.clock,
			Logger:       c.logger,
		})
		if err != nil {
			return nil, err
		}
		return taskRunner[Reading, any]{task}, nil
	case w.kind == KindLogs:
		task, err := poller.NewTask(poller.TaskConfig[string, string]{
			ID:           w.name,
			Period:       w.period,
			Fetch:        c.fetcher.Logs,
			Extract:      poller.Identity[string](),
			HistorySize:  w.history,
			FetchOnStart: true,
			Sink:         widgetSink[string](c, w.name, w.kind, w.labels, w.suffix),
			Clock:        c.clock,
			Logger:       c.logger,
		})
		if err != nil {
			return nil, err
		}
		return taskRunner[string, string]{task}, nil
	case w.kind == KindCameras:
		task, err := poller.NewTask(poller.TaskConfig[[]string, []string]{
			ID:           w.name,
			Period:       w.period,
			Fetch:        c.fetcher.ListCameras,
			Extract:      poller.Identity[[]string](),
			HistorySize:  w.history,
			FetchOnStart: true,
			Sink:         widgetSink[[]string](c, w.name, w.kind, w.labels, w.suffix),
			Clock:        c.clock,
			Logger:       c.logger,
		})
		if err != nil {
			return nil, err
		}
		return taskRunner[[]string, []string]{task}, nil
	}
	return nil, fmt.Errorf("widget %q: unsupported kind %q", w.name, w.kind)
}

// widgetSink publishes every task update under the widget's name.
func widgetSink[O any](c *Console, name string, kind WidgetKind, labels map[string]string, suffix string) poller.Sink[O] {
	return func(u poller.Update[O]) {
		c.publish(toWidgetUpdate(name, kind, u), u.Mode.String(), labels, suffix)
	}
}

func toWidgetUpdate[O any](name string, kind WidgetKind, u poller.Update[O]) WidgetUpdate {
	wu := WidgetUpdate{
		Widget:    name,
		Kind:      kind,
		State:     WidgetState(u.State.String()),
		Stale:     u.Stale(),
		Err:       u.Err,
		UpdatedAt: u.UpdatedAt,
		CheckedAt: u.CheckedAt,
		Latency:   u.Latency,
	}
	if u.HasValue {
		wu.Value = u.Value
	}
	if len(u.History) > 0 {
		wu.History = make([]any, len(u.History))
		for i, v := range u.History {
			wu.History[i] = v
		}
	}
	return wu
}

// feedKey identifies one shared sensor poll.
type feedKey struct {
	sensor string
	period time.Duration
}

// sharedFeed polls one sensor on behalf of every shared widget that reads
// it at the same period. Each subscriber is a push-mode task; the feed
// extracts the subscriber's value from the reading and pushes it, or
// fails the subscriber when the poll fails.
type sharedFeed struct {
	key  feedKey
	task *poller.Task[Reading, Reading]

	mu   sync.Mutex
	subs map[string]*sharedSubscriber
}

type sharedSubscriber struct {
	widget Widget
	task   *poller.Task[any, any]
}

// sharedRunner is a mounted shared widget.
type sharedRunner struct {
	c    *Console
	feed *sharedFeed
	sub  *sharedSubscriber
}

func (c *Console) newSharedRunner(w Widget) (runner, error) {
	task, err := poller.NewTask(poller.TaskConfig[any, any]{
		ID:          w.name,
		HistorySize: w.history,
		Sink:        widgetSink[any](c, w.name, w.kind, w.labels, w.suffix),
		Logger:      c.logger,
	})
	if err != nil {
		return nil, err
	}

	key := feedKey{sensor: w.sensor, period: w.period}
	feed, ok := c.feeds[key]
	if !ok {
		feed = &sharedFeed{key: key, subs: make(map[string]*sharedSubscriber)}
		feed.task, err = poller.NewTask(poller.TaskConfig[Reading, Reading]{
			ID:     fmt.Sprintf("feed:%s@%s", key.sensor, key.period),
			Period: key.period,
			Fetch: func(ctx context.Context) (Reading, error) {
				return c.fetcher.GetSensor(ctx, key.sensor)
			},
			Extract:      poller.Identity[Reading](),
			FetchOnStart: true,
			Sink:         func(u poller.Update[Reading]) { c.fanOut(feed, u) },
			Clock:        c.clock,
			Logger:       c.logger,
		})
		if err != nil {
			return nil, err
		}
	}

	return &sharedRunner{c: c, feed: feed, sub: &sharedSubscriber{widget: w, task: task}}, nil
}

// start subscribes to the feed, starting its poll for the first
// subscriber. A feed that already has a reading is replayed before the
// subscriber is registered, under feed.mu, so a concurrent fan-out can only
// deliver newer readings after it. Called with c.mu held.
func (r *sharedRunner) start(ctx context.Context) {
	r.sub.task.Start(ctx)

	r.feed.mu.Lock()
	first := len(r.feed.subs) == 0
	if !first {
		u := r.feed.task.Snapshot()
		if u.HasValue {
			r.c.deliverShared(r.sub, poller.Update[Reading]{State: poller.StateIdle, Value: u.Value, HasValue: true})
		}
		if u.State == poller.StateError {
			r.c.deliverShared(r.sub, u)
		}
	}
	r.feed.subs[r.sub.widget.name] = r.sub
	r.feed.mu.Unlock()

	if first {
		r.c.feeds[r.feed.key] = r.feed
		r.feed.task.Start(ctx)
		r.c.logger.Debug("shared feed started", "sensor", r.feed.key.sensor, "period", r.feed.key.period.String())
	}
}

// stop unsubscribes and stops the feed with its last subscriber. Called
// with c.mu held.
func (r *sharedRunner) stop() {
	r.feed.mu.Lock()
	delete(r.feed.subs, r.sub.widget.name)
	last := len(r.feed.subs) == 0
	r.feed.mu.Unlock()

	r.sub.task.Stop()
	if last {
		r.feed.task.Stop()
		delete(r.c.feeds, r.feed.key)
		r.c.logger.Debug("shared feed stopped", "sensor", r.feed.key.sensor)
	}
}

// fanOut hands one feed update to every subscriber.
func (c *Console) fanOut(f *sharedFeed, u poller.Update[Reading]) {
	f.mu.Lock()
	subs := make([]*sharedSubscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		c.deliverShared(s, u)
	}
}

func (c *Console) deliverShared(s *sharedSubscriber, u poller.Update[Reading]) {
	var err error
	if u.State == poller.StateError {
		err = s.task.Fail(u.Err)
	} else {
		v, extractErr := c.safeExtract(s.widget, u.Value)
		if extractErr != nil {
			err = s.task.Fail(extractErr)
		} else {
			err = s.task.Push(v)
		}
	}
	if err != nil && !errors.Is(err, poller.ErrStopped) {
		c.logger.Warn("shared widget update failed", "widget", s.widget.name, "error", err)
	}
}

// safeExtract runs a widget extractor against a shared reading, turning a
// panic into an error carrying a correlation ID. The stack is logged under
// the same ID.
func (c *Console) safeExtract(w Widget, r Reading) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			correlationID := uuid.NewString()
			c.logger.Error("extractor panic",
				"widget", w.name,
				"sensor", w.sensor,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", p),
				"stack", string(debug.Stack()),
			)
			v, err = nil, fmt.Errorf("extractor panic (correlation_id: %s)", correlationID)
		}
	}()
	return w.extractor(r)
}
