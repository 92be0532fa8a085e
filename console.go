package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sightsrobotics/console/dashboard"
	"github.com/sightsrobotics/console/internal/command"
	"github.com/sightsrobotics/console/internal/health"
	"github.com/sightsrobotics/console/internal/input"
	"github.com/sightsrobotics/console/internal/poller"
	"github.com/sightsrobotics/console/internal/server"
	"github.com/sightsrobotics/console/internal/store"
	"github.com/sightsrobotics/console/internal/theme"
)

const (
	defaultPort              = 8080
	defaultConnectionHistory = 30
)

var (
	// ErrUnknownWidget is returned for widget names the console was not
	// configured with.
	ErrUnknownWidget = errors.New("unknown widget")

	// ErrNotRunning is returned by operations that need a started console.
	ErrNotRunning = errors.New("console not running")
)

// Console is the teleoperation coordinator. It owns the drive speed
// scale, the command dispatcher, the connection monitor, every mounted
// widget's polling task and the dashboard theme, and serves the dashboard
// over HTTP.
//
// The typical lifecycle is:
//
//	c, err := console.New(
//	    console.WithRobot("http://sights.local:5000", 2*time.Second),
//	    console.WithWidget(cpu),
//	)
//	if err != nil {
//	    slog.Error("failed to create console", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	c.Start(ctx) // blocks until context cancelled
type Console struct {
	title           string
	port            int
	logger          *slog.Logger
	fetcher         Fetcher
	transport       Transport
	closers         []func() error
	widgets         map[string]Widget
	order           []string
	pingInterval    time.Duration
	clock           poller.Clock
	updateCallbacks []func(WidgetUpdate)
	sources         []namedSource

	scale      *command.SpeedScale
	dispatcher *command.Dispatcher
	theme      *theme.State
	store      *store.MemoryStore
	speedTask  *poller.Task[int, int]
	monitor    *health.Monitor

	mu       sync.Mutex
	started  bool
	running  bool
	runCtx   context.Context
	mounted  map[string]runner
	feeds    map[feedKey]*sharedFeed
	sessions map[*InputSession]struct{}
}

// namedSource is a hardware input that runs until its context ends.
type namedSource struct {
	name string
	src  interface {
		input.Source
		Run(ctx context.Context) error
	}
}

// New creates a [Console].
//
// A telemetry source and a command transport are required, normally both
// from [WithRobot]. Defaults:
//   - Port: 8080
//   - Initial speed: 3
//   - Ping interval: 2.75s
//   - Command timeout: 2s
func New(opts ...Option) (*Console, error) {
	cfg := &consoleConfig{
		port:         defaultPort,
		initialSpeed: command.DefaultSpeed,
		pingInterval: health.DefaultPeriod,
		themeMode:    theme.ModeSystem,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.fetcher == nil {
		return nil, errors.New("a telemetry fetcher is required (use WithRobot or WithFetcher)")
	}
	if cfg.transport == nil {
		return nil, errors.New("a command transport is required (use WithRobot or WithTransport)")
	}
	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	widgets := make(map[string]Widget, len(cfg.widgets))
	order := make([]string, 0, len(cfg.widgets))
	for _, w := range cfg.widgets {
		if w.name == "" {
			return nil, errors.New("widget must be created with NewWidget")
		}
		if _, dup := widgets[w.name]; dup {
			return nil, fmt.Errorf("duplicate widget name: %q", w.name)
		}
		widgets[w.name] = w
		order = append(order, w.name)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	scale, err := command.NewSpeedScale(cfg.initialSpeed)
	if err != nil {
		return nil, err
	}

	dispatchOpts := []command.DispatcherOption{command.WithLogger(logger)}
	if cfg.commandTimeout > 0 {
		dispatchOpts = append(dispatchOpts, command.WithSendTimeout(cfg.commandTimeout))
	}
	if len(cfg.failureHooks) > 0 {
		hooks := cfg.failureHooks
		dispatchOpts = append(dispatchOpts, command.WithFailureHook(func(cmd command.Command, err error) {
			for _, h := range hooks {
				h(cmd, err)
			}
		}))
	}
	dispatcher, err := command.NewDispatcher(cfg.transport, command.DefaultBindings(scale), dispatchOpts...)
	if err != nil {
		return nil, fmt.Errorf("key bindings: %w", err)
	}

	c := &Console{
		title:           cfg.title,
		port:            cfg.port,
		logger:          logger,
		fetcher:         cfg.fetcher,
		transport:       cfg.transport,
		closers:         cfg.closers,
		widgets:         widgets,
		order:           order,
		pingInterval:    cfg.pingInterval,
		clock:           cfg.clock,
		updateCallbacks: cfg.updateCallbacks,
		scale:           scale,
		dispatcher:      dispatcher,
		theme:           theme.NewState(cfg.themeMode),
		store:           store.NewMemoryStore(),
		mounted:         make(map[string]runner),
		feeds:           make(map[feedKey]*sharedFeed),
		sessions:        make(map[*InputSession]struct{}),
	}

	if len(cfg.evdevPaths) > 0 {
		src, err := input.NewEvdevSource(cfg.evdevPaths, logger)
		if err != nil {
			return nil, fmt.Errorf("evdev input: %w", err)
		}
		c.sources = append(c.sources, namedSource{name: "evdev", src: src})
	}
	if cfg.gpio != nil {
		src, err := input.NewGPIOSource(cfg.gpio.chip, cfg.gpio.buttons, cfg.gpio.debounce, logger)
		if err != nil {
			return nil, fmt.Errorf("gpio input: %w", err)
		}
		c.sources = append(c.sources, namedSource{name: "gpio", src: src})
	}

	c.speedTask, err = poller.NewTask(poller.TaskConfig[int, int]{
		ID:     SpeedWidgetName,
		Sink:   widgetSink[int](c, SpeedWidgetName, KindSpeed, nil, ""),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	scale.OnChange(func(v int) {
		if err := c.speedTask.Push(v); err != nil && !errors.Is(err, poller.ErrStopped) {
			c.logger.Warn("speed update failed", "error", err)
		}
		c.logger.Debug("speed changed", "speed", v)
	})

	c.monitor, err = health.NewMonitor(c.fetcher, health.Config{
		Period:      cfg.pingInterval,
		HistorySize: defaultConnectionHistory,
		Clock:       cfg.clock,
		Logger:      logger,
		Sink:        c.publishConnection,
	})
	if err != nil {
		return nil, err
	}

	c.theme.OnChange(func(s theme.Snapshot) {
		c.logger.Debug("theme changed", "mode", s.Mode, "appearance", s.Appearance)
	})

	return c, nil
}

// Start connects the inputs, starts polling and serves the dashboard.
//
// Start blocks until ctx is cancelled. Widgets created with auto-mount
// (the default) start polling immediately; others wait for [Console.Mount].
// Hardware input sources that fail are logged and the console keeps running
// without them.
//
// Returns nil on graceful shutdown, an error if the HTTP server cannot bind
// or if Start was already called.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("console already started")
	}
	c.started = true
	c.mu.Unlock()

	defer c.closeResources()

	if ctx.Err() != nil {
		return nil
	}

	c.logger.Info("console starting",
		"widget_count", len(c.widgets),
		"speed", c.scale.Get(),
		"ping_interval", c.pingInterval.String(),
	)

	c.dispatcher.Start()

	c.publishConnection(c.monitor.Sample())
	c.monitor.Start(ctx)

	if err := c.speedTask.Push(c.scale.Get()); err != nil {
		c.logger.Warn("speed widget unavailable", "error", err)
	}

	c.mu.Lock()
	c.running = true
	c.runCtx = ctx
	for _, name := range c.order {
		w := c.widgets[name]
		if !w.autoMount {
			continue
		}
		if err := c.mountLocked(w); err != nil {
			c.logger.Warn("widget mount failed", "widget", name, "error", err)
		}
	}
	c.mu.Unlock()

	httpServer := server.NewServer(c.store, serverBackend{c}, c.port, dashboard.Assets, c.title, c.logger)
	if err := httpServer.Start(ctx); err != nil {
		c.shutdown()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	c.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", c.port))

	g, gctx := errgroup.WithContext(ctx)
	for _, ns := range c.sources {
		g.Go(func() error {
			c.runSource(gctx, ns)
			return nil
		})
	}

	<-ctx.Done()
	_ = g.Wait()
	c.shutdown()
	c.logger.Info("console stopped", "dispatch", c.dispatcher.Stats())
	return nil
}

// runSource feeds a hardware source through its own edge tracker, and
// releases whatever it held when the source ends.
func (c *Console) runSource(ctx context.Context, ns namedSource) {
	tracker := input.NewTracker(c.dispatcher.Keys(), c.dispatcher.Handle)
	unsubscribe := ns.src.Subscribe(tracker.Feed)
	defer func() {
		unsubscribe()
		tracker.ReleaseAll(time.Now())
	}()

	c.logger.Info("input source started", "input", ns.name)
	err := ns.src.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		c.logger.Info("input source stopped", "input", ns.name)
	case errors.Is(err, input.ErrUnsupported):
		c.logger.Error("input source not supported on this platform", "input", ns.name)
	default:
		c.logger.Error("input source failed", "input", ns.name, "error", err)
	}
}

// shutdown stops every task, releases held keys and drains the command
// queue so stop commands for released keys still go out.
func (c *Console) shutdown() {
	c.mu.Lock()
	c.running = false
	for name, r := range c.mounted {
		r.stop()
		delete(c.mounted, name)
	}
	for key, f := range c.feeds {
		f.task.Stop()
		delete(c.feeds, key)
	}
	sessions := make([]*InputSession, 0, len(c.sessions))
	for s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	c.monitor.Stop()
	c.speedTask.Stop()
	c.dispatcher.Close()
}

func (c *Console) closeResources() {
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			c.logger.Warn("failed to close robot connection", "error", err)
		}
	}
}

// Mount starts polling a configured widget. Mounting a mounted widget is a
// no-op.
//
// Returns [ErrUnknownWidget] for names the console was not configured with
// and [ErrNotRunning] before Start or after shutdown.
func (c *Console) Mount(name string) error {
	w, ok := c.widgets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWidget, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	if err := c.mountLocked(w); err != nil {
		return err
	}
	c.logger.Info("widget mounted", "widget", name)
	return nil
}

// Unmount stops a widget's polling and removes it from the dashboard. A
// fetch still in flight is discarded when it resolves.
//
// Unmounting a widget that is not mounted is a no-op.
func (c *Console) Unmount(name string) error {
	w, ok := c.widgets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWidget, name)
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	r, ok := c.mounted[name]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.mounted, name)
	r.stop()
	c.store.Remove(name)
	c.mu.Unlock()

	removed := WidgetUpdate{Widget: name, Kind: w.kind, Removed: true, CheckedAt: time.Now()}
	for _, cb := range c.updateCallbacks {
		invokeCallbackSafe(cb, removed, c.logger)
	}
	c.logger.Info("widget unmounted", "widget", name)
	return nil
}

func (c *Console) mountLocked(w Widget) error {
	if _, ok := c.mounted[w.name]; ok {
		return nil
	}
	r, err := c.newRunner(w)
	if err != nil {
		return err
	}
	c.mounted[w.name] = r
	r.start(c.runCtx)
	return nil
}

// Mounted returns the names of the widgets currently polling, sorted.
func (c *Console) Mounted() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.mounted))
	for name := range c.mounted {
		names = append(names, name)
	}
	c.mu.Unlock()
	sort.Strings(names)
	return names
}

// Widgets returns the configured widgets in configuration order.
func (c *Console) Widgets() []Widget {
	out := make([]Widget, len(c.order))
	for i, name := range c.order {
		out[i] = c.widgets[name]
	}
	return out
}

// Port returns the dashboard port.
func (c *Console) Port() int {
	return c.port
}

// Speed returns the current drive speed scale, 1 to 8.
func (c *Console) Speed() int {
	return c.scale.Get()
}

// SetSpeed sets the drive speed scale. Drive keys pressed afterwards use
// the new value.
func (c *Console) SetSpeed(n int) error {
	return c.scale.Set(n)
}

// ResetSpeed restores the initial speed scale and returns it.
func (c *Console) ResetSpeed() int {
	return c.scale.Reset()
}

// Connection returns the latest connection sample.
func (c *Console) Connection() ConnectionSample {
	return c.monitor.Sample()
}

// DispatchStats returns command counters.
func (c *Console) DispatchStats() DispatchStats {
	return c.dispatcher.Stats()
}

// Theme returns the resolved dashboard theme.
func (c *Console) Theme() ThemeSnapshot {
	return c.theme.Snapshot()
}

// SetThemeMode stores the operator's theme preference.
func (c *Console) SetThemeMode(m ThemeMode) (ThemeSnapshot, error) {
	mode, err := theme.ParseMode(string(m))
	if err != nil {
		return ThemeSnapshot{}, err
	}
	return c.theme.SetStored(mode), nil
}

// CycleTheme advances the stored preference system, light, dark, system.
func (c *Console) CycleTheme() ThemeSnapshot {
	return c.theme.Cycle()
}

// Power asks the robot to power off ("poweroff") or reboot ("reboot").
// The request is sent directly rather than through the key queue.
func (c *Console) Power(ctx context.Context, action string) error {
	var cmd command.Command
	switch action {
	case "poweroff":
		cmd = command.PowerOff()
	case "reboot":
		cmd = command.Reboot()
	default:
		return fmt.Errorf("unknown power action %q", action)
	}
	c.logger.Warn("sending power command", "command", cmd.String())
	if err := cmd.Send(ctx, c.transport); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// publish stores a widget update and runs the update callbacks. It must not
// take c.mu: it runs on task goroutines that Stop waits for.
func (c *Console) publish(u WidgetUpdate, mode string, labels map[string]string, suffix string) {
	c.store.Update(toSnapshot(u, mode, labels, suffix))
	for _, cb := range c.updateCallbacks {
		invokeCallbackSafe(cb, u, c.logger)
	}
}

func (c *Console) publishConnection(s health.Sample) {
	u := WidgetUpdate{
		Widget:    ConnectionWidgetName,
		Kind:      KindConnection,
		State:     StateIdle,
		Value:     s,
		CheckedAt: s.CheckedAt,
	}
	if s.Quality == health.QualityDisconnected {
		u.State = StateError
		if s.Error != nil {
			u.Err = errors.New(*s.Error)
		}
	}
	if s.RoundTripMs != nil {
		u.UpdatedAt = s.CheckedAt
		u.Latency = time.Duration(*s.RoundTripMs) * time.Millisecond
	}
	history := c.monitor.History()
	if len(history) > 0 {
		u.History = make([]any, len(history))
		for i, ms := range history {
			u.History[i] = ms
		}
	}
	c.publish(u, poller.ModePull.String(), nil, "ms")
}

// toSnapshot converts an update into its stored JSON shape.
func toSnapshot(u WidgetUpdate, mode string, labels map[string]string, suffix string) store.WidgetSnapshot {
	snap := store.WidgetSnapshot{
		Name:      u.Widget,
		Kind:      string(u.Kind),
		Mode:      mode,
		State:     string(u.State),
		Labels:    copyMap(labels),
		Suffix:    suffix,
		Value:     u.Value,
		History:   u.History,
		Stale:     u.Stale,
		CheckedAt: u.CheckedAt,
		LatencyMs: u.Latency.Milliseconds(),
	}
	if !u.UpdatedAt.IsZero() {
		at := u.UpdatedAt
		snap.UpdatedAt = &at
	}
	if u.Err != nil {
		msg := u.Err.Error()
		snap.Error = &msg
	}
	return snap
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(WidgetUpdate), u WidgetUpdate, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"panic", r,
				"widget", u.Widget,
			)
		}
	}()
	cb(u)
}

// serverBackend adapts the console to the HTTP control routes.
type serverBackend struct {
	c *Console
}

func (b serverBackend) OpenInput(name string) server.KeySession { return b.c.OpenInput(name) }
func (b serverBackend) Speed() int                               { return b.c.Speed() }
func (b serverBackend) ResetSpeed() int                          { return b.c.ResetSpeed() }
func (b serverBackend) Connection() health.Sample                { return b.c.Connection() }
func (b serverBackend) Theme() *theme.State                      { return b.c.theme }

func (b serverBackend) Power(ctx context.Context, action string) error {
	return b.c.Power(ctx, action)
}

func (b serverBackend) Mount(name string) error {
	return mapWidgetError(b.c.Mount(name))
}

func (b serverBackend) Unmount(name string) error {
	return mapWidgetError(b.c.Unmount(name))
}

func (b serverBackend) Bindings() []server.Binding {
	bindings := b.c.Bindings()
	out := make([]server.Binding, len(bindings))
	for i, kb := range bindings {
		out[i] = server.Binding{
			Action:      kb.Action,
			Description: kb.Description,
			Keys:        kb.Keys,
			Holdable:    kb.Holdable,
		}
	}
	return out
}

func mapWidgetError(err error) error {
	if errors.Is(err, ErrUnknownWidget) {
		return fmt.Errorf("%w: %v", server.ErrNotFound, err)
	}
	return err
}

var _ server.Backend = serverBackend{}
