package console

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sightsrobotics/console/internal/command"
	"github.com/sightsrobotics/console/internal/poller"
	"github.com/sightsrobotics/console/internal/telemetry"
)

// Fetcher reads telemetry from the robot.
type Fetcher = telemetry.Fetcher

// consoleConfig holds mutable state during Console construction.
type consoleConfig struct {
	title           string
	port            int
	logger          *slog.Logger
	fetcher         Fetcher
	transport       Transport
	closers         []func() error
	widgets         []Widget
	initialSpeed    int
	pingInterval    time.Duration
	commandTimeout  time.Duration
	evdevPaths      []string
	gpio            *gpioConfig
	themeMode       ThemeMode
	updateCallbacks []func(WidgetUpdate)
	failureHooks    []func(Command, error)
	clock           poller.Clock
}

type gpioConfig struct {
	chip     string
	buttons  map[int]string
	debounce time.Duration
}

// Option configures a [Console] during [New].
//
// Built-in options: [WithRobot], [WithFetcher], [WithTransport],
// [WithWidget], [WithWidgets], [WithPort], [WithTitle], [WithLogger],
// [WithInitialSpeed], [WithPingInterval], [WithCommandTimeout],
// [WithEvdevDevices], [WithGPIOButtons], [WithThemeMode],
// [WithUpdateCallback] and [WithCommandFailureCallback].
type Option func(*consoleConfig) error

// WithRobot points the console at a robot's HTTP API, used both for
// telemetry and for commands. timeout bounds every request; zero selects
// the client defaults.
//
// Example:
//
//	c, err := console.New(
//	    console.WithRobot("http://sights.local:5000", 2*time.Second),
//	)
func WithRobot(baseURL string, timeout time.Duration) Option {
	return func(cfg *consoleConfig) error {
		client, err := telemetry.NewClient(baseURL, timeout)
		if err != nil {
			return fmt.Errorf("robot: %w", err)
		}
		transport, err := command.NewHTTPTransport(baseURL, timeout)
		if err != nil {
			client.Close()
			return fmt.Errorf("robot: %w", err)
		}
		cfg.fetcher = client
		if cfg.transport == nil {
			cfg.transport = transport
		}
		cfg.closers = append(cfg.closers, func() error { client.Close(); return nil }, transport.Close)
		return nil
	}
}

// WithFetcher sets the telemetry source, replacing the one from
// [WithRobot].
func WithFetcher(f Fetcher) Option {
	return func(cfg *consoleConfig) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		cfg.fetcher = f
		return nil
	}
}

// WithTransport sets where commands are sent, replacing the HTTP transport
// from [WithRobot]. Use it to send commands over MQTT.
// A transport that implements io.Closer is closed when Start returns.
func WithTransport(t Transport) Option {
	return func(cfg *consoleConfig) error {
		if t == nil {
			return errors.New("transport cannot be nil")
		}
		cfg.transport = t
		if cl, ok := t.(io.Closer); ok {
			cfg.closers = append(cfg.closers, cl.Close)
		}
		return nil
	}
}

// WithWidget adds a telemetry widget.
func WithWidget(w Widget) Option {
	return func(cfg *consoleConfig) error {
		cfg.widgets = append(cfg.widgets, w)
		return nil
	}
}

// WithWidgets adds several widgets at once, typically from
// [WidgetGrid.Widgets].
func WithWidgets(widgets ...Widget) Option {
	return func(cfg *consoleConfig) error {
		cfg.widgets = append(cfg.widgets, widgets...)
		return nil
	}
}

// WithPort sets the dashboard port. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *consoleConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "SIGHTS".
func WithTitle(title string) Option {
	return func(cfg *consoleConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets the logger. If not specified, [slog.Default] is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *consoleConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithInitialSpeed sets the drive speed scale the console starts and
// resets to. Must be between 1 and 8; defaults to 3.
func WithInitialSpeed(n int) Option {
	return func(cfg *consoleConfig) error {
		if n < command.MinSpeed || n > command.MaxSpeed {
			return fmt.Errorf("speed must be between %d and %d, got %d", command.MinSpeed, command.MaxSpeed, n)
		}
		cfg.initialSpeed = n
		return nil
	}
}

// WithPingInterval sets how often the connection is probed. Defaults to
// 2.75s.
func WithPingInterval(d time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if d < minWidgetPeriod {
			return fmt.Errorf("ping interval must be at least %s", minWidgetPeriod)
		}
		cfg.pingInterval = d
		return nil
	}
}

// WithCommandTimeout bounds each command send. Defaults to 2s.
func WithCommandTimeout(d time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if d <= 0 {
			return errors.New("command timeout must be positive")
		}
		cfg.commandTimeout = d
		return nil
	}
}

// WithEvdevDevices reads key presses from Linux input devices such as
// /dev/input/event0. Supported on Linux only; elsewhere the source logs an
// error at start and the console runs without it.
func WithEvdevDevices(paths ...string) Option {
	return func(cfg *consoleConfig) error {
		if len(paths) == 0 {
			return errors.New("at least one evdev device is required")
		}
		for _, p := range paths {
			if strings.TrimSpace(p) == "" {
				return errors.New("evdev device path cannot be empty")
			}
		}
		cfg.evdevPaths = append(cfg.evdevPaths, paths...)
		return nil
	}
}

// WithGPIOButtons maps push buttons on GPIO lines to key names, so a
// physical control panel drives the same bindings as the keyboard. Empty
// chip selects gpiochip0.
//
// Example:
//
//	console.WithGPIOButtons("gpiochip0", map[int]string{17: "KeyW", 27: "KeyS"}, 10*time.Millisecond)
func WithGPIOButtons(chip string, buttons map[int]string, debounce time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if len(buttons) == 0 {
			return errors.New("at least one gpio button is required")
		}
		if debounce < 0 {
			return errors.New("gpio debounce cannot be negative")
		}
		copied := make(map[int]string, len(buttons))
		for line, key := range buttons {
			copied[line] = key
		}
		cfg.gpio = &gpioConfig{chip: chip, buttons: copied, debounce: debounce}
		return nil
	}
}

// WithThemeMode sets the stored theme preference the dashboard starts
// with.
func WithThemeMode(m ThemeMode) Option {
	return func(cfg *consoleConfig) error {
		switch m {
		case ThemeSystem, ThemeLight, ThemeDark:
		default:
			return fmt.Errorf("unknown theme mode %q", m)
		}
		cfg.themeMode = m
		return nil
	}
}

// WithUpdateCallback registers a function called on every widget update.
//
// Multiple callbacks run in registration order. Callbacks run on the
// polling goroutine of the widget that changed and must not block. Panics
// are recovered and logged.
//
// Example:
//
//	console.WithUpdateCallback(func(u console.WidgetUpdate) {
//	    if u.Widget == console.ConnectionWidgetName && u.Err != nil {
//	        log.Printf("robot unreachable: %v", u.Err)
//	    }
//	})
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(WidgetUpdate)) Option {
	return func(cfg *consoleConfig) error {
		if cb == nil {
			return nil
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}

// WithCommandFailureCallback registers a function called when a command
// cannot be delivered. Failed commands are never retried.
//
// Nil callbacks are silently ignored.
func WithCommandFailureCallback(cb func(Command, error)) Option {
	return func(cfg *consoleConfig) error {
		if cb == nil {
			return nil
		}
		cfg.failureHooks = append(cfg.failureHooks, cb)
		return nil
	}
}

// withClock replaces the polling clock. Tests only.
func withClock(c poller.Clock) Option {
	return func(cfg *consoleConfig) error {
		cfg.clock = c
		return nil
	}
}
