// Package console is the operator console for SIGHTS robots: it turns key
// presses into drive and arm commands, polls the robot's sensors into
// dashboard widgets, and watches the connection.
//
// The package is an embeddable SDK. Configuration uses functional options
// and widgets are immutable values.
//
// # Quick Start
//
//	cpu, _ := console.NewWidget("CPU", console.KindGauge,
//	    console.WithSensor("system_info"),
//	    console.WithField("cpu_percent"),
//	    console.WithSuffix("%"),
//	    console.WithShared(),
//	)
//	c, _ := console.New(
//	    console.WithRobot("http://sights.local:5000", 2*time.Second),
//	    console.WithWidget(cpu),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	c.Start(ctx) // blocks until ctx is cancelled
//
// # Driving
//
// Holding W, A, S or D (or the arrow keys) drives at the current speed
// scale times 125 per wheel; releasing any drive key stops the robot.
// Equal and Minus change the scale between 1 and 8. The numpad moves the
// arm one step per press. Keys arrive from the dashboard over a websocket,
// from Linux input devices ([WithEvdevDevices]) or from GPIO push buttons
// ([WithGPIOButtons]); each source tracks its own held keys, and a source
// that disconnects releases everything it held.
//
// # Widgets
//
// Every mounted widget runs its own polling task. A task never has two
// fetches in flight: ticks that arrive while a fetch is running are
// dropped. A failed fetch keeps the last good value on screen, marked
// stale. Shared widgets ([WithShared]) are fed from one poll per sensor and
// period instead of polling themselves.
//
// # Architecture
//
//   - internal/input: key edge tracking and hardware key sources
//   - internal/command: commands, transports (HTTP, MQTT) and the dispatcher
//   - internal/poller: generic polling tasks
//   - internal/health: connection quality monitor
//   - internal/telemetry: robot telemetry client
//   - internal/theme: dashboard theme resolution
//   - internal/store: widget snapshots with pub/sub
//   - internal/server: dashboard, REST, SSE and the key websocket
//   - dashboard: embedded web UI assets
package console
