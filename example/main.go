// Command example runs the console against a simulated robot, so the
// dashboard, key handling and widgets can be tried without hardware.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sightsrobotics/console"
	"github.com/sightsrobotics/console/example/mockrobot"
)

const robotAddr = "localhost:5055"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// start mock robot with ~40ms of simulated link latency
	robot := mockrobot.New(40*time.Millisecond, logger.With("component", "robot"))
	robotSrv := &http.Server{Addr: robotAddr, Handler: robot.Handler()}
	go func() {
		if err := robotSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mock robot error", "error", err)
			os.Exit(1)
		}
	}()
	defer robotSrv.Close()

	widgets, err := buildWidgets()
	if err != nil {
		logger.Error("failed to create widgets", "error", err)
		os.Exit(1)
	}

	c, err := console.New(
		console.WithRobot("http://"+robotAddr, 2*time.Second),
		console.WithWidgets(widgets...),
		console.WithTitle("SIGHTS Demo"),
		console.WithPort(8080),
		console.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create console", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   SIGHTS Console Demo                                 ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   W A S D / arrows   drive (hold)                     ║")
	fmt.Println("  ║   = / -              speed up / down                  ║")
	fmt.Println("  ║   Numpad 1-8 + -     arm joints and claw              ║")
	fmt.Println("  ║   Numpad 0 / .       home arm / drive pose            ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		logger.Error("console error", "error", err)
		os.Exit(1)
	}
	logger.Info("robot received commands", "count", robot.Commands())
}

func buildWidgets() ([]console.Widget, error) {
	var widgets []console.Widget

	cpu, err := console.NewWidget("CPU", console.KindGauge,
		console.WithSensor("system_info"),
		console.WithField("cpu_percent"),
		console.WithSuffix("%"),
		console.WithShared(),
	)
	if err != nil {
		return nil, err
	}
	temp, err := console.NewWidget("Temperature", console.KindGauge,
		console.WithSensor("system_info"),
		console.WithRoundedField("temperature", 1),
		console.WithSuffix("°C"),
		console.WithShared(),
	)
	if err != nil {
		return nil, err
	}
	uptime, err := console.NewWidget("Uptime", console.KindUptime,
		console.WithSensor("system_info"),
		console.WithShared(),
	)
	if err != nil {
		return nil, err
	}
	motors, err := console.NewWidget("Motor Current", console.KindGraph,
		console.WithSensor("motors"),
		console.WithSeries(map[string]string{"Left": "left.current", "Right": "right.current"}),
		console.WithPeriod(500*time.Millisecond),
		console.WithHistory(60),
	)
	if err != nil {
		return nil, err
	}
	logs, err := console.NewWidget("Logs", console.KindLogs)
	if err != nil {
		return nil, err
	}
	cameras, err := console.NewWidget("Cameras", console.KindCameras)
	if err != nil {
		return nil, err
	}
	widgets = append(widgets, cpu, temp, uptime, motors, logs, cameras)

	// grid: 3 battery cells from one declaration
	cells, err := console.NewWidgetGrid("Cell",
		console.WithSensorTemplate("battery_cell_{{.n}}"),
		console.WithDimensions(map[string][]string{"n": {"1", "2", "3"}}),
		console.WithGridField("voltage"),
		console.WithGridSuffix("V"),
		console.WithGridPeriod(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return append(widgets, cells...), nil
}
