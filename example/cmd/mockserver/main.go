// Standalone mock robot for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/sights serve -c example/sights.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sightsrobotics/console/example/mockrobot"
)

func main() {
	addr := flag.String("addr", ":5055", "listen address")
	latency := flag.Duration("latency", 40*time.Millisecond, "simulated link latency")
	flag.Parse()

	fmt.Printf("Mock robot listening on %s (latency %s)\n", *addr, *latency)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	robot := mockrobot.New(*latency, logger)

	if err := http.ListenAndServe(*addr, robot.Handler()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
