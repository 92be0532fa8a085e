// Package main is the entry point for the sights CLI.
//
// The console can be embedded as a library (SDK) or run as a standalone
// binary with YAML configuration. This CLI provides the standalone binary.
//
// Usage:
//
//	sights serve -c sights.yaml    # Start the console
//	sights validate -c sights.yaml # Validate configuration
//	sights bindings                # Print the key table
//	sights version                 # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "sights",
	Short: "Teleoperation console for SIGHTS robots",
	Long: `sights is the operator console for a SIGHTS robot.

It turns keyboard, evdev and GPIO button presses into drive and arm
commands, polls robot telemetry into dashboard widgets and tracks the
connection quality, all served as a live web page.

Quick start:
  1. Create a config file (sights.yaml)
  2. Run: sights serve -c sights.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  robot:
    url: http://sights.local:5000
  widgets:
    - name: CPU
      kind: gauge
      sensor: system_info
      field: cpu_percent`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger for CLI use.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this sights binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sights %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(versionCmd)
}
