package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	console "github.com/sightsrobotics/console"
	"github.com/sightsrobotics/console/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the console.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console",
	Long: `Start the SIGHTS console.

The console will:
  - Load configuration from the specified YAML file
  - Connect to the robot and start polling the configured widgets
  - Read key presses from the dashboard and any configured devices
  - Serve the dashboard UI on the configured port

Held drive keys are released and a stop is sent when the console shuts
down. It runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  sights serve -c sights.yaml
  sights serve --config /etc/sights/console.yaml --verbose`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"robot", cfg.Robot.URL,
		"transport", cfg.Transport.Type,
		"widgets", len(cfg.Widgets),
		"grids", len(cfg.Grids),
	)

	opts, err := config.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build console: %w", err)
	}
	opts = append(opts, console.WithLogger(logger))

	c, err := console.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create console: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start console - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- c.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("console error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("console error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
