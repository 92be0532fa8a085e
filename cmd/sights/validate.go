package main

import (
	"fmt"

	"github.com/sightsrobotics/console/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the console.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a console configuration file without starting it.

This command parses the YAML, expands environment variables, validates
all fields and builds every widget. It does not contact the robot or the
MQTT broker, so it is safe to run in CI.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  sights validate -c sights.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	widgets, err := config.BuildWidgets(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Widgets)
	fromGrids := len(widgets) - direct

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Robot:     %s\n", cfg.Robot.URL)
	fmt.Fprintf(out, "  Port:      %d\n", cfg.Port)
	fmt.Fprintf(out, "  Transport: %s\n", cfg.Transport.Type)
	fmt.Fprintf(out, "  Speed:     %d\n", cfg.Speed)
	fmt.Fprintf(out, "  Widgets:   %d direct + %d from grids = %d total\n",
		direct, fromGrids, len(widgets))

	return nil
}
