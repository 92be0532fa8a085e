package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	console "github.com/sightsrobotics/console"
	"github.com/spf13/cobra"
)

// bindingsCmd prints the key table.
var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Print the key bindings",
	Long: `Print every action the console binds, the keys that trigger it and
whether it is held (start on press, stop on release) or acts once per press.`,
	Args: cobra.NoArgs,
	RunE: runBindings,
}

func init() {
	rootCmd.AddCommand(bindingsCmd)
}

func runBindings(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tKEYS\tMODE\tDESCRIPTION")
	for _, b := range console.DefaultKeyBindings() {
		mode := "press"
		if b.Holdable {
			mode = "hold"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Action, strings.Join(b.Keys, ", "), mode, b.Description)
	}
	return w.Flush()
}
