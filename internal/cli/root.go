// Package cli implements the Navigate command-line interface using Cobra.
// serve runs the HTTP API; the other subcommands operate on the local store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Navigate: learning rewards service",
	Long: `Navigate tracks learner activity and turns it into points, tiers,
achievements and a daily streak.

Run 'navigate serve' for the HTTP API, or use the subcommands to inspect
and adjust ledgers directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
