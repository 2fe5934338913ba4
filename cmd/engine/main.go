// Command engine is the football-prob-engine CLI: it runs offline
// maintenance operations against the core (fitting a new model version,
// re-learning decision thresholds) that a host application would otherwise
// schedule as jobs. Nothing in this package talks HTTP; see spec's Non-goals.
//
// Grounded on stormlightlabs-baseball/cli/cli.go's cobra RootCmd wiring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "football-prob-engine maintenance CLI",
	Long:  "Trains Dixon-Coles model versions and re-learns decision thresholds for the football probability engine.",
}

func init() {
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(learnThresholdsCmd())
	rootCmd.AddCommand(standingsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
