package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gcodesim",
	Short: "Drive the gocnc-motion core against simulated stepper hardware",
	Long: `gcodesim feeds a G-code program through the look-ahead planner,
segment executor and step dispatcher using a software-simulated pulse
generator instead of real timers, printing status reports as the
simulated machine moves.`,
}

// Execute runs the root command, returning any error for main to
// report and translate into a process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
}
