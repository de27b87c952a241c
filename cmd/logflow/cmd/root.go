// Package cmd wires logflow's cobra command tree: a root run command plus
// a docs subcommand that prints the registered component schema. Kept
// separate from package main so tests can call Execute without an
// os.Exit.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrInterrupted is returned by Execute when the run command's context
// was cancelled by an operator interrupt (SIGINT/SIGTERM) rather than by
// a startup or configuration error, so main can map it to exit code 130.
var ErrInterrupted = errors.New("logflow: interrupted")

var rootCmd = &cobra.Command{
	Use:           "logflow",
	Short:         "A configuration-driven log processor",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute parses os.Args and runs the selected subcommand.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(docsCmd)
}
