package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd creates the stampede command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stampede",
		Short:   "A load generator for HTTP APIs",
		Version: version,
		Long: `Stampede runs a named scenario on a fixed number of concurrent virtual
users for a fixed duration, then reports iterations, per-check pass/fail
counts and latency percentiles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(newRunCmd(&runOptions{}))
	cmd.AddCommand(newScenariosCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command line and reports the error that ended it, if any.
// This is called by main.main().
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stampede %s\n", version)
		},
	}
}
