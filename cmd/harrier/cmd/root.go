// Package cmd implements the harrier command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// New returns the root command with every subcommand attached.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:   "harrier",
		Short: "harrier checks Python source for type and lint errors",
		Long: `harrier is a static-analysis toolchain for Python: a semantic
index and type checker combined with a lint engine, sharing one
incremental computation engine so repeated runs and watch mode only
recompute what an edit actually affects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newCheckCmd(),
		newRuleCmd(),
		newVersionCmd(),
	)
	return root
}

// Main runs the command line and returns the process exit code: 0
// clean, 1 when diagnostics at or above error severity were reported,
// 2 when an input or configuration failure prevented analysis.
func Main() int {
	cmd := New()
	if err := cmd.Execute(); err != nil {
		if code, ok := err.(exitCodeError); ok {
			return int(code)
		}
		fmt.Fprintf(os.Stderr, "harrier: %v\n", err)
		return 2
	}
	return 0
}

// exitCodeError carries a specific exit code through cobra's error
// return without printing anything further.
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", int(e)) }
