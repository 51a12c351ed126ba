package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrier-dev/harrier/internal/core/lint"
	"github.com/harrier-dev/harrier/internal/rules"
)

func newRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rule [code]",
		Short: "describe a lint rule, or list all rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := rules.NewRegistry()
			if len(args) == 0 {
				for _, code := range reg.Codes() {
					r, _ := reg.Lookup(code)
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", code, r.Name)
				}
				return nil
			}
			r, ok := reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown rule code %q", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", r.Code, r.Name)
			fmt.Fprintf(out, "default severity: %s\n", r.DefaultSeverity)
			fmt.Fprintf(out, "fix: %s\n", fixDescription(r))
			return nil
		},
	}
}

func fixDescription(r *lint.Rule) string {
	switch r.Fix {
	case lint.FixNone:
		return "none"
	case lint.FixSometimes:
		return "sometimes (" + r.FixSafety.String() + ")"
	case lint.FixAlways:
		return "always (" + r.FixSafety.String() + ")"
	}
	return "unknown"
}
