package cli

import (
	"github.com/spf13/cobra"

	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/plan"
)

// validateCommand creates the "validate" command.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Check a plan file for structural problems",
		Long: `Validate loads a plan file (JSON or TOML) and checks the device
topology: parent references, parent arity per device kind, cycles, and
device/format field validity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newProgress(c.Logger)

			tree, err := plan.ReadFile(args[0])
			if err != nil {
				printError("Plan is invalid: %s", errors.UserMessage(err))
				return err
			}
			if err := tree.Validate(); err != nil {
				printError("Plan is invalid: %s", errors.UserMessage(err))
				return err
			}

			planned := 0
			for _, d := range tree.Devices() {
				if !d.Exists {
					planned++
				}
			}

			printSuccess("Plan is valid")
			printDetail("%d devices (%d planned, %d existing)",
				tree.Len(), planned, tree.Len()-planned)
			p.done("Validated plan")
			return nil
		},
	}
}
