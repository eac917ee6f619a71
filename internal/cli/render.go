package cli

import (
	"github.com/spf13/cobra"

	"github.com/japokorn/blivet/pkg/plan"
	"github.com/japokorn/blivet/pkg/render"
)

// renderCommand creates the "render" command.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "render <plan-file>",
		Short: "Generate DOT, SVG, or PNG diagrams of the topology",
		Long: `Render draws the plan's device topology as a graph: disks at the
bottom, stacked layers above them, planned devices dashed. The output
format follows the output file extension (.dot, .svg, .png).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := plan.ReadFile(args[0])
			if err != nil {
				return err
			}

			p := newProgress(c.Logger)
			opts := render.Options{Detailed: detailed}
			if err := render.WriteFile(cmd.Context(), output, tree, opts); err != nil {
				return err
			}

			printSuccess("Rendered %d devices", tree.Len())
			printFile(output)
			p.done("Rendered topology")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "topology.svg", "output file (.dot, .svg, .png)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include sizes and formats in node labels")
	return cmd
}
