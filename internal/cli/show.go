package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/devicetree"
	"github.com/japokorn/blivet/pkg/plan"
)

// showCommand creates the "show" command.
func (c *CLI) showCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "show <plan-file>",
		Short: "Print or interactively browse the device topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := plan.ReadFile(args[0])
			if err != nil {
				return err
			}

			if interactive {
				model := newTreeModel(tree)
				_, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
				return err
			}

			printTree(tree)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the topology interactively")
	return cmd
}

// printTree writes the topology as an indented list, roots first.
func printTree(tree *devicetree.Tree) {
	var walk func(d *devices.Device, depth int)
	walk = func(d *devices.Device, depth int) {
		indent := ""
		for range depth {
			indent += "  "
		}
		fmt.Println(indent + formatDeviceLine(d))
		for _, child := range tree.Children(d.ID) {
			walk(child, depth+1)
		}
	}

	for _, root := range tree.Roots() {
		walk(root, 0)
	}
}

func formatDeviceLine(d *devices.Device) string {
	line := StyleValue.Render(d.Name) + " " + StyleDim.Render(d.Kind.String())
	if d.Size != 0 {
		line += " " + StyleDim.Render(d.Size.String())
	}
	if d.Format != nil {
		line += " " + StyleDim.Render("["+d.Format.String()+"]")
	}
	if !d.Exists {
		line += " " + StyleWarning.Render("(planned)")
	}
	return line
}
