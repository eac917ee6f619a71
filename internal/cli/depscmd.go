package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/japokorn/blivet/pkg/deps"
	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/plan"
)

// depsCommand creates the "deps" command.
func (c *CLI) depsCommand() *cobra.Command {
	var (
		noCache   bool
		overrides string
	)

	cmd := &cobra.Command{
		Use:   "deps <plan-file> [device]",
		Short: "Report external tool dependencies and availability",
		Long: `Deps resolves the external tools every device in the plan depends on,
probes which of them are available on this system, and reports devices
that cannot currently be managed.

Probe answers are cached; use --no-cache to force fresh probes, or
--availability to pin capabilities from a TOML overrides file instead of
probing the local system.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := plan.ReadFile(args[0])
			if err != nil {
				return err
			}

			provider, err := c.newProvider(noCache, overrides)
			if err != nil {
				return err
			}
			resolver := deps.New(tree, provider)

			targets := tree.Devices()
			if len(args) == 2 {
				d, ok := tree.ByName(args[1])
				if !ok {
					return errors.New(errors.ErrCodeUnknownDevice,
						"device %q is not in the plan", args[1])
				}
				targets = []*devices.Device{d}
			}

			spinner := newSpinnerWithContext(cmd.Context(), "Probing external tools...")
			spinner.Start()
			type report struct {
				device       *devices.Device
				external     []string
				missing      []string
				controllable bool
			}
			reports := make([]report, 0, len(targets))
			for _, d := range targets {
				reports = append(reports, report{
					device:       d,
					external:     resolver.ExternalDependencies(d),
					missing:      resolver.UnavailableDependencies(d),
					controllable: resolver.Controllable(d),
				})
			}
			spinner.Stop()
			if spinner.Cancelled() {
				return cmd.Context().Err()
			}

			blocked := 0
			for _, r := range reports {
				if r.controllable {
					printSuccess("%s", r.device.Name)
				} else {
					printError("%s", r.device.Name)
					blocked++
				}
				if len(r.external) > 0 {
					printDetail("requires: %s", strings.Join(r.external, ", "))
				}
				if len(r.missing) > 0 {
					printDetail("missing:  %s", strings.Join(r.missing, ", "))
				}
			}

			if blocked > 0 {
				printWarning("%d of %d devices cannot be managed on this system", blocked, len(reports))
			} else {
				printInfo("All required tools are available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the availability probe cache")
	cmd.Flags().StringVar(&overrides, "availability", "", "TOML file pinning capability availability")
	return cmd
}
