// Package cli implements the blivet command-line interface.
//
// This package provides commands for validating storage plans, showing
// and rendering the device topology, and inspecting external tool
// dependencies. The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - validate: Check a plan file for structural problems
//   - show: Print or interactively browse the device topology
//   - deps: Report external tool dependencies and availability
//   - render: Generate DOT, SVG, or PNG diagrams of the topology
//   - cache: Manage the availability probe cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/buildinfo"
	"github.com/japokorn/blivet/pkg/cache"
)

const (
	// appName is the application name used for directories and display.
	appName = "blivet"

	// probeCacheTTL bounds how long a cached availability answer is
	// trusted before the tool is probed again.
	probeCacheTTL = 24 * time.Hour
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "blivet",
		Short:        "Blivet plans block storage topologies",
		Long:         `Blivet is a CLI tool for planning block storage topologies: stacked devices (partitions, RAID, LVM, LUKS), their formats, and the external tools each layer needs.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.validateCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Provider Factory
// =============================================================================

// newProvider builds the availability provider commands probe with.
// Probe results go through the file cache unless noCache is set; an
// overrides file pins capabilities to fixed answers for offline
// planning.
func (c *CLI) newProvider(noCache bool, overridesPath string) (availability.Provider, error) {
	var prober availability.Prober = availability.PathProber{}

	if overridesPath != "" {
		ov, err := availability.LoadOverrides(overridesPath)
		if err != nil {
			return nil, err
		}
		prober = ov.Wrap(prober)
	}

	store, err := newProbeCache(noCache)
	if err != nil {
		return nil, err
	}
	return availability.NewCachedProviderWithCache(prober, store, probeCacheTTL), nil
}

func newProbeCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard
// (~/.cache/blivet/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
