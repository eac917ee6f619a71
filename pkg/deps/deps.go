// Package deps resolves the external capabilities a device depends on.
//
// A device's dependency set is the union of its own declared
// requirements, its format's requirements, and the requirements of every
// ancestor (and ancestor format) in the tree: operating on any layer of
// a stack means every layer underneath must be operable too. The
// resolver is the only component that performs this accumulation;
// devices and formats only ever declare their own needs.
package deps

import (
	"slices"

	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/devicetree"
)

// Resolver answers capability questions against one tree and one
// availability provider.
type Resolver struct {
	tree     *devicetree.Tree
	provider availability.Provider
}

// New creates a resolver bound to the given tree and provider.
func New(tree *devicetree.Tree, provider availability.Provider) *Resolver {
	return &Resolver{tree: tree, provider: provider}
}

// FormatDependencies returns the capabilities the device's format needs,
// or nil when the device has no format. The result is sorted.
func (r *Resolver) FormatDependencies(d *devices.Device) []string {
	if d == nil || d.Format == nil {
		return nil
	}
	out := slices.Clone(d.Format.DeclaredRequirements())
	slices.Sort(out)
	return out
}

// ExternalDependencies returns every capability the device transitively
// depends on: its own, its format's, and those of all ancestors and
// their formats. The result is sorted and duplicate-free, so a child's
// set is always a superset of each parent's set.
func (r *Resolver) ExternalDependencies(d *devices.Device) []string {
	if d == nil {
		return nil
	}
	set := make(map[string]bool)
	accumulate(set, d)
	for a := range r.tree.Ancestors(d.ID) {
		accumulate(set, a)
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// UnavailableDependencies returns the subset of ExternalDependencies
// whose capability is currently unavailable, sorted. An empty result
// means every tool the device needs is present.
func (r *Resolver) UnavailableDependencies(d *devices.Device) []string {
	var out []string
	for _, c := range r.ExternalDependencies(d) {
		if !r.provider.IsAvailable(c) {
			out = append(out, c)
		}
	}
	return out
}

// Controllable reports whether the device can be managed at all: every
// transitive dependency is available, and for aggregating devices every
// member is itself controllable. A RAID array with one unmanageable
// member cannot be safely manipulated even if mdadm is present.
func (r *Resolver) Controllable(d *devices.Device) bool {
	if d == nil {
		return false
	}
	if len(r.UnavailableDependencies(d)) > 0 {
		return false
	}
	if d.Aggregating() {
		for _, p := range r.tree.Parents(d.ID) {
			if !r.Controllable(p) {
				return false
			}
		}
	}
	return true
}

func accumulate(set map[string]bool, d *devices.Device) {
	for _, c := range d.DeclaredRequirements() {
		set[c] = true
	}
	if d.Format != nil {
		for _, c := range d.Format.DeclaredRequirements() {
			set[c] = true
		}
	}
}
