// Package devicetree owns the storage topology graph.
//
// The tree holds every device of one planning session, indexed by ID and
// by name. Devices record only their parent IDs; the tree derives and
// maintains the child sets, recomputing them atomically with every
// structural mutation so the two views can never drift apart.
//
// Structural invariants enforced here:
//   - a device's parents must already be in the tree when it is added
//   - the parent relation is acyclic
//   - a device with children cannot be removed
//
// All traversal orders are deterministic so a queue replayed against the
// tree is reproducible run over run.
package devicetree

import (
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/observability"
)

// Tree is the owning container for one session's devices.
// It is not safe for concurrent use; a planning session has exactly one
// owner.
type Tree struct {
	byID     map[string]*devices.Device
	byName   map[string]string   // name -> ID
	children map[string][]string // parent ID -> child IDs, name-sorted
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		byID:     make(map[string]*devices.Device),
		byName:   make(map[string]string),
		children: make(map[string][]string),
	}
}

// Len returns the number of devices in the tree.
func (t *Tree) Len() int { return len(t.byID) }

// Add inserts a device. It fails with a structural error if the device
// is invalid, its ID or name is already taken, or any parent is absent.
// On success the parents' derived child sets are updated in the same
// step.
func (t *Tree) Add(d *devices.Device) error {
	if d == nil {
		return errors.New(errors.ErrCodeInvalidDevice, "cannot add nil device")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := t.byID[d.ID]; ok {
		return errors.New(errors.ErrCodeDuplicateDevice, "device ID %s already in tree", d.ID)
	}
	if _, ok := t.byName[d.Name]; ok {
		return errors.New(errors.ErrCodeDuplicateDevice, "device name %q already in tree", d.Name)
	}
	for _, pid := range d.Parents {
		if _, ok := t.byID[pid]; !ok {
			return errors.New(errors.ErrCodeMissingParent,
				"parent %s of device %q is not in the tree", pid, d.Name)
		}
	}

	// A new node whose parents all pre-exist cannot close a cycle, so no
	// cycle check is needed on this path; Validate covers reloaded trees.
	t.byID[d.ID] = d
	t.byName[d.Name] = d.ID
	for _, pid := range d.Parents {
		t.children[pid] = insertChild(t.children[pid], d.ID, t.nameOf)
	}

	observability.Tree().OnDeviceAdded(context.Background(), d.Name, d.Kind.String())
	return nil
}

// Remove deletes a device. It fails if the device is unknown or still
// has children. The parents' derived child sets are updated in the same
// step.
func (t *Tree) Remove(id string) error {
	d, ok := t.byID[id]
	if !ok {
		return errors.New(errors.ErrCodeUnknownDevice, "device %s is not in the tree", id)
	}
	if len(t.children[id]) > 0 {
		return errors.New(errors.ErrCodeHasChildren,
			"device %q still has %d dependent device(s)", d.Name, len(t.children[id]))
	}

	delete(t.byID, id)
	delete(t.byName, d.Name)
	delete(t.children, id)
	for _, pid := range d.Parents {
		t.children[pid] = slices.DeleteFunc(t.children[pid], func(c string) bool { return c == id })
	}

	observability.Tree().OnDeviceRemoved(context.Background(), d.Name, d.Kind.String())
	return nil
}

// Get returns the device with the given ID.
func (t *Tree) Get(id string) (*devices.Device, bool) {
	d, ok := t.byID[id]
	return d, ok
}

// ByName returns the device with the given name.
func (t *Tree) ByName(name string) (*devices.Device, bool) {
	id, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.byID[id], true
}

// Devices returns all devices sorted by name.
func (t *Tree) Devices() []*devices.Device {
	out := make([]*devices.Device, 0, len(t.byID))
	for _, d := range t.byID {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *devices.Device) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Parents returns the device's parents in member order.
func (t *Tree) Parents(id string) []*devices.Device {
	d, ok := t.byID[id]
	if !ok {
		return nil
	}
	out := make([]*devices.Device, 0, len(d.Parents))
	for _, pid := range d.Parents {
		if p, ok := t.byID[pid]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Children returns the device's derived children, name-sorted.
func (t *Tree) Children(id string) []*devices.Device {
	ids := t.children[id]
	out := make([]*devices.Device, 0, len(ids))
	for _, cid := range ids {
		if c, ok := t.byID[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Roots returns devices with no parents (disks, files), name-sorted.
func (t *Tree) Roots() []*devices.Device {
	var out []*devices.Device
	for _, d := range t.Devices() {
		if len(d.Parents) == 0 {
			out = append(out, d)
		}
	}
	return out
}

// Leaves returns devices with no children (tops of stacks), name-sorted.
func (t *Tree) Leaves() []*devices.Device {
	var out []*devices.Device
	for _, d := range t.Devices() {
		if len(t.children[d.ID]) == 0 {
			out = append(out, d)
		}
	}
	return out
}

// Ancestors returns the transitive parents of the device as a
// restartable sequence. The order is deterministic and topological:
// every ancestor appears after all of its own ancestors
// (parents-before-children), ties broken by name.
func (t *Tree) Ancestors(id string) iter.Seq[*devices.Device] {
	return func(yield func(*devices.Device) bool) {
		for _, a := range t.ancestorOrder(id) {
			if !yield(a) {
				return
			}
		}
	}
}

// Descendants returns the transitive children of the device as a
// restartable sequence in removal order: every descendant appears before
// all of its own ancestors (children-before-parents), ties broken by
// name. Replaying destroys in this order never orphans a device.
func (t *Tree) Descendants(id string) iter.Seq[*devices.Device] {
	return func(yield func(*devices.Device) bool) {
		order := t.descendantOrder(id)
		for _, d := range order {
			if !yield(d) {
				return
			}
		}
	}
}

// ancestorOrder collects the ancestor set of id and sorts it so parents
// come before children.
func (t *Tree) ancestorOrder(id string) []*devices.Device {
	set := map[string]bool{}
	var collect func(string)
	collect = func(cur string) {
		d, ok := t.byID[cur]
		if !ok {
			return
		}
		for _, pid := range d.Parents {
			if !set[pid] {
				set[pid] = true
				collect(pid)
			}
		}
	}
	collect(id)
	return t.topoOrder(set, false)
}

// descendantOrder collects the descendant set of id and sorts it so
// children come before parents.
func (t *Tree) descendantOrder(id string) []*devices.Device {
	set := map[string]bool{}
	var collect func(string)
	collect = func(cur string) {
		for _, cid := range t.children[cur] {
			if !set[cid] {
				set[cid] = true
				collect(cid)
			}
		}
	}
	collect(id)
	return t.topoOrder(set, true)
}

// topoOrder sorts the given device set topologically, parents first.
// With reversed set, children come first instead. Ties are broken by
// name so the order is stable across runs.
func (t *Tree) topoOrder(set map[string]bool, reversed bool) []*devices.Device {
	pending := make([]*devices.Device, 0, len(set))
	for id := range set {
		if d, ok := t.byID[id]; ok {
			pending = append(pending, d)
		}
	}
	slices.SortFunc(pending, func(a, b *devices.Device) int { return strings.Compare(a.Name, b.Name) })

	// Kahn's algorithm restricted to the set.
	indegree := make(map[string]int, len(pending))
	for _, d := range pending {
		for _, pid := range d.Parents {
			if set[pid] {
				indegree[d.ID]++
			}
		}
	}

	var order []*devices.Device
	remaining := pending
	for len(remaining) > 0 {
		next := remaining[:0:0]
		progressed := false
		for _, d := range remaining {
			if indegree[d.ID] == 0 {
				progressed = true
				order = append(order, d)
				for _, cid := range t.children[d.ID] {
					if set[cid] {
						indegree[cid]--
					}
				}
				indegree[d.ID] = -1
			} else if indegree[d.ID] > 0 {
				next = append(next, d)
			}
		}
		if !progressed {
			break // cycle; Validate reports it properly
		}
		remaining = next
	}

	if reversed {
		slices.Reverse(order)
	}
	return order
}

// insertChild inserts id into the name-sorted child list.
func insertChild(ids []string, id string, nameOf func(string) string) []string {
	pos, _ := slices.BinarySearchFunc(ids, id, func(a, b string) int {
		return strings.Compare(nameOf(a), nameOf(b))
	})
	return slices.Insert(ids, pos, id)
}

// nameOf maps a device ID to its name for sorting; unknown IDs sort
// by raw ID.
func (t *Tree) nameOf(id string) string {
	if d, ok := t.byID[id]; ok {
		return d.Name
	}
	return id
}

// Validate checks graph integrity and returns nil if valid.
// It verifies three constraints:
//
//  1. Every parent reference resolves to a device in the tree
//  2. The derived child sets agree with the parent lists
//  3. The parent relation is acyclic
//
// Cycle detection runs in O(N+E) time using depth-first search with
// white/gray/black coloring.
func (t *Tree) Validate() error {
	for _, d := range t.byID {
		for _, pid := range d.Parents {
			if _, ok := t.byID[pid]; !ok {
				return errors.New(errors.ErrCodeMissingParent,
					"device %q references missing parent %s", d.Name, pid)
			}
			if !slices.Contains(t.children[pid], d.ID) {
				return errors.New(errors.ErrCodeInternal,
					"derived children of %s out of sync with %q", pid, d.Name)
			}
		}
	}
	return t.detectCycles()
}

func (t *Tree) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(t.byID))
	var cycleAt string

	// dfs reports false as soon as a gray node is revisited, so the
	// traversal stops at the first cycle found and cycleAt names it.
	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		for _, child := range t.children[id] {
			switch color[child] {
			case white:
				if !dfs(child) {
					return false
				}
			case gray:
				cycleAt = child
				return false
			}
		}
		color[id] = black
		return true
	}

	for id := range t.byID {
		if color[id] == white && !dfs(id) {
			return errors.New(errors.ErrCodeCycle,
				"device graph contains a cycle through %q", t.nameOf(cycleAt))
		}
	}
	return nil
}
