package devicetree

import (
	"context"
	"strings"
	"testing"

	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/size"
)

// buildStack assembles disk -> partition -> luks -> lv-ish layering used
// by several tests: two disks, a RAID1 over them, and a LUKS layer on
// the array.
func buildStack(t *testing.T) (*Tree, *devices.Device, *devices.Device, *devices.Device, *devices.Device) {
	t.Helper()
	tree := New()

	sda := devices.NewDisk("sda", 100*size.GiB)
	sdb := devices.NewDisk("sdb", 100*size.GiB)
	md := devices.NewMDArray("md0", "raid1", 100*size.GiB, sda.ID, sdb.ID)
	crypt := devices.NewLUKS("crypt0", md.ID)

	for _, d := range []*devices.Device{sda, sdb, md, crypt} {
		if err := tree.Add(d); err != nil {
			t.Fatalf("Add(%s): %v", d.Name, err)
		}
	}
	return tree, sda, sdb, md, crypt
}

func TestAddAndLookup(t *testing.T) {
	tree, sda, _, md, _ := buildStack(t)

	if tree.Len() != 4 {
		t.Fatalf("Len = %d, want 4", tree.Len())
	}
	if got, ok := tree.Get(sda.ID); !ok || got != sda {
		t.Error("Get by ID failed")
	}
	if got, ok := tree.ByName("md0"); !ok || got != md {
		t.Error("ByName failed")
	}
	if _, ok := tree.ByName("nope"); ok {
		t.Error("ByName should miss unknown names")
	}
}

func TestAddRejections(t *testing.T) {
	tree, sda, _, _, _ := buildStack(t)

	tests := []struct {
		name  string
		build func() *devices.Device
		code  errors.Code
	}{
		{"duplicate name", func() *devices.Device {
			return devices.NewDisk("sda", 0)
		}, errors.ErrCodeDuplicateDevice},
		{"duplicate id", func() *devices.Device {
			d := devices.NewDisk("sdx", 0)
			d.ID = sda.ID
			return d
		}, errors.ErrCodeDuplicateDevice},
		{"missing parent", func() *devices.Device {
			return devices.NewPartition("sdx1", 0, "no-such-id", 1)
		}, errors.ErrCodeMissingParent},
		{"invalid device", func() *devices.Device {
			return devices.NewMDArray("md1", "raid1", 0, sda.ID)
		}, errors.ErrCodeInvalidDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tree.Add(tt.build())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %v, want %v", got, tt.code)
			}
			if !errors.IsStructural(err) {
				t.Errorf("error %v should classify as structural", err)
			}
		})
	}

	if tree.Len() != 4 {
		t.Errorf("failed Add must not mutate the tree, Len = %d", tree.Len())
	}

	if err := tree.Add(nil); err == nil {
		t.Error("Add(nil) should fail")
	}
}

func TestDerivedChildren(t *testing.T) {
	tree, sda, sdb, md, crypt := buildStack(t)

	kids := tree.Children(sda.ID)
	if len(kids) != 1 || kids[0] != md {
		t.Errorf("Children(sda) = %v", kids)
	}
	kids = tree.Children(md.ID)
	if len(kids) != 1 || kids[0] != crypt {
		t.Errorf("Children(md0) = %v", kids)
	}
	if len(tree.Children(crypt.ID)) != 0 {
		t.Error("crypt0 should have no children")
	}

	parents := tree.Parents(md.ID)
	if len(parents) != 2 || parents[0] != sda || parents[1] != sdb {
		t.Errorf("Parents(md0) = %v, want member order [sda sdb]", parents)
	}
}

func TestRootsAndLeaves(t *testing.T) {
	tree, sda, sdb, _, crypt := buildStack(t)

	roots := tree.Roots()
	if len(roots) != 2 || roots[0] != sda || roots[1] != sdb {
		t.Errorf("Roots = %v, want [sda sdb]", roots)
	}
	leaves := tree.Leaves()
	if len(leaves) != 1 || leaves[0] != crypt {
		t.Errorf("Leaves = %v, want [crypt0]", leaves)
	}
}

func TestRemove(t *testing.T) {
	tree, sda, _, md, crypt := buildStack(t)

	err := tree.Remove(md.ID)
	if err == nil {
		t.Fatal("removing a device with children should fail")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeHasChildren {
		t.Errorf("code = %v, want HAS_CHILDREN", got)
	}

	if err := tree.Remove(crypt.ID); err != nil {
		t.Fatalf("Remove(crypt0): %v", err)
	}
	if err := tree.Remove(md.ID); err != nil {
		t.Fatalf("Remove(md0) after children gone: %v", err)
	}
	if len(tree.Children(sda.ID)) != 0 {
		t.Error("removing md0 must clear sda's derived children")
	}

	err = tree.Remove("no-such-id")
	if got := errors.GetCode(err); got != errors.ErrCodeUnknownDevice {
		t.Errorf("code = %v, want UNKNOWN_DEVICE", got)
	}
}

func TestAncestors(t *testing.T) {
	tree, _, _, md, crypt := buildStack(t)

	var names []string
	for a := range tree.Ancestors(crypt.ID) {
		names = append(names, a.Name)
	}
	// Parents come before their children: both disks before the array.
	want := []string{"sda", "sdb", "md0"}
	if len(names) != len(want) {
		t.Fatalf("Ancestors = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Ancestors = %v, want %v", names, want)
		}
	}

	// The sequence is restartable: a second full pass sees the same order.
	seq := tree.Ancestors(crypt.ID)
	first := collectNames(seq)
	second := collectNames(seq)
	if len(first) != len(second) {
		t.Fatalf("restarted sequence differs: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("restarted sequence differs: %v vs %v", first, second)
		}
	}

	// Early break must not panic or overrun.
	n := 0
	for range tree.Ancestors(crypt.ID) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("early break yielded %d items", n)
	}

	if got := collectNames(tree.Ancestors(md.ID)); len(got) != 2 {
		t.Errorf("Ancestors(md0) = %v, want the two disks", got)
	}
}

func TestDescendants(t *testing.T) {
	tree, sda, _, _, _ := buildStack(t)

	got := collectNames(tree.Descendants(sda.ID))
	// Removal order: children before parents, so the LUKS layer first.
	want := []string{"crypt0", "md0"}
	if len(got) != len(want) {
		t.Fatalf("Descendants = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Descendants = %v, want %v", got, want)
		}
	}
}

func collectNames(seq func(func(*devices.Device) bool)) []string {
	var names []string
	seq(func(d *devices.Device) bool {
		names = append(names, d.Name)
		return true
	})
	return names
}

func TestValidate(t *testing.T) {
	tree, _, _, md, _ := buildStack(t)

	if err := tree.Validate(); err != nil {
		t.Fatalf("Validate on a sane tree: %v", err)
	}

	// Corrupt the parent list behind the tree's back.
	md.Parents = append(md.Parents, "ghost")
	err := tree.Validate()
	if err == nil {
		t.Fatal("expected missing-parent error")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeMissingParent {
		t.Errorf("code = %v, want MISSING_PARENT", got)
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	tree, sda, sdb, md, crypt := buildStack(t)

	// Force a cycle by pointing a disk back at the top of the stack.
	sda.Parents = []string{crypt.ID}
	tree.children[crypt.ID] = append(tree.children[crypt.ID], sda.ID)

	err := tree.Validate()
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeCycle {
		t.Errorf("code = %v, want CYCLE", got)
	}

	// The reported device must actually be on the cycle; sdb is not.
	msg := err.Error()
	onCycle := false
	for _, name := range []string{"sda", "md0", "crypt0"} {
		if strings.Contains(msg, name) {
			onCycle = true
		}
	}
	if !onCycle || strings.Contains(msg, `"sdb"`) {
		t.Errorf("cycle error must name a cycle member, got %q", msg)
	}
	_ = sdb
	_ = md
}

func TestRefreshSizes(t *testing.T) {
	tree, sda, sdb, md, _ := buildStack(t)
	sda.Exists = true
	sdb.Exists = true
	// md0 stays planned and must not be probed.

	probe := StaticSizes{
		"sda": 120 * size.GiB,
		"md0": 1 * size.GiB, // ignored, device is planned
	}
	if err := tree.RefreshSizes(context.Background(), probe); err != nil {
		t.Fatalf("RefreshSizes: %v", err)
	}

	if !sda.SizeKnown() || sda.CurrentSize() != 120*size.GiB {
		t.Errorf("sda size = %v known=%v", sda.CurrentSize(), sda.SizeKnown())
	}
	if sdb.SizeKnown() {
		t.Error("sdb has no probe result and must stay unknown")
	}
	if md.SizeKnown() {
		t.Error("planned device must not be probed")
	}
}

func TestRefreshSizesError(t *testing.T) {
	tree, sda, _, _, _ := buildStack(t)
	sda.Exists = true

	boom := SizeProberFunc(func(context.Context, *devices.Device) (size.Size, bool, error) {
		return 0, false, errors.New(errors.ErrCodeInternal, "probe failed")
	})
	if err := tree.RefreshSizes(context.Background(), boom); err == nil {
		t.Error("expected probe error to propagate")
	}
}
