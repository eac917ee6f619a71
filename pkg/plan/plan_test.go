package plan

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/devicetree"
	"github.com/japokorn/blivet/pkg/formats"
	"github.com/japokorn/blivet/pkg/size"
)

// samplePlan builds a tree exercising every record field: RAID level,
// partition number, formats, and an encrypted layer.
func samplePlan(t *testing.T) *devicetree.Tree {
	t.Helper()
	tree := devicetree.New()

	sda := devices.NewDisk("sda", 100*size.GiB)
	sda.Exists = true
	sdb := devices.NewDisk("sdb", 100*size.GiB)
	sdb.Exists = true

	p1 := devices.NewPartition("sda1", 50*size.GiB, sda.ID, 1)
	p2 := devices.NewPartition("sdb1", 50*size.GiB, sdb.ID, 1)
	p1.Format = formats.New(formats.MDMember)
	p2.Format = formats.New(formats.MDMember)

	md := devices.NewMDArray("md0", "raid1", 50*size.GiB, p1.ID, p2.ID)
	crypt := devices.NewLUKS("crypt0", md.ID)
	crypt.Format = formats.New(formats.Ext4)
	crypt.Format.Label = "rootfs"

	for _, d := range []*devices.Device{sda, sdb, p1, p2, md, crypt} {
		if err := tree.Add(d); err != nil {
			t.Fatalf("Add(%s): %v", d.Name, err)
		}
	}
	return tree
}

func TestExportParentsFirst(t *testing.T) {
	tree := samplePlan(t)

	doc, err := Export(tree)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.Version != Version || len(doc.Devices) != 6 {
		t.Fatalf("doc = %+v", doc)
	}

	pos := make(map[string]int, len(doc.Devices))
	for i, rec := range doc.Devices {
		pos[rec.Name] = i
	}
	for _, rec := range doc.Devices {
		for _, parent := range rec.Parents {
			if pos[parent] > pos[rec.Name] {
				t.Errorf("parent %q appears after child %q", parent, rec.Name)
			}
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	tree := samplePlan(t)

	data, err := MarshalJSON(tree)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	back, err := UnmarshalJSON(data)
	if err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	assertSameTopology(t, tree, back)

	// Writing the same tree twice is byte-identical.
	again, err := MarshalJSON(tree)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("marshalling is not deterministic")
	}
}

func TestTOMLRoundTrip(t *testing.T) {
	tree := samplePlan(t)

	data, err := MarshalTOML(tree)
	if err != nil {
		t.Fatalf("MarshalTOML: %v", err)
	}
	back, err := UnmarshalTOML(data)
	if err != nil {
		t.Fatalf("UnmarshalTOML: %v", err)
	}
	assertSameTopology(t, tree, back)
}

func TestFileRoundTrip(t *testing.T) {
	tree := samplePlan(t)
	dir := t.TempDir()

	for _, name := range []string{"plan.json", "plan.toml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, tree); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		back, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		assertSameTopology(t, tree, back)
	}

	if err := WriteFile(filepath.Join(dir, "plan.yaml"), tree); err == nil {
		t.Error("expected unsupported extension to fail")
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected missing file to fail")
	}
}

func TestImportRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"bad version", Document{Version: 99}},
		{"unknown kind", Document{Version: 1, Devices: []DeviceRecord{
			{Name: "x", Kind: "tape"},
		}}},
		{"forward parent reference", Document{Version: 1, Devices: []DeviceRecord{
			{Name: "sda1", Kind: "partition", Parents: []string{"sda"}, Number: 1},
			{Name: "sda", Kind: "disk"},
		}}},
		{"bad size", Document{Version: 1, Devices: []DeviceRecord{
			{Name: "sda", Kind: "disk", Size: "many bytes"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Import(&tt.doc); err == nil {
				t.Error("expected import to fail")
			}
		})
	}
}

func assertSameTopology(t *testing.T, want, got *devicetree.Tree) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("device count = %d, want %d", got.Len(), want.Len())
	}
	for _, w := range want.Devices() {
		g, ok := got.ByName(w.Name)
		if !ok {
			t.Errorf("device %q missing after round trip", w.Name)
			continue
		}
		if g.Kind != w.Kind || g.Size != w.Size || g.Exists != w.Exists {
			t.Errorf("device %q = %v/%v/%v, want %v/%v/%v",
				w.Name, g.Kind, g.Size, g.Exists, w.Kind, w.Size, w.Exists)
		}
		wp, gp := want.Parents(w.ID), got.Parents(g.ID)
		if len(wp) != len(gp) {
			t.Errorf("device %q parent count = %d, want %d", w.Name, len(gp), len(wp))
			continue
		}
		for i := range wp {
			if wp[i].Name != gp[i].Name {
				t.Errorf("device %q parent[%d] = %q, want %q", w.Name, i, gp[i].Name, wp[i].Name)
			}
		}
		switch {
		case w.Format == nil && g.Format != nil:
			t.Errorf("device %q gained a format", w.Name)
		case w.Format != nil && g.Format == nil:
			t.Errorf("device %q lost its format", w.Name)
		case w.Format != nil:
			if g.Format.Kind != w.Format.Kind || g.Format.Label != w.Format.Label {
				t.Errorf("device %q format = %v, want %v", w.Name, g.Format, w.Format)
			}
		}
	}
}
