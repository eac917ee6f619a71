// Package plan reads and writes storage plans as JSON or TOML.
//
// A plan file is the portable form of a device tree: devices appear
// parents-first so a reader can rebuild the tree in one pass, parents
// are referenced by name, and sizes are written as human-readable byte
// strings ("10 GB"). Writing the same tree twice produces byte-identical
// output.
package plan

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/devicetree"
	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/formats"
	"github.com/japokorn/blivet/pkg/size"
)

// Version is the current plan schema version.
const Version = 1

// Document is the on-disk form of a device tree.
type Document struct {
	Version int            `json:"version" toml:"version"`
	Devices []DeviceRecord `json:"devices" toml:"devices"`
}

// DeviceRecord is the on-disk form of one device. Parents are referenced
// by name; order is significant for RAID and VG member layout.
type DeviceRecord struct {
	Name    string        `json:"name" toml:"name"`
	Kind    string        `json:"kind" toml:"kind"`
	Size    string        `json:"size,omitempty" toml:"size,omitempty"`
	Exists  bool          `json:"exists,omitempty" toml:"exists,omitempty"`
	Parents []string      `json:"parents,omitempty" toml:"parents,omitempty"`
	Format  *FormatRecord `json:"format,omitempty" toml:"format,omitempty"`

	// Kind-specific fields, flattened for readable plan files.
	Level      string `json:"level,omitempty" toml:"level,omitempty"`
	Number     int    `json:"number,omitempty" toml:"number,omitempty"`
	Thin       bool   `json:"thin,omitempty" toml:"thin,omitempty"`
	ExtentSize string `json:"extent_size,omitempty" toml:"extent_size,omitempty"`
	Luks       int    `json:"luks_version,omitempty" toml:"luks_version,omitempty"`
}

// FormatRecord is the on-disk form of a format.
type FormatRecord struct {
	Kind   string `json:"kind" toml:"kind"`
	Label  string `json:"label,omitempty" toml:"label,omitempty"`
	UUID   string `json:"uuid,omitempty" toml:"uuid,omitempty"`
	Exists bool   `json:"exists,omitempty" toml:"exists,omitempty"`
}

// =============================================================================
// Export
// =============================================================================

// Export flattens a tree into a Document, devices parents-first.
func Export(tree *devicetree.Tree) (*Document, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}

	doc := &Document{Version: Version}
	seen := map[string]bool{}

	var emit func(d *devices.Device)
	emit = func(d *devices.Device) {
		if seen[d.ID] {
			return
		}
		for _, p := range tree.Parents(d.ID) {
			emit(p)
		}
		seen[d.ID] = true
		doc.Devices = append(doc.Devices, toRecord(tree, d))
	}
	for _, d := range tree.Devices() {
		emit(d)
	}
	return doc, nil
}

func toRecord(tree *devicetree.Tree, d *devices.Device) DeviceRecord {
	rec := DeviceRecord{
		Name:   d.Name,
		Kind:   d.Kind.String(),
		Exists: d.Exists,
	}
	if d.Size != 0 {
		rec.Size = d.Size.String()
	}
	for _, p := range tree.Parents(d.ID) {
		rec.Parents = append(rec.Parents, p.Name)
	}
	if f := d.Format; f != nil && f.Kind != formats.None {
		rec.Format = &FormatRecord{
			Kind:   f.Kind.String(),
			Label:  f.Label,
			UUID:   f.UUID,
			Exists: f.Exists,
		}
	}
	if d.MD != nil {
		rec.Level = d.MD.Level
	}
	if d.Part != nil {
		rec.Number = d.Part.Number
	}
	if d.LV != nil {
		rec.Thin = d.LV.Thin
	}
	if d.VG != nil && d.VG.ExtentSize != 0 {
		rec.ExtentSize = d.VG.ExtentSize.String()
	}
	if d.LUKS != nil && d.LUKS.Version != 0 {
		rec.Luks = d.LUKS.Version
	}
	return rec
}

// MarshalJSON renders the tree as indented JSON.
func MarshalJSON(tree *devicetree.Tree) ([]byte, error) {
	doc, err := Export(tree)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding plan")
	}
	return buf.Bytes(), nil
}

// MarshalTOML renders the tree as TOML.
func MarshalTOML(tree *devicetree.Tree) ([]byte, error) {
	doc, err := Export(tree)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding plan")
	}
	return buf.Bytes(), nil
}

// WriteFile writes the tree to path, choosing the codec from the file
// extension (.json or .toml).
func WriteFile(path string, tree *devicetree.Tree) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = MarshalJSON(tree)
	case ".toml":
		data, err = MarshalTOML(tree)
	default:
		return errors.New(errors.ErrCodeInvalidName, "unsupported plan extension %q", ext)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "writing plan file")
	}
	return nil
}

// =============================================================================
// Import
// =============================================================================

// Import rebuilds a device tree from a Document. Records must appear
// parents-first, the order Export produces.
func Import(doc *Document) (*devicetree.Tree, error) {
	if doc.Version != Version {
		return nil, errors.New(errors.ErrCodeInvalidDevice,
			"unsupported plan version %d", doc.Version)
	}

	tree := devicetree.New()
	for _, rec := range doc.Devices {
		d, err := fromRecord(tree, rec)
		if err != nil {
			return nil, err
		}
		if err := tree.Add(d); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func fromRecord(tree *devicetree.Tree, rec DeviceRecord) (*devices.Device, error) {
	kind, err := devices.ParseKind(rec.Kind)
	if err != nil {
		return nil, err
	}

	var sz size.Size
	if rec.Size != "" {
		sz, err = size.Parse(rec.Size)
		if err != nil {
			return nil, err
		}
	}

	parentIDs := make([]string, 0, len(rec.Parents))
	for _, name := range rec.Parents {
		p, ok := tree.ByName(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeMissingParent,
				"device %q references parent %q before its definition", rec.Name, name)
		}
		parentIDs = append(parentIDs, p.ID)
	}

	var d *devices.Device
	switch kind {
	case devices.Disk:
		d = devices.NewDisk(rec.Name, sz)
	case devices.File:
		d = devices.NewFile(rec.Name, sz)
	case devices.Partition:
		if len(parentIDs) != 1 {
			return nil, errors.New(errors.ErrCodeInvalidDevice,
				"partition %q needs exactly one parent", rec.Name)
		}
		d = devices.NewPartition(rec.Name, sz, parentIDs[0], rec.Number)
	case devices.MDArray:
		d = devices.NewMDArray(rec.Name, rec.Level, sz, parentIDs...)
	case devices.VolumeGroup:
		d = devices.NewVolumeGroup(rec.Name, parentIDs...)
		if rec.ExtentSize != "" {
			es, err := size.Parse(rec.ExtentSize)
			if err != nil {
				return nil, err
			}
			d.VG.ExtentSize = es
		}
	case devices.LogicalVolume:
		if len(parentIDs) != 1 {
			return nil, errors.New(errors.ErrCodeInvalidDevice,
				"logical volume %q needs exactly one parent", rec.Name)
		}
		d = devices.NewLogicalVolume(rec.Name, sz, parentIDs[0])
		d.LV.Thin = rec.Thin
	case devices.ThinPool:
		if len(parentIDs) != 1 {
			return nil, errors.New(errors.ErrCodeInvalidDevice,
				"thin pool %q needs exactly one parent", rec.Name)
		}
		d = devices.NewThinPool(rec.Name, sz, parentIDs[0])
	case devices.LUKS:
		if len(parentIDs) != 1 {
			return nil, errors.New(errors.ErrCodeInvalidDevice,
				"luks device %q needs exactly one parent", rec.Name)
		}
		d = devices.NewLUKS(rec.Name, parentIDs[0])
		d.Size = sz
		if rec.Luks != 0 {
			d.LUKS.Version = rec.Luks
		}
	}

	d.Exists = rec.Exists
	if rec.Format != nil {
		fk, err := formats.ParseKind(rec.Format.Kind)
		if err != nil {
			return nil, err
		}
		f := formats.New(fk)
		f.Label = rec.Format.Label
		f.UUID = rec.Format.UUID
		f.Exists = rec.Format.Exists
		d.Format = f
	}
	return d, nil
}

// UnmarshalJSON parses a JSON plan into a tree.
func UnmarshalJSON(data []byte) (*devicetree.Tree, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDevice, err, "parsing plan")
	}
	return Import(&doc)
}

// UnmarshalTOML parses a TOML plan into a tree.
func UnmarshalTOML(data []byte) (*devicetree.Tree, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDevice, err, "parsing plan")
	}
	return Import(&doc)
}

// ReadFile loads a plan file, choosing the codec from the extension.
func ReadFile(path string) (*devicetree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "reading plan file")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return UnmarshalJSON(data)
	case ".toml":
		return UnmarshalTOML(data)
	default:
		return nil, errors.New(errors.ErrCodeInvalidName, "unsupported plan extension %q", ext)
	}
}
