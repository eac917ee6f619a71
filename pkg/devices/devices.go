// Package devices models the nodes of the storage topology graph.
//
// A Device is one block device: a disk, a partition, a RAID array, an
// LVM volume group or logical volume, or a LUKS layer. Devices are a
// closed set of variants distinguished by Kind; kind-specific metadata
// lives in small spec structs rather than subclasses, and new kinds are
// added as new constants plus switch arms.
//
// Devices do not own their graph edges. A device records the IDs of its
// parents in member order; child sets are derived and maintained by the
// device tree, never by the entities themselves. A device is only
// meaningful inside a tree.
package devices

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/formats"
	"github.com/japokorn/blivet/pkg/size"
)

// Kind identifies a device variant.
type Kind int

// The closed set of device variants.
const (
	Disk          Kind = iota // whole physical disk
	File                      // file-backed (loop) device
	Partition                 // partition on a disk
	MDArray                   // software RAID array
	VolumeGroup               // LVM volume group
	LogicalVolume             // LVM logical volume
	ThinPool                  // LVM thin pool
	LUKS                      // encrypted layer
)

var kindNames = map[Kind]string{
	Disk:          "disk",
	File:          "file",
	Partition:     "partition",
	MDArray:       "mdarray",
	VolumeGroup:   "volumegroup",
	LogicalVolume: "logicalvolume",
	ThinPool:      "thinpool",
	LUKS:          "luks",
}

// String returns the canonical lower-case name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a canonical name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return Disk, errors.New(errors.ErrCodeInvalidDevice, "unknown device kind %q", s)
}

// MDSpec carries RAID-array specifics.
type MDSpec struct {
	Level         string // "raid0", "raid1", "raid5", "raid6", "raid10"
	MemberDevices int    // active members; 0 means len(parents)
}

// VGSpec carries volume-group specifics.
type VGSpec struct {
	ExtentSize size.Size // physical extent size; 0 means the 4 MiB default
}

// LVSpec carries logical-volume specifics.
type LVSpec struct {
	Thin bool // allocated from a thin pool rather than the VG directly
}

// LUKSSpec carries encrypted-layer specifics.
type LUKSSpec struct {
	Version int // LUKS metadata version; 0 means 2
}

// PartSpec carries partition specifics.
type PartSpec struct {
	Number int // partition number on the parent disk, 1-based
}

// Device is one node in the storage topology.
//
// Exists distinguishes devices mirrored from a live system from devices
// that are only planned. Parents holds parent device IDs in member order
// (the order is significant for RAID and VG member layout). CurrentSize
// is unknown until an explicit size probe records it.
type Device struct {
	ID      string // stable unique identifier
	Name    string // human name ("sda", "md0", "vg00-root")
	Kind    Kind
	Size    size.Size // planned/target size in bytes
	Exists  bool
	Parents []string        // parent device IDs, ordered
	Format  *formats.Format // owned payload, nil means none

	// Extra lists capability names this specific device requires beyond
	// what its kind implies, e.g. a vendor tool for a special disk.
	Extra []string

	// Kind-specific metadata; exactly the field matching Kind is set.
	MD   *MDSpec
	VG   *VGSpec
	LV   *LVSpec
	LUKS *LUKSSpec
	Part *PartSpec

	currentSize size.Size
	sizeKnown   bool
}

// newDevice fills the common fields and assigns a fresh ID.
func newDevice(kind Kind, name string, sz size.Size, parents []string) *Device {
	return &Device{
		ID:      uuid.NewString(),
		Name:    name,
		Kind:    kind,
		Size:    sz,
		Parents: parents,
	}
}

// NewDisk creates a planned whole-disk device.
func NewDisk(name string, sz size.Size) *Device {
	return newDevice(Disk, name, sz, nil)
}

// NewFile creates a planned file-backed device.
func NewFile(name string, sz size.Size) *Device {
	return newDevice(File, name, sz, nil)
}

// NewPartition creates a planned partition on the given parent.
func NewPartition(name string, sz size.Size, parentID string, number int) *Device {
	d := newDevice(Partition, name, sz, []string{parentID})
	d.Part = &PartSpec{Number: number}
	return d
}

// NewMDArray creates a planned RAID array over the given members.
// Member order is preserved.
func NewMDArray(name, level string, sz size.Size, memberIDs ...string) *Device {
	d := newDevice(MDArray, name, sz, memberIDs)
	d.MD = &MDSpec{Level: level}
	return d
}

// NewVolumeGroup creates a planned LVM volume group over the given
// physical volumes.
func NewVolumeGroup(name string, pvIDs ...string) *Device {
	d := newDevice(VolumeGroup, name, 0, pvIDs)
	d.VG = &VGSpec{}
	return d
}

// NewLogicalVolume creates a planned logical volume inside a volume
// group or thin pool.
func NewLogicalVolume(name string, sz size.Size, parentID string) *Device {
	d := newDevice(LogicalVolume, name, sz, []string{parentID})
	d.LV = &LVSpec{}
	return d
}

// NewThinPool creates a planned thin pool inside a volume group.
func NewThinPool(name string, sz size.Size, vgID string) *Device {
	return newDevice(ThinPool, name, sz, []string{vgID})
}

// NewLUKS creates a planned encrypted layer over the given parent.
func NewLUKS(name string, parentID string) *Device {
	d := newDevice(LUKS, name, 0, []string{parentID})
	d.LUKS = &LUKSSpec{}
	return d
}

// Aggregating reports whether the variant combines multiple parents
// (RAID arrays, volume groups, thin pools).
func (d *Device) Aggregating() bool {
	switch d.Kind {
	case MDArray, VolumeGroup, ThinPool:
		return true
	default:
		return false
	}
}

// Leaf reports whether the variant sits at the bottom of a stack and
// never has parents.
func (d *Device) Leaf() bool {
	return d.Kind == Disk || d.Kind == File
}

// minParents returns the smallest legal parent count for the variant.
func (d *Device) minParents() int {
	switch d.Kind {
	case Disk, File:
		return 0
	case MDArray:
		if d.MD != nil && raidMinMembers[d.MD.Level] > 0 {
			return raidMinMembers[d.MD.Level]
		}
		return 2
	default:
		return 1
	}
}

// maxParents returns the largest legal parent count, or -1 for no limit.
func (d *Device) maxParents() int {
	switch d.Kind {
	case Disk, File:
		return 0
	case Partition, LogicalVolume, LUKS:
		return 1
	default:
		return -1
	}
}

// raidMinMembers maps RAID levels to their smallest member count.
var raidMinMembers = map[string]int{
	"raid0":  2,
	"raid1":  2,
	"raid4":  3,
	"raid5":  3,
	"raid6":  4,
	"raid10": 4,
	"linear": 1,
}

// DeclaredRequirements returns the external capabilities this device
// needs, not counting parents or format: the kind's tooling plus any
// per-device Extra requirements. This is the single consolidated
// requirement query per device; transitive accumulation is the
// dependency resolver's job.
func (d *Device) DeclaredRequirements() []string {
	var reqs []string
	switch d.Kind {
	case Partition:
		reqs = []string{availability.Parted}
	case MDArray:
		reqs = []string{availability.Mdadm}
	case VolumeGroup, LogicalVolume, ThinPool:
		reqs = []string{availability.LVM}
	case LUKS:
		reqs = []string{availability.Cryptsetup, availability.DMSetup}
	}
	return append(reqs, d.Extra...)
}

// CurrentSize returns the probed on-disk size, or zero before a probe.
func (d *Device) CurrentSize() size.Size { return d.currentSize }

// SizeKnown reports whether an explicit size probe has run.
func (d *Device) SizeKnown() bool { return d.sizeKnown }

// SetCurrentSize records the result of a size probe. Resizing is only
// admissible after this has happened.
func (d *Device) SetCurrentSize(s size.Size) {
	d.currentSize = s
	d.sizeKnown = true
}

// Resizable reports whether the device can be resized right now: it
// exists, its size has been probed, and its format (if any) is resizable
// or absent. A missing capability anywhere in the format's tooling makes
// this false.
func (d *Device) Resizable(p availability.Provider) bool {
	if !d.Exists || !d.sizeKnown {
		return false
	}
	if d.Kind == Disk || d.Kind == File {
		return false // whole disks are not resized, their contents are
	}
	if d.Format != nil && d.Format.Kind != formats.None {
		return d.Format.Resizable(p)
	}
	return true
}

// Validate checks the device's static fields: name, kind, parent arity,
// and spec/kind agreement. Graph-level checks (parent existence, cycles)
// belong to the tree.
func (d *Device) Validate() error {
	if err := errors.ValidateDeviceName(d.Name); err != nil {
		return err
	}
	if _, ok := kindNames[d.Kind]; !ok {
		return errors.New(errors.ErrCodeInvalidDevice, "unknown device kind %d", int(d.Kind))
	}
	if d.ID == "" {
		return errors.New(errors.ErrCodeInvalidDevice, "device %q has no ID", d.Name)
	}

	if min := d.minParents(); len(d.Parents) < min {
		return errors.New(errors.ErrCodeInvalidDevice,
			"%s device %q needs at least %d parent(s), has %d", d.Kind, d.Name, min, len(d.Parents))
	}
	if max := d.maxParents(); max >= 0 && len(d.Parents) > max {
		return errors.New(errors.ErrCodeInvalidDevice,
			"%s device %q allows at most %d parent(s), has %d", d.Kind, d.Name, max, len(d.Parents))
	}

	seen := make(map[string]bool, len(d.Parents))
	for _, p := range d.Parents {
		if seen[p] {
			return errors.New(errors.ErrCodeInvalidDevice, "device %q lists parent %s twice", d.Name, p)
		}
		seen[p] = true
	}

	if d.Kind == MDArray {
		if d.MD == nil || d.MD.Level == "" {
			return errors.New(errors.ErrCodeInvalidDevice, "mdarray %q has no RAID level", d.Name)
		}
		if _, ok := raidMinMembers[d.MD.Level]; !ok {
			return errors.New(errors.ErrCodeInvalidDevice, "mdarray %q has unknown RAID level %q", d.Name, d.MD.Level)
		}
	}

	if d.Format != nil {
		if err := d.Format.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// String renders the device for logs.
func (d *Device) String() string {
	return fmt.Sprintf("%s %q (%s)", d.Kind, d.Name, d.Size)
}
