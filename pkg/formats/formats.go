// Package formats models the payload a block device carries: a
// filesystem, swap space, an encryption header, or membership metadata
// for RAID or LVM.
//
// Formats are a closed set of variants. Adding a new format means adding
// a Kind constant and extending the switch arms here; there is no open
// subclassing. Every capability flag a format exposes (supported,
// formattable, resizable, destroyable) is gated on the availability of
// the external tools that operate on it - a missing mkfs always wins
// over an otherwise valid plan.
package formats

import (
	"fmt"

	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/size"
)

// Kind identifies a format variant.
type Kind int

// The closed set of format variants.
const (
	None     Kind = iota // no format (raw device)
	Ext4                 // ext4 filesystem
	XFS                  // xfs filesystem
	Btrfs                // btrfs filesystem
	Swap                 // swap space
	MDMember             // software RAID member metadata
	LVMPV                // LVM physical volume metadata
	LUKS                 // LUKS encryption header
)

var kindNames = map[Kind]string{
	None:     "none",
	Ext4:     "ext4",
	XFS:      "xfs",
	Btrfs:    "btrfs",
	Swap:     "swap",
	MDMember: "mdmember",
	LVMPV:    "lvmpv",
	LUKS:     "luks",
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
	return None, errors.New(errors.ErrCodeUnsupportedFormat, "unknown format kind %q", s)
}

// Format is the payload attached to at most one device.
//
// The size fields are undefined until an explicit size probe runs
// against the real entity: CurrentSize returns zero and Resizable is
// false until SetCurrentSize has been called.
type Format struct {
	Kind   Kind
	Label  string // filesystem label, if the kind supports one
	UUID   string // on-disk UUID, empty until created or probed
	Exists bool   // realized on a real system vs. only planned

	currentSize size.Size
	targetSize  size.Size
	sizeKnown   bool
}

// New creates a planned (non-existing) format of the given kind.
func New(kind Kind) *Format {
	return &Format{Kind: kind}
}

// DeclaredRequirements returns the external capabilities this format
// needs, consolidated in one place per variant. The resolver combines
// these with the owning device's requirements; callers should not query
// availability through any other path.
func (f *Format) DeclaredRequirements() []string {
	if f == nil {
		return nil
	}
	switch f.Kind {
	case Ext4:
		return []string{availability.MkfsExt4, availability.Resize2fs}
	case XFS:
		return []string{availability.MkfsXFS}
	case Btrfs:
		return []string{availability.MkfsBtrfs}
	case Swap:
		return []string{availability.Mkswap}
	case MDMember:
		return []string{availability.Mdadm}
	case LVMPV:
		return []string{availability.LVM}
	case LUKS:
		return []string{availability.Cryptsetup, availability.DMSetup}
	default:
		return nil
	}
}

// Supported reports whether every tool this format needs is available.
// A None format is trivially supported.
func (f *Format) Supported(p availability.Provider) bool {
	for _, req := range f.DeclaredRequirements() {
		if !p.IsAvailable(req) {
			return false
		}
	}
	return true
}

// Formattable reports whether the format can be created: the kind is
// real and its tools are available. It flips in lockstep with Supported.
func (f *Format) Formattable(p availability.Provider) bool {
	return f.Kind != None && f.Supported(p)
}

// Destroyable reports whether the format can be destroyed: the kind is
// real and its tools are available. It flips in lockstep with Supported.
func (f *Format) Destroyable(p availability.Provider) bool {
	return f.Kind != None && f.Supported(p)
}

// Resizable reports whether the format can be resized right now. This
// requires the kind to support resizing at all, the format to exist on
// disk, a prior size probe, and the tools to be available.
func (f *Format) Resizable(p availability.Provider) bool {
	return f.kindResizable() && f.Exists && f.sizeKnown && f.Supported(p)
}

// kindResizable reports whether the variant supports in-place resizing.
// XFS only grows and swap/member formats are recreated rather than
// resized, so they are excluded.
func (f *Format) kindResizable() bool {
	switch f.Kind {
	case Ext4, Btrfs, LUKS:
		return true
	default:
		return false
	}
}

// CurrentSize returns the probed on-disk size, or zero before a probe.
func (f *Format) CurrentSize() size.Size { return f.currentSize }

// TargetSize returns the requested size, or zero if none was set.
func (f *Format) TargetSize() size.Size { return f.targetSize }

// SizeKnown reports whether an explicit size probe has run.
func (f *Format) SizeKnown() bool { return f.sizeKnown }

// SetCurrentSize records the result of a size probe. Only after this
// call can the format be resized.
func (f *Format) SetCurrentSize(s size.Size) {
	f.currentSize = s
	f.sizeKnown = true
}

// SetTargetSize validates and records a resize target: it must be
// aligned to the format's granularity and inside the kind's bounds.
func (f *Format) SetTargetSize(target size.Size) error {
	if err := f.CheckTargetSize(target); err != nil {
		return err
	}
	f.targetSize = target
	return nil
}

// CheckTargetSize validates a prospective resize target without
// recording it.
func (f *Format) CheckTargetSize(target size.Size) error {
	if target == 0 {
		return errors.New(errors.ErrCodeInvalidSize, "target size for %s format cannot be zero", f.Kind)
	}
	if align := f.Alignment(); !target.IsAligned(align) {
		return errors.New(errors.ErrCodeInvalidSize,
			"target size %s for %s format is not aligned to %s", target, f.Kind, align)
	}
	if min := f.MinSize(); min != 0 && target < min {
		return errors.New(errors.ErrCodeInvalidSize,
			"target size %s below %s minimum %s", target, f.Kind, min)
	}
	if max := f.MaxSize(); max != 0 && target > max {
		return errors.New(errors.ErrCodeInvalidSize,
			"target size %s above %s maximum %s", target, f.Kind, max)
	}
	return nil
}

// Alignment returns the block-alignment granularity resize targets must
// honor. Zero means no constraint.
func (f *Format) Alignment() size.Size {
	switch f.Kind {
	case Ext4, XFS, Btrfs, Swap:
		return 4 * size.KiB
	case LVMPV:
		return 4 * size.MiB // default extent size
	case LUKS:
		return 1 * size.MiB
	default:
		return 0
	}
}

// MinSize returns the smallest size the format kind can live in.
// Zero means no constraint.
func (f *Format) MinSize() size.Size {
	switch f.Kind {
	case Ext4:
		return 8 * size.MiB
	case XFS:
		return 16 * size.MiB
	case Btrfs:
		return 256 * size.MiB
	case Swap:
		return 40 * size.KiB
	case LVMPV:
		return 8 * size.MiB
	case LUKS:
		return 2 * size.MiB
	default:
		return 0
	}
}

// MaxSize returns the largest size the format kind supports.
// Zero means effectively unbounded.
func (f *Format) MaxSize() size.Size {
	switch f.Kind {
	case Ext4:
		return 16 * size.TiB // 4 KiB block limit
	default:
		return 0
	}
}

// Validate checks the format's static fields.
func (f *Format) Validate() error {
	if _, ok := kindNames[f.Kind]; !ok {
		return errors.New(errors.ErrCodeUnsupportedFormat, "unknown format kind %d", int(f.Kind))
	}
	if f.Label != "" {
		if err := errors.ValidateLabel(f.Label); err != nil {
			return err
		}
	}
	return nil
}

// String renders the format for logs and DOT labels.
func (f *Format) String() string {
	if f == nil || f.Kind == None {
		return "none"
	}
	if f.Label != "" {
		return fmt.Sprintf("%s(%s)", f.Kind, f.Label)
	}
	return f.Kind.String()
}
