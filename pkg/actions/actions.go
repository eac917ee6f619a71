// Package actions turns requested topology mutations into an ordered,
// validated plan.
//
// Every mutation of the device tree flows through an Action: a small
// immutable record saying "create this device", "destroy that format",
// "resize this volume to 20 GiB". Actions are only ever built through
// the queue's validating constructors; a request that fails its
// preconditions never becomes an Action and never enters the queue.
//
// Validation distinguishes two error families. Dependency errors mean a
// required external tool is missing; they win over every other check,
// no matter how correct the topology is. Structural errors mean the
// plan itself is inconsistent (unknown device, conflicting pending
// action, destroy with live children) and the caller must fix the plan.
package actions

import (
	"fmt"

	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/formats"
	"github.com/japokorn/blivet/pkg/size"
)

// Kind identifies what an action does to its target.
type Kind int

// The closed set of action variants.
const (
	CreateDevice Kind = iota
	DestroyDevice
	ResizeDevice
	CreateFormat
	DestroyFormat
)

var kindNames = map[Kind]string{
	CreateDevice:  "create-device",
	DestroyDevice: "destroy-device",
	ResizeDevice:  "resize-device",
	CreateFormat:  "create-format",
	DestroyFormat: "destroy-format",
}

// String returns the canonical name of the action kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Action is one validated, queued mutation. Its verdict is computed at
// construction and never revisited; by the time an Action exists it has
// already passed every precondition.
type Action struct {
	Kind   Kind
	Device *devices.Device
	Format *formats.Format // set for format actions
	Target size.Size       // set for resize actions

	seq int // construction order, stable tiebreak
}

// Seq returns the action's construction sequence number. It is unique
// within one queue and monotonically increasing.
func (a *Action) Seq() int { return a.seq }

// creates reports whether the action brings the given device into
// existence.
func (a *Action) creates(deviceID string) bool {
	return a.Kind == CreateDevice && a.Device.ID == deviceID
}

// destroys reports whether the action removes the given device.
func (a *Action) destroys(deviceID string) bool {
	return a.Kind == DestroyDevice && a.Device.ID == deviceID
}

// String renders the action for logs.
func (a *Action) String() string {
	switch a.Kind {
	case ResizeDevice:
		return fmt.Sprintf("[%d] %s %q -> %s", a.seq, a.Kind, a.Device.Name, a.Target)
	case CreateFormat, DestroyFormat:
		return fmt.Sprintf("[%d] %s %s on %q", a.seq, a.Kind, a.Format, a.Device.Name)
	default:
		return fmt.Sprintf("[%d] %s %q", a.seq, a.Kind, a.Device.Name)
	}
}
