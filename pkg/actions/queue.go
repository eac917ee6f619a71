package actions

import (
	"context"
	"slices"
	"time"

	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/deps"
	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/devicetree"
	"github.com/japokorn/blivet/pkg/errors"
	"github.com/japokorn/blivet/pkg/formats"
	"github.com/japokorn/blivet/pkg/observability"
	"github.com/japokorn/blivet/pkg/size"
)

// Queue is the ordered plan for one device tree. All action constructors
// live here so validation can see both the tree and the already-queued
// actions: a parent that is "pending creation" counts as present, a
// device that is "pending destruction" rejects further work.
//
// Like the tree it plans against, a queue has exactly one owner and is
// not safe for concurrent use.
type Queue struct {
	tree     *devicetree.Tree
	provider availability.Provider
	resolver *deps.Resolver

	actions []*Action
	nextSeq int

	pendingCreate     map[string]bool // device ID -> CreateDevice queued
	pendingDestroy    map[string]bool // device ID -> DestroyDevice queued
	pendingFmtCreate  map[string]bool // device ID -> CreateFormat queued
	pendingFmtDestroy map[string]bool // device ID -> DestroyFormat queued
}

// NewQueue creates an empty queue planning against the given tree and
// capability provider.
func NewQueue(tree *devicetree.Tree, provider availability.Provider) *Queue {
	return &Queue{
		tree:              tree,
		provider:          provider,
		resolver:          deps.New(tree, provider),
		pendingCreate:     make(map[string]bool),
		pendingDestroy:    make(map[string]bool),
		pendingFmtCreate:  make(map[string]bool),
		pendingFmtDestroy: make(map[string]bool),
	}
}

// Len returns the number of surviving queued actions.
func (q *Queue) Len() int { return len(q.actions) }

// Actions returns the surviving actions in execution order. The slice
// is a snapshot; the queue keeps ownership of the actions themselves.
func (q *Queue) Actions() []*Action {
	return slices.Clone(q.actions)
}

// Resolver returns the dependency resolver the queue validates with.
func (q *Queue) Resolver() *deps.Resolver { return q.resolver }

// =============================================================================
// Validating Constructors
// =============================================================================

// CreateDevice queues the creation of a planned device. The device must
// already be registered in the tree, must not exist yet, must be
// controllable, and each parent must either exist or have its own
// creation queued earlier.
func (q *Queue) CreateDevice(d *devices.Device) (*Action, error) {
	if err := q.inTree(d); err != nil {
		return nil, err
	}
	if missing := q.resolver.UnavailableDependencies(d); len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeUnavailableDependency,
			"cannot create %q: missing %v", d.Name, missing)
	}
	if d.Exists {
		return nil, errors.New(errors.ErrCodeDeviceExists,
			"device %q already exists", d.Name)
	}
	if q.pendingCreate[d.ID] {
		return nil, errors.New(errors.ErrCodeConflictingAction,
			"device %q already has a pending create", d.Name)
	}
	for _, p := range q.tree.Parents(d.ID) {
		if !p.Exists && !q.pendingCreate[p.ID] {
			return nil, errors.New(errors.ErrCodeMissingParent,
				"parent %q of %q neither exists nor has a pending create", p.Name, d.Name)
		}
		if q.pendingDestroy[p.ID] {
			return nil, errors.New(errors.ErrCodeConflictingAction,
				"parent %q of %q has a pending destroy", p.Name, d.Name)
		}
	}

	a := q.newAction(CreateDevice, d)
	q.insert(a)
	q.pendingCreate[d.ID] = true
	return a, nil
}

// DestroyDevice queues the destruction of a device. Destroying a device
// whose creation is still pending cancels the whole pending lifecycle
// instead: every queued action for the device is dropped, the device
// leaves the tree, and DestroyDevice returns (nil, nil).
func (q *Queue) DestroyDevice(d *devices.Device) (*Action, error) {
	if err := q.inTree(d); err != nil {
		return nil, err
	}
	if missing := q.resolver.UnavailableDependencies(d); len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeUnavailableDependency,
			"cannot destroy %q: missing %v", d.Name, missing)
	}
	if q.pendingDestroy[d.ID] {
		return nil, errors.New(errors.ErrCodeConflictingAction,
			"device %q already has a pending destroy", d.Name)
	}
	// Any child still in the tree depends on this device, planned or
	// real; it must have its own destroy queued (or be cancelled) first.
	for _, c := range q.tree.Children(d.ID) {
		if !q.pendingDestroy[c.ID] {
			return nil, errors.New(errors.ErrCodeHasChildren,
				"cannot destroy %q: child %q has no pending destroy", d.Name, c.Name)
		}
	}

	if q.pendingCreate[d.ID] {
		// Never-real device: the create/destroy pair annihilates and the
		// device is removed from the plan entirely.
		return nil, q.cancelDevice(d)
	}
	if !d.Exists {
		return nil, errors.New(errors.ErrCodeDeviceMissing,
			"device %q does not exist and has no pending create", d.Name)
	}

	a := q.newAction(DestroyDevice, d)
	q.insert(a)
	q.pendingDestroy[d.ID] = true
	return a, nil
}

// ResizeDevice queues a size change. The device must be resizable (which
// requires an explicit size probe first), must not be pending
// destruction, and the target must satisfy the format's alignment and
// bounds. A resize queued on top of an earlier resize of the same device
// collapses into one action carrying the latest target.
func (q *Queue) ResizeDevice(d *devices.Device, target size.Size) (*Action, error) {
	if err := q.inTree(d); err != nil {
		return nil, err
	}
	if missing := q.resolver.UnavailableDependencies(d); len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeUnavailableDependency,
			"cannot resize %q: missing %v", d.Name, missing)
	}
	if q.pendingDestroy[d.ID] {
		return nil, errors.New(errors.ErrCodeConflictingAction,
			"cannot resize %q: device has a pending destroy", d.Name)
	}
	if !d.Resizable(q.provider) {
		return nil, errors.New(errors.ErrCodeNotResizable,
			"device %q is not resizable", d.Name)
	}
	if target == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSize,
			"target size for %q cannot be zero", d.Name)
	}
	if d.Format != nil && d.Format.Kind != formats.None {
		if err := d.Format.CheckTargetSize(target); err != nil {
			return nil, err
		}
	}

	// Latest target wins: collapse onto the queued resize if present.
	for _, queued := range q.actions {
		if queued.Kind == ResizeDevice && queued.Device.ID == d.ID {
			queued.Target = target
			observability.Planner().OnActionMerged(context.Background(), d.Name)
			return queued, nil
		}
	}

	a := q.newAction(ResizeDevice, d)
	a.Target = target
	q.insert(a)
	return a, nil
}

// CreateFormat queues the creation of a format on a device. The device
// must exist or be pending creation, the format's tools must be
// available, and any existing on-disk format must have its destruction
// queued first.
func (q *Queue) CreateFormat(d *devices.Device, f *formats.Format) (*Action, error) {
	if err := q.inTree(d); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.New(errors.ErrCodeFormatMissing, "no format given for %q", d.Name)
	}
	if !f.Formattable(q.provider) {
		return nil, errors.New(errors.ErrCodeNotFormattable,
			"format %s is not formattable", f)
	}
	if missing := q.resolver.UnavailableDependencies(d); len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeUnavailableDependency,
			"cannot format %q: missing %v", d.Name, missing)
	}
	if !d.Exists && !q.pendingCreate[d.ID] {
		return nil, errors.New(errors.ErrCodeDeviceMissing,
			"device %q neither exists nor has a pending create", d.Name)
	}
	if q.pendingDestroy[d.ID] {
		return nil, errors.New(errors.ErrCodeConflictingAction,
			"cannot format %q: device has a pending destroy", d.Name)
	}
	if q.pendingFmtCreate[d.ID] {
		return nil, errors.New(errors.ErrCodeConflictingAction,
			"device %q already has a pending format create", d.Name)
	}
	if old := d.Format; old != nil && old.Kind != formats.None && old.Exists && !q.pendingFmtDestroy[d.ID] {
		return nil, errors.New(errors.ErrCodeFormatExists,
			"device %q already carries %s; queue its destroy first", d.Name, old)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	d.Format = f

	a := q.newAction(CreateFormat, d)
	a.Format = f
	q.insert(a)
	q.pendingFmtCreate[d.ID] = true
	return a, nil
}

// DestroyFormat queues the destruction of the device's format. If the
// format is itself only pending creation the pair annihilates: the
// queued CreateFormat is dropped, the planned format is detached, and
// DestroyFormat returns (nil, nil).
func (q *Queue) DestroyFormat(d *devices.Device) (*Action, error) {
	if err := q.inTree(d); err != nil {
		return nil, err
	}
	f := d.Format
	if f == nil || f.Kind == formats.None {
		return nil, errors.New(errors.ErrCodeFormatMissing,
			"device %q carries no format", d.Name)
	}
	if !f.Destroyable(q.provider) {
		return nil, errors.New(errors.ErrCodeNotDestroyable,
			"format %s is not destroyable", f)
	}
	if missing := q.resolver.UnavailableDependencies(d); len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeUnavailableDependency,
			"cannot destroy format on %q: missing %v", d.Name, missing)
	}
	if q.pendingFmtDestroy[d.ID] {
		return nil, errors.New(errors.ErrCodeConflictingAction,
			"device %q already has a pending format destroy", d.Name)
	}

	if q.pendingFmtCreate[d.ID] {
		q.dropActions(func(a *Action) bool {
			return a.Kind == CreateFormat && a.Device.ID == d.ID
		})
		delete(q.pendingFmtCreate, d.ID)
		d.Format = nil
		observability.Planner().OnActionCancelled(context.Background(), d.Name)
		return nil, nil
	}
	if !f.Exists {
		return nil, errors.New(errors.ErrCodeFormatMissing,
			"format %s on %q does not exist", f, d.Name)
	}

	a := q.newAction(DestroyFormat, d)
	a.Format = f
	q.insert(a)
	q.pendingFmtDestroy[d.ID] = true
	return a, nil
}

// =============================================================================
// Ordering
// =============================================================================

// insert places the action at the latest position consistent with the
// ordering constraints: creates stay ahead of everything that consumes
// their entity, destroys stay behind everything that still needs it.
func (q *Queue) insert(a *Action) {
	pos := len(q.actions)
	for pos > 0 && q.mustPrecede(a, q.actions[pos-1]) {
		pos--
	}
	q.actions = slices.Insert(q.actions, pos, a)
	observability.Planner().OnActionQueued(context.Background(), a.Kind.String(), a.Device.Name, len(q.actions))
}

// mustPrecede reports whether action a is required to run before b.
func (q *Queue) mustPrecede(a, b *Action) bool {
	// A create precedes anything that uses the created entity.
	if a.Kind == CreateDevice && q.references(b, a.Device.ID) {
		return true
	}
	if a.Kind == CreateFormat && b.Device.ID == a.Device.ID {
		// The create stays ahead of work on that same format, but never
		// ahead of the destroy of a format it replaces.
		if b.Kind == ResizeDevice || (b.Kind == DestroyFormat && b.Format == a.Format) {
			return true
		}
	}
	// A destroy follows everything that still needs the destroyed entity,
	// so anything referencing it precedes the destroy.
	if b.Kind == DestroyDevice && a != b && q.references(a, b.Device.ID) {
		return true
	}
	if b.Kind == DestroyFormat && a.Device.ID == b.Device.ID {
		if a.Kind == ResizeDevice || (a.Kind == CreateFormat && a.Format == b.Format) {
			return true
		}
	}
	return false
}

// references reports whether the action's target is the given device or
// is stacked (transitively) on top of it.
func (q *Queue) references(a *Action, deviceID string) bool {
	if a.Device.ID == deviceID {
		return true
	}
	for anc := range q.tree.Ancestors(a.Device.ID) {
		if anc.ID == deviceID {
			return true
		}
	}
	return false
}

// =============================================================================
// Cancellation
// =============================================================================

// cancelDevice annihilates the pending lifecycle of a never-real device:
// all of its queued actions are dropped and the device leaves the tree.
// The tree removal runs first so a failure leaves the queue untouched.
func (q *Queue) cancelDevice(d *devices.Device) error {
	if err := q.tree.Remove(d.ID); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err,
			"cancelled device %q could not be removed", d.Name)
	}

	q.dropActions(func(a *Action) bool {
		return a.Device.ID == d.ID
	})
	delete(q.pendingCreate, d.ID)
	delete(q.pendingFmtCreate, d.ID)
	delete(q.pendingFmtDestroy, d.ID)

	observability.Planner().OnActionCancelled(context.Background(), d.Name)
	return nil
}

// dropActions removes every queued action matching the predicate.
func (q *Queue) dropActions(match func(*Action) bool) {
	q.actions = slices.DeleteFunc(q.actions, match)
}

// =============================================================================
// Processing
// =============================================================================

// Executor realizes one action against the real system. The core never
// touches hardware itself; it hands validated actions to an executor one
// at a time, in order.
type Executor interface {
	Execute(ctx context.Context, a *Action) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, a *Action) error

// Execute calls the wrapped function.
func (f ExecutorFunc) Execute(ctx context.Context, a *Action) error {
	return f(ctx, a)
}

// NoopExecutor accepts every action without doing anything. Useful for
// dry runs: the tree still advances through the planned states.
type NoopExecutor struct{}

// Execute does nothing and reports success.
func (NoopExecutor) Execute(context.Context, *Action) error { return nil }

// Process replays the surviving actions in order through the executor.
// After each successful action the tree is advanced to match: created
// devices and formats become existing, destroyed devices leave the
// tree, resizes update the recorded sizes.
//
// Processing stops at the first failure; the failed action and
// everything after it stay queued so the caller can inspect, fix, and
// resume.
func (q *Queue) Process(ctx context.Context, exec Executor) error {
	observability.Planner().OnProcessStart(ctx, len(q.actions))

	for len(q.actions) > 0 {
		a := q.actions[0]

		start := time.Now()
		err := exec.Execute(ctx, a)
		observability.Planner().OnActionExecuted(ctx, a.Kind.String(), a.Device.Name, time.Since(start), err)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err,
				"executing %s for %q", a.Kind, a.Device.Name)
		}

		if err := q.applyEffect(a); err != nil {
			return err
		}
		q.actions = q.actions[1:]
	}
	return nil
}

// applyEffect advances the tree to the state the executed action
// produced on the real system.
func (q *Queue) applyEffect(a *Action) error {
	d := a.Device
	switch a.Kind {
	case CreateDevice:
		d.Exists = true
		d.SetCurrentSize(d.Size)
		delete(q.pendingCreate, d.ID)
	case DestroyDevice:
		delete(q.pendingDestroy, d.ID)
		if err := q.tree.Remove(d.ID); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err,
				"destroyed device %q could not be removed", d.Name)
		}
	case ResizeDevice:
		d.Size = a.Target
		d.SetCurrentSize(a.Target)
		if d.Format != nil && d.Format.Exists {
			d.Format.SetCurrentSize(a.Target)
		}
	case CreateFormat:
		a.Format.Exists = true
		delete(q.pendingFmtCreate, d.ID)
	case DestroyFormat:
		// A replacement format may already be attached; only detach the
		// format this action destroyed.
		if d.Format == a.Format {
			d.Format = nil
		}
		delete(q.pendingFmtDestroy, d.ID)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (q *Queue) newAction(kind Kind, d *devices.Device) *Action {
	q.nextSeq++
	return &Action{Kind: kind, Device: d, seq: q.nextSeq}
}

func (q *Queue) inTree(d *devices.Device) error {
	if d == nil {
		return errors.New(errors.ErrCodeInvalidDevice, "nil device")
	}
	if _, ok := q.tree.Get(d.ID); !ok {
		return errors.New(errors.ErrCodeUnknownDevice,
			"device %q is not registered in the tree", d.Name)
	}
	return nil
}
