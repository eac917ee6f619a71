// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register
// hooks at startup to receive events about tree mutations, action
// scheduling, and capability probes.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the planning core dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, plain logs)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPlannerHooks(&myPlannerHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Planner().OnActionQueued(ctx, kind, device, len(queue))
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Planner Hooks
// =============================================================================

// PlannerHooks receives events from the action queue.
type PlannerHooks interface {
	// OnActionQueued records an action accepted into the queue.
	OnActionQueued(ctx context.Context, kind, device string, queueLen int)

	// OnActionCancelled records a create/destroy pair annihilating.
	OnActionCancelled(ctx context.Context, device string)

	// OnActionMerged records a resize superseding a queued resize.
	OnActionMerged(ctx context.Context, device string)

	// OnProcessStart records the hand-off of a queue to an executor.
	OnProcessStart(ctx context.Context, queueLen int)

	// OnActionExecuted records the outcome of one executed action.
	OnActionExecuted(ctx context.Context, kind, device string, duration time.Duration, err error)
}

// =============================================================================
// Tree Hooks
// =============================================================================

// TreeHooks receives events from device tree mutations.
type TreeHooks interface {
	// OnDeviceAdded records a device entering the tree.
	OnDeviceAdded(ctx context.Context, name, kind string)

	// OnDeviceRemoved records a device leaving the tree.
	OnDeviceRemoved(ctx context.Context, name, kind string)
}

// =============================================================================
// Probe Hooks
// =============================================================================

// ProbeHooks receives events from capability availability probes.
type ProbeHooks interface {
	// OnProbe records one availability probe and its answer.
	OnProbe(ctx context.Context, capability string, available bool, duration time.Duration)

	// OnCacheReset records an explicit availability cache reset.
	OnCacheReset(ctx context.Context)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPlannerHooks is a no-op implementation of PlannerHooks.
type NoopPlannerHooks struct{}

func (NoopPlannerHooks) OnActionQueued(context.Context, string, string, int) {}
func (NoopPlannerHooks) OnActionCancelled(context.Context, string)           {}
func (NoopPlannerHooks) OnActionMerged(context.Context, string)              {}
func (NoopPlannerHooks) OnProcessStart(context.Context, int)                 {}
func (NoopPlannerHooks) OnActionExecuted(context.Context, string, string, time.Duration, error) {
}

// NoopTreeHooks is a no-op implementation of TreeHooks.
type NoopTreeHooks struct{}

func (NoopTreeHooks) OnDeviceAdded(context.Context, string, string)   {}
func (NoopTreeHooks) OnDeviceRemoved(context.Context, string, string) {}

// NoopProbeHooks is a no-op implementation of ProbeHooks.
type NoopProbeHooks struct{}

func (NoopProbeHooks) OnProbe(context.Context, string, bool, time.Duration) {}
func (NoopProbeHooks) OnCacheReset(context.Context)                         {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	plannerHooks PlannerHooks = NoopPlannerHooks{}
	treeHooks    TreeHooks    = NoopTreeHooks{}
	probeHooks   ProbeHooks   = NoopProbeHooks{}
	hooksMu      sync.RWMutex
)

// SetPlannerHooks registers custom planner hooks.
// This should be called once at application startup before any planning.
func SetPlannerHooks(h PlannerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		plannerHooks = h
	}
}

// SetTreeHooks registers custom tree hooks.
// This should be called once at application startup before any planning.
func SetTreeHooks(h TreeHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		treeHooks = h
	}
}

// SetProbeHooks registers custom probe hooks.
// This should be called once at application startup before any probing.
func SetProbeHooks(h ProbeHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		probeHooks = h
	}
}

// Planner returns the registered planner hooks.
func Planner() PlannerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return plannerHooks
}

// Tree returns the registered tree hooks.
func Tree() TreeHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return treeHooks
}

// Probe returns the registered probe hooks.
func Probe() ProbeHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return probeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	plannerHooks = NoopPlannerHooks{}
	treeHooks = NoopTreeHooks{}
	probeHooks = NoopProbeHooks{}
}
