// Package availability answers the question "is external capability X
// currently usable?".
//
// Every mutating storage operation ultimately shells out to an external
// tool (mdadm, lvm, cryptsetup, ...). The planning core never calls those
// tools itself, but it refuses to admit an action whose tool is missing.
// This package names the capabilities, defines the Prober collaborator
// that checks for them, and caches the answers.
//
// # Caching
//
// Probing is comparatively expensive and its answer rarely changes inside
// one process, so results are cached. The cache has an explicit
// lifecycle: it is populated lazily on first query and invalidated only
// by ResetCache - for example after the operator installs a missing tool.
//
// # Injection
//
// Production code uses the process-wide provider returned by [Default].
// Tests substitute a fake with [SetDefault] or, better, pass their own
// Provider into the dependency resolver; nothing in this package needs
// to be monkey-patched.
package availability

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/japokorn/blivet/pkg/cache"
	"github.com/japokorn/blivet/pkg/observability"
)

// Named external capabilities. The names double as cache keys and, for
// tool-backed capabilities, as the executable looked up on PATH.
const (
	Mdadm      = "mdadm"      // software RAID management
	LVM        = "lvm"        // volume-manager management
	DMSetup    = "dmsetup"    // device-mapper management
	Cryptsetup = "cryptsetup" // LUKS encryption management
	Parted     = "parted"     // partition table editing
	Mkswap     = "mkswap"     // swap space maker
	MkfsExt4   = "mkfs.ext4"  // ext4 maker
	MkfsXFS    = "mkfs.xfs"   // xfs maker
	MkfsBtrfs  = "mkfs.btrfs" // btrfs maker
	Resize2fs  = "resize2fs"  // ext4 resizer
)

// Provider answers availability queries. Implementations must be safe
// for concurrent readers; ResetCache may not be called concurrently with
// queries.
type Provider interface {
	// IsAvailable reports whether the named capability is usable.
	IsAvailable(name string) bool

	// ResetCache discards all cached answers, forcing a full re-probe on
	// the next query.
	ResetCache()
}

// Prober performs the actual availability check for one capability.
// It is the external collaborator boundary: implementations may hit the
// filesystem or PATH, the cached provider never does.
type Prober interface {
	Probe(name string) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(name string) bool

// Probe calls f.
func (f ProberFunc) Probe(name string) bool { return f(name) }

// PathProber reports a capability available when an executable of the
// same name is on PATH. This is the production prober for CLI use.
type PathProber struct{}

// Probe looks the name up on PATH.
func (PathProber) Probe(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Available is a Prober that reports every capability usable.
// Intended for tests.
var Available = ProberFunc(func(string) bool { return true })

// Unavailable is a Prober that reports every capability missing.
// Intended for tests.
var Unavailable = ProberFunc(func(string) bool { return false })

// CachedProvider wraps a Prober with a cache. Answers are probed lazily
// on first query and reused until ResetCache.
type CachedProvider struct {
	prober Prober
	cache  cache.Cache
	ttl    time.Duration
	mu     sync.Mutex
}

// NewCachedProvider creates a provider over the given prober, backed by
// an in-memory cache that lives as long as the process.
func NewCachedProvider(p Prober) *CachedProvider {
	return &CachedProvider{prober: p, cache: cache.NewMemoryCache()}
}

// NewCachedProviderWithCache creates a provider over the given prober and
// cache backend. A FileCache with a ttl lets CLI invocations share probe
// results; a NullCache disables caching entirely.
func NewCachedProviderWithCache(p Prober, c cache.Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{prober: p, cache: c, ttl: ttl}
}

// IsAvailable reports whether the named capability is usable, probing at
// most once per name between cache resets.
func (cp *CachedProvider) IsAvailable(name string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	ctx := context.Background()
	if data, hit, err := cp.cache.Get(ctx, name); err == nil && hit {
		return string(data) == "1"
	}

	start := time.Now()
	ok := cp.prober.Probe(name)
	observability.Probe().OnProbe(ctx, name, ok, time.Since(start))

	val := []byte("0")
	if ok {
		val = []byte("1")
	}
	_ = cp.cache.Set(ctx, name, val, cp.ttl)
	return ok
}

// ResetCache discards every cached answer. The next query per capability
// re-probes.
func (cp *CachedProvider) ResetCache() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	_ = cp.cache.Clear(context.Background())
	observability.Probe().OnCacheReset(context.Background())
}

var (
	defaultMu       sync.RWMutex
	defaultProvider Provider = NewCachedProvider(PathProber{})
)

// Default returns the process-wide provider. It probes PATH and caches
// for the life of the process unless replaced with SetDefault.
func Default() Provider {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultProvider
}

// SetDefault replaces the process-wide provider. Call once at startup,
// before any planning session is created.
func SetDefault(p Provider) {
	if p == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultProvider = p
}
