// Package cache provides small key-value caches for probe results.
//
// The storage planner never probes the same external tool twice in one
// session; availability answers are cached behind the
// [github.com/japokorn/blivet/pkg/availability.CachedProvider]. The
// backends here cover the useful deployment shapes:
//
//   - MemoryCache: per-process, the default for library use
//   - FileCache: persists across CLI invocations with a TTL
//   - NullCache: disables caching entirely (every query re-probes)
//
// Keys are opaque strings; values are opaque bytes. All backends are safe
// for concurrent use.
package cache

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for caching operations.
var (
	// ErrNotFound is returned when a requested item does not exist.
	ErrNotFound = errors.New("not found")
)

// Cache is the interface implemented by all cache backends.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present (a miss is not an error).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
