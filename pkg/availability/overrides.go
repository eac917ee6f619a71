package availability

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Overrides pins availability answers regardless of what a prober would
// say. Planning tools use it for offline what-if runs ("pretend mdadm is
// missing") and tests use it to build deterministic providers.
type Overrides struct {
	// Capabilities maps capability names to forced answers.
	Capabilities map[string]bool `toml:"capabilities"`
}

// LoadOverrides reads a TOML overrides file:
//
//	[capabilities]
//	mdadm = false
//	"mkfs.ext4" = true
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides %s: %w", path, err)
	}
	var o Overrides
	if err := toml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	return &o, nil
}

// Wrap returns a prober that consults the overrides first and falls back
// to next for capabilities it does not mention. A nil receiver returns
// next unchanged.
func (o *Overrides) Wrap(next Prober) Prober {
	if o == nil || len(o.Capabilities) == 0 {
		return next
	}
	return ProberFunc(func(name string) bool {
		if v, ok := o.Capabilities[name]; ok {
			return v
		}
		return next.Probe(name)
	})
}

// Provider returns a cache-backed provider over the overrides alone;
// capabilities not mentioned fall back to the given default answer.
func (o *Overrides) Provider(fallback bool) Provider {
	return NewCachedProvider(o.Wrap(ProberFunc(func(string) bool { return fallback })))
}
