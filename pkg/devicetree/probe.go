package devicetree

import (
	"context"

	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/size"
)

// SizeProber reports the on-disk size of an existing device. The second
// return value is false when the prober has no answer for the device, in
// which case the device's recorded size stays untouched.
type SizeProber interface {
	ProbeSize(ctx context.Context, d *devices.Device) (size.Size, bool, error)
}

// SizeProberFunc adapts a function to the SizeProber interface.
type SizeProberFunc func(ctx context.Context, d *devices.Device) (size.Size, bool, error)

// ProbeSize calls the wrapped function.
func (f SizeProberFunc) ProbeSize(ctx context.Context, d *devices.Device) (size.Size, bool, error) {
	return f(ctx, d)
}

// StaticSizes is a fixed name-to-size table, mostly useful in tests and
// for replaying recorded system state. Names absent from the table are
// reported as unknown.
type StaticSizes map[string]size.Size

// ProbeSize looks the device up by name.
func (s StaticSizes) ProbeSize(_ context.Context, d *devices.Device) (size.Size, bool, error) {
	sz, ok := s[d.Name]
	return sz, ok, nil
}

// RefreshSizes runs the prober over every existing device and its format
// and records the results. Planned devices are skipped: they have no
// on-disk size to probe. The most recent successful probe wins; a probe
// error aborts the refresh.
func (t *Tree) RefreshSizes(ctx context.Context, p SizeProber) error {
	for _, d := range t.Devices() {
		if !d.Exists {
			continue
		}
		sz, ok, err := p.ProbeSize(ctx, d)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		d.SetCurrentSize(sz)
		if d.Format != nil && d.Format.Exists {
			d.Format.SetCurrentSize(sz)
		}
	}
	return nil
}
