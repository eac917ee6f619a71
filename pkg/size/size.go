// Package size provides the byte-size type used throughout the storage
// planning core.
//
// Sizes are plain byte counts. Parsing and formatting of human-readable
// strings ("1 GiB", "512 MB") is delegated to the datasize library, so
// plan files and CLI flags accept the same spellings that storage tools
// print.
//
// A zero Size means "unknown or empty": device and format sizes start at
// zero and stay there until an explicit size probe fills them in.
package size

import (
	"fmt"

	"github.com/c2h5oh/datasize"
)

// Common units, for readable call sites.
const (
	B   Size = 1
	KiB Size = 1 << 10
	MiB Size = 1 << 20
	GiB Size = 1 << 30
	TiB Size = 1 << 40
)

// Size is a byte count. It is always non-negative; zero means unknown.
type Size uint64

// Parse converts a human-readable size string into a Size.
// Accepted forms follow datasize conventions: "512", "512 B", "4K",
// "10GB", "2 TB" (units are powers of 1024). An empty string parses to
// zero.
func Parse(s string) (Size, error) {
	if s == "" {
		return 0, nil
	}
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	return Size(v.Bytes()), nil
}

// MustParse is Parse for trusted constants; it panics on malformed input.
func MustParse(s string) Size {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the size using the largest unit that divides it
// exactly ("10GB", "512B"), so formatted sizes always parse back to the
// same byte count.
func (s Size) String() string {
	return datasize.ByteSize(s).String()
}

// Bytes returns the raw byte count.
func (s Size) Bytes() uint64 { return uint64(s) }

// RoundDown returns the largest multiple of align that is <= s.
// If align is zero, s is returned unchanged.
func (s Size) RoundDown(align Size) Size {
	if align == 0 {
		return s
	}
	return s - s%align
}

// RoundUp returns the smallest multiple of align that is >= s.
// If align is zero, s is returned unchanged.
func (s Size) RoundUp(align Size) Size {
	if align == 0 {
		return s
	}
	if rem := s % align; rem != 0 {
		return s + align - rem
	}
	return s
}

// IsAligned reports whether s is a whole multiple of align.
// Every size is considered aligned to a zero alignment.
func (s Size) IsAligned(align Size) bool {
	if align == 0 {
		return true
	}
	return s%align == 0
}

// MarshalText encodes the size in its human-readable form, so plan files
// stay legible after a round trip.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a human-readable size string.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
