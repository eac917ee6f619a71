package errors

import (
	"strings"
	"unicode"
)

// ValidateDeviceName validates a device name for safety and correctness.
// Device names end up in /dev paths and tool command lines, so the rules
// are intentionally conservative:
//
//   - No empty names
//   - No control characters or null bytes
//   - No path separators or traversal sequences
//   - No surrounding whitespace
//   - Maximum length of 127 bytes (udev limit)
//
// Kind-specific validation (e.g. LVM name charset) is done by the device
// constructors, not here.
func ValidateDeviceName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "device name cannot be empty")
	}

	if len(name) > 127 {
		return New(ErrCodeInvalidName, "device name too long (max 127 bytes)")
	}

	if strings.TrimSpace(name) != name {
		return New(ErrCodeInvalidName, "device name has surrounding whitespace")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "device name contains control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\x00", // Null byte
		"\\",   // Backslash
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidName, "device name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateLabel validates a filesystem label. Labels are passed to mkfs
// tools verbatim; most filesystems cap them well below 64 bytes, so the
// common denominator is enforced here and length limits beyond that are
// left to the tools.
func ValidateLabel(label string) error {
	if len(label) > 64 {
		return New(ErrCodeInvalidName, "label too long (max 64 bytes)")
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "label contains control characters")
		}
	}
	if strings.ContainsAny(label, "/\x00") {
		return New(ErrCodeInvalidName, "label contains invalid characters")
	}
	return nil
}
