package errors

import (
	"strings"
	"testing"
)

func TestValidateDeviceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "sda", false},
		{"raid array", "md0", false},
		{"lvm style", "vg00-root", false},
		{"with dots", "backup.2024", false},
		{"empty", "", true},
		{"path separator", "dev/sda", true},
		{"traversal", "..", true},
		{"backslash", "a\\b", true},
		{"null byte", "a\x00b", true},
		{"control char", "a\tb", true},
		{"leading space", " sda", true},
		{"trailing space", "sda ", true},
		{"too long", strings.Repeat("x", 128), true},
		{"max length ok", strings.Repeat("x", 127), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDeviceName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidName) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidName)
			}
		})
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty is fine", "", false},
		{"simple", "rootfs", false},
		{"spaces inside", "my data", false},
		{"slash", "a/b", true},
		{"control", "a\nb", true},
		{"too long", strings.Repeat("l", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
