package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidName, "test message: %s", "value")

	if err.Code != ErrCodeInvalidName {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidName)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_NAME: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInvalidSize, cause, "bad target size")

	if err.Code != ErrCodeInvalidSize {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidSize)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeMissingParent, "test"),
			code:     ErrCodeMissingParent,
			expected: true,
		},
		{
			name:     "different code",
			err:      New(ErrCodeMissingParent, "test"),
			code:     ErrCodeCycle,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			code:     ErrCodeMissingParent,
			expected: false,
		},
		{
			name:     "wrapped structured error",
			err:      Wrap(ErrCodeInvalidSize, New(ErrCodeInvalidName, "inner"), "outer"),
			code:     ErrCodeInvalidSize,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFamilies(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		dependency bool
		structural bool
	}{
		{
			name:       "unavailable dependency",
			err:        New(ErrCodeUnavailableDependency, "mdadm missing"),
			dependency: true,
		},
		{
			name:       "not resizable",
			err:        New(ErrCodeNotResizable, "no size probe"),
			dependency: true,
		},
		{
			name:       "missing parent",
			err:        New(ErrCodeMissingParent, "no such parent"),
			structural: true,
		},
		{
			name:       "conflicting action",
			err:        New(ErrCodeConflictingAction, "destroy pending"),
			structural: true,
		},
		{
			name: "plain error is neither",
			err:  errors.New("boom"),
		},
		{
			name: "internal is neither",
			err:  New(ErrCodeInternal, "bug"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDependency(tt.err); got != tt.dependency {
				t.Errorf("IsDependency() = %v, want %v", got, tt.dependency)
			}
			if got := IsStructural(tt.err); got != tt.structural {
				t.Errorf("IsStructural() = %v, want %v", got, tt.structural)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeCycle, "loop")); got != ErrCodeCycle {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeCycle)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeCycle, "loop detected")); got != "loop detected" {
		t.Errorf("UserMessage() = %q, want %q", got, "loop detected")
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage(plain) = %q, want %q", got, "plain")
	}
}
