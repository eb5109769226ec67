package vmerr

import (
	"errors"
	"testing"
)

func TestResolutionfFormatsMessage(t *testing.T) {
	err := Resolutionf("no such method %s.%s", "Demo", "add")
	want := "no such method Demo.add"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Unwrap() != nil {
		t.Errorf("Unwrap() = %v, want nil (Resolutionf never sets Cause)", err.Unwrap())
	}
}

func TestOutOfMemoryErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("mmap failed")
	err := &OutOfMemoryError{Requesting: "compiled code", Cause: cause}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	want := "out of memory allocating compiled code: mmap failed"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOutOfMemoryErrorWithoutCause(t *testing.T) {
	err := &OutOfMemoryError{Requesting: "pool entry"}
	want := "out of memory allocating pool entry"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestBoundsErrorMessage(t *testing.T) {
	err := &BoundsError{Index: 5, Length: 3}
	want := "index 5 out of bounds for length 3"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAssertfPanicsWithAssertionError(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Assertf did not panic")
		}
		ae, ok := r.(*AssertionError)
		if !ok {
			t.Fatalf("recovered %T, want *AssertionError", r)
		}
		want := "assertion failed: unknown opcode 255"
		if got := ae.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	}()
	Assertf("unknown opcode %d", 255)
}

func TestInInitializerErrorUnwraps(t *testing.T) {
	cause := &NullError{}
	err := &InInitializerError{Class: "Demo", Cause: cause}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}
