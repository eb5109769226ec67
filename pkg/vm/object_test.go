package vm

import (
	"testing"
	"unsafe"
)

func TestIsAssignableFromWalksSuperchain(t *testing.T) {
	object := &Class{Name: "Object"}
	base := &Class{Name: "Base", Super: object}
	derived := &Class{Name: "Derived", Super: base}

	if !object.IsAssignableFrom(derived) {
		t.Error("Object.IsAssignableFrom(Derived) = false, want true")
	}
	if derived.IsAssignableFrom(base) {
		t.Error("Derived.IsAssignableFrom(Base) = true, want false (base is not a subclass of derived)")
	}
	if !derived.IsAssignableFrom(derived) {
		t.Error("Derived.IsAssignableFrom(Derived) = false, want true (a class is assignable from itself)")
	}
}

func TestIsAssignableFromInterfaces(t *testing.T) {
	comparable := &Class{Name: "Comparable"}
	base := &Class{Name: "Base", Interfaces: []*Class{comparable}}
	derived := &Class{Name: "Derived", Super: base}

	if !comparable.IsAssignableFrom(derived) {
		t.Error("Comparable.IsAssignableFrom(Derived) = false, want true (inherited interface)")
	}

	unrelated := &Class{Name: "Unrelated"}
	if unrelated.IsAssignableFrom(derived) {
		t.Error("Unrelated.IsAssignableFrom(Derived) = true, want false")
	}
}

func TestArrayLengthAndElementOffset(t *testing.T) {
	buf := make([]uintptr, 8)
	buf[ArrayLengthOffset] = 3
	ptr := uintptr(unsafe.Pointer(&buf[0]))

	if got := ArrayLength(ptr, 8); got != 3 {
		t.Errorf("ArrayLength() = %d, want 3", got)
	}

	if got, want := ElementOffset(2, 4, 8), 24; got != want {
		t.Errorf("ElementOffset(2, 4, Word64) = %d, want %d", got, want)
	}
}
