package vm

import "jitvm/pkg/abi"

// Array layout, addressed relative to the array's own pointer (an
// object handle): word 0 is reserved for the object header — a pool
// handle to the object's *Class, the same handle any other class
// reference crosses the compiled-code/runtime boundary as, owned by the
// heap and opaque to this layer beyond that — word 1 holds the element
// count, and the element data begins at word 2. The method compiler's
// array-access templates (§4.5) compute addresses directly from these
// offsets rather than going through a helper call, so the offsets are
// exported as named constants instead of being buried in the compiler
// package. invokevirtual reads the same header word on a plain object
// to resolve the receiver's class before a vtable lookup.
const (
	ArrayLengthOffset = 1 // in words, from the array pointer
	ArrayDataOffset   = 2 // in words, from the array pointer
)

// ArrayLength reads the length word of an array object addressed by
// ptr. The compiler's bounds-check template reads the same word
// directly at ArrayLengthOffset and does not call this; its caller here
// is the package's tests.
func ArrayLength(ptr uintptr, wordSize abi.WordSize) int {
	return int(wordAt(ptr+uintptr(ArrayLengthOffset)*uintptr(wordSize), wordSize))
}

// ElementOffset returns the byte offset from the array pointer to
// element i of width elemSize bytes.
func ElementOffset(i int, elemSize int, wordSize abi.WordSize) int {
	return int(ArrayDataOffset)*int(wordSize) + i*elemSize
}

// Class is the external entity representing a loaded class: enough of
// it to drive instanceOf, static-field access, and vtable dispatch from
// compiled code. The class loader owns its lifecycle; this layer only
// reads it.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class

	// InitFlag is set once <clinit> has run to completion; initClass is
	// a no-op if this is already set (§6 initClass).
	InitFlag bool

	// StaticFields holds the boxed values backing getstatic/putstatic.
	// A put of a primitive to a not-yet-boxed slot allocates the box
	// first (§4.5's "put* of a primitive allocates a boxed int/long
	// first").
	StaticFields map[string]any

	// VTable maps a virtual method's slot index to this class's most
	// specific override, used by invokevirtual's "load receiver class
	// then its vtable slot" sequence (§4.5).
	VTable []*Method

	// Fields maps an instance field's name to its word offset from the
	// object pointer, used by getfield/putfield emission.
	Fields map[string]int
}

// IsAssignableFrom implements the runtime helper of the same name used
// by checkcast/instanceof: reports whether an object of class other can
// be treated as class c (other is c, or a subclass, or implements an
// interface equal to c).
func (c *Class) IsAssignableFrom(other *Class) bool {
	for cur := other; cur != nil; cur = cur.Super {
		if cur == c {
			return true
		}
		for _, iface := range cur.Interfaces {
			if iface == c {
				return true
			}
		}
	}
	return false
}
