// Package vm holds the data model shared by the compiler and runtime
// packages: methods, compiled code records, native frame layout and
// accessors, threads, and the reference chain. Class, the class loader,
// the heap, and the interpreter are external collaborators; this
// package defines only the narrow surface this layer needs from them.
package vm

import (
	"unsafe"

	"jitvm/pkg/abi"
)

// Frame slot offsets, in machine words, from the frame base (the value
// the frame-base register holds — the saved-base slot's address).
// Matches the native frame layout:
//
//	[ argument N-1 ]  higher addresses
//	...
//	[ argument 0   ]
//	[ thread ptr   ]  FrameThread
//	[ method ptr   ]  FrameMethod
//	[ prev frame   ]  FrameNext
//	[ return addr  ]
//	[ saved base   ]  ← frame base register points here
//	[ local 0..K   ]  lower addresses
//
// The caller's setup slots (thread/method/next/return-addr) and the
// argument block all sit at higher addresses than the base, since the
// prologue's "push base; move sp → base" leaves base pointing at the
// slot the old base was pushed into, with everything the caller wrote
// still above it on the stack. Locals are carved out below base by the
// prologue's subsequent "sub N, sp".
const (
	FrameReturnAddr = 1 // [base + 1*WORD]: return address into the caller
	FrameNext       = 2 // [base + 2*WORD]: previous VM frame pointer
	FrameMethod     = 3 // [base + 3*WORD]: this frame's Method
	FrameThread     = 4 // [base + 4*WORD]: this frame's Thread
	FrameArg0       = 5 // [base + 5*WORD]: first argument word (arg0)
)

// FrameFootprint is the number of words the fixed header
// (return addr/next/method/thread) occupies above the base. No code in
// this module reads it: Invoke sizes its argument block as the argument
// words plus three header words, the return address being pushed by the
// call itself.
const FrameFootprint = 4

// LocalOffset returns the frame-base-relative word offset of local
// slot i, given the method's parameter footprint in words. Slots within
// the parameter footprint alias the incoming argument block (§4.5's
// "localOffset maps slot i to the args region when i*WORD <
// paramFootprint"); slots beyond it live in the locals region the
// prologue reserved below base.
func LocalOffset(i, paramFootprint int) int {
	if i < paramFootprint {
		return FrameArg0 + i
	}
	return -(i - paramFootprint + 1)
}

// Frame is a raw pointer to one native activation record's base slot
// (the address the frame-base register held while that frame was
// active). It is only ever read through the accessors below; this
// layer never allocates or moves frames, it walks memory laid out by
// the compiled prologue.
type Frame uintptr

// Valid reports whether f denotes an activation (as opposed to the
// sentinel zero value marking the end of the frame chain).
func (f Frame) Valid() bool { return f != 0 }

func wordAt(addr uintptr, wordSize abi.WordSize) uintptr {
	if wordSize == abi.Word64 {
		return *(*uintptr)(unsafe.Pointer(addr))
	}
	return uintptr(*(*uint32)(unsafe.Pointer(addr)))
}

func slotAddr(base Frame, slot int, wordSize abi.WordSize) uintptr {
	return uintptr(base) + uintptr(slot*int(wordSize))
}

// Base returns f's own address, i.e. the value the frame-base register
// held while f was the active frame.
func Base(f Frame, wordSize abi.WordSize) uintptr {
	return uintptr(f)
}

// Next returns the previous VM frame in the chain, or the invalid
// (zero) Frame if f is the outermost.
func Next(f Frame, wordSize abi.WordSize) Frame {
	return Frame(wordAt(slotAddr(f, FrameNext, wordSize), wordSize))
}

// MethodHandleAt returns the raw word recorded in f's FrameMethod slot.
// It is a runtime.Handle value, not a Go pointer: compiled code can only
// ever have written a handle there (§4.6/§4.8's Handle mechanism is what
// lets a Go pointer cross into emitted machine code in the first place),
// so resolving it back to a *Method is pkg/runtime's job, not this
// package's — this package has no business importing the handle table
// and does not need to, since it never dereferences the word itself.
func MethodHandleAt(f Frame, wordSize abi.WordSize) uintptr {
	return wordAt(slotAddr(f, FrameMethod, wordSize), wordSize)
}

// ThreadHandleAt returns the raw handle word recorded in f's FrameThread
// slot, for the same reason MethodHandleAt does.
func ThreadHandleAt(f Frame, wordSize abi.WordSize) uintptr {
	return wordAt(slotAddr(f, FrameThread, wordSize), wordSize)
}

// ArgAt returns the raw word recorded in argument slot i (0-based,
// bytecode argument order) of f's argument block. Used by the native
// invoker to read its own incoming arguments back out of the frame the
// same way any other frame accessor works, since the invoker has no
// Go-level argument list of its own — it is handed a frame, exactly like
// any compiled method.
func ArgAt(f Frame, i int, wordSize abi.WordSize) uintptr {
	return wordAt(slotAddr(f, FrameArg0+i, wordSize), wordSize)
}

// ReturnAddress returns the return address saved in f's fixed slot —
// the machine address execution resumes at (or, for a frame currently
// suspended in a call, the address that raised or is about to raise
// a fault).
func ReturnAddress(f Frame, wordSize abi.WordSize) uintptr {
	return wordAt(slotAddr(f, FrameReturnAddr, wordSize), wordSize)
}
