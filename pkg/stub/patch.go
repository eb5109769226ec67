package stub

import (
	"sync/atomic"
	"unsafe"

	"jitvm/pkg/abi"
)

// DirectCallReg is the register every direct-call template (pkg/compiler's
// emitInvokeDirect) loads its patchable target into before CallReg. Both
// packages must agree on it: the compiler picks it as its ordinary
// left-hand scratch register (asm.RAX), and this package needs to know
// it to recognize the byte pattern it is patching.
const DirectCallReg = regResult // asm.RAX

// bytesAt views n bytes of executable memory starting at addr as a Go
// slice, for read-only comparison against the expected template. The
// memory is not covered by the Go allocator (it came from
// codebuf.ExecutableMemory's mmap'd region), which is exactly why this
// needs unsafe rather than a normal slice conversion.
func bytesAt(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// expectedMovOpcode returns the fixed opcode bytes emitted immediately
// before an AlignedMovRegImm's immediate field when loading DirectCallReg
// (RAX, register number 0 — never needs a REX.B bit), per
// asm.Assembler.MovRegImm's encoding: REX.W + B8 on Word64, bare B8 on
// Word32.
func expectedMovOpcode(wordSize abi.WordSize) []byte {
	if wordSize == abi.Word64 {
		return []byte{0x48, 0xB8}
	}
	return []byte{0xB8}
}

// expectedCallOpcode is CallReg(DirectCallReg)'s fixed encoding: FF D0,
// RAX needing no REX prefix since its encoding is below 8.
var expectedCallOpcode = []byte{0xFF, 0xD0}

// UpdateCaller implements §4.6's call-site rewrite: returnAddr is the
// return address saved on the frame of a call that just went through the
// method stub (i.e. the address immediately after the CallReg that
// invoked it). If the bytes immediately preceding returnAddr are exactly
// the aligned_mov+call template a direct-call site emits, the immediate
// field is overwritten in place with newEntry via a single word-aligned
// store; any other pattern — most commonly a virtual call site, which
// never embeds a patchable immediate at all — is left untouched and
// UpdateCaller reports false.
func UpdateCaller(returnAddr, newEntry uintptr, wordSize abi.WordSize) bool {
	w := int(wordSize)
	movOp := expectedMovOpcode(wordSize)

	immStart := returnAddr - uintptr(len(expectedCallOpcode)) - uintptr(w)
	if immStart%uintptr(w) != 0 {
		return false
	}
	movOpStart := immStart - uintptr(len(movOp))

	if !bytesEqual(bytesAt(movOpStart, len(movOp)), movOp) {
		return false
	}
	if !bytesEqual(bytesAt(immStart+uintptr(w), len(expectedCallOpcode)), expectedCallOpcode) {
		return false
	}

	if wordSize == abi.Word64 {
		atomic.StoreUint64((*uint64)(unsafe.Pointer(immStart)), uint64(newEntry))
	} else {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(immStart)), uint32(newEntry))
	}
	return true
}
