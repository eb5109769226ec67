package stub

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"

	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/jit/codebuf"
)

// findOpcode returns the index of the first occurrence of pat in code, or
// -1. Used to locate a fixed instruction sequence without depending on the
// exact alignment padding AlignedMovRegImm inserts ahead of it.
func findOpcode(code, pat []byte) int {
	return bytes.Index(code, pat)
}

func TestEmitMethodStubShape(t *testing.T) {
	dispatchAddr := uintptr(0x1122334455667788)
	unwindAddr := uintptr(0x99aabbccddeeff11)
	code := EmitMethodStub(abi.Word64, dispatchAddr, unwindAddr)

	if !bytes.HasPrefix(code, []byte{0x55, 0x48, 0x89, 0xE5}) {
		t.Fatalf("stub does not start with push rbp; mov rbp,rsp: %x", code[:4])
	}
	if !bytes.HasSuffix(code, []byte{0x48, 0x89, 0xEC, 0x5D, 0xFF, 0xE0}) {
		t.Fatalf("stub does not end with mov rsp,rbp; pop rbp; jmp rax: %x", code[len(code)-6:])
	}

	var dispLE, unwindLE [8]byte
	binary.LittleEndian.PutUint64(dispLE[:], uint64(dispatchAddr))
	binary.LittleEndian.PutUint64(unwindLE[:], uint64(unwindAddr))
	if i := findOpcode(code, dispLE[:]); i < 0 {
		t.Error("stub never embeds dispatchAddr as a little-endian immediate")
	}
	if i := findOpcode(code, unwindLE[:]); i < 0 {
		t.Error("stub never embeds unwindAddr as a little-endian immediate")
	}

	// The success-path branch (cmp rax,0 ; jne ok) must land exactly on
	// the "mov rsp,rbp" that starts the tail sequence checked above.
	jccIdx := findOpcode(code, []byte{0x0F, 0x85}) // Jcc rel32, CondNE
	if jccIdx < 0 {
		t.Fatal("stub has no conditional jump over the failure path")
	}
	dispOffset := jccIdx + 2
	rel := int32(binary.LittleEndian.Uint32(code[dispOffset : dispOffset+4]))
	target := dispOffset + 4 + int(rel)
	if want := len(code) - 6; target != want {
		t.Errorf("success-path jump target = %d, want %d (the tail's mov rsp,rbp)", target, want)
	}
}

func TestEmitNativeInvokerShape(t *testing.T) {
	dispatchAddr := uintptr(0x1)
	unwindAddr := uintptr(0x2)
	code := EmitNativeInvoker(abi.Word64, dispatchAddr, unwindAddr)

	if !bytes.HasPrefix(code, []byte{0x55, 0x48, 0x89, 0xE5}) {
		t.Fatalf("native invoker does not start with push rbp; mov rbp,rsp: %x", code[:4])
	}
	if !bytes.HasSuffix(code, []byte{0x48, 0x89, 0xEC, 0x5D, 0xC3}) {
		t.Fatalf("native invoker does not end with mov rsp,rbp; pop rbp; ret: %x", code[len(code)-5:])
	}

	// Failure is the all-bits-set sentinel, not zero: cmp rax,-1 (imm8 form).
	if i := findOpcode(code, []byte{0x48, 0x83, 0xF8, 0xFF}); i < 0 {
		t.Error("native invoker does not compare its result against -1")
	}
}

func TestEmitMethodStubAndNativeInvokerAreDeterministic(t *testing.T) {
	a := EmitMethodStub(abi.Word64, 0x10, 0x20)
	b := EmitMethodStub(abi.Word64, 0x10, 0x20)
	if !bytes.Equal(a, b) {
		t.Error("EmitMethodStub is not deterministic for identical inputs")
	}
	c := EmitNativeInvoker(abi.Word64, 0x10, 0x20)
	d := EmitNativeInvoker(abi.Word64, 0x10, 0x20)
	if !bytes.Equal(c, d) {
		t.Error("EmitNativeInvoker is not deterministic for identical inputs")
	}
}

// align8 returns the largest 8-byte-aligned suffix of buf, mirroring the
// precondition AlignedMovRegImm's offset-0 alignment assumes a real
// ExecutableMemory placement provides.
func align8(buf []byte) []byte {
	addr := uintptr(unsafe.Pointer(&buf[0]))
	pad := (8 - int(addr%8)) % 8
	return buf[pad:]
}

// buildCallSite emits the exact "AlignedMovRegImm(DirectCallReg); CallReg"
// template pkg/compiler's emitInvokeDirect produces for a direct call,
// into dst (which must start 8-byte aligned), and returns the number of
// bytes written.
func buildCallSite(dst []byte, entry uintptr) int {
	buf := codebuf.New(len(dst))
	a := asm.New(buf, abi.Word64)
	a.AlignedMovRegImm(DirectCallReg, uint64(entry))
	a.CallReg(DirectCallReg)
	code := buf.Bytes()
	copy(dst, code)
	return len(code)
}

func TestUpdateCallerPatchesTheEmbeddedEntry(t *testing.T) {
	raw := make([]byte, 64)
	dst := align8(raw)

	n := buildCallSite(dst, 0x1111)
	returnAddr := uintptr(unsafe.Pointer(&dst[0])) + uintptr(n)

	newEntry := uintptr(0x2222222222222222)
	if ok := UpdateCaller(returnAddr, newEntry, abi.Word64); !ok {
		t.Fatal("UpdateCaller reported false on a genuine call-site template")
	}

	immStart := returnAddr - 2 - 8 // CallReg is 2 bytes; the immediate is one word
	got := *(*uint64)(unsafe.Pointer(immStart))
	if got != uint64(newEntry) {
		t.Errorf("patched immediate = %#x, want %#x", got, newEntry)
	}
}

func TestUpdateCallerLeavesNonMatchingPatternsAlone(t *testing.T) {
	raw := make([]byte, 64)
	dst := align8(raw)

	n := buildCallSite(dst, 0x1111)
	// Corrupt the REX+opcode byte preceding the immediate so the template
	// no longer matches.
	dst[n-2-8-2] ^= 0xFF

	before := make([]byte, n)
	copy(before, dst[:n])

	returnAddr := uintptr(unsafe.Pointer(&dst[0])) + uintptr(n)
	if ok := UpdateCaller(returnAddr, 0xdead, abi.Word64); ok {
		t.Error("UpdateCaller reported true on a corrupted call-site template")
	}
	if !bytes.Equal(dst[:n], before) {
		t.Error("UpdateCaller modified memory despite reporting a mismatch")
	}
}
