//go:build amd64

package runtime

// callEntry transfers control from Go into compiled code at entry. The
// caller builds block in exactly the order the native frame layout
// expects it to appear on the stack, highest address first:
// [argN-1 ... arg0, threadPtr, methodPtr, prevFramePtr]. callEntry
// pushes block onto the machine stack in that order — so block[0] ends
// up at the highest address and block[len(block)-1] immediately above
// the return address CALL is about to push — then calls entry and
// returns whatever compiled code left in the platform return register.
//
// This is the one place Go code crosses into JIT-compiled machine code;
// it is a pure Go-assembly leaf, the same technique the reference JIT's
// asm.CallJITCode trampoline uses to avoid a cgo round trip for the much
// hotter compiled-code-entry path.
func callEntry(entry uintptr, block []uintptr) uintptr
