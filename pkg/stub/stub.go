// Package stub implements the two shared trampolines that stand in for
// a method's real entry point before it has one (C6): the method stub,
// which compiles its own method on first call and tail-jumps into the
// result, and the native invoker, which marshals arguments and calls a
// host function. Both are hand-emitted with the same encoder the method
// compiler uses, rather than written as raw byte literals, so they stay
// correct across word-size targets for free.
package stub

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/jit/codebuf"
	"jitvm/pkg/jit/fixup"
	"jitvm/pkg/vm"
)

// Register conventions mirror pkg/compiler's: the dispatch bridge's own
// return register doubles as the value compiled-code templates expect a
// call's result in, so no extra shuffling is needed at the tail-jump.
const (
	regBase    = asm.FrameBaseReg
	regResult  = asm.RAX
	regDispatch = asm.R10
)

// EmitMethodStub builds the method stub: a routine that, on first call
// to a not-yet-compiled method, sets the thread's frame to its own
// synthetic base, asks the runtime to compile the method named in that
// frame, and either tail-jumps into the freshly compiled code (keeping
// the caller's already-pushed header and argument block exactly where
// the new code's own prologue expects them) or, if compilation raised a
// pending exception, tail-jumps into the unwinder without bothering to
// unwind its own frame first — the unwinder fixes up the native stack to
// whichever frame it settles on regardless of what is sitting below it.
func EmitMethodStub(wordSize abi.WordSize, dispatchAddr, unwindAddr uintptr) []byte {
	buf := codebuf.New(64)
	a := asm.New(buf, wordSize)
	labels := fixup.NewLabels(a)
	w := int32(wordSize)

	a.Push(regBase)
	a.MovRegReg(regBase, asm.RSP)

	a.MovRegImm(asm.RDI, uint64(abi.HelperCompileMethod))
	a.MovRegMem(asm.RSI, regBase, int32(vm.FrameThread)*w) // threadH
	a.MovRegMem(asm.RDX, regBase, int32(vm.FrameMethod)*w) // methodH
	a.MovRegReg(asm.RCX, regBase)                          // this stub's own base, for thread.Frame

	a.AlignedMovRegImm(regDispatch, uint64(dispatchAddr))
	a.CallReg(regDispatch)

	a.CmpRegImm(regResult, 0)
	ok := labels.New()
	labels.JumpIf(ok, asm.CondNE)

	a.AlignedMovRegImm(regDispatch, uint64(unwindAddr))
	a.JmpReg(regDispatch)

	labels.Mark(ok)
	a.MovRegReg(asm.RSP, regBase)
	a.Pop(regBase)
	a.JmpReg(regResult)

	return append([]byte(nil), buf.Bytes()...)
}

// EmitNativeInvoker builds the shared entry point for every method
// flagged native. Unlike the method stub it never tail-jumps anywhere
// on success: invokeNative already computes the call's result, so the
// invoker just tears its own frame down and returns it, exactly as a
// compiled method's own epilogue would.
func EmitNativeInvoker(wordSize abi.WordSize, dispatchAddr, unwindAddr uintptr) []byte {
	buf := codebuf.New(64)
	a := asm.New(buf, wordSize)
	labels := fixup.NewLabels(a)
	w := int32(wordSize)

	a.Push(regBase)
	a.MovRegReg(regBase, asm.RSP)

	a.MovRegImm(asm.RDI, uint64(abi.HelperInvokeNative))
	a.MovRegMem(asm.RSI, regBase, int32(vm.FrameThread)*w)
	a.MovRegMem(asm.RDX, regBase, int32(vm.FrameMethod)*w)
	a.MovRegReg(asm.RCX, regBase)

	a.AlignedMovRegImm(regDispatch, uint64(dispatchAddr))
	a.CallReg(regDispatch)

	// Unlike the method stub's check above, a native call's result can
	// legitimately be zero, so failure is signalled by the reserved
	// all-bits-set sentinel instead (abi.InvokeFailureSentinel).
	a.CmpRegImm(regResult, -1)
	ok := labels.New()
	labels.JumpIf(ok, asm.CondNE)

	a.AlignedMovRegImm(regDispatch, uint64(unwindAddr))
	a.JmpReg(regDispatch)

	labels.Mark(ok)
	a.MovRegReg(asm.RSP, regBase)
	a.Pop(regBase)
	a.Ret()

	return append([]byte(nil), buf.Bytes()...)
}

// Singletons holds the two shared trampolines once placed in executable
// memory. The Processor builds one of these eagerly at startup (not on
// first use, and without a class lock), keeps it for its whole
// lifetime, and hands MethodStubEntry out to every Method that
// doesn't yet have real compiled code (vm.Method.BindStub), and
// NativeInvokerEntry to every method flagged native.
type Singletons struct {
	MethodStubEntry    uintptr
	NativeInvokerEntry uintptr
}

// Install emits both trampolines and places them in mem, returning their
// entry addresses. Called once per Processor instance.
func Install(mem *codebuf.ExecutableMemory, wordSize abi.WordSize, dispatchAddr, unwindAddr uintptr) (*Singletons, error) {
	stubCode := EmitMethodStub(wordSize, dispatchAddr, unwindAddr)
	stubEntry, _, err := mem.Place(stubCode)
	if err != nil {
		return nil, err
	}

	invokerCode := EmitNativeInvoker(wordSize, dispatchAddr, unwindAddr)
	invokerEntry, _, err := mem.Place(invokerCode)
	if err != nil {
		return nil, err
	}

	return &Singletons{MethodStubEntry: stubEntry, NativeInvokerEntry: invokerEntry}, nil
}
