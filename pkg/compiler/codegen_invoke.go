package compiler

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/vm"
)

// emitReverseArgs reverses the n already-pushed argument words in
// place. Bytecode pushes a call's arguments in evaluation order (arg0
// first, deepest on the stack; argN-1 last, nearest SP); the native
// frame layout wants the opposite — arg0 adjacent to the callee's
// thread-pointer slot, argN-1 farthest from it — so every invoke
// template reverses the block before laying the call header on top of
// it. n is always a compile-time constant (the resolved method's
// parameter footprint), so the reversal unrolls into a fixed swap
// sequence instead of a runtime loop.
func (comp *compilation) emitReverseArgs(n int) {
	w := int32(comp.asm.WordSize())
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		comp.asm.MovRegMem(regLeft, asm.RSP, int32(i)*w)
		comp.asm.MovRegMem(regRight, asm.RSP, int32(j)*w)
		comp.asm.MovMemReg(asm.RSP, int32(i)*w, regRight)
		comp.asm.MovMemReg(asm.RSP, int32(j)*w, regLeft)
	}
}

// pushCallHeader pushes the three frame-header words a callee's
// prologue expects above its return address: this thread (read from
// the caller's own frame), a pool reference to the method object being
// invoked, and the caller's own frame base (becoming the callee's
// FrameNext link for stack walking).
func (comp *compilation) pushCallHeader(methodObj any) {
	w := int32(comp.asm.WordSize())
	comp.asm.MovRegMem(regScratch, regBase, int32(vm.FrameThread)*w)
	comp.asm.Push(regScratch)
	comp.loadPoolObj(regScratch, methodObj)
	comp.asm.Push(regScratch)
	comp.asm.Push(regBase)
}

// emitPostCallCleanup discards the argument block and the three header
// words the callee never pops (its epilogue only unwinds its own
// pushed base and the CALL-pushed return address), then pushes the
// return value — already sitting in regLeft by this compiler's calling
// convention, since regLeft doubles as the host ABI's return register.
func (comp *compilation) emitPostCallCleanup(argCount int, returnIsVoid bool) {
	w := int32(comp.asm.WordSize())
	comp.asm.AddRegImm(asm.RSP, int32(argCount+3)*w)
	if !returnIsVoid {
		comp.asm.Push(regLeft)
	}
}

// emitInvokeDirect implements invokestatic/invokespecial: the target is
// resolved at compile time, so the call target is embedded as a
// patchable absolute address rather than looked up through a vtable.
func (comp *compilation) emitInvokeDirect(ins Instruction) {
	ref := ins.ResolvedMethod
	comp.emitReverseArgs(ref.ParamFootprint)
	comp.pushCallHeader(ref.Method)
	comp.asm.AlignedMovRegImm(regLeft, uint64(ref.Entry))
	comp.asm.CallReg(regLeft)
	comp.markHelperCall()
	comp.emitPostCallCleanup(ref.ParamFootprint, ref.ReturnIsVoid)
}

// emitInvokeVirtual implements invokevirtual: after reversing the
// argument block, the receiver sits at [RSP], still needed to dispatch
// through its class's vtable before the call header goes on top of it.
// The receiver's header word (word 0) carries a pool handle to its real
// class, the same kind of handle every other class/method reference
// crosses the runtime boundary as, so resolving the call target means
// handing that handle and the vtable slot to HelperVTableLookup rather
// than indexing a raw array in-line; this is never a candidate for
// call-site patching, since the target address is recomputed fresh on
// every call.
func (comp *compilation) emitInvokeVirtual(ins Instruction) {
	ref := ins.ResolvedMethod
	comp.emitReverseArgs(ref.ParamFootprint)

	comp.asm.MovRegMem(regLeft, asm.RSP, 0) // receiver
	comp.emitNullCheck(regLeft)
	comp.emitLoadActualClass(regRight, regLeft)
	comp.asm.MovRegImm(regScratch, uint64(ins.VTableSlot))
	comp.callHelper(int64(abi.HelperVTableLookup), regRight, regScratch)
	// resolved entry point now in regLeft, callHelper's implicit result register

	comp.pushCallHeader(ref.Method)
	comp.asm.CallReg(regLeft)
	comp.markHelperCall()
	comp.emitPostCallCleanup(ref.ParamFootprint, ref.ReturnIsVoid)
}
