package compiler

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
)

// emitThrow pops the exception object and hands it to the throw
// helper. The helper itself only sets thread.Exception and returns
// normally, so this template follows the call with an unconditional
// jump into the unwinder — the handler search resumes execution
// somewhere else entirely, and this template never needs an epilogue
// of its own.
func (comp *compilation) emitThrow(ins Instruction) {
	comp.asm.Pop(regLeft)
	comp.callHelper(int64(abi.HelperThrow), regLeft, regBase)
	comp.emitJumpToUnwinder()
}

// emitCheckCast peeks the top-of-stack object (checkcast leaves it on
// the stack when the cast succeeds) and verifies it is either null or
// assignable to ResolvedClass, throwing ClassCastException via the
// isAssignableFrom/throwNew pair otherwise.
func (comp *compilation) emitCheckCast(ins Instruction) {
	comp.asm.MovRegMem(regLeft, asm.RSP, 0) // peek objref
	okLabel := comp.labels.New()
	comp.asm.CmpRegImm(regLeft, 0)
	comp.labels.JumpIf(okLabel, asm.CondE) // null always passes

	comp.emitLoadActualClass(regRight, regLeft)
	comp.loadPoolObj(regLeft, ins.ResolvedClass.Class)
	comp.callHelper(int64(abi.HelperIsAssignableFrom), regLeft, regRight)
	comp.asm.CmpRegImm(regLeft, 0)
	comp.labels.JumpIf(okLabel, asm.CondNE)

	comp.emitThrowNewClass(classCastException, regLeft)
	comp.labels.Mark(okLabel)
}

// emitInstanceOf pops the object and pushes 1 or 0: a null reference is
// never an instance of anything, so the fast path short-circuits before
// the isAssignableFrom helper call.
func (comp *compilation) emitInstanceOf(ins Instruction) {
	comp.asm.Pop(regLeft)
	falseLabel := comp.labels.New()
	doneLabel := comp.labels.New()
	comp.asm.CmpRegImm(regLeft, 0)
	comp.labels.JumpIf(falseLabel, asm.CondE)

	comp.emitLoadActualClass(regRight, regLeft)
	comp.loadPoolObj(regLeft, ins.ResolvedClass.Class)
	comp.callHelper(int64(abi.HelperIsAssignableFrom), regLeft, regRight)
	comp.asm.Push(regLeft)
	comp.labels.Jump(doneLabel)

	comp.labels.Mark(falseLabel)
	comp.asm.MovRegImm(regScratch, 0)
	comp.asm.Push(regScratch)
	comp.labels.Mark(doneLabel)
}

// emitLoadActualClass reads objReg's header word — every heap object
// carries a pool handle to its *vm.Class at offset 0, the same kind of
// handle any other class/method reference crosses the runtime boundary
// as — into dst.
func (comp *compilation) emitLoadActualClass(dst, objReg asm.Reg) {
	comp.asm.MovRegMem(dst, objReg, 0)
}
