package compiler

import "jitvm/pkg/vmerr"

// emitOne dispatches one instruction to its template emitter. This is
// the method compiler's main per-opcode switch (§4.5); each case is a
// direct template, never a call into a generic interpreter loop.
func (comp *compilation) emitOne(ins Instruction) {
	switch ins.Op {
	case OpPushConst:
		comp.emitPushConst(ins)
	case OpLoad:
		comp.emitLoad(ins)
	case OpStore:
		comp.emitStore(ins)
	case OpArith:
		comp.emitArith(ins)
	case OpNarrow:
		comp.emitNarrow(ins)
	case OpArrayLoad:
		comp.emitArrayLoad(ins)
	case OpArrayStore:
		comp.emitArrayStore(ins)
	case OpNew:
		comp.emitNew(ins)
	case OpNewArray:
		comp.emitNewArray(ins)
	case OpANewArray:
		comp.emitANewArray(ins)
	case OpGetField:
		comp.emitGetField(ins)
	case OpPutField:
		comp.emitPutField(ins)
	case OpGetStatic:
		comp.emitGetStatic(ins)
	case OpPutStatic:
		comp.emitPutStatic(ins)
	case OpBranch:
		comp.emitBranch(ins)
	case OpInvokeStatic, OpInvokeSpecial:
		comp.emitInvokeDirect(ins)
	case OpInvokeVirtual:
		comp.emitInvokeVirtual(ins)
	case OpReturn:
		comp.emitReturn(ins)
	case OpThrow:
		comp.emitThrow(ins)
	case OpCheckCast:
		comp.emitCheckCast(ins)
	case OpInstanceOf:
		comp.emitInstanceOf(ins)
	default:
		vmerr.Assertf("compiler: unknown opcode %d at bytecode IP %d", ins.Op, ins.BytecodeIP)
	}
}
