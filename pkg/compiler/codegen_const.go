package compiler

import "jitvm/pkg/vm"

// emitPushConst implements the constants category (aconst_null,
// iconst_*, bipush, sipush, ldc/ldc_w): push an immediate, or push a
// pool reference for a reference-typed constant.
func (comp *compilation) emitPushConst(ins Instruction) {
	if ins.ConstObj != nil {
		offset := comp.pool.Reference(ins.ConstObj)
		comp.ensurePoolLoaded()
		comp.asm.MovRegMem(regScratch, poolReg, int32(offset))
		comp.asm.Push(regScratch)
		return
	}
	comp.asm.MovRegImm(regScratch, uint64(ins.Imm))
	comp.asm.Push(regScratch)
}

// emitLoad/emitStore implement the locals category: push/pop from
// [base + localOffset(i, paramFootprint)].
func (comp *compilation) emitLoad(ins Instruction) {
	off := comp.localWordOffset(ins.Slot)
	comp.asm.MovRegMem(regScratch, regBase, int32(off)*int32(comp.c.wordSize))
	comp.asm.Push(regScratch)
}

func (comp *compilation) emitStore(ins Instruction) {
	off := comp.localWordOffset(ins.Slot)
	comp.asm.Pop(regScratch)
	comp.asm.MovMemReg(regBase, int32(off)*int32(comp.c.wordSize), regScratch)
}

func (comp *compilation) localWordOffset(slot int) int {
	paramFP := comp.method.ParameterFootprint(comp.c.wordSize)
	return vm.LocalOffset(slot, paramFP)
}
