package compiler

// emitGetField/emitPutField implement instance field access: pop the
// object reference, read/write [objref + FieldOffset*WORDSIZE] at the
// field's declared width, the same addressing shape the array-access
// templates use with a statically known rather than runtime-computed
// offset.
func (comp *compilation) emitGetField(ins Instruction) {
	comp.asm.Pop(regLeft) // objref
	comp.emitNullCheck(regLeft)
	disp := int32(ins.ResolvedField.WordOffset) * int32(comp.asm.WordSize())

	switch ins.ElemWidth {
	case Width8:
		if ins.ElemSigned {
			comp.asm.MovRegMem8Signed(regScratch, regLeft, disp)
		} else {
			comp.asm.MovRegMem8(regScratch, regLeft, disp)
		}
	case Width16:
		if ins.ElemSigned {
			comp.asm.MovRegMem16Signed(regScratch, regLeft, disp)
		} else {
			comp.asm.MovRegMem16(regScratch, regLeft, disp)
		}
	default:
		comp.asm.MovRegMem(regScratch, regLeft, disp)
	}
	comp.asm.Push(regScratch)
}

func (comp *compilation) emitPutField(ins Instruction) {
	comp.asm.Pop(regScratch) // value
	comp.asm.Pop(regLeft)    // objref
	comp.emitNullCheck(regLeft)
	disp := int32(ins.ResolvedField.WordOffset) * int32(comp.asm.WordSize())

	switch ins.ElemWidth {
	case Width8:
		comp.asm.MovMem8Reg(regLeft, disp, regScratch)
	case Width16:
		comp.asm.MovMem16Reg(regLeft, disp, regScratch)
	default:
		comp.asm.MovMemReg(regLeft, disp, regScratch)
	}
}

// emitGetStatic/emitPutStatic implement static field access: initialize
// the declaring class if it hasn't run its initializer yet, then read or
// write the boxed static slot at FieldOffset from the class's own
// reference, exactly as getfield/putfield address an instance's fields
// from the object's reference. A put of a primitive through this
// template stores the raw word directly; boxing a not-yet-boxed slot on
// first write is the class loader's responsibility when it lays out
// FieldOffset, not something compiled code needs to branch on.
func (comp *compilation) emitGetStatic(ins Instruction) {
	comp.loadPoolObj(regLeft, ins.ResolvedClass.Class)
	comp.emitInitClassIfNeeded(ins.ResolvedClass, regLeft)
	disp := int32(ins.ResolvedField.WordOffset) * int32(comp.asm.WordSize())
	comp.asm.MovRegMem(regScratch, regLeft, disp)
	comp.asm.Push(regScratch)
}

func (comp *compilation) emitPutStatic(ins Instruction) {
	comp.asm.Pop(regScratch) // value
	comp.loadPoolObj(regLeft, ins.ResolvedClass.Class)
	comp.emitInitClassIfNeeded(ins.ResolvedClass, regLeft)
	disp := int32(ins.ResolvedField.WordOffset) * int32(comp.asm.WordSize())
	comp.asm.MovMemReg(regLeft, disp, regScratch)
}
