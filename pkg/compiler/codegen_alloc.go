package compiler

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
)

// emitNew implements object allocation: resolve/init the class first
// (may abort with an exception the helper itself raises), then call
// makeNew and push the result.
func (comp *compilation) emitNew(ins Instruction) {
	comp.loadPoolObj(regLeft, ins.ResolvedClass.Class)
	comp.emitInitClassIfNeeded(ins.ResolvedClass, regLeft)
	comp.callHelper(int64(abi.HelperMakeNew), regLeft, regLeft)
	comp.asm.Push(regLeft)
}

// emitNewArray implements the primitive-array allocation template: pop
// the requested length, reject a negative count, then call
// makeBlankArray with the element width and count.
func (comp *compilation) emitNewArray(ins Instruction) {
	comp.asm.Pop(regRight) // count
	comp.emitNegativeLengthCheck()

	width := int64(elemByteWidth(ins.ElemWidth, comp.asm.WordSize()))
	comp.asm.MovRegImm(regLeft, uint64(width))
	comp.callHelper(int64(abi.HelperMakeBlankArray), regLeft, regRight)
	comp.asm.Push(regLeft)
}

// emitANewArray implements the reference-array allocation template: pop
// the requested length, reject a negative count, then call
// makeBlankObjectArray with the element class and count.
func (comp *compilation) emitANewArray(ins Instruction) {
	comp.asm.Pop(regRight) // count
	comp.emitNegativeLengthCheck()

	comp.loadPoolObj(regLeft, ins.ResolvedClass.Class)
	comp.callHelper(int64(abi.HelperMakeBlankObjectArray), regLeft, regRight)
	comp.asm.Push(regLeft)
}

// emitNegativeLengthCheck assumes regRight holds the requested array
// length; it throws NegativeArraySizeException via throwNew when the
// count is negative, matching the allocation category's "array variants
// precede with a negative-length check" rule.
func (comp *compilation) emitNegativeLengthCheck() {
	okLabel := comp.labels.New()
	comp.asm.CmpRegImm(regRight, 0)
	comp.labels.JumpIf(okLabel, asm.CondGE)
	comp.emitThrowNewClass(classNegativeLength, regScratch)
	comp.labels.Mark(okLabel)
}

// emitInitClassIfNeeded calls initClass before a class's first use when
// the class loader flagged it as not yet initialized (ResolvedClass.
// NeedsInitCall), loading classReg again afterward since the helper
// call clobbers the pool register.
func (comp *compilation) emitInitClassIfNeeded(class *ClassRef, classReg asm.Reg) {
	if class == nil || !class.NeedsInitCall {
		return
	}
	comp.callHelper(int64(abi.HelperInitClass), classReg, classReg)
	comp.loadPoolObj(classReg, class.Class)
}
