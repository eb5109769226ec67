package compiler

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/vm"
)

// emitArrayLoad/emitArrayStore implement array access: bounds-check
// (index ≥ 0 and index < [array + WORDSIZE]); on failure, call the
// runtime helper throwNew(ArrayIndexOutOfBoundsException); else compute
// [array + 2*WORDSIZE + index*elemSize] and read/write with the element
// width.
func (comp *compilation) emitArrayLoad(ins Instruction) {
	comp.asm.Pop(regRight) // index
	comp.asm.Pop(regLeft)  // arrayref
	comp.emitNullCheck(regLeft)
	comp.emitBoundsCheck()

	width := int32(elemByteWidth(ins.ElemWidth, comp.asm.WordSize()))
	comp.asm.MovRegReg(regScratch, regRight)
	comp.scaleIndex(regScratch, width)
	comp.asm.AddRegReg(regLeft, regScratch)

	dataOff := int32(vm.ArrayDataOffset) * int32(comp.asm.WordSize())
	switch ins.ElemWidth {
	case Width8:
		if ins.ElemSigned {
			comp.asm.MovRegMem8Signed(regScratch, regLeft, dataOff)
		} else {
			comp.asm.MovRegMem8(regScratch, regLeft, dataOff)
		}
	case Width16:
		if ins.ElemSigned {
			comp.asm.MovRegMem16Signed(regScratch, regLeft, dataOff)
		} else {
			comp.asm.MovRegMem16(regScratch, regLeft, dataOff)
		}
	default:
		comp.asm.MovRegMem(regScratch, regLeft, dataOff)
	}
	comp.asm.Push(regScratch)
}

func (comp *compilation) emitArrayStore(ins Instruction) {
	// Value is kept in RDX rather than regScratch: emitNullCheck and
	// emitBoundsCheck both use regLeft/regRight/regScratch internally,
	// and the value must survive both checks intact. RDX also happens to
	// be callHelper's arg0 register, but emitBoundsCheck's only helper
	// call is the bounds-fail throw, and emitThrowNewClass now jumps
	// straight into the unwinder instead of returning — so this frame
	// never executes another instruction after that call clobbers RDX.
	const valueReg = asm.RDX
	comp.asm.Pop(valueReg) // value
	comp.asm.Pop(regRight) // index
	comp.asm.Pop(regLeft)  // arrayref
	comp.emitNullCheck(regLeft)
	comp.emitBoundsCheck()

	width := int32(elemByteWidth(ins.ElemWidth, comp.asm.WordSize()))
	comp.asm.MovRegReg(regScratch, regRight)
	comp.scaleIndex(regScratch, width)
	comp.asm.AddRegReg(regLeft, regScratch)

	dataOff := int32(vm.ArrayDataOffset) * int32(comp.asm.WordSize())
	switch ins.ElemWidth {
	case Width8:
		comp.asm.MovMem8Reg(regLeft, dataOff, valueReg)
	case Width16:
		comp.asm.MovMem16Reg(regLeft, dataOff, valueReg)
	default:
		comp.asm.MovMemReg(regLeft, dataOff, valueReg)
	}
}

// emitBoundsCheck assumes regLeft holds the arrayref and regRight the
// index; it branches past a helper call when 0 <= index < length.
func (comp *compilation) emitBoundsCheck() {
	lenOff := int32(vm.ArrayLengthOffset) * int32(comp.asm.WordSize())
	comp.asm.CmpRegImm(regRight, 0)
	failLabel := comp.labels.New()
	okLabel := comp.labels.New()
	comp.labels.JumpIf(failLabel, asm.CondL)
	comp.asm.MovRegMem(regScratch, regLeft, lenOff)
	comp.asm.CmpRegReg(regRight, regScratch)
	comp.labels.JumpIf(failLabel, asm.CondGE)
	comp.labels.Jump(okLabel)
	comp.labels.Mark(failLabel)
	comp.emitThrowNewClass(classArrayBounds, regScratch)
	comp.labels.Mark(okLabel)
}

// scaleIndex multiplies reg by width, using a shift when width is a
// power of two (always true for the element widths this catalog emits)
// to avoid a multiply instruction on the hot path.
func (comp *compilation) scaleIndex(reg asm.Reg, width int32) {
	shift := byte(0)
	for w := width; w > 1; w >>= 1 {
		shift++
	}
	if shift > 0 {
		comp.asm.ShlRegImm(reg, shift)
	}
}

func elemByteWidth(w Width, wordSize abi.WordSize) int {
	if w == WidthWord {
		return int(wordSize)
	}
	return int(w)
}
