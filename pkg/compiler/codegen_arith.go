package compiler

import "jitvm/pkg/jit/asm"

// emitArith implements the arithmetic category: pop two, operate, push
// result. Division routes through the platform's idiv, which needs the
// dividend sign-extended into the high half of the RDX:RAX (or EDX:EAX)
// pair first.
func (comp *compilation) emitArith(ins Instruction) {
	comp.asm.Pop(regRight)
	comp.asm.Pop(regLeft)

	switch ins.Arith {
	case ArithAdd:
		comp.asm.AddRegReg(regLeft, regRight)
	case ArithSub:
		comp.asm.SubRegReg(regLeft, regRight)
	case ArithMul:
		comp.asm.MovRegReg(asm.RAX, regLeft)
		comp.asm.IMulRegReg(asm.RAX, regRight)
		comp.asm.MovRegReg(regLeft, asm.RAX)
	case ArithDiv:
		comp.asm.MovRegReg(asm.RAX, regLeft)
		if comp.asm.WordSize() == 8 {
			comp.asm.Cqo()
		} else {
			comp.asm.Cdq()
		}
		comp.asm.IDivReg(regRight)
		comp.asm.MovRegReg(regLeft, asm.RAX)
	case ArithAnd:
		comp.asm.AndRegReg(regLeft, regRight)
	case ArithOr:
		comp.asm.OrRegReg(regLeft, regRight)
	case ArithXor:
		comp.asm.XorRegReg(regLeft, regRight)
	case ArithShl:
		comp.asm.MovRegReg(asm.RCX, regRight)
		comp.asm.ShlRegCL(regLeft)
	}

	comp.asm.Push(regLeft)
}

// emitNarrow implements the integer-narrowing category (i2b, i2c,
// i2s): sign- or zero-extends the top-of-stack word in place, entirely
// in register, by shifting the narrow field up to the register's top
// and back down (sign-extend: arithmetic shift right; zero-extend:
// logical shift right).
func (comp *compilation) emitNarrow(ins Instruction) {
	comp.asm.Pop(regScratch)
	bits := byte(8 * int(comp.asm.WordSize()))
	var width byte
	switch ins.NarrowWidth {
	case Width8:
		width = 8
	case Width16:
		width = 16
	case Width32:
		width = 32
	}
	shift := bits - width
	comp.asm.ShlRegImm(regScratch, shift)
	if ins.NarrowSigned {
		comp.asm.SarRegImm(regScratch, shift)
	} else {
		comp.asm.ShrRegImm(regScratch, shift)
	}
	comp.asm.Push(regScratch)
}
