package compiler

import "jitvm/pkg/jit/asm"

// compareToCond maps an IR Compare to the condition code that branches
// when the comparison holds, for the two-operand integer comparisons.
var compareToCond = map[Compare]asm.Cond{
	CompareEQ: asm.CondE,
	CompareNE: asm.CondNE,
	CompareLT: asm.CondL,
	CompareGE: asm.CondGE,
	CompareGT: asm.CondG,
	CompareLE: asm.CondLE,
}

// emitBranch implements the branch category: pop the operand(s) the
// comparison needs, compare, and jump to Target's bytecode IP if the
// comparison holds. CompareAlways pops nothing and always branches;
// CompareIsNull/CompareNotNull pop a single reference and compare it
// against the null word.
func (comp *compilation) emitBranch(ins Instruction) {
	switch ins.Compare {
	case CompareAlways:
		comp.jumps.Branch(ins.Target, 0, false)
		return
	case CompareIsNull, CompareNotNull:
		comp.asm.Pop(regLeft)
		comp.asm.CmpRegImm(regLeft, 0)
		cond := asm.CondE
		if ins.Compare == CompareNotNull {
			cond = asm.CondNE
		}
		comp.jumps.Branch(ins.Target, cond, true)
		return
	}

	comp.asm.Pop(regRight)
	comp.asm.Pop(regLeft)
	comp.asm.CmpRegReg(regLeft, regRight)
	cond, ok := compareToCond[ins.Compare]
	if !ok {
		cond = asm.CondE
	}
	comp.jumps.Branch(ins.Target, cond, true)
}
