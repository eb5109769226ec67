package asm

// arithOp is the ModR/M reg field value and the /r opcode byte for a
// register-register ALU operation in the add/or/adc/sbb/and/sub/xor/cmp
// family (Intel's "Group 1"), which share the same opcode shape and
// differ only by the reg field.
type arithOp byte

const (
	opAdd arithOp = 0
	opOr  arithOp = 1
	opAnd arithOp = 4
	opSub arithOp = 5
	opXor arithOp = 6
	opCmp arithOp = 7
)

func (a *Assembler) group1RegReg(op arithOp, dst, src Reg) {
	if p, ok := a.rexFor(src, dst); ok {
		a.emit(p)
	}
	a.emit(0x01|byte(op)<<3, modRM(0xC0, src, dst))
}

// group1RegImm emits "op dst, imm32" using the sign-extended-imm8 form
// when imm fits in a signed byte, matching the reference encoder's size
// minimization.
func (a *Assembler) group1RegImm(op arithOp, dst Reg, imm int32) {
	if p, ok := a.rexFor(0, dst); ok {
		a.emit(p)
	}
	if imm >= -128 && imm <= 127 {
		a.emit(0x83, modRM(0xC0, Reg(op), dst), byte(imm))
	} else {
		a.emit(0x81, modRM(0xC0, Reg(op), dst))
		a.emitInt32(imm)
	}
}

func (a *Assembler) AddRegReg(dst, src Reg) { a.group1RegReg(opAdd, dst, src) }
func (a *Assembler) SubRegReg(dst, src Reg) { a.group1RegReg(opSub, dst, src) }
func (a *Assembler) AndRegReg(dst, src Reg) { a.group1RegReg(opAnd, dst, src) }
func (a *Assembler) OrRegReg(dst, src Reg)  { a.group1RegReg(opOr, dst, src) }
func (a *Assembler) XorRegReg(dst, src Reg) { a.group1RegReg(opXor, dst, src) }
func (a *Assembler) CmpRegReg(dst, src Reg) { a.group1RegReg(opCmp, dst, src) }

func (a *Assembler) AddRegImm(dst Reg, imm int32) { a.group1RegImm(opAdd, dst, imm) }
func (a *Assembler) SubRegImm(dst Reg, imm int32) { a.group1RegImm(opSub, dst, imm) }
func (a *Assembler) AndRegImm(dst Reg, imm int32) { a.group1RegImm(opAnd, dst, imm) }
func (a *Assembler) OrRegImm(dst Reg, imm int32)  { a.group1RegImm(opOr, dst, imm) }
func (a *Assembler) XorRegImm(dst Reg, imm int32) { a.group1RegImm(opXor, dst, imm) }
func (a *Assembler) CmpRegImm(dst Reg, imm int32) { a.group1RegImm(opCmp, dst, imm) }

// NegReg/NotReg are Group 3 unary operations (ModR/M reg field selects
// the operation, same as the two-operand group).
func (a *Assembler) NegReg(reg Reg) {
	if p, ok := a.rexFor(0, reg); ok {
		a.emit(p)
	}
	a.emit(0xF7, modRM(0xC0, 3, reg))
}

func (a *Assembler) NotReg(reg Reg) {
	if p, ok := a.rexFor(0, reg); ok {
		a.emit(p)
	}
	a.emit(0xF7, modRM(0xC0, 2, reg))
}

// IMulRegReg: imul dst, src (two-operand signed multiply, 0F AF form).
func (a *Assembler) IMulRegReg(dst, src Reg) {
	a.emit(a.rexAlways(dst, src), 0x0F, 0xAF, modRM(0xC0, dst, src))
}

// IDivReg: idiv rax by reg (requires rdx:rax preloaded per the System V
// division convention; quotient in rax, remainder in rdx on return).
func (a *Assembler) IDivReg(reg Reg) {
	if p, ok := a.rexFor(0, reg); ok {
		a.emit(p)
	}
	a.emit(0xF7, modRM(0xC0, 7, reg))
}

// Cdq/Cqo sign-extend RAX into RDX:RAX (32-bit / 64-bit respectively),
// the prerequisite for IDivReg per the division calling convention.
func (a *Assembler) Cdq() { a.emit(0x99) }
func (a *Assembler) Cqo() { a.emit(rex(true, false, false, false), 0x99) }

// shift kind selects the Group 2 reg field.
type shiftOp byte

const (
	shiftShl shiftOp = 4
	shiftShr shiftOp = 5
	shiftSar shiftOp = 7
)

func (a *Assembler) shiftRegImm(op shiftOp, reg Reg, count byte) {
	if p, ok := a.rexFor(0, reg); ok {
		a.emit(p)
	}
	a.emit(0xC1, modRM(0xC0, Reg(op), reg), count)
}

// shiftRegCL shifts reg by the count in CL, used when the shift amount
// is a runtime value rather than a compiled-in constant.
func (a *Assembler) shiftRegCL(op shiftOp, reg Reg) {
	if p, ok := a.rexFor(0, reg); ok {
		a.emit(p)
	}
	a.emit(0xD3, modRM(0xC0, Reg(op), reg))
}

func (a *Assembler) ShlRegImm(reg Reg, count byte) { a.shiftRegImm(shiftShl, reg, count) }
func (a *Assembler) ShrRegImm(reg Reg, count byte) { a.shiftRegImm(shiftShr, reg, count) }
func (a *Assembler) SarRegImm(reg Reg, count byte) { a.shiftRegImm(shiftSar, reg, count) }

func (a *Assembler) ShlRegCL(reg Reg) { a.shiftRegCL(shiftShl, reg) }
func (a *Assembler) ShrRegCL(reg Reg) { a.shiftRegCL(shiftShr, reg) }
func (a *Assembler) SarRegCL(reg Reg) { a.shiftRegCL(shiftSar, reg) }
