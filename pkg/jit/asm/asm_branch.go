package asm

// Cond is an x86 condition code, used by conditional jumps, SETcc and
// CMOVcc. Values match the low nibble of the corresponding Jcc/SETcc/
// CMOVcc opcode.
type Cond byte

const (
	CondO  Cond = 0x0
	CondNO Cond = 0x1
	CondB  Cond = 0x2 // below / carry
	CondAE Cond = 0x3
	CondE  Cond = 0x4
	CondNE Cond = 0x5
	CondBE Cond = 0x6
	CondA  Cond = 0x7
	CondS  Cond = 0x8
	CondNS Cond = 0x9
	CondL  Cond = 0xC // signed less
	CondGE Cond = 0xD
	CondLE Cond = 0xE
	CondG  Cond = 0xF
)

// JmpRel32 emits an unconditional near jump with a placeholder 32-bit
// relative displacement and returns the offset of that displacement
// field, for the fixup package to patch once the target is known.
func (a *Assembler) JmpRel32() int {
	a.emit(0xE9)
	off := a.Offset()
	a.emitInt32(0)
	return off
}

// JccRel32 emits a conditional near jump (0F 8x) with a placeholder
// 32-bit displacement, returning its offset.
func (a *Assembler) JccRel32(cc Cond) int {
	a.emit(0x0F, 0x80|byte(cc))
	off := a.Offset()
	a.emitInt32(0)
	return off
}

// JmpRel8 emits a short unconditional jump with a placeholder 8-bit
// displacement. The fixup package's labels and bytecode jumps always use
// the rel32 forms, not this one.
func (a *Assembler) JmpRel8() int {
	a.emit(0xEB)
	off := a.Offset()
	a.emit(0)
	return off
}

// JccRel8 emits a short conditional jump with a placeholder 8-bit
// displacement.
func (a *Assembler) JccRel8(cc Cond) int {
	a.emit(0x70 | byte(cc))
	off := a.Offset()
	a.emit(0)
	return off
}

// PatchRel32 resolves a placeholder from JmpRel32/JccRel32: dispOffset is
// the offset returned by the emitter, target is the absolute buffer
// offset of the jump's destination.
func (a *Assembler) PatchRel32(dispOffset, target int) {
	rel := int32(target - (dispOffset + 4))
	a.buf.Patch4(dispOffset, uint32(rel))
}

// PatchRel8 resolves a placeholder from JmpRel8/JccRel8. The caller is
// responsible for having verified the displacement fits in a signed
// byte; PatchRel8 itself does not check the range.
func (a *Assembler) PatchRel8(dispOffset, target int) {
	rel := int8(target - (dispOffset + 1))
	a.buf.PatchBytes(dispOffset, []byte{byte(rel)})
}

// CallRel32 emits a near call with a placeholder 32-bit displacement,
// returning its offset. The compiler does not use it: helper calls and
// patchable call sites are both emitted as AlignedMovRegImm followed by
// CallReg.
func (a *Assembler) CallRel32() int {
	a.emit(0xE8)
	off := a.Offset()
	a.emitInt32(0)
	return off
}

// CallReg emits an indirect call through a register, the form used
// after AlignedMovRegImm loads a patchable absolute target.
func (a *Assembler) CallReg(reg Reg) {
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xFF, modRM(0xC0, 2, reg))
}

// JmpReg emits an indirect unconditional jump through a register, used
// for tail jumps: into the unwinder entry trampoline (from compiled code
// and from both stubs), from the method stub into freshly compiled code,
// and from the unwinder trampoline to its resume address.
func (a *Assembler) JmpReg(reg Reg) {
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xFF, modRM(0xC0, 4, reg))
}

// SetccReg stores 1 or 0 into the low byte of reg according to cc,
// zero-extending the rest of the register to match Go's boolean-as-word
// convention for compiled comparison results.
func (a *Assembler) SetccReg(cc Cond, reg Reg) {
	if reg >= 4 {
		// A REX prefix selects SPL/BPL/SIL/DIL (and r8b..r15b) instead
		// of AH/CH/DH/BH.
		a.emit(rex(false, false, false, reg >= 8))
	}
	a.emit(0x0F, 0x90|byte(cc), modRM(0xC0, 0, reg))
	// movzx reg, reg8
	a.emit(a.rexAlways(reg, reg), 0x0F, 0xB6, modRM(0xC0, reg, reg))
}

// CmovRegReg: conditionally move src into dst if cc holds, else leave
// dst unchanged. No compiler template emits it.
func (a *Assembler) CmovRegReg(cc Cond, dst, src Reg) {
	a.emit(a.rexAlways(dst, src), 0x0F, 0x40|byte(cc), modRM(0xC0, dst, src))
}
