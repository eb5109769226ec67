// Package asm is the native instruction encoder (C2): it emits a subset
// of x86 / x86-64 instructions sufficient for a template JIT — register
// moves, memory moves with [base+disp] addressing and sign/zero
// extension, immediate loads, push/pop, arithmetic with immediates and
// registers, shifts, compares, branches, calls, ret, and nop.
//
// Displacements use the shortest correct encoding: no-disp when the
// displacement is zero and the base isn't the frame-base register
// (RBP/R13 always need a displacement byte, matching the ModR/M encoding
// quirk where mod=00,rm=101 means RIP-relative instead of [RBP]), 8-bit
// when it fits, 32-bit otherwise.
package asm

import (
	"encoding/binary"

	"jitvm/pkg/abi"
	"jitvm/pkg/jit/codebuf"
)

// Reg is an x86-64 general-purpose register encoding. On Word32 targets
// only the low 8 (RAX..RDI) are valid.
type Reg byte

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R10 Reg = 10
	R11 Reg = 11
	R12 Reg = 12
	R13 Reg = 13
	R14 Reg = 14
	R15 Reg = 15
)

// FrameBaseReg is the register that holds the current frame base
// (equivalent to RBP in the System V convention used throughout this
// package); it is called out by name because several encodings special-
// case it (§4.2's "base ≠ frame-base-register" rule for no-disp mode).
const FrameBaseReg = RBP

// Assembler emits machine code into a codebuf.Buffer. It is created once
// per method compilation and discarded (or reset) once the method's
// Compiled record has been finalized.
type Assembler struct {
	buf      *codebuf.Buffer
	wordSize abi.WordSize
}

// New creates an Assembler that emits WordSize-appropriate encodings into
// buf.
func New(buf *codebuf.Buffer, wordSize abi.WordSize) *Assembler {
	return &Assembler{buf: buf, wordSize: wordSize}
}

// Offset returns the current write position, usable later as a patch
// target or as a machine-IP for the bytecode-IP map.
func (a *Assembler) Offset() int { return a.buf.Length() }

// Buffer exposes the underlying code buffer for patch operations that
// the fixup and compiler packages perform directly (resolveJumps,
// call-site rewriting).
func (a *Assembler) Buffer() *codebuf.Buffer { return a.buf }

// WordSize reports the target width this assembler was constructed for.
func (a *Assembler) WordSize() abi.WordSize { return a.wordSize }

func (a *Assembler) is64() bool { return a.wordSize == abi.Word64 }

func (a *Assembler) emit(bytes ...byte) {
	for _, b := range bytes {
		a.buf.Append1(b)
	}
}

func (a *Assembler) emitInt32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	a.emit(tmp[0], tmp[1], tmp[2], tmp[3])
}

func (a *Assembler) emitUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	a.emit(tmp[0], tmp[1], tmp[2], tmp[3], tmp[4], tmp[5], tmp[6], tmp[7])
}

// rex builds a REX prefix: 0100WRXB.
func rex(w, r, x, b bool) byte {
	var prefix byte = 0x40
	if w {
		prefix |= 0x08
	}
	if r {
		prefix |= 0x04
	}
	if x {
		prefix |= 0x02
	}
	if b {
		prefix |= 0x01
	}
	return prefix
}

// rexFor returns the REX prefix for an operand-size-width instruction
// (W set only on Word64 targets) touching reg/rm, or 0 if none of REX.W,
// REX.R, REX.B are needed (the prefix is then omitted entirely).
func (a *Assembler) rexFor(reg, rm Reg) (byte, bool) {
	w := a.is64()
	r := reg >= 8
	b := rm >= 8
	if !w && !r && !b {
		return 0, false
	}
	return rex(w, r, false, b), true
}

// modRM builds a ModR/M byte: [mod:2][reg:3][rm:3]. mod is pre-shifted
// (0x00=no-disp, 0x40=disp8, 0x80=disp32, 0xC0=register-direct).
func modRM(mod byte, reg, rm Reg) byte {
	return mod | ((byte(reg) & 7) << 3) | (byte(rm) & 7)
}

// MovRegReg: mov dst, src.
func (a *Assembler) MovRegReg(dst, src Reg) {
	if p, ok := a.rexFor(src, dst); ok {
		a.emit(p)
	}
	a.emit(0x89, modRM(0xC0, src, dst))
}

// MovRegImm loads a WordSize-wide immediate into reg. On Word64 this is
// the full 64-bit immediate form (REX.W + B8+rd + imm64); on Word32 it is
// the 32-bit immediate form. See AlignedMovRegImm for the padded variant
// call-site patching depends on.
func (a *Assembler) MovRegImm(reg Reg, imm uint64) {
	if a.is64() {
		a.emit(rex(true, false, false, reg >= 8), 0xB8|byte(reg&7))
		a.emitUint64(imm)
	} else {
		if reg >= 8 {
			a.emit(rex(false, false, false, true))
		}
		a.emit(0xB8 | byte(reg&7))
		a.emitInt32(int32(uint32(imm)))
	}
}

// AlignedMovRegImm emits nop padding before MovRegImm so the immediate
// field ends word-aligned. This is the mechanism that makes call-site
// patching (§4.6) a single tear-free aligned store: the patch target is
// always a whole machine word starting at an address divisible by
// WordSize.
//
// Returns the buffer offset of the first byte of the immediate field.
func (a *Assembler) AlignedMovRegImm(reg Reg, imm uint64) int {
	wordSize := int(a.wordSize)
	prefixLen := 2 // REX + opcode, the common case
	if a.is64() {
		// REX.W + B8+rd: REX is always emitted on Word64.
		prefixLen = 2
	} else if reg >= 8 {
		prefixLen = 2
	} else {
		prefixLen = 1
	}
	for (a.Offset()+prefixLen)%wordSize != 0 {
		a.Nop()
	}
	a.MovRegImm(reg, imm)
	return a.Offset() - wordSize
}

// MovRegMem: mov reg, [base + disp] (load, full word width).
func (a *Assembler) MovRegMem(reg, base Reg, disp int32) {
	if p, ok := a.rexFor(reg, base); ok {
		a.emit(p)
	}
	a.emit(0x8B)
	a.emitMemOperand(reg, base, disp)
}

// MovMemReg: mov [base + disp], reg (store, full word width).
func (a *Assembler) MovMemReg(base Reg, disp int32, reg Reg) {
	if p, ok := a.rexFor(reg, base); ok {
		a.emit(p)
	}
	a.emit(0x89)
	a.emitMemOperand(reg, base, disp)
}

// MovRegMem8/16 zero-extend a narrow memory load; the Signed variants
// sign-extend instead. These back the narrowing loads used by byte/char/
// short array and field access (§4.5's array-access and getfield
// templates with sub-word widths).
func (a *Assembler) MovRegMem8(reg, base Reg, disp int32) {
	a.emit(a.rexAlways(reg, base), 0x0F, 0xB6)
	a.emitMemOperand(reg, base, disp)
}

func (a *Assembler) MovRegMem8Signed(reg, base Reg, disp int32) {
	a.emit(a.rexAlways(reg, base), 0x0F, 0xBE)
	a.emitMemOperand(reg, base, disp)
}

func (a *Assembler) MovRegMem16(reg, base Reg, disp int32) {
	a.emit(a.rexAlways(reg, base), 0x0F, 0xB7)
	a.emitMemOperand(reg, base, disp)
}

func (a *Assembler) MovRegMem16Signed(reg, base Reg, disp int32) {
	a.emit(a.rexAlways(reg, base), 0x0F, 0xBF)
	a.emitMemOperand(reg, base, disp)
}

func (a *Assembler) MovMem8Reg(base Reg, disp int32, reg Reg) {
	if reg >= 8 || base >= 8 || reg >= RSP {
		a.emit(rex(false, reg >= 8, false, base >= 8))
	}
	a.emit(0x88)
	a.emitMemOperand(reg, base, disp)
}

func (a *Assembler) MovMem16Reg(base Reg, disp int32, reg Reg) {
	a.emit(0x66)
	if reg >= 8 || base >= 8 {
		a.emit(rex(false, reg >= 8, false, base >= 8))
	}
	a.emit(0x89)
	a.emitMemOperand(reg, base, disp)
}

// rexAlways forces a REX.W-if-64 prefix even for low registers, used by
// the two-byte 0F-prefixed opcodes where the encoding requires it for
// correctness of operand size.
func (a *Assembler) rexAlways(reg, base Reg) byte {
	return rex(a.is64(), reg >= 8, false, base >= 8)
}

// emitMemOperand emits ModR/M (+ SIB if needed) and displacement for a
// [base+disp] memory operand, picking the shortest correct form.
func (a *Assembler) emitMemOperand(reg, base Reg, disp int32) {
	needsSIB := base == RSP || base == R12
	forcedDisp := base == RBP || base == R13 // mod=00 would mean RIP-relative

	switch {
	case needsSIB:
		if disp == 0 {
			a.emit(modRM(0x00, reg, RSP), 0x24)
		} else if disp >= -128 && disp <= 127 {
			a.emit(modRM(0x40, reg, RSP), 0x24, byte(disp))
		} else {
			a.emit(modRM(0x80, reg, RSP), 0x24)
			a.emitInt32(disp)
		}
	case forcedDisp:
		if disp >= -128 && disp <= 127 {
			a.emit(modRM(0x40, reg, base), byte(disp))
		} else {
			a.emit(modRM(0x80, reg, base))
			a.emitInt32(disp)
		}
	case disp == 0:
		a.emit(modRM(0x00, reg, base))
	case disp >= -128 && disp <= 127:
		a.emit(modRM(0x40, reg, base), byte(disp))
	default:
		a.emit(modRM(0x80, reg, base))
		a.emitInt32(disp)
	}
}

// Nop emits a single-byte no-op, used both as alignment padding
// (AlignedMovRegImm) and as the catalog's explicit nop instruction.
func (a *Assembler) Nop() { a.emit(0x90) }

// Ret emits a near return.
func (a *Assembler) Ret() { a.emit(0xC3) }

// Push/Pop operate at full machine-word width.
func (a *Assembler) Push(reg Reg) {
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 | byte(reg&7))
}

func (a *Assembler) Pop(reg Reg) {
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 | byte(reg&7))
}
