package asm

import (
	"bytes"
	"testing"

	"jitvm/pkg/abi"
	"jitvm/pkg/jit/codebuf"
)

func newAsm(word abi.WordSize) *Assembler {
	return New(codebuf.New(0), word)
}

func TestMovRegRegEncoding(t *testing.T) {
	a := newAsm(abi.Word64)
	a.MovRegReg(RBX, RAX) // mov rbx, rax
	want := []byte{0x48, 0x89, 0xC3}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("MovRegReg(RBX, RAX) = %x, want %x", got, want)
	}
}

func TestMovRegRegExtendedRegistersSetRexBits(t *testing.T) {
	a := newAsm(abi.Word64)
	a.MovRegReg(R8, R9) // mov r8, r9: REX.W + REX.R(src r9 in reg field) + REX.B(dst r8 in r/m)
	got := a.Buffer().Bytes()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0]&0x48 != 0x48 { // W and R bits set
		t.Errorf("REX prefix = %#x, want W and R bits set", got[0])
	}
	if got[0]&0x01 != 0x01 { // B bit set
		t.Errorf("REX prefix = %#x, want B bit set", got[0])
	}
}

func TestMovRegImmWord64UsesFullImmediate(t *testing.T) {
	a := newAsm(abi.Word64)
	a.MovRegImm(RCX, 0x1122334455667788)
	got := a.Buffer().Bytes()
	if len(got) != 10 { // REX + B8+rd + imm64
		t.Fatalf("len = %d, want 10", len(got))
	}
	want := []byte{0x48, 0xB9, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	if !bytes.Equal(got, want) {
		t.Errorf("MovRegImm(RCX, ...) = %x, want %x", got, want)
	}
}

func TestMovRegImmWord32UsesImm32(t *testing.T) {
	a := newAsm(abi.Word32)
	a.MovRegImm(RAX, 0x11223344)
	want := []byte{0xB8, 0x44, 0x33, 0x22, 0x11}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("MovRegImm(RAX, ...) on Word32 = %x, want %x", got, want)
	}
}

func TestAlignedMovRegImmEndsWordAligned(t *testing.T) {
	a := newAsm(abi.Word64)
	a.Nop() // force misalignment
	immOffset := a.AlignedMovRegImm(RAX, 0xdeadbeef)
	if immOffset%8 != 0 {
		t.Errorf("AlignedMovRegImm immediate field offset = %d, want a multiple of 8", immOffset)
	}
	// The field itself holds the immediate we asked for.
	got := a.Buffer().Bytes()[immOffset : immOffset+8]
	want := []byte{0xef, 0xbe, 0xad, 0xde, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("immediate field = %x, want %x", got, want)
	}
}

func TestMovRegMemNoDispOmitsDisplacement(t *testing.T) {
	a := newAsm(abi.Word64)
	a.MovRegMem(RAX, RSI, 0) // mov rax, [rsi]
	want := []byte{0x48, 0x8B, 0x06}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("MovRegMem(RAX, RSI, 0) = %x, want %x", got, want)
	}
}

func TestMovRegMemFrameBaseRegAlwaysEmitsDisplacement(t *testing.T) {
	a := newAsm(abi.Word64)
	a.MovRegMem(RAX, FrameBaseReg, 0) // RBP base: mod=00 would mean RIP-relative, so disp8 is forced
	want := []byte{0x48, 0x8B, 0x45, 0x00}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("MovRegMem(RAX, RBP, 0) = %x, want %x (disp8 forced)", got, want)
	}
}

func TestMovRegMemDisp32WhenOutOfByteRange(t *testing.T) {
	a := newAsm(abi.Word64)
	a.MovRegMem(RAX, RSI, 1000)
	got := a.Buffer().Bytes()
	if len(got) != 7 { // REX + opcode + modRM + 4-byte disp
		t.Fatalf("len = %d, want 7", len(got))
	}
	if got[2] != modRM(0x80, RAX, RSI) {
		t.Errorf("ModR/M = %#x, want disp32 mod bits", got[2])
	}
}

func TestMovRegMemRSPBaseUsesSIB(t *testing.T) {
	a := newAsm(abi.Word64)
	a.MovRegMem(RAX, RSP, 0)
	want := []byte{0x48, 0x8B, 0x04, 0x24}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("MovRegMem(RAX, RSP, 0) = %x, want %x (SIB byte present)", got, want)
	}
}

func TestRetAndNop(t *testing.T) {
	a := newAsm(abi.Word64)
	a.Nop()
	a.Ret()
	want := []byte{0x90, 0xC3}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Nop+Ret = %x, want %x", got, want)
	}
}

func TestPushPopExtendedRegister(t *testing.T) {
	a := newAsm(abi.Word64)
	a.Push(R12)
	a.Pop(R12)
	want := []byte{0x41, 0x54, 0x41, 0x5C}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Push/Pop(R12) = %x, want %x", got, want)
	}
}

func TestAddRegImmSmallUsesImm8Form(t *testing.T) {
	a := newAsm(abi.Word64)
	a.AddRegImm(RAX, 5)
	want := []byte{0x48, 0x83, 0xC0, 0x05}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("AddRegImm(RAX, 5) = %x, want %x", got, want)
	}
}

func TestAddRegImmLargeUsesImm32Form(t *testing.T) {
	a := newAsm(abi.Word64)
	a.AddRegImm(RAX, 1000)
	got := a.Buffer().Bytes()
	if len(got) != 7 { // REX + 0x81 + modRM + imm32
		t.Fatalf("len = %d, want 7", len(got))
	}
	if got[1] != 0x81 {
		t.Errorf("opcode = %#x, want 0x81 (imm32 form)", got[1])
	}
}

func TestIDivRegAndSignExtension(t *testing.T) {
	a := newAsm(abi.Word64)
	a.Cqo()
	a.IDivReg(RCX)
	want := []byte{0x48, 0x99, 0x48, 0xF7, 0xF9}
	if got := a.Buffer().Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Cqo+IDivReg(RCX) = %x, want %x", got, want)
	}
}

func TestOffsetTracksBufferLength(t *testing.T) {
	a := newAsm(abi.Word64)
	if a.Offset() != 0 {
		t.Fatalf("Offset() on fresh assembler = %d, want 0", a.Offset())
	}
	a.Ret()
	if a.Offset() != 1 {
		t.Errorf("Offset() after one byte = %d, want 1", a.Offset())
	}
}

func TestWordSizeReportsConstructorArgument(t *testing.T) {
	if newAsm(abi.Word32).WordSize() != abi.Word32 {
		t.Error("WordSize() did not report Word32")
	}
	if newAsm(abi.Word64).WordSize() != abi.Word64 {
		t.Error("WordSize() did not report Word64")
	}
}
