package fixup

import (
	"testing"

	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/jit/codebuf"
)

func newAsm() *asm.Assembler {
	return asm.New(codebuf.New(0), abi.Word64)
}

func TestLabelsForwardJumpPatchesRelativeDisplacement(t *testing.T) {
	a := newAsm()
	l := NewLabels(a)

	skip := l.New()
	l.JumpIf(skip, asm.CondNE) // 6 bytes: 0F 8x + rel32
	a.MovRegImm(asm.RAX, 1)    // filler so the target isn't right after the jump
	l.Mark(skip)

	code := a.Buffer().Bytes()
	if code[0] != 0x0F || code[1] != 0x80|byte(asm.CondNE) {
		t.Fatalf("unexpected Jcc opcode bytes: %x", code[:2])
	}

	dispOffset := 2
	rel := int32(code[dispOffset]) | int32(code[dispOffset+1])<<8 | int32(code[dispOffset+2])<<16 | int32(code[dispOffset+3])<<24
	wantRel := int32(len(code) - (dispOffset + 4))
	if rel != wantRel {
		t.Errorf("patched displacement = %d, want %d (jump lands exactly at the mark)", rel, wantRel)
	}
}

func TestLabelsMultipleReferencesAllPatched(t *testing.T) {
	a := newAsm()
	l := NewLabels(a)

	done := l.New()
	l.Jump(done)
	l.Jump(done)
	l.Mark(done)

	code := a.Buffer().Bytes()
	// Each JmpRel32 is 5 bytes (0xE9 + rel32); both should point at the
	// mark, which is right after the second jump (offset 10).
	for _, start := range []int{0, 5} {
		dispOffset := start + 1
		rel := int32(code[dispOffset]) | int32(code[dispOffset+1])<<8 | int32(code[dispOffset+2])<<16 | int32(code[dispOffset+3])<<24
		want := int32(10 - (dispOffset + 4))
		if rel != want {
			t.Errorf("jump at %d: displacement = %d, want %d", start, rel, want)
		}
	}
}

func TestLabelsMarkedTwicePanics(t *testing.T) {
	a := newAsm()
	l := NewLabels(a)
	id := l.New()
	l.Mark(id)

	defer func() {
		if recover() == nil {
			t.Error("marking a label twice did not panic")
		}
	}()
	l.Mark(id)
}

func TestBytecodeJumpsResolvesForwardAndBackwardBranches(t *testing.T) {
	a := newAsm()
	bj := NewBytecodeJumps(a)

	bj.MarkInstruction(0)
	bj.Branch(2, 0, false) // forward, unconditional: 5 bytes (0xE9 + rel32)

	bj.MarkInstruction(1)
	a.MovRegImm(asm.RAX, 0) // filler

	bj.MarkInstruction(2)
	bj.Branch(0, 0, false) // backward, unconditional

	bj.ResolveJumps()

	code := a.Buffer().Bytes()
	forwardDisp := 1
	forwardRel := int32(code[forwardDisp]) | int32(code[forwardDisp+1])<<8 | int32(code[forwardDisp+2])<<16 | int32(code[forwardDisp+3])<<24
	wantForward := int32(bj.MachineIPFor(2) - (forwardDisp + 4))
	if forwardRel != wantForward {
		t.Errorf("forward branch displacement = %d, want %d", forwardRel, wantForward)
	}

	backwardDisp := bj.MachineIPFor(2) + 1
	backwardRel := int32(code[backwardDisp]) | int32(code[backwardDisp+1])<<8 | int32(code[backwardDisp+2])<<16 | int32(code[backwardDisp+3])<<24
	wantBackward := int32(bj.MachineIPFor(0) - (backwardDisp + 4))
	if backwardRel != wantBackward {
		t.Errorf("backward branch displacement = %d, want %d", backwardRel, wantBackward)
	}
}

func TestBytecodeJumpsMachineIPForEndFallsBackPastLastInstruction(t *testing.T) {
	a := newAsm()
	bj := NewBytecodeJumps(a)

	bj.MarkInstruction(0)
	a.MovRegImm(asm.RAX, 0)

	// bytecodeIP 5 is past the method's last recorded instruction boundary
	// (a handler table's exclusive endIP commonly lands here).
	if got, want := bj.MachineIPForEnd(5), a.Offset(); got != want {
		t.Errorf("MachineIPForEnd(5) = %d, want %d (current offset)", got, want)
	}
}

func TestBytecodeJumpsLookupMissPanics(t *testing.T) {
	a := newAsm()
	bj := NewBytecodeJumps(a)
	bj.MarkInstruction(0)
	bj.Branch(99, 0, false)

	defer func() {
		if recover() == nil {
			t.Error("resolving a branch to a non-instruction-boundary bytecodeIP did not panic")
		}
	}()
	bj.ResolveJumps()
}
