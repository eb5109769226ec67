package compiler

import (
	"bytes"
	"encoding/binary"
	"testing"

	"jitvm/pkg/abi"
	"jitvm/pkg/vm"
)

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// TestCompileAddAndReturnEmitsExpectedBytes builds "push 2; push 3; add;
// return" for a static, no-argument method and checks the emitted machine
// code byte-for-byte against the prologue/arith/epilogue templates, the
// way the teacher's jit_test.go checks real encoded bytes rather than
// asserting only on behavior.
func TestCompileAddAndReturnEmitsExpectedBytes(t *testing.T) {
	method := &vm.Method{Name: "add", Spec: "()I", Flags: vm.FlagStatic}

	instructions := []Instruction{
		{BytecodeIP: 0, Op: OpPushConst, Imm: 2},
		{BytecodeIP: 1, Op: OpPushConst, Imm: 3},
		{BytecodeIP: 2, Op: OpArith, Arith: ArithAdd},
		{BytecodeIP: 3, Op: OpReturn, Line: 7},
	}

	c := New(abi.Word64, 0xdeadbeef, 0)
	compiled, err := c.Compile(nil, method, instructions, 0, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var want []byte
	want = append(want, 0x55)             // push rbp
	want = append(want, 0x48, 0x89, 0xE5) // mov rbp, rsp
	want = append(want, 0x48, 0xB9)       // rex.w + movabs rcx,
	want = append(want, le64(2)...)
	want = append(want, 0x51)       // push rcx
	want = append(want, 0x48, 0xB9) // rex.w + movabs rcx,
	want = append(want, le64(3)...)
	want = append(want, 0x51)                   // push rcx
	want = append(want, 0x5B)                   // pop rbx
	want = append(want, 0x58)                   // pop rax
	want = append(want, 0x48, 0x01, 0xD8)        // add rax, rbx
	want = append(want, 0x50)                   // push rax
	want = append(want, 0x58)                   // pop rax (return value)
	want = append(want, 0x48, 0x89, 0xEC)        // mov rsp, rbp
	want = append(want, 0x5D)                   // pop rbp
	want = append(want, 0xC3)                   // ret

	if !bytes.Equal(compiled.Code, want) {
		t.Errorf("Code =\n%x\nwant\n%x", compiled.Code, want)
	}

	if compiled.LocalWords != 0 {
		t.Errorf("LocalWords = %d, want 0 (no args, no extra locals declared)", compiled.LocalWords)
	}
	if len(compiled.Lines) != 1 || compiled.Lines[0].SourceLine != 7 {
		t.Fatalf("Lines = %+v, want one entry for source line 7", compiled.Lines)
	}
	// The line entry is recorded at the offset where the return
	// instruction's own bytes begin: prologue (4) + two pushes (11 each)
	// + arith (6).
	if got, want := compiled.Lines[0].MachineOffset, 4+11+11+6; got != want {
		t.Errorf("Lines[0].MachineOffset = %d, want %d", got, want)
	}
}

func TestCompileLocalFootprintNeverShrinksBelowParameters(t *testing.T) {
	method := &vm.Method{Name: "identity", Spec: "(I)I", Flags: vm.FlagStatic}
	instructions := []Instruction{
		{BytecodeIP: 0, Op: OpLoad, Slot: 0},
		{BytecodeIP: 1, Op: OpReturn},
	}

	c := New(abi.Word64, 0, 0)
	compiled, err := c.Compile(nil, method, instructions, 0, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	wantFP := method.ParameterFootprint(abi.Word64)
	if compiled.LocalWords != wantFP {
		t.Errorf("LocalWords = %d, want %d (clamped up to the parameter footprint)", compiled.LocalWords, wantFP)
	}
}

func TestCompileTranslatesHandlerBytecodeIPsToMachineIPs(t *testing.T) {
	method := &vm.Method{Name: "guarded", Spec: "()V", Flags: vm.FlagStatic}
	instructions := []Instruction{
		{BytecodeIP: 0, Op: OpPushConst, Imm: 1},
		{BytecodeIP: 1, Op: OpReturn, Void: true},
		{BytecodeIP: 2, Op: OpPushConst, Imm: 2}, // handler body
		{BytecodeIP: 3, Op: OpReturn, Void: true},
	}
	handlers := []SourceHandler{
		{StartIP: 0, EndIP: 2, HandlerIP: 2, CatchType: 5},
	}

	c := New(abi.Word64, 0, 0)
	compiled, err := c.Compile(nil, method, instructions, 0, handlers)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if len(compiled.Handlers) != 1 {
		t.Fatalf("Handlers = %+v, want 1 entry", compiled.Handlers)
	}
	h := compiled.Handlers[0]
	if h.CatchType != 5 {
		t.Errorf("CatchType = %d, want 5", h.CatchType)
	}
	if h.MachineStart != 4 {
		t.Errorf("MachineStart = %d, want 4 (bytecodeIP 0 begins right after the 4-byte prologue)", h.MachineStart)
	}
	if h.MachineHandler <= h.MachineStart {
		t.Errorf("MachineHandler = %d, want it to land after MachineStart", h.MachineHandler)
	}
	if h.MachineEnd != h.MachineHandler {
		t.Errorf("MachineEnd = %d, want it to equal MachineHandler (endIP 2 is also the handler's own start)", h.MachineEnd)
	}
}

func TestCompilePinsAndReleasesMethodOnThread(t *testing.T) {
	method := &vm.Method{Name: "pinned", Spec: "()V", Flags: vm.FlagStatic}
	instructions := []Instruction{{BytecodeIP: 0, Op: OpReturn, Void: true}}

	thread := &vm.Thread{}
	before := thread.Reference

	c := New(abi.Word64, 0, 0)
	if _, err := c.Compile(thread, method, instructions, 0, nil); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if thread.Reference != before {
		t.Errorf("thread.Reference after Compile = %v, want restored to %v (pin released)", thread.Reference, before)
	}
}

func TestClassRefCarriesTheLoaderResolvedClass(t *testing.T) {
	npe := &vm.Class{Name: "java/lang/NullPointerException"}
	aioobe := &vm.Class{Name: "java/lang/ArrayIndexOutOfBoundsException"}
	nase := &vm.Class{Name: "java/lang/NegativeArraySizeException"}
	cce := &vm.Class{Name: "java/lang/ClassCastException"}

	BindWellKnownClasses(npe, aioobe, nase, cce)

	if classNullPointer.Class != npe {
		t.Error("BindWellKnownClasses did not bind the NullPointerException ClassRef")
	}
	if classArrayBounds.Class != aioobe {
		t.Error("BindWellKnownClasses did not bind the ArrayIndexOutOfBoundsException ClassRef")
	}
	if classNegativeLength.Class != nase {
		t.Error("BindWellKnownClasses did not bind the NegativeArraySizeException ClassRef")
	}
	if classCastException.Class != cce {
		t.Error("BindWellKnownClasses did not bind the ClassCastException ClassRef")
	}
}
