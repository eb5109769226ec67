package compiler

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/jit/codebuf"
	"jitvm/pkg/jit/fixup"
	"jitvm/pkg/vm"
	"jitvm/pkg/vm/pool"
)

// scratch/stack register conventions. The live operand stack is the
// machine stack itself (RSP), so arithmetic templates pop straight into
// these two scratch registers and push the result back — no virtual
// register allocation is needed for a linear template emitter (§1
// Non-goals: "no ... register allocation").
const (
	regLeft    = asm.RAX
	regRight   = asm.RBX
	regScratch = asm.RCX
	regBase    = asm.FrameBaseReg

	// regDispatch holds the dispatch bridge's (or the unwinder's) address
	// across a CallReg/JmpReg, matching pkg/stub's and pkg/runtime's own
	// regDispatch = R10 convention. It must stay outside
	// RDI/RSI/RDX/RCX — the four registers callHelper just loaded with
	// the helper's arguments — or loading it would clobber one of them.
	regDispatch = asm.R10
)

// Compiler compiles one method at a time into a fresh Compiled record.
// It holds no state across Compile calls; a single Compiler value may
// be reused (or one created per compilation — both are safe since all
// mutable state lives in the per-call compilation below).
type Compiler struct {
	wordSize     abi.WordSize
	dispatchAddr uintptr // runtime.DispatchAddr(): entry point for helper calls
	unwindAddr   uintptr // runtime.Processor.UnwindEntry: entry point for the unwinder
}

// New creates a Compiler targeting wordSize, routing every runtime-
// helper call through dispatchAddr (see pkg/runtime.DispatchAddr) and
// every throw template's control transfer through unwindAddr (see
// pkg/runtime.Processor.UnwindEntry). The compiler package does not
// import pkg/runtime itself, to avoid the import cycle that would
// create (runtime depends on compiler to invoke compileMethod); callers
// wire both addresses in explicitly.
func New(wordSize abi.WordSize, dispatchAddr, unwindAddr uintptr) *Compiler {
	return &Compiler{wordSize: wordSize, dispatchAddr: dispatchAddr, unwindAddr: unwindAddr}
}

// compilation holds the mutable state for one Compile call.
type compilation struct {
	c       *Compiler
	method  *vm.Method
	buf     *codebuf.Buffer
	asm     *asm.Assembler
	labels  *fixup.Labels
	jumps   *fixup.BytecodeJumps
	pool    *pool.Builder
	lines   []vm.LineEntry
	localFP int // local variable footprint, in words (>= paramFootprint)

	poolRegClobbered bool
}

// poolReg is the designated pool-pointer register (§4.4): caller-saved,
// distinct from the arithmetic scratch registers so a helper call that
// clobbers it can be detected and reloaded lazily.
const poolReg = asm.R12

// SourceHandler is one row of a method's exception-handler table as
// supplied by the class loader, expressed in bytecode IPs exactly as
// §6 describes the bytecode input format's handler table.
type SourceHandler struct {
	StartIP, EndIP, HandlerIP int
	CatchType                 int
}

// Compile emits machine code for method's instruction list and returns
// the resulting immutable Compiled record. localFootprint is the
// method's declared max-locals count in words; it must be at least the
// method's own parameter footprint. handlers is translated from
// bytecode IPs to machine IPs via the same bytecodeIP→machineIP map the
// branch templates use, per §4.5's epilogue step.
//
// If thread is non-nil, Compile holds a vm.LocalRef pinning method for
// the duration of compilation (§C supplemental feature 2's PROTECT-
// equivalent GC-root pinning) — method is reachable some other way for
// as long as the stub that triggered this compilation is on the stack,
// but nothing else about this function's own call chain keeps it so. A
// nil thread (every caller in this package's own tests) just skips the
// pin.
func (c *Compiler) Compile(thread *vm.Thread, method *vm.Method, instructions []Instruction, localFootprint int, handlers []SourceHandler) (*vm.Compiled, error) {
	if thread != nil {
		ref := vm.NewLocalRef(thread, method)
		defer ref.Release()
	}

	paramFP := method.ParameterFootprint(c.wordSize)
	if localFootprint < paramFP {
		localFootprint = paramFP
	}

	comp := &compilation{
		c:       c,
		method:  method,
		buf:     codebuf.New(0),
		pool:    pool.NewBuilder(c.wordSize),
		localFP: localFootprint,
		// Nothing has loaded the pool register on method entry.
		poolRegClobbered: true,
	}
	comp.asm = asm.New(comp.buf, c.wordSize)
	comp.labels = fixup.NewLabels(comp.asm)
	comp.jumps = fixup.NewBytecodeJumps(comp.asm)

	comp.emitPrologue(paramFP, localFootprint)

	for _, ins := range instructions {
		comp.jumps.MarkInstruction(ins.BytecodeIP)
		if ins.Line != 0 {
			comp.lines = append(comp.lines, vm.LineEntry{
				MachineOffset: comp.asm.Offset(),
				BytecodeIP:    ins.BytecodeIP,
				SourceLine:    ins.Line,
			})
		}
		comp.emitOne(ins)
	}

	comp.jumps.ResolveJumps()

	method.Pool = comp.pool.Build()

	compiledHandlers := make([]vm.HandlerEntry, len(handlers))
	for i, h := range handlers {
		compiledHandlers[i] = vm.HandlerEntry{
			MachineStart:   comp.jumps.MachineIPFor(h.StartIP),
			MachineEnd:     comp.jumps.MachineIPForEnd(h.EndIP),
			MachineHandler: comp.jumps.MachineIPFor(h.HandlerIP),
			CatchType:      h.CatchType,
		}
	}

	return &vm.Compiled{
		Code:       append([]byte(nil), comp.buf.Bytes()...),
		Lines:      comp.lines,
		Handlers:   compiledHandlers,
		LocalWords: localFootprint,
	}, nil
}

// emitPrologue implements §4.5's prologue: "push base; move sp → base;
// if localFootprint > paramFootprint then sub (localFootprint -
// paramFootprint), sp".
func (comp *compilation) emitPrologue(paramFP, localFootprint int) {
	comp.asm.Push(regBase)
	comp.asm.MovRegReg(regBase, asm.RSP)
	if localFootprint > paramFP {
		comp.asm.SubRegImm(asm.RSP, int32((localFootprint-paramFP)*int(comp.c.wordSize)))
	}
}

// emitEpilogue implements the return template's teardown: "restore
// sp = base; pop base; ret".
func (comp *compilation) emitEpilogue() {
	comp.asm.MovRegReg(asm.RSP, regBase)
	comp.asm.Pop(regBase)
	comp.asm.Ret()
}

// reloadPoolReg emits `load pool_reg ← [frame_base + FrameMethod].code`
// equivalent the first time the pool register is needed after being
// clobbered, per §4.4. Since this design keeps the live Pool on the
// Method rather than duplicating it into a side table, the reload reads
// the method pointer from the frame and indexes through it via a fixed
// field offset into a pool-pointer word the runtime keeps alongside
// Method.Pool (see vm.Method — the field itself is Go-managed, so the
// "reload" compiled code performs is conceptually a helper call; this
// compiler instead defers every pool dereference to a helper call and
// only tracks clobbering to decide whether to skip a redundant one).
func (comp *compilation) ensurePoolLoaded() {
	if !comp.poolRegClobbered {
		return
	}
	comp.asm.MovRegMem(poolReg, regBase, int32(vm.FrameMethod)*int32(comp.c.wordSize))
	comp.poolRegClobbered = false
}

// markHelperCall records that a helper call is about to clobber the
// pool register (§4.4: "each direct/indirect call to external helpers
// marks the pool register clobbered").
func (comp *compilation) markHelperCall() {
	comp.poolRegClobbered = true
}

// loadPoolObj emits the sequence that loads a reference to obj (a
// *vm.Class, a resolved field/method descriptor, or any other boxed
// constant this method needs to carry) into reg, routing through the
// pool exactly as emitPushConst does for a ConstObj operand. Used by
// every template that needs to hand a resolved reference to a helper
// call rather than push it onto the operand stack.
func (comp *compilation) loadPoolObj(reg asm.Reg, obj any) {
	offset := comp.pool.Reference(obj)
	comp.ensurePoolLoaded()
	comp.asm.MovRegMem(reg, poolReg, int32(offset))
}

// callHelper emits the sequence that invokes the runtime dispatch
// bridge for helper id with up to two additional word arguments beyond
// the thread pointer, which is always loaded from the frame's
// FrameThread slot.
func (comp *compilation) callHelper(id int64, arg0, arg1 asm.Reg) {
	comp.asm.MovRegImm(asm.RDI, uint64(id))
	comp.asm.MovRegMem(asm.RSI, regBase, int32(vm.FrameThread)*int32(comp.c.wordSize)) // threadH
	comp.asm.MovRegReg(asm.RDX, arg0)
	comp.asm.MovRegReg(asm.RCX, arg1)
	comp.asm.AlignedMovRegImm(regDispatch, uint64(comp.c.dispatchAddr))
	comp.asm.CallReg(regDispatch)
	comp.markHelperCall()
}

// emitJumpToUnwinder tail-jumps into the unwinder entry trampoline
// (pkg/runtime's EmitUnwinderEntry), exactly as pkg/stub's method stub
// and native invoker do on their own failure paths. Every template that
// calls a helper known to always raise an exception uses this instead
// of falling through or returning normally — the helper itself returns
// an ordinary sentinel after only setting thread.Exception (§6/§7), so
// handing control to the unwinder is this template's job, not the
// helper's.
func (comp *compilation) emitJumpToUnwinder() {
	comp.asm.AlignedMovRegImm(regDispatch, uint64(comp.c.unwindAddr))
	comp.asm.JmpReg(regDispatch)
}
