package runtime

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/jit/codebuf"
	"jitvm/pkg/jit/fixup"
	"jitvm/pkg/vm"
)

// methodAt resolves the *vm.Method a frame's FrameMethod slot names,
// or nil for a frame that has none (the outermost sentinel, or a frame
// whose method handle was never registered).
func methodAt(f vm.Frame, wordSize abi.WordSize) *vm.Method {
	if !f.Valid() {
		return nil
	}
	m, _ := Resolve(Handle(vm.MethodHandleAt(f, wordSize))).(*vm.Method)
	return m
}

// matchesCatchType reports whether thread's pending exception is
// assignable to the class named by catchType, a constant-pool index
// resolved the same way a checkcast's ResolvedClass operand is (§6
// resolveClass). It is the one place the unwinder needs to know the
// class of an arbitrary boxed exception object, which is why
// Helpers.ClassOf exists — every other helper already hands back or
// receives a *vm.Class directly.
func matchesCatchType(thread *vm.Thread, catchType int) bool {
	if active == nil || active.ResolveClass == nil || active.ClassOf == nil {
		return false
	}
	catchClass := active.ResolveClass(thread, catchType)
	if catchClass == nil {
		return false
	}
	excClass := active.ClassOf(thread.Exception)
	if excClass == nil {
		return false
	}
	return catchClass.IsAssignableFrom(excClass)
}

// unwindDecide implements §4.7's frame-walk/handler-search algorithm. It
// runs exactly once per exception, on the first of the unwinder's four
// dispatch calls (HelperUnwindBase); the other three read back the
// decision this call caches on thread.ResumeSP/ResumePC and thread.Frame.
// Its own dispatch return value is the target frame base, the one value
// the native trampoline needs before it can even ask for the other two
// (it has to reload the frame-base register before any further frame-
// relative load makes sense).
func unwindDecide(thread *vm.Thread) uintptr {
	for frame := thread.Frame; frame.Valid(); frame = vm.Next(frame, wordSize) {
		if m := methodAt(frame, wordSize); m != nil && !m.IsNative() && m.Compiled != nil {
			faultOffset := int(vm.ReturnAddress(frame, wordSize) - m.CompiledEntry)
			if h, ok := m.Compiled.FindHandler(faultOffset, func(catchType int) bool {
				return matchesCatchType(thread, catchType)
			}); ok {
				base := vm.Base(frame, wordSize)
				thread.Frame = frame
				// Handlers always resume with an empty operand stack,
				// never wherever RSP happened to be at the fault —
				// reset it to the method's own clean post-prologue
				// position using its declared locals footprint.
				thread.ResumeSP = base - uintptr(m.Compiled.LocalWords*int(wordSize))
				thread.ResumePC = m.CompiledEntry + uintptr(h.MachineHandler)
				thread.ResumeHasHandler = true
				return base
			}
		}

		next := vm.Next(frame, wordSize)
		nextMethod := methodAt(next, wordSize)
		if !next.Valid() || (nextMethod != nil && nextMethod.IsNative()) {
			// No protected range anywhere up the chain claims this
			// fault, and the next frame up is either nonexistent or
			// one this layer does not own (the invoke bridge's caller,
			// or a host frame below it). Resume as if frame's own call
			// had simply returned normally, handing the exception back
			// across that boundary instead — the invoke bridge and the
			// native invoker both check thread.Exception after every
			// call for exactly this case. FrameNext already holds the
			// raw value frame's own prologue would have restored into
			// the frame-base register on an ordinary return, whether
			// or not the frame that value names is itself a VM frame.
			thread.Frame = next
			thread.ResumeSP = base2w(frame, wordSize)
			thread.ResumePC = vm.ReturnAddress(frame, wordSize)
			thread.ResumeHasHandler = false
			return vm.Base(next, wordSize)
		}
	}

	// thread.Frame was already invalid on entry: nothing to walk.
	thread.ResumeSP = 0
	thread.ResumePC = 0
	thread.ResumeHasHandler = false
	return 0
}

// TraceFrame is one entry of a captured stack trace: the method active
// in a VM frame, together with the bytecode instruction pointer and
// source line its current machine PC maps to through that method's
// line-number table (§C supplemental feature 5). A frame whose method
// has no compiled code yet (still running the method stub) or whose PC
// precedes every recorded line reports BytecodeIP/SourceLine as 0, the
// same "nothing recorded" convention Compiled.LineFor uses.
type TraceFrame struct {
	Method     *vm.Method
	BytecodeIP int
	SourceLine int
}

// CaptureTrace walks thread's frame chain from the innermost (currently
// executing or faulting) frame outward, producing one TraceFrame per VM
// frame still on the chain — the host embedder's equivalent of a Java
// stack trace, built from the same frame-walk unwindDecide uses and the
// same line-number table the method compiler populates. Unlike
// unwindDecide it never mutates thread and never stops early at the
// first matching handler: every frame on the chain contributes an
// entry, all the way to the outermost.
func CaptureTrace(thread *vm.Thread) []TraceFrame {
	var trace []TraceFrame
	for frame := thread.Frame; frame.Valid(); frame = vm.Next(frame, wordSize) {
		m := methodAt(frame, wordSize)
		if m == nil {
			continue
		}
		tf := TraceFrame{Method: m}
		if m.Compiled != nil {
			pc := int(vm.ReturnAddress(frame, wordSize) - m.CompiledEntry)
			tf.BytecodeIP, tf.SourceLine = m.Compiled.LineFor(pc)
		}
		trace = append(trace, tf)
	}
	return trace
}

// base2w returns the stack pointer frame's own epilogue would have left
// behind after an ordinary "pop base; ret" — two words above frame's own
// base, matching the two words (saved base, return address) that
// sequence pops.
func base2w(frame vm.Frame, wordSize abi.WordSize) uintptr {
	return vm.Base(frame, wordSize) + 2*uintptr(wordSize)
}

// Unwinder register conventions mirror pkg/stub's, with one addition:
// regThreadH is callee-saved (RBX, per the host ABI), not caller-saved
// like the rest of this trampoline's scratch registers, because it is
// read once at entry and must survive all four dispatch calls even
// after regBase itself has been overwritten with a target frame base
// that might be invalid (the "no handler anywhere, bail to native"
// outcome legitimately resolves to zero). The dispatch bridge is a real
// cgo-exported function and preserves callee-saved registers like any
// other System-V callee would, so this holds across the sequence.
const (
	regBase     = asm.FrameBaseReg
	regDispatch = asm.R10
	regResult   = asm.RAX
	regThreadH  = asm.RBX
)

// regTargetSP/regException/regTargetPC stash the last three dispatch
// results in callee-saved registers until every call has been made.
// RSP itself cannot be moved to the target position until after the
// last dispatch call returns: moving it any earlier would point every
// subsequent CALL's implicit return-address push, and the dispatch
// bridge's own C-level stack usage, straight at the target frame's live
// locals instead of the original (failing, and already disposable)
// frame's stack.
const (
	regTargetSP  = asm.R12
	regException = asm.R13
	regTargetPC  = asm.R14
)

// EmitUnwinderEntry builds the native trampoline every failing helper
// call and every faulting compiled instruction tail-jumps into (C7). It
// makes the four dispatch calls designed for exactly this entry point
// (see abi.HelperUnwindBase's doc comment): the first runs the actual
// search and returns the target frame base; the rest are cached-value
// reads keyed off the same threadH. All four happen before RSP moves —
// only the final handful of instructions touch the target frame's
// stack, and none of them make another call. It never returns to its
// caller; the ret address everyone jumped here from is abandoned along
// with the rest of the native stack below the target frame.
func EmitUnwinderEntry(wordSize abi.WordSize, dispatchAddr uintptr) []byte {
	buf := codebuf.New(64)
	a := asm.New(buf, wordSize)
	labels := fixup.NewLabels(a)
	w := int32(wordSize)

	a.MovRegMem(regThreadH, regBase, int32(vm.FrameThread)*w)

	call := func(id abi.HelperID) {
		a.MovRegImm(asm.RDI, uint64(id))
		a.MovRegReg(asm.RSI, regThreadH)
		a.AlignedMovRegImm(regDispatch, uint64(dispatchAddr))
		a.CallReg(regDispatch)
	}

	call(abi.HelperUnwindBase)
	a.MovRegReg(regBase, regResult)

	call(abi.HelperUnwindSP)
	a.MovRegReg(regTargetSP, regResult)

	call(abi.HelperUnwindException)
	a.MovRegReg(regException, regResult)

	call(abi.HelperUnwindPC)
	a.MovRegReg(regTargetPC, regResult)

	a.MovRegReg(asm.RSP, regTargetSP)
	a.CmpRegImm(regException, 0)
	noPush := labels.New()
	labels.JumpIf(noPush, asm.CondE)
	a.Push(regException)
	labels.Mark(noPush)

	a.JmpReg(regTargetPC)

	return append([]byte(nil), buf.Bytes()...)
}
