package compiler

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/jit/asm"
	"jitvm/pkg/vm"
)

// Well-known exception classes the compiler's own templates throw
// without any bytecode-level resolution (null checks, bounds checks,
// cast failures). A real class loader never hands the compiler an
// Instruction referencing these, so nothing resolves their .Class field
// the way it resolves every other ClassRef — BindWellKnownClasses does
// that once at VM bootstrap, mirroring a real JVM's eager resolution of
// its own bootstrap exception classes rather than resolving them lazily
// by name at first throw.
var (
	classNullPointer    = &ClassRef{Name: "java/lang/NullPointerException"}
	classArrayBounds    = &ClassRef{Name: "java/lang/ArrayIndexOutOfBoundsException"}
	classNegativeLength = &ClassRef{Name: "java/lang/NegativeArraySizeException"}
	classCastException  = &ClassRef{Name: "java/lang/ClassCastException"}
)

// BindWellKnownClasses populates the four exception ClassRefs above
// with the class loader's real resolution, once, before any method
// compiles. A Processor calls this during startup, after it resolves
// these four classes itself exactly as it would resolve any class named
// from a real class file.
func BindWellKnownClasses(nullPointer, arrayBounds, negativeLength, classCast *vm.Class) {
	classNullPointer.Class = nullPointer
	classArrayBounds.Class = arrayBounds
	classNegativeLength.Class = negativeLength
	classCastException.Class = classCast
}

// emitThrowNewClass loads class and calls throwNew(thread, class). The
// helper always raises an exception (it has no success outcome to
// distinguish), so the template unconditionally hands control to the
// unwinder afterward rather than falling through into whatever template
// follows or returning normally from this frame.
func (comp *compilation) emitThrowNewClass(class *ClassRef, reg asm.Reg) {
	comp.loadPoolObj(reg, class.Class)
	comp.callHelper(int64(abi.HelperThrowNew), reg, regBase)
	comp.emitJumpToUnwinder()
}

// emitNullCheck implements this compiler's explicit (rather than
// hardware-trap) null-pointer check: an inline compare and branch
// around a throwNew(NullPointerException) call. A real signal-handler-
// based implicit check would avoid the branch on the hot path entirely,
// but needs the host process's fault handler wired up; this compiler
// takes the simpler, self-contained route instead.
func (comp *compilation) emitNullCheck(reg asm.Reg) {
	okLabel := comp.labels.New()
	comp.asm.CmpRegImm(reg, 0)
	comp.labels.JumpIf(okLabel, asm.CondNE)

	classReg := regScratch
	if reg == regScratch {
		classReg = regLeft
	}
	comp.emitThrowNewClass(classNullPointer, classReg)
	comp.labels.Mark(okLabel)
}
