//go:build amd64

package runtime

/*
#include <stdint.h>

extern uintptr_t goDispatchHelper(long long id, uintptr_t threadH, uintptr_t a0, uintptr_t a1);

// jitDispatchAddr hands back goDispatchHelper's own address as a plain
// machine word, since cgo gives Go code no other way to learn the
// address of its own exported C-ABI wrapper. Compiled templates embed
// this word as the absolute target of their runtime-helper call sites.
static uintptr_t jitDispatchAddr(void) {
	return (uintptr_t)goDispatchHelper;
}
*/
import "C"

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/vm"
)

// DispatchAddr returns the System-V-callable entry point compiled
// templates should load and call for every runtime-helper invocation.
func DispatchAddr() uintptr {
	return uintptr(C.jitDispatchAddr())
}

// goDispatchHelper is the single entry point every compiled template's
// runtime-helper call and every native-invoker call crosses into Go
// through. A cgo export gives it a real System-V-ABI-conforming symbol
// — the same boundary mechanism the reference JIT already relies on
// (its signal handler init goes through cgo); here it carries the much
// rarer helper-call traffic instead of being limited to setup code.
//
// Arguments and the return value are Handles (or raw words for the
// cases documented per HelperID) rather than Go values, since a pointer
// generated code holds is just a machine word with no Go type
// information attached.
//
//export goDispatchHelper
func goDispatchHelper(id C.longlong, threadH, a0, a1 C.uintptr_t) C.uintptr_t {
	if active == nil {
		return 0
	}
	thread, _ := Resolve(Handle(threadH)).(*vm.Thread)

	switch HelperID(id) {
	case HelperThrowNew:
		// a1 is the throwing frame's own base, recorded as the thread's
		// current frame before ThrowNew sets the pending exception — the
		// same "record where we are before the non-local transfer begins"
		// fix HelperCompileMethod needs, so the unwinder always starts its
		// walk from the frame that actually triggered it.
		class, _ := Resolve(Handle(a0)).(*vm.Class)
		thread.Frame = vm.Frame(uintptr(a1))
		active.ThrowNew(thread, class)
		return 0
	case HelperThrow:
		obj := Resolve(Handle(a0))
		thread.Frame = vm.Frame(uintptr(a1))
		active.Throw(thread, obj)
		return 0
	case HelperIsAssignableFrom:
		a, _ := Resolve(Handle(a0)).(*vm.Class)
		b, _ := Resolve(Handle(a1)).(*vm.Class)
		if active.IsAssignableFrom(a, b) {
			return 1
		}
		return 0
	case HelperMakeNew:
		class, _ := Resolve(Handle(a0)).(*vm.Class)
		return C.uintptr_t(Register(active.MakeNew(thread, class)))
	case HelperMakeBlankArray:
		return C.uintptr_t(Register(active.MakeBlankArray(thread, int(a0), int(a1))))
	case HelperMakeBlankObjectArray:
		class, _ := Resolve(Handle(a0)).(*vm.Class)
		return C.uintptr_t(Register(active.MakeBlankObjectArray(thread, class, int(a1))))
	case HelperResolveClass:
		return C.uintptr_t(Register(active.ResolveClass(thread, int(a1))))
	case HelperResolveMethod:
		return C.uintptr_t(Register(active.ResolveMethod(thread, int(a1))))
	case HelperInitClass:
		class, _ := Resolve(Handle(a0)).(*vm.Class)
		if err := active.InitClass(thread, class); err != nil {
			return 0
		}
		return 1
	case HelperCompileMethod:
		// a1 is the frame base the method stub (pkg/stub) established for
		// itself just before this call — the synthetic frame standing in
		// for the not-yet-compiled method's real one. Recording it as the
		// thread's current frame lets the unwinder walk through it like
		// any other frame if compilation itself raises an exception
		// (§9: "the unwinder is the only non-local transfer").
		m, _ := Resolve(Handle(a0)).(*vm.Method)
		if m == nil {
			return 0
		}
		thread.Frame = vm.Frame(uintptr(a1))
		if err := active.CompileMethod(thread, m); err != nil {
			return 0
		}
		// The stub has no way to read a Go struct field itself, so instead
		// of returning a bare success flag this hands back the one word
		// the stub actually needs next: the freshly compiled entry point
		// to tail-jump into.
		return C.uintptr_t(m.CompiledEntry)
	case HelperInvokeNative:
		// a1 is the invoker's own frame base, same reasoning as
		// HelperCompileMethod: a native call can throw, and the unwinder
		// needs thread.Frame pointing at the frame that made it.
		m, _ := Resolve(Handle(a0)).(*vm.Method)
		thread.Frame = vm.Frame(uintptr(a1))
		result, err := active.InvokeNative(thread, m)
		if err != nil {
			return C.uintptr_t(abi.InvokeFailureSentinel)
		}
		return C.uintptr_t(result)
	case HelperVTableLookup:
		class, _ := Resolve(Handle(a0)).(*vm.Class)
		if class == nil || int(a1) >= len(class.VTable) {
			return 0
		}
		return C.uintptr_t(class.VTable[a1].CompiledEntry)
	case HelperUnwindBase:
		return C.uintptr_t(unwindDecide(thread))
	case HelperUnwindSP:
		return C.uintptr_t(thread.ResumeSP)
	case HelperUnwindPC:
		return C.uintptr_t(thread.ResumePC)
	case HelperUnwindException:
		// Only a matched handler expects the exception object pushed as
		// its one operand-stack value; a bail-to-native resume leaves
		// Exception set for the caller to inspect directly instead, and
		// the trampoline must push nothing at all in that case.
		if !thread.ResumeHasHandler || thread.Exception == nil {
			return 0
		}
		return C.uintptr_t(Register(thread.Exception))
	default:
		return 0
	}
}
