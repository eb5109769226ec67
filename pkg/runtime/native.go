//go:build amd64

package runtime

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>

static uintptr_t jitResolveSymbol(const char *name) {
	void *sym = dlsym(RTLD_DEFAULT, name);
	return (uintptr_t)sym;
}
*/
import "C"

import (
	"unsafe"

	"jitvm/pkg/vm"
	"jitvm/pkg/vmerr"
)

// callNative is a Go-assembly leaf mirroring callEntry's technique (see
// callnative_amd64.s): loads up to six integer/pointer arguments into the
// host ABI's argument registers and calls fn directly, with no cgo round
// trip for the hot path of invoking an already-resolved native symbol.
func callNative(fn uintptr, args []uintptr) uintptr

// ResolveNativeSymbol looks up m's native symbol via the OS dynamic loader
// and caches the resolved function pointer on m.NativeFunc, matching §4.8
// step 1 ("resolve via dlopen/dlsym, cache the result"). Returns
// vmerr.UnsatisfiedLinkError if the symbol cannot be found.
func ResolveNativeSymbol(m *vm.Method) error {
	if m.NativeFunc != 0 {
		return nil
	}
	cname := C.CString(m.NativeSymbol)
	defer C.free(unsafe.Pointer(cname))

	addr := uintptr(C.jitResolveSymbol(cname))
	if addr == 0 {
		return &vmerr.UnsatisfiedLinkError{Method: m.NativeSymbol}
	}
	m.NativeFunc = addr
	return nil
}

// InvokeNative implements the native-invoker's half of §4.8's bridge: it
// is the function a Processor wires into Helpers.InvokeNative, called by
// the dispatch bridge's HelperInvokeNative case once thread.Frame has
// been set to the native invoker's own synthetic frame (bridge_amd64.go).
// It reads its arguments straight out of that frame exactly the way any
// compiled method would, marshals them into the host calling convention,
// transitions the thread to Idle for the duration of the blocking host
// call (§5 "issued precisely when the current thread is about to block in
// host code"), and transitions back to Active before returning.
func InvokeNative(thread *vm.Thread, m *vm.Method) (uintptr, error) {
	if err := ResolveNativeSymbol(m); err != nil {
		return 0, err
	}

	paramFootprint := m.ParameterFootprint(wordSize)
	args := make([]uintptr, paramFootprint)
	for i := 0; i < paramFootprint; i++ {
		args[i] = vm.ArgAt(thread.Frame, i, wordSize)
	}

	thread.SetState(vm.StateIdle)
	result := callNative(m.NativeFunc, args)
	thread.SetState(vm.StateActive)

	return result, nil
}

