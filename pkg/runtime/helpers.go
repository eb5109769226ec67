package runtime

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/vm"
)

// HelperID is an alias for abi.HelperID, kept so call sites within this
// package read naturally; the type itself lives in pkg/abi because both
// this package and pkg/compiler need to name the same constants without
// creating an import cycle between them.
type HelperID = abi.HelperID

const (
	HelperThrowNew             = abi.HelperThrowNew
	HelperThrow                = abi.HelperThrow
	HelperIsAssignableFrom     = abi.HelperIsAssignableFrom
	HelperMakeNew              = abi.HelperMakeNew
	HelperMakeBlankArray       = abi.HelperMakeBlankArray
	HelperMakeBlankObjectArray = abi.HelperMakeBlankObjectArray
	HelperResolveClass         = abi.HelperResolveClass
	HelperResolveField         = abi.HelperResolveField
	HelperResolveMethod        = abi.HelperResolveMethod
	HelperResolveNativeMethod  = abi.HelperResolveNativeMethod
	HelperInitClass            = abi.HelperInitClass
	HelperCompileMethod        = abi.HelperCompileMethod
	HelperInvokeNative         = abi.HelperInvokeNative
)

// Helpers holds the Go-side implementation of every runtime helper, one
// set per VM instance. The caller supplies the class-loader/heap-backed
// entries (tests use fakes); NewProcessor fills in only CompileMethod
// and InvokeNative itself.
type Helpers struct {
	ThrowNew           func(t *vm.Thread, class *vm.Class)
	Throw              func(t *vm.Thread, obj any)
	IsAssignableFrom   func(a, b *vm.Class) bool
	MakeNew            func(t *vm.Thread, class *vm.Class) any
	MakeBlankArray     func(t *vm.Thread, elemWidth int, length int) any
	MakeBlankObjectArray func(t *vm.Thread, elemClass *vm.Class, length int) any
	ResolveClass       func(t *vm.Thread, poolIndex int) *vm.Class
	ResolveField       func(t *vm.Thread, poolIndex int) (offset int, isStatic bool)
	ResolveMethod      func(t *vm.Thread, poolIndex int) *vm.Method
	ResolveNativeMethod func(t *vm.Thread, m *vm.Method) error
	InitClass          func(t *vm.Thread, class *vm.Class) error
	CompileMethod      func(t *vm.Thread, m *vm.Method) error
	InvokeNative       func(t *vm.Thread, m *vm.Method) (uintptr, error)

	// ClassOf is the one piece of class-loader knowledge the unwinder
	// needs that none of the other helpers expose: given an arbitrary
	// boxed exception object, what class is it an instance of. Every
	// other helper already receives or produces *vm.Class values
	// directly; a pending exception is the one place this layer is
	// handed a bare `any` with no class reference attached.
	ClassOf func(obj any) *vm.Class
}

// active is the process-wide Helpers set the cgo dispatch bridge reads
// from; there is exactly one VM instance per process in this design
// (§5's classLock is likewise a single process-wide lock), so a package
// global mirrors that rather than threading a VM handle through every
// emitted call.
var active *Helpers

// wordSize is the process-wide target width every frame this package
// walks was laid out with, set alongside active since both come from
// the same Processor configuration.
var wordSize = abi.Word64

// Install registers h as the helper set the dispatch bridge will route
// calls into, and w as the word size compiled frames were laid out
// with. Must be called once before any compiled code that can reach a
// helper call is invoked.
func Install(h *Helpers, w abi.WordSize) {
	active = h
	wordSize = w
}
