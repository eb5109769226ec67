package vm

import (
	"jitvm/pkg/abi"
	"jitvm/pkg/vm/pool"
)

// MethodFlags classify a Method's dispatch and calling convention.
type MethodFlags uint32

const (
	FlagStatic  MethodFlags = 1 << 0
	FlagNative  MethodFlags = 1 << 1
	FlagVirtual MethodFlags = 1 << 2
)

// Method is the external entity this layer receives from the class
// loader: a flags word, a parameter footprint, a return-type tag, a
// compact spec string, and two mutable pointers that start out aimed at
// the shared method stub / an empty pool and get replaced exactly once
// by a successful compile.
type Method struct {
	Name  string
	Class *Class
	Flags MethodFlags
	Spec  string // compact "(<args>)<ret>" form

	ParamFootprint int
	ReturnType     byte

	Compiled *Compiled
	Pool     *pool.Pool

	// NativeSymbol holds the host-function name the native bridge
	// resolves (§4.8 step 1). It is kept after resolution; the resolved
	// function pointer is stored in NativeFunc.
	NativeSymbol string
	NativeFunc   uintptr

	// CompiledEntry is the absolute machine address of Compiled's first
	// byte, cached alongside Compiled so call-site patching can read it
	// without re-deriving it from the Compiled record's placement.
	CompiledEntry uintptr

	// stubEntry is filled in by the Processor once the shared method
	// stub exists; every not-yet-compiled Method starts with
	// CompiledEntry == stubEntry.
	stubEntry uintptr
}

// IsStatic/IsNative/IsVirtual report the corresponding flag bit.
func (m *Method) IsStatic() bool  { return m.Flags&FlagStatic != 0 }
func (m *Method) IsNative() bool  { return m.Flags&FlagNative != 0 }
func (m *Method) IsVirtual() bool { return m.Flags&FlagVirtual != 0 }

// IsCompiled reports whether this method's entry no longer points at
// the shared stub — i.e. whether a real Compiled record has been
// published.
func (m *Method) IsCompiled() bool {
	return m.Compiled != nil && m.CompiledEntry != m.stubEntry
}

// BindStub records the Processor's shared stub entry point as this
// method's initial (unresolved) entry, matching §3's "initially both
// point at the method stub" invariant.
func (m *Method) BindStub(stubEntry uintptr) {
	m.stubEntry = stubEntry
	m.CompiledEntry = stubEntry
}

// ParameterFootprint is a thin forwarder to abi.ParameterFootprint using
// this method's own spec string and staticness, matching the host
// embedder API's parameterFootprint(spec, isStatic) entry point (§6).
func (m *Method) ParameterFootprint(wordSize abi.WordSize) int {
	return abi.ParameterFootprint(m.Spec, m.IsStatic(), wordSize)
}
