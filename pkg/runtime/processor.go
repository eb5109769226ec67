//go:build amd64

package runtime

import (
	"log"

	"jitvm/pkg/abi"
	"jitvm/pkg/compiler"
	"jitvm/pkg/jit/codebuf"
	"jitvm/pkg/runtime/codecache"
	"jitvm/pkg/stub"
	"jitvm/pkg/vm"
	"jitvm/pkg/vmerr"
)

// MethodSource is what a class loader hands the Processor in place of a
// real class-file record (§6's "bytecode input format"): the compiler-IR
// instruction list already translated from raw bytecode, the method's
// declared max-locals count, its exception-handler table, and the two
// values the persisted code cache hashes together as a lookup key.
type MethodSource struct {
	Instructions   []compiler.Instruction
	LocalFootprint int
	Handlers       []compiler.SourceHandler

	// Bytecode and PoolShape feed codecache.ComputeKey. Bytecode need not
	// be the original byte array this Source was translated from — any
	// stable fingerprint of "what this method's Instructions describe"
	// works, since nothing downstream of the cache ever decodes it back
	// into bytecode.
	Bytecode  []byte
	PoolShape []byte
}

// BytecodeSource resolves a method's compiler input on demand, called
// from inside the method stub's first invocation. Returning ok=false
// reports an unresolvable method (the class loader's job, not this
// layer's), surfaced as a ResolutionError.
type BytecodeSource func(m *vm.Method) (MethodSource, bool)

// Processor owns the pieces every lazily-compiled method shares: the
// executable-memory region compiled code is placed into, the method
// stub / native invoker / unwinder trampolines, and (optionally) the
// persisted code cache. NewProcessor emits and places the shared
// trampolines eagerly, once, before it returns, and they stay pinned for
// the Processor's lifetime; their creation is not deferred to first use
// and takes no class lock.
type Processor struct {
	WordSize    abi.WordSize
	Mem         *codebuf.ExecutableMemory
	Singletons  *stub.Singletons
	UnwindEntry uintptr

	Source BytecodeSource
	Cache  *codecache.Cache

	// Verbose gates compile-event tracing the way compile.cpp's Verbose
	// constant gates its own lazy-compile logging.
	Verbose bool
	Logger  *log.Logger
}

// NewProcessor allocates the executable-memory region, emits and places
// the unwinder entry and the two shared trampolines, and installs a
// Helpers set whose CompileMethod and InvokeNative hooks route through
// this Processor. Every other field of helpers (ThrowNew, MakeNew,
// ResolveClass, IsAssignableFrom, ClassOf, ...) must already be filled
// in by the caller — they depend on a class loader and heap this layer
// takes no position on, per spec's Non-goals.
func NewProcessor(wordSize abi.WordSize, memSize int, source BytecodeSource, cache *codecache.Cache, helpers *Helpers, logger *log.Logger) (*Processor, error) {
	mem, err := codebuf.NewExecutableMemory(memSize)
	if err != nil {
		return nil, err
	}

	dispatchAddr := DispatchAddr()

	unwindEntry, _, err := mem.Place(EmitUnwinderEntry(wordSize, dispatchAddr))
	if err != nil {
		return nil, err
	}

	singletons, err := stub.Install(mem, wordSize, dispatchAddr, unwindEntry)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}

	p := &Processor{
		WordSize:    wordSize,
		Mem:         mem,
		Singletons:  singletons,
		UnwindEntry: unwindEntry,
		Source:      source,
		Cache:       cache,
		Logger:      logger,
	}

	helpers.CompileMethod = p.compileMethod
	helpers.InvokeNative = InvokeNative
	Install(helpers, wordSize)

	return p, nil
}

// BindMethod installs this Processor's shared entry point on a freshly
// loaded method, matching §3's "initially both point at the method
// stub" invariant. Native methods get the native invoker directly
// instead — they never go through a lazy-compile step of their own, so
// there is nothing for the stub to replace.
func (p *Processor) BindMethod(m *vm.Method) {
	if m.IsNative() {
		m.BindStub(p.Singletons.NativeInvokerEntry)
		return
	}
	m.BindStub(p.Singletons.MethodStubEntry)
}

// compileMethod implements Helpers.CompileMethod: the Go side of the
// method stub's lazy-compile call. It re-checks under classLock
// (idempotent compilation, §5/§8 property 5), consults the persisted
// cache before asking the method compiler to do real work, places the
// result in executable memory, publishes it onto m, and — the one step
// the stub itself cannot perform, since hand-written machine code has
// no way to recognize and rewrite an arbitrary caller's call site —
// patches the caller's direct-call immediate in place via
// stub.UpdateCaller.
func (p *Processor) compileMethod(thread *vm.Thread, m *vm.Method) error {
	var compileErr error

	vm.WithClassLock(func() {
		if m.IsCompiled() {
			return
		}

		src, ok := p.Source(m)
		if !ok {
			compileErr = vmerr.Resolutionf("no bytecode source for %s.%s%s", classNameOf(m), m.Name, m.Spec)
			return
		}

		dispatchAddr := DispatchAddr()
		key := codecache.ComputeKey(src.Bytecode, src.PoolShape)

		if p.Cache != nil {
			if rec, hit, err := p.Cache.Get(key, dispatchAddr); err == nil && hit {
				entry, _, err := p.Mem.Place(rec.Code)
				if err != nil {
					compileErr = &vmerr.OutOfMemoryError{Requesting: "compiled code", Cause: err}
					return
				}
				m.Compiled = rec.Compiled()
				m.Compiled.Entry = entry
				m.CompiledEntry = entry
				if p.Verbose {
					p.Logger.Printf("jit: %s.%s%s loaded from cache [%#x, %#x)", classNameOf(m), m.Name, m.Spec, entry, entry+uintptr(len(rec.Code)))
				}
				return
			}
		}

		c := compiler.New(p.WordSize, dispatchAddr, p.UnwindEntry)
		compiled, err := c.Compile(thread, m, src.Instructions, src.LocalFootprint, src.Handlers)
		if err != nil {
			compileErr = err
			return
		}

		entry, _, err := p.Mem.Place(compiled.Code)
		if err != nil {
			compileErr = &vmerr.OutOfMemoryError{Requesting: "compiled code", Cause: err}
			return
		}
		compiled.Entry = entry
		m.Compiled = compiled
		m.CompiledEntry = entry

		if p.Verbose {
			p.Logger.Printf("jit: compiled %s.%s%s [%#x, %#x)", classNameOf(m), m.Name, m.Spec, entry, entry+uintptr(len(compiled.Code)))
		}

		if p.Cache != nil {
			if err := p.Cache.Put(key, compiled, dispatchAddr); err != nil && p.Verbose {
				p.Logger.Printf("jit: codecache put failed for %s.%s%s: %v", classNameOf(m), m.Name, m.Spec, err)
			}
		}
	})

	if compileErr != nil {
		return compileErr
	}

	if thread.Frame.Valid() {
		returnAddr := vm.ReturnAddress(thread.Frame, p.WordSize)
		if stub.UpdateCaller(returnAddr, m.CompiledEntry, p.WordSize) && p.Verbose {
			p.Logger.Printf("jit: patched call site at %#x -> %#x", returnAddr, m.CompiledEntry)
		}
	}

	return nil
}

func classNameOf(m *vm.Method) string {
	if m.Class == nil {
		return "?"
	}
	return m.Class.Name
}
