package main

import (
	"fmt"
	"sync"

	"jitvm/pkg/compiler"
	"jitvm/pkg/runtime"
	"jitvm/pkg/vm"
)

// sourceRegistry is the demo's BytecodeSource: a plain map guarded by a
// mutex, since the method stub can in principle be hit from more than
// one thread before the first compile wins the race under classLock.
type sourceRegistry struct {
	mu      sync.Mutex
	sources map[*vm.Method]runtime.MethodSource
}

func newSourceRegistry() *sourceRegistry {
	return &sourceRegistry{sources: map[*vm.Method]runtime.MethodSource{}}
}

func (r *sourceRegistry) register(m *vm.Method, src runtime.MethodSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[m] = src
}

func (r *sourceRegistry) lookup(m *vm.Method) (runtime.MethodSource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[m]
	return src, ok
}

// scenario is one named, runnable demonstration, already built by its
// build*Scenario function (which constructs its classes/methods and
// registers their bytecode); run drives it through runtime.Invoke and
// logs the outcome.
type scenario struct {
	name string
	run  func(p *runtime.Processor, t *vm.Thread) error
}

// buildScenarios wires every demo scenario's classes and methods,
// registering bytecode-equivalent instruction streams for each
// non-native method so the processor's method stub has something to
// compile on first call.
func buildScenarios(h *heap, src *sourceRegistry) []scenario {
	var out []scenario
	out = append(out, buildArithmeticScenario(h, src))
	out = append(out, buildArrayScenario(h, src))
	out = append(out, buildNullDerefScenario(h, src))
	out = append(out, buildLazyCompileScenario(h, src))
	out = append(out, buildNativeScenario(h, src))
	return out
}

// E1: int add(int a, int b) { return a + b; } — iload_0; iload_1;
// iadd; ireturn, compiled lazily on the first call through the method
// stub.
func buildArithmeticScenario(h *heap, src *sourceRegistry) scenario {
	demo := h.defineClass("Demo")
	add := &vm.Method{Name: "add", Class: demo, Flags: vm.FlagStatic, Spec: "(II)I"}

	src.register(add, runtime.MethodSource{
		Instructions: []compiler.Instruction{
			{BytecodeIP: 0, Op: compiler.OpLoad, Slot: 0},
			{BytecodeIP: 1, Op: compiler.OpLoad, Slot: 1},
			{BytecodeIP: 2, Op: compiler.OpArith, Arith: compiler.ArithAdd},
			{BytecodeIP: 3, Op: compiler.OpReturn},
		},
		LocalFootprint: 2,
		Bytecode:       []byte{0x1a, 0x1b, 0x60, 0xac}, // iload_0 iload_1 iadd ireturn
		PoolShape:      nil,
	})

	return scenario{
		name: "e1",
		run: func(p *runtime.Processor, t *vm.Thread) error {
			p.BindMethod(add)
			result, err := runtime.Invoke(t, add, []any{int32(3), int32(4)})
			if err != nil {
				return err
			}
			fmt.Printf("e1: Demo.add(3, 4) = %v\n", result)
			return nil
		},
	}
}

// E2: int get(int[] a, int i) { return a[i]; } — aload_0; iload_1;
// iaload; ireturn. Run twice: once in bounds, once out of bounds to
// show the bounds-check template's thrown ArrayIndexOutOfBoundsException
// surfacing as a *runtime.PendingException.
func buildArrayScenario(h *heap, src *sourceRegistry) scenario {
	demo := h.defineClass("Arrays")
	get := &vm.Method{Name: "get", Class: demo, Flags: vm.FlagStatic, Spec: "([II)I"}

	src.register(get, runtime.MethodSource{
		Instructions: []compiler.Instruction{
			{BytecodeIP: 0, Op: compiler.OpLoad, Slot: 0},
			{BytecodeIP: 1, Op: compiler.OpLoad, Slot: 1},
			{BytecodeIP: 2, Op: compiler.OpArrayLoad, ElemWidth: compiler.Width32, ElemSigned: true},
			{BytecodeIP: 3, Op: compiler.OpReturn},
		},
		LocalFootprint: 2,
		Bytecode:       []byte{0x2a, 0x1b, 0x2e, 0xac}, // aload_0 iload_1 iaload ireturn
	})

	return scenario{
		name: "e2",
		run: func(p *runtime.Processor, t *vm.Thread) error {
			p.BindMethod(get)

			arr := &fakeArray{Values: []any{int32(10), int32(20), int32(30)}}
			result, err := runtime.Invoke(t, get, []any{arr, int32(1)})
			if err != nil {
				return err
			}
			fmt.Printf("e2: Arrays.get([10,20,30], 1) = %v\n", result)

			_, err = runtime.Invoke(t, get, []any{arr, int32(5)})
			if err != nil {
				fmt.Printf("e2: Arrays.get([10,20,30], 5) -> %v\n", err)
				return nil
			}
			return fmt.Errorf("e2: expected an out-of-bounds exception, got none")
		},
	}
}

// E3: int readX(Node n) { return n.x; } — aload_0; getfield x; ireturn.
// Run once with a live Node, once with a null reference to show the
// getfield template's inline null check throwing
// NullPointerException.
func buildNullDerefScenario(h *heap, src *sourceRegistry) scenario {
	node := h.defineClass("Node")
	node.Fields["x"] = 0

	demo := h.defineClass("Fields")
	readX := &vm.Method{Name: "readX", Class: demo, Flags: vm.FlagStatic, Spec: "(LNode;)I"}

	src.register(readX, runtime.MethodSource{
		Instructions: []compiler.Instruction{
			{BytecodeIP: 0, Op: compiler.OpLoad, Slot: 0},
			{
				BytecodeIP:    1,
				Op:            compiler.OpGetField,
				ResolvedField: &compiler.FieldRef{Name: "x", WordOffset: 0},
				ElemWidth:     compiler.WidthWord,
			},
			{BytecodeIP: 2, Op: compiler.OpReturn},
		},
		LocalFootprint: 1,
		Bytecode:       []byte{0x2a, 0xb4, 0xac}, // aload_0 getfield ireturn
	})

	return scenario{
		name: "e3",
		run: func(p *runtime.Processor, t *vm.Thread) error {
			p.BindMethod(readX)

			live := &fakeObject{Class: node, Fields: map[string]any{"x": int32(42)}}
			result, err := runtime.Invoke(t, readX, []any{live})
			if err != nil {
				return err
			}
			fmt.Printf("e3: Fields.readX(Node{x:42}) = %v\n", result)

			_, err = runtime.Invoke(t, readX, []any{nil})
			if err != nil {
				fmt.Printf("e3: Fields.readX(null) -> %v\n", err)
				return nil
			}
			return fmt.Errorf("e3: expected a null-pointer exception, got none")
		},
	}
}

// E4: int callB() { return B.m(); } calling a not-yet-compiled B.m()
// through invokestatic. The first call compiles both callB and m and
// patches callB's embedded call-site immediate from m's stub entry to
// its real compiled entry; the second call never touches m's stub
// again.
func buildLazyCompileScenario(h *heap, src *sourceRegistry) scenario {
	classB := h.defineClass("B")
	m := &vm.Method{Name: "m", Class: classB, Flags: vm.FlagStatic, Spec: "()I"}

	src.register(m, runtime.MethodSource{
		Instructions: []compiler.Instruction{
			{BytecodeIP: 0, Op: compiler.OpPushConst, Imm: 99},
			{BytecodeIP: 1, Op: compiler.OpReturn},
		},
		LocalFootprint: 0,
		Bytecode:       []byte{0x10, 0x63, 0xac}, // bipush 99 ireturn
	})

	classA := h.defineClass("A")
	callB := &vm.Method{Name: "callB", Class: classA, Flags: vm.FlagStatic, Spec: "()I"}

	return scenario{
		name: "e4",
		run: func(p *runtime.Processor, t *vm.Thread) error {
			// m must already be bound to the shared stub before callB's
			// Instruction is built, since MethodRef.Entry snapshots m's
			// *current* entry point as the call site's patchable
			// immediate (codegen_invoke.go's emitInvokeDirect).
			p.BindMethod(m)

			src.register(callB, runtime.MethodSource{
				Instructions: []compiler.Instruction{
					{
						BytecodeIP: 0,
						Op:         compiler.OpInvokeStatic,
						ResolvedMethod: &compiler.MethodRef{
							Name:           "m",
							ParamFootprint: 0,
							ReturnWidth:    compiler.Width32,
							Entry:          m.CompiledEntry,
							Method:         m,
						},
					},
					{BytecodeIP: 1, Op: compiler.OpReturn},
				},
				LocalFootprint: 0,
				Bytecode:       []byte{0xb8, 0xac}, // invokestatic ireturn
			})
			p.BindMethod(callB)

			fmt.Printf("e4: B.m() entry before first call: %#x (stub)\n", m.CompiledEntry)
			first, err := runtime.Invoke(t, callB, nil)
			if err != nil {
				return err
			}
			fmt.Printf("e4: A.callB() = %v, B.m() entry after first call: %#x (compiled)\n", first, m.CompiledEntry)

			second, err := runtime.Invoke(t, callB, nil)
			if err != nil {
				return err
			}
			fmt.Printf("e4: A.callB() second call (B.m() already patched in) = %v\n", second)
			return nil
		},
	}
}

// E5: native double sqrt(double). Native methods skip the method
// compiler entirely — BindMethod points them straight at the shared
// native invoker, so no Instructions are registered at all.
func buildNativeScenario(h *heap, src *sourceRegistry) scenario {
	mathClass := h.defineClass("Math")
	sqrt := &vm.Method{
		Name:         "sqrt",
		Class:        mathClass,
		Flags:        vm.FlagStatic | vm.FlagNative,
		Spec:         "(D)D",
		NativeSymbol: "sqrt",
	}

	return scenario{
		name: "e5",
		run: func(p *runtime.Processor, t *vm.Thread) error {
			p.BindMethod(sqrt)
			result, err := runtime.Invoke(t, sqrt, []any{float64(16)})
			if err != nil {
				return err
			}
			fmt.Printf("e5: Math.sqrt(16.0) = %v\n", result)
			return nil
		},
	}
}
