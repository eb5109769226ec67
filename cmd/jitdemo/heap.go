package main

import (
	"fmt"

	"jitvm/pkg/runtime"
	"jitvm/pkg/vm"
)

// fakeObject stands in for a heap-allocated instance. Every reference
// this demo hands to compiled code — an object, an array, a thrown
// exception — crosses the runtime boundary as a Handle rather than a
// raw pointer (see runtime.Register), so the toy heap below only ever
// needs to produce ordinary Go values; it never manages real addressable
// memory. A class loader backed by a real heap would give MakeNew a
// pointer into that heap instead and skip the handle entirely, but the
// handle-based boundary is what bridge_amd64.go and invoke.go already
// commit to for every other reference (classes, methods, pooled
// constants), so this demo follows the same convention instead of
// inventing a second one.
type fakeObject struct {
	Class  *vm.Class
	Fields map[string]any
}

// fakeArray stands in for a heap-allocated array, primitive or object.
type fakeArray struct {
	ElemClass *vm.Class // non-nil for an object array
	Values    []any
}

// heap is a minimal class loader + object heap: enough to drive the
// scenarios below, nothing more. A real embedder's class loader parses
// class files and builds vm.Class/vm.Method graphs from them; this one
// just constructs the handful of classes the demo needs directly in Go.
type heap struct {
	classes map[string]*vm.Class
}

func newHeap() *heap {
	return &heap{classes: map[string]*vm.Class{}}
}

func (h *heap) defineClass(name string) *vm.Class {
	c := &vm.Class{Name: name, Fields: map[string]int{}, StaticFields: map[string]any{}}
	h.classes[name] = c
	return c
}

// helpers builds a runtime.Helpers set backed by this heap. CompileMethod
// and InvokeNative are left nil — runtime.NewProcessor fills those in
// once the Processor itself exists.
func (h *heap) helpers() *runtime.Helpers {
	return &runtime.Helpers{
		ThrowNew: func(t *vm.Thread, class *vm.Class) {
			t.Exception = &fakeObject{Class: class, Fields: map[string]any{"message": class.Name}}
		},
		Throw: func(t *vm.Thread, obj any) {
			// §9: throw_ of a null reference raises a fresh
			// NullPointerException instead of losing the exception.
			if obj == nil {
				obj = &fakeObject{
					Class:  h.classes["java/lang/NullPointerException"],
					Fields: map[string]any{"message": "java/lang/NullPointerException"},
				}
			}
			t.Exception = obj
		},
		IsAssignableFrom: func(a, b *vm.Class) bool {
			return a.IsAssignableFrom(b)
		},
		MakeNew: func(t *vm.Thread, class *vm.Class) any {
			return &fakeObject{Class: class, Fields: map[string]any{}}
		},
		MakeBlankArray: func(t *vm.Thread, elemWidth int, length int) any {
			return &fakeArray{Values: make([]any, length)}
		},
		MakeBlankObjectArray: func(t *vm.Thread, elemClass *vm.Class, length int) any {
			return &fakeArray{ElemClass: elemClass, Values: make([]any, length)}
		},
		// This demo wires every class/field/method reference directly
		// into an Instruction at build time (ResolvedClass.Class,
		// ResolvedField, ResolvedMethod.Method) rather than resolving a
		// constant-pool index at call time, so these three are never
		// actually reached by the compiled templates below. They are
		// still implemented, matching the real resolution signature,
		// for any future caller that does build instructions from a
		// constant pool.
		ResolveClass: func(t *vm.Thread, poolIndex int) *vm.Class {
			return nil
		},
		ResolveField: func(t *vm.Thread, poolIndex int) (int, bool) {
			return 0, false
		},
		ResolveMethod: func(t *vm.Thread, poolIndex int) *vm.Method {
			return nil
		},
		ResolveNativeMethod: func(t *vm.Thread, m *vm.Method) error {
			return nil
		},
		InitClass: func(t *vm.Thread, class *vm.Class) error {
			class.InitFlag = true
			return nil
		},
		ClassOf: func(obj any) *vm.Class {
			if o, ok := obj.(*fakeObject); ok {
				return o.Class
			}
			return nil
		},
	}
}

func (o *fakeObject) String() string {
	return fmt.Sprintf("%s%v", o.Class.Name, o.Fields)
}

func (a *fakeArray) String() string {
	return fmt.Sprintf("%v", a.Values)
}
