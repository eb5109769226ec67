//go:build amd64

package runtime

import (
	"fmt"
	"math"

	"jitvm/pkg/abi"
	"jitvm/pkg/vm"
	"jitvm/pkg/vmerr"
)

// PendingException wraps a managed exception object surfaced by Invoke,
// letting host embedder code treat it as an ordinary Go error while still
// reaching the original boxed object via Obj for rethrowing or inspection.
type PendingException struct {
	Obj   any
	Class string // resolved via Helpers.ClassOf when available, else empty
}

func (e *PendingException) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("uncaught %s", e.Class)
	}
	return fmt.Sprintf("uncaught exception: %v", e.Obj)
}

func asPendingException(obj any) *PendingException {
	pe := &PendingException{Obj: obj}
	if active != nil && active.ClassOf != nil {
		if c := active.ClassOf(obj); c != nil {
			pe.Class = c.Name
		}
	}
	return pe
}

// marshalArgs converts a managed call's Go-level argument values into the
// flat word block compiled code expects, arg0 first, per method's compact
// spec string. Reference-typed arguments go through the handle table —
// just as with every frame slot and pool entry, a managed reference
// crossing into machine code is never a raw Go pointer (§9 "giving each
// entity a stable identity... independent of the currently installed
// Compiled record").
func marshalArgs(spec string, isStatic bool, wordSize abi.WordSize, args []any) []uintptr {
	var words []uintptr
	argIdx := 0

	if !isStatic {
		words = append(words, uintptr(Register(args[argIdx])))
		argIdx++
	}

	i := 0
	if i < len(spec) && spec[i] == '(' {
		i++
	}
	for i < len(spec) && spec[i] != ')' {
		c := spec[i]
		switch c {
		case 'L':
			for i < len(spec) && spec[i] != ';' {
				i++
			}
			words = append(words, uintptr(Register(args[argIdx])))
			argIdx++
		case '[':
			for i < len(spec) && spec[i] == '[' {
				i++
			}
			if i < len(spec) && spec[i] == 'L' {
				for i < len(spec) && spec[i] != ';' {
					i++
				}
			}
			words = append(words, uintptr(Register(args[argIdx])))
			argIdx++
		default:
			words = append(words, primitiveWords(c, wordSize, args[argIdx])...)
			argIdx++
		}
		i++
	}
	return words
}

// primitiveWords converts one primitive argument into its machine-word
// representation. Word32 targets give a long/double two consecutive
// words, low word first, matching abi.Slots' count for that width; Word64
// targets always produce exactly one.
func primitiveWords(c byte, wordSize abi.WordSize, v any) []uintptr {
	switch c {
	case 'Z':
		b, _ := v.(bool)
		if b {
			return []uintptr{1}
		}
		return []uintptr{0}
	case 'B':
		n, _ := v.(int8)
		return []uintptr{uintptr(uint8(n))}
	case 'C':
		n, _ := v.(uint16)
		return []uintptr{uintptr(n)}
	case 'S':
		n, _ := v.(int16)
		return []uintptr{uintptr(uint16(n))}
	case 'I':
		n, _ := v.(int32)
		return []uintptr{uintptr(uint32(n))}
	case 'J':
		n, _ := v.(int64)
		return splitWide(uint64(n), wordSize)
	case 'F':
		f, _ := v.(float32)
		return []uintptr{uintptr(math.Float32bits(f))}
	case 'D':
		f, _ := v.(float64)
		return splitWide(math.Float64bits(f), wordSize)
	default:
		vmerr.Assertf("unknown primitive spec char %q", c)
		return nil
	}
}

func splitWide(bits uint64, wordSize abi.WordSize) []uintptr {
	if wordSize == abi.Word64 {
		return []uintptr{uintptr(bits)}
	}
	return []uintptr{uintptr(uint32(bits)), uintptr(uint32(bits >> 32))}
}

// unboxResult converts a compiled method's raw return-register value back
// into a Go value per its declared return-type character.
func unboxResult(retType byte, raw uintptr) any {
	switch retType {
	case 'V':
		return nil
	case 'Z':
		return raw != 0
	case 'B':
		return int8(uint8(raw))
	case 'C':
		return uint16(raw)
	case 'S':
		return int16(uint16(raw))
	case 'I':
		return int32(uint32(raw))
	case 'J':
		return int64(uint64(raw))
	case 'F':
		return math.Float32frombits(uint32(raw))
	case 'D':
		return math.Float64frombits(uint64(raw))
	case 'L', '[':
		return Resolve(Handle(raw))
	default:
		vmerr.Assertf("unknown return spec char %q", retType)
		return nil
	}
}

// Invoke implements the C8 invoke bridge's vmInvoke entry point: a host
// embedder call into a managed method. It snapshots thread's reference
// chain before the call and restores it afterward regardless of outcome
// (§3 "Reference stack" / §8 property 6 — every local reference the call
// created is discarded once it returns to native code), then reports
// either the boxed result or the pending exception the call left behind.
func Invoke(thread *vm.Thread, m *vm.Method, args []any) (any, error) {
	snapshot := thread.Reference
	defer thread.RestoreReference(snapshot)

	threadH := Register(thread)
	defer Release(threadH)
	methodH := Register(m)
	defer Release(methodH)

	argWords := marshalArgs(m.Spec, m.IsStatic(), wordSize, args)

	block := make([]uintptr, 0, len(argWords)+3)
	for i := len(argWords) - 1; i >= 0; i-- {
		block = append(block, argWords[i])
	}
	block = append(block, uintptr(threadH), uintptr(methodH), uintptr(vm.Frame(0)))

	thread.SetState(vm.StateActive)
	raw := callEntry(m.CompiledEntry, block)

	if thread.Exception != nil {
		exc := thread.Exception
		thread.Exception = nil
		return nil, asPendingException(exc)
	}

	return unboxResult(abi.ReturnType(m.Spec), raw), nil
}
