package vm

// LineEntry maps one machine-code offset to the bytecode instruction
// and source line it was emitted for, used only for diagnostics
// (stack-trace formatting); the compiler is free to emit a sparse table
// (one entry per bytecode instruction boundary).
type LineEntry struct {
	MachineOffset int
	BytecodeIP    int
	SourceLine    int
}

// HandlerEntry is one row of a method's exception-handler table, with
// offsets already translated from bytecode IPs to machine IPs by the
// method compiler's epilogue (§4.5 "build the exception-handler
// table").
type HandlerEntry struct {
	MachineStart   int
	MachineEnd     int
	MachineHandler int
	CatchType      int // constant-pool index, or 0 for a finally handler
}

// Compiled is the immutable record produced by one successful method
// compilation: raw code plus the two side tables needed by diagnostics
// and by the unwinder. Once constructed it is never mutated; only the
// Method.CompiledEntry pointer that refers to copies of Code placed in
// executable memory may be rewritten later, by call-site patching, to
// point at a newer Compiled record for the same logical method (e.g. if
// a method were ever recompiled — which this design does not do, but
// the entry field's independence from this struct's identity is what
// makes call-site patching possible without invalidating existing
// Compiled values).
type Compiled struct {
	Code     []byte
	Lines    []LineEntry
	Handlers []HandlerEntry

	// Entry is the absolute address Code was placed at in executable
	// memory. Zero until Place has been called.
	Entry uintptr

	// LocalWords is the method's declared max-locals footprint, in words
	// (>= the method's own parameter footprint). The unwinder needs it to
	// reset the stack pointer to this method's clean post-prologue
	// position before transferring control to a handler — exception
	// handlers always resume with an empty operand stack, never wherever
	// RSP happened to be at the faulting instruction.
	LocalWords int
}

// FindHandler returns the first handler entry (in table order — the
// table is built in source order, so "first match by address range
// wins" per §4.7 and E6) whose machine range covers faultOffset-1 (the
// "-1 bias" from §4.7, applied here by FindHandler itself, so callers
// pass the unbiased return-address offset) and whose
// catch type is either 0 (finally) or accepted by matchesCatchType.
func (c *Compiled) FindHandler(faultOffset int, matchesCatchType func(catchType int) bool) (HandlerEntry, bool) {
	biased := faultOffset - 1
	for _, h := range c.Handlers {
		if biased < h.MachineStart || biased >= h.MachineEnd {
			continue
		}
		if h.CatchType == 0 || matchesCatchType(h.CatchType) {
			return h, true
		}
	}
	return HandlerEntry{}, false
}

// LineFor returns the bytecode IP and source line recorded for the
// greatest machine offset not exceeding pc, or (0, 0) if the table is
// empty or pc precedes every entry. Lines is built in increasing-offset
// order by the method compiler, same as the bytecodeIP→machineIP map —
// used by CaptureTrace to format one frame of a captured stack trace.
func (c *Compiled) LineFor(pc int) (bytecodeIP, line int) {
	for _, e := range c.Lines {
		if e.MachineOffset > pc {
			break
		}
		bytecodeIP, line = e.BytecodeIP, e.SourceLine
	}
	return
}
