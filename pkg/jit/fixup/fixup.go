// Package fixup implements the two branch-resolution mechanisms used
// while compiling one method (C3): a small bounded set of local labels
// for forward jumps within a single opcode template, and a bytecode-IP
// to machine-IP map for branch targets that land on another bytecode
// instruction's first byte.
package fixup

import (
	"sort"

	"jitvm/pkg/jit/asm"
	"jitvm/pkg/vmerr"
)

// maxLocalLabels bounds the local-label table. Templates never need more
// than a handful of forward jumps live at once (e.g. a bounds-check
// template reserves one for its fast path); a method exceeding this is
// an internal-invariant violation, not a user-visible condition.
const maxLocalLabels = 16

// Labels tracks local, method-scoped forward-jump labels. Each label may
// be referenced any number of times before being marked exactly once.
type Labels struct {
	asm        *asm.Assembler
	references [maxLocalLabels][]int // dispOffset per label
	marked     [maxLocalLabels]bool
	count      int
}

// NewLabels creates an empty label table bound to asm, which it will
// patch into when labels are marked.
func NewLabels(a *asm.Assembler) *Labels {
	return &Labels{asm: a}
}

// New allocates a fresh label, returning its id for use with Reference
// and Mark.
func (l *Labels) New() int {
	if l.count >= maxLocalLabels {
		vmerr.Assertf("fixup: exceeded %d local labels in one method", maxLocalLabels)
	}
	id := l.count
	l.count++
	return id
}

// Reference emits a near conditional or unconditional jump whose target
// is this label, to be resolved later by Mark. cond selects the
// condition; pass conditional=false for an unconditional jump, in which
// case cond is ignored.
func (l *Labels) Reference(id int, cond asm.Cond, conditional bool) {
	var off int
	if conditional {
		off = l.asm.JccRel32(cond)
	} else {
		off = l.asm.JmpRel32()
	}
	l.references[id] = append(l.references[id], off)
}

// Jump emits an unconditional jump referencing label id.
func (l *Labels) Jump(id int) { l.Reference(id, 0, false) }

// JumpIf emits a conditional jump (condition cond) referencing label id.
func (l *Labels) JumpIf(id int, cond asm.Cond) { l.Reference(id, cond, true) }

// Mark sets label id's target to the current machine offset and
// back-patches every outstanding reference to it. A label may be marked
// only once.
func (l *Labels) Mark(id int) {
	if l.marked[id] {
		vmerr.Assertf("fixup: label %d marked twice", id)
	}
	l.marked[id] = true
	target := l.asm.Offset()
	for _, dispOffset := range l.references[id] {
		l.asm.PatchRel32(dispOffset, target)
	}
}

// BytecodeJumps accumulates the bytecode-IP → machine-IP map for one
// method as it is compiled, plus the list of pending branches whose
// target bytecode IP is now known only symbolically. Once the method
// body is fully emitted, ResolveJumps patches every pending branch in
// one pass.
type BytecodeJumps struct {
	asm *asm.Assembler

	// bytecodeIPs/machineIPs are parallel, built in increasing
	// bytecodeIP order as the method is compiled one instruction at a
	// time, which keeps ResolveJumps's binary search correct without a
	// separate sort step.
	bytecodeIPs []int
	machineIPs  []int

	pending []pendingJump
}

type pendingJump struct {
	targetBytecodeIP int
	dispOffset       int
}

// NewBytecodeJumps creates an empty map bound to asm.
func NewBytecodeJumps(a *asm.Assembler) *BytecodeJumps {
	return &BytecodeJumps{asm: a}
}

// MarkInstruction records that bytecodeIP's compiled form begins at the
// assembler's current offset. Must be called once per bytecode
// instruction, in increasing bytecodeIP order.
func (bj *BytecodeJumps) MarkInstruction(bytecodeIP int) {
	bj.bytecodeIPs = append(bj.bytecodeIPs, bytecodeIP)
	bj.machineIPs = append(bj.machineIPs, bj.asm.Offset())
}

// Branch emits a near jump (conditional if cond is given, else
// unconditional) targeting targetBytecodeIP, to be resolved by
// ResolveJumps once the whole method has been compiled.
func (bj *BytecodeJumps) Branch(targetBytecodeIP int, cond asm.Cond, conditional bool) {
	var off int
	if conditional {
		off = bj.asm.JccRel32(cond)
	} else {
		off = bj.asm.JmpRel32()
	}
	bj.pending = append(bj.pending, pendingJump{targetBytecodeIP: targetBytecodeIP, dispOffset: off})
}

// ResolveJumps patches every pending branch's displacement now that the
// full bytecodeIP→machineIP map is available. Each lookup is O(log n)
// via binary search over the already-sorted bytecodeIPs slice.
func (bj *BytecodeJumps) ResolveJumps() {
	for _, p := range bj.pending {
		machineIP := bj.lookup(p.targetBytecodeIP)
		bj.asm.PatchRel32(p.dispOffset, machineIP)
	}
}

// lookup finds the machine offset of the instruction beginning at
// bytecodeIP. A miss (a branch into the middle of another instruction,
// or past the end of the method) is an internal-invariant violation:
// the verifier-equivalent upstream of this compiler is responsible for
// ensuring branch targets always land on instruction boundaries.
func (bj *BytecodeJumps) lookup(bytecodeIP int) int {
	i := sort.SearchInts(bj.bytecodeIPs, bytecodeIP)
	if i >= len(bj.bytecodeIPs) || bj.bytecodeIPs[i] != bytecodeIP {
		vmerr.Assertf("fixup: branch target bytecodeIP %d is not an instruction boundary", bytecodeIP)
	}
	return bj.machineIPs[i]
}

// MachineIPFor exposes the resolved mapping for a given bytecodeIP after
// compilation, used by the exception-handler table builder (C5) to
// translate the method's {startIP, endIP, handlerIP} triples from
// bytecode offsets to machine offsets.
func (bj *BytecodeJumps) MachineIPFor(bytecodeIP int) int {
	return bj.lookup(bytecodeIP)
}

// MachineIPForEnd resolves an exclusive-end bytecode IP (as used by a
// handler table's endIP, which conventionally equals the bytecodeIP one
// past the protected range's last instruction, and may therefore equal
// the method's total bytecode length with no instruction boundary of
// its own). It falls back to the current machine offset — the end of
// everything emitted so far — when bytecodeIP is not an instruction
// boundary, instead of treating that as an internal-invariant
// violation the way MachineIPFor does.
func (bj *BytecodeJumps) MachineIPForEnd(bytecodeIP int) int {
	i := sort.SearchInts(bj.bytecodeIPs, bytecodeIP)
	if i >= len(bj.bytecodeIPs) || bj.bytecodeIPs[i] != bytecodeIP {
		return bj.asm.Offset()
	}
	return bj.machineIPs[i]
}
