// Package pool implements the per-method constant pool (C4): a table of
// boxed objects reachable from compiled code through a pool register
// reloaded from the frame, and the compile-time builder that assigns
// each referenced object a stable word offset.
package pool

import "jitvm/pkg/abi"

// Builder accumulates the boxed-object table for one method while it is
// being compiled. Builder.Entries() becomes the method's live Pool once
// compilation finishes; the builder itself is discarded.
type Builder struct {
	entries  []any
	wordSize abi.WordSize
}

// NewBuilder creates an empty pool builder for a method compiled at the
// given word size (offsets are in bytes, so the stride between entries
// depends on wordSize).
func NewBuilder(wordSize abi.WordSize) *Builder {
	return &Builder{wordSize: wordSize}
}

// Reference appends obj to the pool (or returns the offset of an
// existing identical entry — object identity, not deep equality, since
// two distinct String constants with the same text are two distinct
// boxed objects per the class file's own constant table) and returns
// its stable word-offset, matching poolReference's contract: "returns
// pool_length_bytes + WORDSIZE before appending".
func (b *Builder) Reference(obj any) int {
	for i, existing := range b.entries {
		if existing == obj {
			return b.offsetOf(i)
		}
	}
	offset := b.offsetOf(len(b.entries))
	b.entries = append(b.entries, obj)
	return offset
}

func (b *Builder) offsetOf(index int) int {
	return (index + 1) * int(b.wordSize)
}

// Build finalizes the pool into an immutable Pool, called once by the
// method compiler's epilogue.
func (b *Builder) Build() *Pool {
	entries := make([]any, len(b.entries))
	copy(entries, b.entries)
	return &Pool{entries: entries, wordSize: b.wordSize}
}

// Pool is the immutable constant table installed on a compiled method.
// Every entry remains a strong GC root for the Pool's lifetime (§3
// "the pool is a strong root"); this layer expresses that by simply
// keeping a live Go reference, relying on the host GC beneath it.
type Pool struct {
	entries  []any
	wordSize abi.WordSize
}

// At dereferences the object stored at the given word offset, the
// runtime counterpart of emitted code's "[pool + offset]" access.
func (p *Pool) At(offset int) any {
	index := offset/int(p.wordSize) - 1
	if index < 0 || index >= len(p.entries) {
		return nil
	}
	return p.entries[index]
}

// Len reports how many entries the pool holds.
func (p *Pool) Len() int { return len(p.entries) }

// Contains reports whether obj is present in the pool, used by tests
// asserting pool reachability (§8 property 7).
func (p *Pool) Contains(obj any) bool {
	for _, e := range p.entries {
		if e == obj {
			return true
		}
	}
	return false
}
