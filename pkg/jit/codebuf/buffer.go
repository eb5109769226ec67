// Package codebuf implements the append-only, growable byte buffer used
// while a method is being compiled (C1), plus the executable-memory
// allocator that the finished code is copied into once compilation
// finishes.
package codebuf

import (
	"encoding/binary"

	"jitvm/pkg/vmerr"
)

const defaultMinimumCapacity = 256

// Buffer is a growable, in-place-patchable byte buffer. It mirrors the
// reference compiler's Buffer: append grows it on demand, capacity
// doubles (bounded below by a configured minimum), and patch2/patch4
// overwrite bytes that were already appended.
type Buffer struct {
	data            []byte
	minimumCapacity int
}

// New creates a Buffer with the given minimum capacity. A non-positive
// value falls back to a small default, matching the reference compiler's
// constructor contract.
func New(minimumCapacity int) *Buffer {
	if minimumCapacity <= 0 {
		minimumCapacity = defaultMinimumCapacity
	}
	return &Buffer{
		data:            make([]byte, 0, minimumCapacity),
		minimumCapacity: minimumCapacity,
	}
}

func (b *Buffer) ensure(extra int) {
	need := len(b.data) + extra
	if need <= cap(b.data) {
		return
	}
	newCap := cap(b.data) * 2
	if newCap < need {
		newCap = need
	}
	if newCap < b.minimumCapacity {
		newCap = b.minimumCapacity
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// Append1 appends a single byte.
func (b *Buffer) Append1(v byte) {
	b.ensure(1)
	b.data = append(b.data, v)
}

// Append2 appends a little-endian uint16.
func (b *Buffer) Append2(v uint16) {
	b.ensure(2)
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

// Append4 appends a little-endian uint32.
func (b *Buffer) Append4(v uint32) {
	b.ensure(4)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

// AppendAddr appends a machine word (4 or 8 bytes, little-endian)
// according to wordSize, matching Buffer::appendAddress's WORDSIZE split.
func (b *Buffer) AppendAddr(v uint64, wordSize int) {
	if wordSize == 8 {
		b.ensure(8)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], v)
		b.data = append(b.data, tmp[:]...)
	} else {
		b.Append4(uint32(v))
	}
}

// Patch2 overwrites a previously appended 2-byte slot.
func (b *Buffer) Patch2(offset int, v uint16) {
	if offset < 0 || offset+2 > len(b.data) {
		vmerr.Assertf("codebuf: patch2 offset %d out of range (length %d)", offset, len(b.data))
	}
	binary.LittleEndian.PutUint16(b.data[offset:], v)
}

// Patch4 overwrites a previously appended 4-byte slot.
func (b *Buffer) Patch4(offset int, v uint32) {
	if offset < 0 || offset+4 > len(b.data) {
		vmerr.Assertf("codebuf: patch4 offset %d out of range (length %d)", offset, len(b.data))
	}
	binary.LittleEndian.PutUint32(b.data[offset:], v)
}

// PatchBytes overwrites an arbitrary previously appended slice in place.
func (b *Buffer) PatchBytes(offset int, v []byte) {
	if offset < 0 || offset+len(v) > len(b.data) {
		vmerr.Assertf("codebuf: patch offset %d+%d out of range (length %d)", offset, len(v), len(b.data))
	}
	copy(b.data[offset:], v)
}

// Length returns the current size of the buffer.
func (b *Buffer) Length() int { return len(b.data) }

// Bytes returns the buffer's current contents. The returned slice aliases
// the buffer's storage and is invalidated by the next Append call that
// triggers growth.
func (b *Buffer) Bytes() []byte { return b.data }

// CopyTo copies the buffer's contents into dst, which must be at least
// Length() bytes.
func (b *Buffer) CopyTo(dst []byte) {
	copy(dst, b.data)
}
