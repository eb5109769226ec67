package codebuf

import (
	"bytes"
	"testing"
)

func TestAppendAndBytes(t *testing.T) {
	b := New(4)
	b.Append1(0x01)
	b.Append2(0x0302)
	b.Append4(0x07060504)

	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	if got := b.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() = %x, want %x", got, want)
	}
	if b.Length() != len(want) {
		t.Errorf("Length() = %d, want %d", b.Length(), len(want))
	}
}

func TestAppendGrowsPastMinimumCapacity(t *testing.T) {
	b := New(2)
	for i := 0; i < 10; i++ {
		b.Append1(byte(i))
	}
	if b.Length() != 10 {
		t.Fatalf("Length() = %d, want 10", b.Length())
	}
	for i, got := range b.Bytes() {
		if got != byte(i) {
			t.Errorf("Bytes()[%d] = %d, want %d", i, got, i)
		}
	}
}

func TestAppendAddrWordSize(t *testing.T) {
	b8 := New(0)
	b8.AppendAddr(0x0102030405060708, 8)
	if got, want := b8.Bytes(), []byte{8, 7, 6, 5, 4, 3, 2, 1}; !bytes.Equal(got, want) {
		t.Errorf("AppendAddr(wordSize=8) = %x, want %x", got, want)
	}

	b4 := New(0)
	b4.AppendAddr(0x01020304, 4)
	if got, want := b4.Bytes(), []byte{4, 3, 2, 1}; !bytes.Equal(got, want) {
		t.Errorf("AppendAddr(wordSize=4) = %x, want %x", got, want)
	}
}

func TestPatch2And4OverwriteInPlace(t *testing.T) {
	b := New(0)
	b.Append4(0)
	b.Append2(0)

	b.Patch4(0, 0xAABBCCDD)
	b.Patch2(4, 0x1234)

	want := []byte{0xDD, 0xCC, 0xBB, 0xAA, 0x34, 0x12}
	if got := b.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() after patching = %x, want %x", got, want)
	}
}

func TestPatchBytesOverwritesArbitraryRange(t *testing.T) {
	b := New(0)
	b.Append4(0)
	b.PatchBytes(1, []byte{0xAA, 0xBB})

	want := []byte{0, 0xAA, 0xBB, 0}
	if got := b.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() after PatchBytes = %x, want %x", got, want)
	}
}

func TestPatchOutOfRangePanics(t *testing.T) {
	b := New(0)
	b.Append2(0)

	defer func() {
		if recover() == nil {
			t.Error("Patch4 past the buffer's length did not panic")
		}
	}()
	b.Patch4(0, 0xDEADBEEF)
}

func TestCopyTo(t *testing.T) {
	b := New(0)
	b.Append1(1)
	b.Append1(2)
	b.Append1(3)

	dst := make([]byte, 3)
	b.CopyTo(dst)
	if !bytes.Equal(dst, []byte{1, 2, 3}) {
		t.Errorf("CopyTo result = %v, want [1 2 3]", dst)
	}
}

func TestNewNonPositiveCapacityFallsBackToDefault(t *testing.T) {
	b := New(0)
	if cap(b.data) != defaultMinimumCapacity {
		t.Errorf("cap = %d, want the default minimum capacity %d", cap(b.data), defaultMinimumCapacity)
	}
}
