package pool

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"jitvm/pkg/abi"
)

func TestReferenceDedupesByIdentity(t *testing.T) {
	b := NewBuilder(abi.Word64)
	type classStub struct{ name string }

	a := &classStub{name: "Demo"}
	other := &classStub{name: "Demo"} // same contents, distinct identity

	off1 := b.Reference(a)
	off2 := b.Reference(a)
	off3 := b.Reference(other)

	if off1 != off2 {
		t.Errorf("Reference(a) twice returned %d then %d, want the same offset", off1, off2)
	}
	if off3 == off1 {
		t.Errorf("Reference(other) returned %d, want a distinct offset from identical-but-not-same a (%d)", off3, off1)
	}
}

func TestOffsetsStartAfterHeaderWord(t *testing.T) {
	b := NewBuilder(abi.Word64)
	first := b.Reference("one")
	second := b.Reference("two")

	if first != 8 {
		t.Errorf("first offset = %d, want 8 (one word size past the header)", first)
	}
	if second != 16 {
		t.Errorf("second offset = %d, want 16", second)
	}
}

func TestBuildProducesIndependentPool(t *testing.T) {
	b := NewBuilder(abi.Word32)
	offA := b.Reference("a")
	p := b.Build()

	b.Reference("b") // mutating the builder after Build must not affect p

	if got := p.At(offA); got != "a" {
		t.Errorf("Pool.At(%d) = %v, want %q\npool contents:\n%s", offA, got, "a", spew.Sdump(p))
	}
	if p.Len() != 1 {
		t.Errorf("Pool.Len() = %d, want 1\npool contents:\n%s", p.Len(), spew.Sdump(p))
	}
	if !p.Contains("a") {
		t.Errorf("Pool.Contains(%q) = false, want true\npool contents:\n%s", "a", spew.Sdump(p))
	}
	if p.Contains("b") {
		t.Errorf("Pool.Contains(%q) = true, want false (added to the builder after Build)\npool contents:\n%s", "b", spew.Sdump(p))
	}
}

func TestPoolAtOutOfRange(t *testing.T) {
	b := NewBuilder(abi.Word64)
	b.Reference("only")
	p := b.Build()

	if got := p.At(0); got != nil {
		t.Errorf("Pool.At(0) = %v, want nil (offset 0 is the reserved header word)", got)
	}
	if got := p.At(160); got != nil {
		t.Errorf("Pool.At(160) = %v, want nil (past the end)", got)
	}
}
