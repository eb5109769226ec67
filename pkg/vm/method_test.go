package vm

import (
	"testing"

	"jitvm/pkg/abi"
)

func TestMethodFlags(t *testing.T) {
	m := &Method{Flags: FlagStatic | FlagNative}
	if !m.IsStatic() {
		t.Error("IsStatic() = false, want true")
	}
	if !m.IsNative() {
		t.Error("IsNative() = false, want true")
	}
	if m.IsVirtual() {
		t.Error("IsVirtual() = true, want false")
	}
}

func TestBindStubSetsCompiledEntryToStub(t *testing.T) {
	m := &Method{Spec: "()I", Flags: FlagStatic}
	m.BindStub(0x1000)

	if m.CompiledEntry != 0x1000 {
		t.Errorf("CompiledEntry = %#x, want 0x1000", m.CompiledEntry)
	}
	if m.IsCompiled() {
		t.Error("IsCompiled() = true immediately after BindStub, want false")
	}
}

func TestIsCompiledOnlyAfterEntryMovesPastTheStub(t *testing.T) {
	m := &Method{Spec: "()I", Flags: FlagStatic}
	m.BindStub(0x1000)

	m.Compiled = &Compiled{Entry: 0x2000}
	m.CompiledEntry = 0x2000
	if !m.IsCompiled() {
		t.Error("IsCompiled() = false once CompiledEntry has moved past the stub, want true")
	}
}

func TestParameterFootprintForwardsToAbi(t *testing.T) {
	m := &Method{Spec: "(II)I", Flags: FlagStatic}
	if got := m.ParameterFootprint(abi.Word64); got != 2 {
		t.Errorf("ParameterFootprint() = %d, want 2", got)
	}

	virtual := &Method{Spec: "(I)V"} // not static, so the receiver adds a slot
	if got := virtual.ParameterFootprint(abi.Word64); got != 2 {
		t.Errorf("ParameterFootprint() = %d, want 2 (receiver + one int)", got)
	}
}
