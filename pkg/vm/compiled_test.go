package vm

import "testing"

func TestFindHandlerAppliesMinusOneBias(t *testing.T) {
	c := &Compiled{
		Handlers: []HandlerEntry{
			{MachineStart: 10, MachineEnd: 20, MachineHandler: 100, CatchType: 5},
		},
	}

	// A fault reported at offset 20 (one past the protected range's end)
	// still matches, since FindHandler biases by -1 before comparing.
	h, ok := c.FindHandler(20, func(int) bool { return true })
	if !ok {
		t.Fatal("FindHandler(20) = not found, want a match via the -1 bias")
	}
	if h.MachineHandler != 100 {
		t.Errorf("MachineHandler = %d, want 100", h.MachineHandler)
	}

	if _, ok := c.FindHandler(10, func(int) bool { return true }); ok {
		t.Error("FindHandler(10) matched, want a miss (biased offset 9 precedes the range)")
	}
}

func TestFindHandlerFirstMatchWins(t *testing.T) {
	c := &Compiled{
		Handlers: []HandlerEntry{
			{MachineStart: 0, MachineEnd: 50, MachineHandler: 1, CatchType: 5},
			{MachineStart: 0, MachineEnd: 50, MachineHandler: 2, CatchType: 6},
		},
	}

	h, ok := c.FindHandler(10, func(ct int) bool { return true })
	if !ok || h.MachineHandler != 1 {
		t.Errorf("FindHandler = %+v, ok=%v, want the first table entry to win", h, ok)
	}
}

func TestFindHandlerFinallyMatchesAnyException(t *testing.T) {
	c := &Compiled{
		Handlers: []HandlerEntry{
			{MachineStart: 0, MachineEnd: 50, MachineHandler: 9, CatchType: 0},
		},
	}

	h, ok := c.FindHandler(5, func(ct int) bool { return false })
	if !ok || h.MachineHandler != 9 {
		t.Errorf("finally handler did not match despite matchesCatchType returning false: %+v, ok=%v", h, ok)
	}
}

func TestFindHandlerRejectsUnmatchedCatchType(t *testing.T) {
	c := &Compiled{
		Handlers: []HandlerEntry{
			{MachineStart: 0, MachineEnd: 50, MachineHandler: 9, CatchType: 5},
		},
	}
	if _, ok := c.FindHandler(5, func(ct int) bool { return false }); ok {
		t.Error("FindHandler matched a handler whose catch type was rejected")
	}
}

func TestLineForGreatestOffsetNotExceedingPC(t *testing.T) {
	c := &Compiled{
		Lines: []LineEntry{
			{MachineOffset: 0, BytecodeIP: 0, SourceLine: 1},
			{MachineOffset: 10, BytecodeIP: 3, SourceLine: 2},
			{MachineOffset: 20, BytecodeIP: 7, SourceLine: 3},
		},
	}

	cases := []struct {
		pc       int
		wantIP   int
		wantLine int
	}{
		{0, 0, 1},
		{5, 0, 1},
		{10, 3, 2},
		{19, 3, 2},
		{20, 7, 3},
		{1000, 7, 3},
	}
	for _, c2 := range cases {
		gotIP, gotLine := c.LineFor(c2.pc)
		if gotIP != c2.wantIP || gotLine != c2.wantLine {
			t.Errorf("LineFor(%d) = (%d, %d), want (%d, %d)", c2.pc, gotIP, gotLine, c2.wantIP, c2.wantLine)
		}
	}
}

func TestLineForEmptyTable(t *testing.T) {
	c := &Compiled{}
	if ip, line := c.LineFor(100); ip != 0 || line != 0 {
		t.Errorf("LineFor on an empty table = (%d, %d), want (0, 0)", ip, line)
	}
}
