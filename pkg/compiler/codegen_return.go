package compiler

// emitReturn implements every return variant: pop the return value into
// regLeft (the host ABI's own return register, by this compiler's
// convention) unless the method is void, then tear down the frame.
func (comp *compilation) emitReturn(ins Instruction) {
	if !ins.Void {
		comp.asm.Pop(regLeft)
	}
	comp.emitEpilogue()
}
