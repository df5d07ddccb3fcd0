package venom

import "strings"

// BasicBlock owns a label and an ordered list of Instructions. Blocks are created detached via Function.NewBlock, appended to
// the function's block list, then emitted into by moving the Builder's
// cursor onto them — creation order and append order are independent by
// design, so an if/else pattern can reserve forward-jump
// labels before either branch's body is lowered.
type BasicBlock struct {
	Label        string
	Instructions []Instruction
	fn           *Function
}

// Terminated reports whether this block already ends in a terminator
// instruction: no further instruction may be appended once
// true.
func (b *BasicBlock) Terminated() bool {
	if len(b.Instructions) == 0 {
		return false
	}
	return b.Instructions[len(b.Instructions)-1].Opcode.IsTerminator()
}

// append adds ins to the block. Callers go through Builder, which is the
// only place that should call this — it is responsible for enforcing the
// "no instruction after a terminator" invariant (a CompilerPanic
// otherwise).
func (b *BasicBlock) append(ins Instruction) {
	b.Instructions = append(b.Instructions, ins)
}

// String renders the block as a disassembly-style label + instructions.
func (b *BasicBlock) String() string {
	var sb strings.Builder
	sb.WriteString(b.Label)
	sb.WriteString(":\n")
	for _, ins := range b.Instructions {
		sb.WriteString("    ")
		sb.WriteString(ins.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
