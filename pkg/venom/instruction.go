package venom

import (
	"strings"

	"github.com/vyperlang/venom-core/pkg/compileerr"
)

// Instruction is (opcode, operands, output?, source?).
// Operand order follows EVM stack order (top-of-stack first) — the
// Builder is responsible for reversing naturally-ordered caller
// arguments into this order; nothing outside pkg/venom should construct
// an Instruction whose operand order hasn't already gone through that
// reversal.
type Instruction struct {
	Opcode   Opcode
	Operands []Operand
	Output   *Variable // nil for void instructions
	Source   *compileerr.SourcePos
}

// String renders one disassembly-style line, e.g. "%3 = add %1 %2".
func (ins *Instruction) String() string {
	var b strings.Builder
	if ins.Output != nil {
		b.WriteString(ins.Output.String())
		b.WriteString(" = ")
	}
	b.WriteString(string(ins.Opcode))
	for _, op := range ins.Operands {
		b.WriteString(" ")
		b.WriteString(op.String())
	}
	return b.String()
}
