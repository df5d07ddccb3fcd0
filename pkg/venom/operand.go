package venom

import (
	"strconv"

	"github.com/holiman/uint256"
)

// Operand is the closed sum type Variable | Literal | Label. Every
// instruction's operand list and output are one of these.
type Operand interface {
	isOperand()
	String() string
}

// Variable is an SSA value: the id is unique within its owning Function,
// Version distinguishes successive mutable-assignment generations of the
// same source-level variable — 0 for a variable that is
// truly assigned exactly once.
type Variable struct {
	ID      int
	Version int
}

func (Variable) isOperand() {}
func (v Variable) String() string {
	if v.Version == 0 {
		return varName(v.ID)
	}
	return varName(v.ID) + "." + strconv.Itoa(v.Version)
}

// Literal is a constant 256-bit EVM word.
type Literal struct {
	Value *uint256.Int
}

func (Literal) isOperand() {}
func (l Literal) String() string { return l.Value.Hex() }

// LitFromUint64 is a convenience constructor for small literals.
func LitFromUint64(v uint64) Literal {
	return Literal{Value: uint256.NewInt(v)}
}

// LitFromBig wraps an existing *uint256.Int without copying.
func LitFromBig(v *uint256.Int) Literal {
	return Literal{Value: v}
}

// Label names a basic block or a data-section entry, used as a jump
// target operand or as the subject of `invoke`.
type Label struct {
	Name string
}

func (Label) isOperand()        {}
func (l Label) String() string { return "@" + l.Name }

func varName(id int) string {
	return "%" + strconv.Itoa(id)
}
