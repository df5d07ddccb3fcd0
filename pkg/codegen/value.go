// Package codegen implements the Codegen Context and the
// AST-driven Expression/Statement lowering that walks an annotated AST
// and emits Venom IR through a venom.Builder.
//
// Dispatch is a type switch per node kind; per-function state lives in
// a single symbol table keyed by name.
package codegen

import (
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// Buffer is the result of a single alloca instruction: an immutable
// record of one allocation. Pointers into it may be offset
// but must never outlive it.
type Buffer struct {
	Operand    venom.Operand
	Size       int
	Annotation string
}

// Ptr is a located value: operand holds the address/slot, Location says
// which opcode family reaches it, and Buf carries provenance — set iff
// Location == ast.LocMemory.
type Ptr struct {
	Operand  venom.Operand
	Location ast.Location
	Buf      *Buffer // non-nil only for Location == ast.LocMemory
}

// VyperValue is a tagged union: either a bare stack operand (already a
// primitive word) or a Ptr into some location.
// Exactly one of Stack/Located is meaningful, selected by IsStack.
type VyperValue struct {
	IsStack bool
	Stack   venom.Operand
	Located Ptr
	Type    vytype.VyperType
}

// StackValue wraps an operand already known to satisfy IsPrimWord.
func StackValue(op venom.Operand, typ vytype.VyperType) VyperValue {
	return VyperValue{IsStack: true, Stack: op, Type: typ}
}

// LocatedValue wraps a Ptr.
func LocatedValue(ptr Ptr, typ vytype.VyperType) VyperValue {
	return VyperValue{IsStack: false, Located: ptr, Type: typ}
}

// MemoryValue is a convenience constructor for a located value backed by
// buf, at an offset into it (offset 0 for the buffer's own base).
func MemoryValue(operand venom.Operand, buf *Buffer, typ vytype.VyperType) VyperValue {
	return LocatedValue(Ptr{Operand: operand, Location: ast.LocMemory, Buf: buf}, typ)
}
