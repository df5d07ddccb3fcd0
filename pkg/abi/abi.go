// Package abi implements the Ethereum ABI head-tail layout calculator:
// given a tuple of VyperTypes, where does each element's head word go,
// and which elements need a tail (dynamic) region. The actual
// MSTORE/MLOAD/mcopy emission stays in pkg/codegen, which calls into
// this package only for the arithmetic.
package abi

import (
	"github.com/vyperlang/venom-core/pkg/builtins"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// IsDynamic reports whether t's ABI encoding is a length-prefixed tail
// region referenced by a head-word offset, rather than an inline
// fixed-width head value.
func IsDynamic(t vytype.VyperType) bool {
	switch v := t.(type) {
	case vytype.BytesT, vytype.StringT, vytype.DArrayT:
		return true
	case vytype.SArrayT:
		return IsDynamic(v.Elem)
	case vytype.TupleT:
		for _, e := range v.Elems {
			if IsDynamic(e) {
				return true
			}
		}
		return false
	case vytype.StructT:
		for _, f := range v.Fields {
			if IsDynamic(f.Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HeadWords is how many 32-byte words t occupies in the head region: 1
// for everything (a value, or a tail offset pointer), except a static
// SArrayT/StructT/TupleT of statically-sized elements, which is encoded
// inline using one word per element slot.
func HeadWords(t vytype.VyperType) int {
	if IsDynamic(t) {
		return 1
	}
	switch v := t.(type) {
	case vytype.SArrayT:
		return v.N * HeadWords(v.Elem)
	case vytype.StructT:
		total := 0
		for _, f := range v.Fields {
			total += HeadWords(f.Type)
		}
		return total
	case vytype.TupleT:
		total := 0
		for _, e := range v.Elems {
			total += HeadWords(e)
		}
		return total
	default:
		return 1
	}
}

// Element describes one tuple member's position in an ABI-encoded blob.
type Element struct {
	Type          vytype.VyperType
	HeadOffset    int // byte offset of this element's head word(s)
	Dynamic       bool
}

// Layout computes each element's head offset for a top-level tuple of
// types.
func Layout(types []vytype.VyperType) []Element {
	elems := make([]Element, len(types))
	offset := 0
	for i, t := range types {
		dyn := IsDynamic(t)
		elems[i] = Element{Type: t, HeadOffset: offset, Dynamic: dyn}
		offset += HeadWords(t) * 32
	}
	return elems
}

// HeadSize is the total byte size of the head region for types.
func HeadSize(types []vytype.VyperType) int {
	total := 0
	for _, t := range types {
		total += HeadWords(t) * 32
	}
	return total
}

// MinSize is the smallest number of bytes a valid ABI encoding of t can
// occupy: the head region alone, with every dynamic tail empty except
// for its mandatory length word. abi_decode rejects buffers shorter than
// this before reading a single head word.
func MinSize(t vytype.VyperType) int {
	switch v := t.(type) {
	case vytype.BytesT, vytype.StringT:
		// offset word + length word, zero data bytes
		return 64
	case vytype.DArrayT:
		return 64
	case vytype.SArrayT:
		return v.N * MinSize(v.Elem)
	case vytype.TupleT:
		total := 0
		for _, e := range v.Elems {
			total += MinSize(e)
		}
		return total
	case vytype.StructT:
		total := 0
		for _, f := range v.Fields {
			total += MinSize(f.Type)
		}
		return total
	default:
		return 32
	}
}

// MaxSize is the largest number of bytes a valid ABI encoding of t can
// occupy, with every dynamic tail filled to its MaxLen. Together with
// MinSize it gives the [min, max] window abi_decode validates a buffer's
// length against.
func MaxSize(t vytype.VyperType) int {
	switch v := t.(type) {
	case vytype.BytesT:
		return 64 + ceil32(v.MaxLen)
	case vytype.StringT:
		return 64 + ceil32(v.MaxLen)
	case vytype.DArrayT:
		return 64 + v.MaxLen*MaxSize(v.Elem)
	case vytype.SArrayT:
		return v.N * MaxSize(v.Elem)
	case vytype.TupleT:
		total := 0
		for _, e := range v.Elems {
			total += MaxSize(e)
		}
		return total
	case vytype.StructT:
		total := 0
		for _, f := range v.Fields {
			total += MaxSize(f.Type)
		}
		return total
	default:
		return 32
	}
}

func ceil32(n int) int { return (n + 31) / 32 * 32 }

// MethodID computes the 4-byte selector for name(argTypes...), exposed
// standalone rather than only as a side effect of external-call
// lowering.
func MethodID(name string, argTypes []vytype.VyperType) [4]byte {
	return builtins.Selector(name, argTypes)
}
