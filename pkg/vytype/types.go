// Package vytype defines the VyperType sum type carried on every AST
// expression node the core visits.
//
// Every expression the lowering code dispatches on already carries a
// concrete VyperType — the core trusts this annotation rather than
// re-deriving or validating it (that is the semantic analyzer's job,
// explicitly out of scope here). VyperType is modeled as a closed
// interface with one struct per variant and an unexported marker
// method.
package vytype

import (
	"fmt"

	"github.com/holiman/uint256"
)

// AbiType is the wire-format name used by the ABI codec (pkg/abi) and by
// external-call signature construction (method selector hashing).
type AbiType string

// VyperType is the closed sum type every annotated AST expression carries.
type VyperType interface {
	// String renders the type the way Vyper source would spell it,
	// e.g. "uint256", "DynArray[uint8, 4]".
	String() string
	// IsPrimWord reports whether a value of this type fits in a single
	// 32-byte stack word.
	IsPrimWord() bool
	// MemoryBytesRequired is the footprint of one value of this type
	// when it is laid out in Vyper's packed memory encoding.
	MemoryBytesRequired() int
	// StorageSizeInWords is the number of 32-byte storage slots one
	// value of this type occupies.
	StorageSizeInWords() int
	// AbiType is the Ethereum ABI type string used by pkg/abi and by
	// external function signature construction.
	AbiType() AbiType

	vyperType()
}

// ceil32 rounds n up to the next multiple of 32, the EVM word size.
func ceil32(n int) int {
	return (n + 31) / 32 * 32
}

// IntegerT covers uint8..uint256 and int8..int256.
type IntegerT struct {
	Bits   int // 8, 16, ..., 256
	Signed bool
}

func (t IntegerT) vyperType() {}
func (t IntegerT) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}
func (t IntegerT) IsPrimWord() bool        { return true }
func (t IntegerT) MemoryBytesRequired() int { return 32 }
func (t IntegerT) StorageSizeInWords() int  { return 1 }
func (t IntegerT) AbiType() AbiType {
	if t.Signed {
		return AbiType(fmt.Sprintf("int%d", t.Bits))
	}
	return AbiType(fmt.Sprintf("uint%d", t.Bits))
}

// IntBounds returns the inclusive [low, high] range representable by this
// integer type, as 256-bit EVM words. For signed types, low is the
// two's-complement representation of the minimum value (i.e. a very
// large uint256), matching how the core compares against it using signed
// EVM opcodes (slt/sgt) rather than by first converting to a Go int.
func (t IntegerT) IntBounds() (low, high *uint256.Int) {
	if !t.Signed {
		low = uint256.NewInt(0)
		high = new(uint256.Int)
		if t.Bits == 256 {
			high.Sub(high, uint256.NewInt(1)) // wraps 0 to 2^256-1
			return low, high
		}
		high.Lsh(uint256.NewInt(1), uint(t.Bits))
		high.Sub(high, uint256.NewInt(1))
		return low, high
	}

	// Signed: high = 2^(bits-1) - 1, low = -2^(bits-1) represented
	// two's-complement in 256 bits.
	high = new(uint256.Int).Lsh(uint256.NewInt(1), uint(t.Bits-1))
	high.Sub(high, uint256.NewInt(1))

	magnitude := new(uint256.Int).Lsh(uint256.NewInt(1), uint(t.Bits-1))
	low = new(uint256.Int).Sub(new(uint256.Int), magnitude) // 0 - 2^(bits-1), wraps
	return low, high
}

// DecimalT is Vyper's fixed-point decimal: a scaled int168 using
// Divisor = 10^10. These constants
// are part of the wire-level contract with deployed Vyper code and must
// never change.
type DecimalT struct{}

func (t DecimalT) vyperType() {}
func (t DecimalT) String() string          { return "decimal" }
func (t DecimalT) IsPrimWord() bool        { return true }
func (t DecimalT) MemoryBytesRequired() int { return 32 }
func (t DecimalT) StorageSizeInWords() int  { return 1 }
func (t DecimalT) AbiType() AbiType        { return "int168" }

// Divisor is the decimal scale factor: one decimal unit = Divisor raw
// integer units.
var Divisor = uint256.NewInt(10_000_000_000)

// DivisorSqrt reduces intermediate overflow risk during decimal
// multiplication: multiply by sqrt(divisor) twice instead of
// by divisor once, halving the bit-width of the intermediate product.
var DivisorSqrt = uint256.NewInt(100_000)

// DecimalBounds are the int168 bounds of the scaled representation.
func DecimalBounds() (low, high *uint256.Int) {
	return IntegerT{Bits: 168, Signed: true}.IntBounds()
}

// BoolT is 0 or 1 in a 32-byte word.
type BoolT struct{}

func (t BoolT) vyperType()                 {}
func (t BoolT) String() string             { return "bool" }
func (t BoolT) IsPrimWord() bool           { return true }
func (t BoolT) MemoryBytesRequired() int   { return 32 }
func (t BoolT) StorageSizeInWords() int    { return 1 }
func (t BoolT) AbiType() AbiType           { return "bool" }

// AddressT is a 160-bit Ethereum address, right-aligned in a 32-byte word.
type AddressT struct{}

func (t AddressT) vyperType()               {}
func (t AddressT) String() string           { return "address" }
func (t AddressT) IsPrimWord() bool         { return true }
func (t AddressT) MemoryBytesRequired() int { return 32 }
func (t AddressT) StorageSizeInWords() int  { return 1 }
func (t AddressT) AbiType() AbiType         { return "address" }

// BytesMT is a fixed bytes1..bytes32, left-aligned in a 32-byte word.
type BytesMT struct {
	M int // 1..32
}

func (t BytesMT) vyperType() {}
func (t BytesMT) String() string          { return fmt.Sprintf("bytes%d", t.M) }
func (t BytesMT) IsPrimWord() bool        { return true }
func (t BytesMT) MemoryBytesRequired() int { return 32 }
func (t BytesMT) StorageSizeInWords() int { return 1 }
func (t BytesMT) AbiType() AbiType        { return AbiType(fmt.Sprintf("bytes%d", t.M)) }

// BytesT is a dynamic byte array bounded by MaxLen. Memory layout:
// [length: word][data: ceil32(MaxLen) bytes].
type BytesT struct {
	MaxLen int
}

func (t BytesT) vyperType()       {}
func (t BytesT) String() string   { return fmt.Sprintf("Bytes[%d]", t.MaxLen) }
func (t BytesT) IsPrimWord() bool { return false }
func (t BytesT) MemoryBytesRequired() int {
	return 32 + ceil32(t.MaxLen)
}
func (t BytesT) StorageSizeInWords() int { return 1 + (t.MaxLen+31)/32 }
func (t BytesT) AbiType() AbiType        { return "bytes" }

// StringT is BytesT's UTF-8-flavored twin; same memory layout.
type StringT struct {
	MaxLen int
}

func (t StringT) vyperType()       {}
func (t StringT) String() string   { return fmt.Sprintf("String[%d]", t.MaxLen) }
func (t StringT) IsPrimWord() bool { return false }
func (t StringT) MemoryBytesRequired() int {
	return 32 + ceil32(t.MaxLen)
}
func (t StringT) StorageSizeInWords() int { return 1 + (t.MaxLen+31)/32 }
func (t StringT) AbiType() AbiType        { return "string" }

// DArrayT is a dynamic array: same layout as BytesT but data is packed
// Elem-sized slots rather than raw bytes.
type DArrayT struct {
	Elem   VyperType
	MaxLen int
}

func (t DArrayT) vyperType() {}
func (t DArrayT) String() string {
	return fmt.Sprintf("DynArray[%s, %d]", t.Elem.String(), t.MaxLen)
}
func (t DArrayT) IsPrimWord() bool { return false }
func (t DArrayT) MemoryBytesRequired() int {
	return 32 + t.MaxLen*ceil32(t.Elem.MemoryBytesRequired())
}
func (t DArrayT) StorageSizeInWords() int {
	return 1 + t.MaxLen*t.Elem.StorageSizeInWords()
}
func (t DArrayT) AbiType() AbiType { return AbiType(string(t.Elem.AbiType()) + "[]") }

// SArrayT is a static array of N elements, no length prefix.
type SArrayT struct {
	Elem VyperType
	N    int
}

func (t SArrayT) vyperType() {}
func (t SArrayT) String() string {
	return fmt.Sprintf("%s[%d]", t.Elem.String(), t.N)
}
func (t SArrayT) IsPrimWord() bool { return false }
func (t SArrayT) MemoryBytesRequired() int {
	return t.N * ceil32(t.Elem.MemoryBytesRequired())
}
func (t SArrayT) StorageSizeInWords() int { return t.N * t.Elem.StorageSizeInWords() }
func (t SArrayT) AbiType() AbiType {
	return AbiType(fmt.Sprintf("%s[%d]", t.Elem.AbiType(), t.N))
}

// StructField is one field of a StructT, in declaration order.
type StructField struct {
	Name string
	Type VyperType
}

// StructT is a product type; packed layout in memory, each field
// occupying Type.MemoryBytesRequired() bytes in declaration order.
type StructT struct {
	Name   string
	Fields []StructField
}

func (t StructT) vyperType()     {}
func (t StructT) String() string { return t.Name }
func (t StructT) IsPrimWord() bool { return false }
func (t StructT) MemoryBytesRequired() int {
	total := 0
	for _, f := range t.Fields {
		total += f.Type.MemoryBytesRequired()
	}
	return total
}
func (t StructT) StorageSizeInWords() int {
	total := 0
	for _, f := range t.Fields {
		total += f.Type.StorageSizeInWords()
	}
	return total
}
func (t StructT) AbiType() AbiType { return "tuple" }

// FieldOffset returns the byte offset of the named field within a memory
// layout of this struct, used by field-access lowering.
func (t StructT) FieldOffset(name string) (int, VyperType, bool) {
	offset := 0
	for _, f := range t.Fields {
		if f.Name == name {
			return offset, f.Type, true
		}
		offset += f.Type.MemoryBytesRequired()
	}
	return 0, nil, false
}

// TupleT is an unnamed product type, used for multi-value returns and
// tuple-unpacking assignment.
type TupleT struct {
	Elems []VyperType
}

func (t TupleT) vyperType() {}
func (t TupleT) String() string {
	s := "("
	for i, e := range t.Elems {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + ")"
}
func (t TupleT) IsPrimWord() bool { return false }
func (t TupleT) MemoryBytesRequired() int {
	total := 0
	for _, e := range t.Elems {
		total += e.MemoryBytesRequired()
	}
	return total
}
func (t TupleT) StorageSizeInWords() int {
	total := 0
	for _, e := range t.Elems {
		total += e.StorageSizeInWords()
	}
	return total
}
func (t TupleT) AbiType() AbiType { return "tuple" }

// FieldOffset returns the byte offset of the i-th tuple element within a
// memory layout of this tuple.
func (t TupleT) FieldOffset(i int) int {
	offset := 0
	for j := 0; j < i; j++ {
		offset += t.Elems[j].MemoryBytesRequired()
	}
	return offset
}

// HashMapT is storage-only; location is keccak256(key . slot). It has no memory representation.
type HashMapT struct {
	Key   VyperType
	Value VyperType
}

func (t HashMapT) vyperType() {}
func (t HashMapT) String() string {
	return fmt.Sprintf("HashMap[%s, %s]", t.Key.String(), t.Value.String())
}
func (t HashMapT) IsPrimWord() bool         { return false }
func (t HashMapT) MemoryBytesRequired() int { return 0 }
func (t HashMapT) StorageSizeInWords() int  { return 1 }
func (t HashMapT) AbiType() AbiType         { panic("HashMapT has no ABI representation") }

// FlagT is a bitset, a single 32-byte word (Vyper's enum-with-bitwise-ops).
type FlagT struct {
	Name    string
	Members []string
}

func (t FlagT) vyperType()     {}
func (t FlagT) String() string { return t.Name }
func (t FlagT) IsPrimWord() bool         { return true }
func (t FlagT) MemoryBytesRequired() int { return 32 }
func (t FlagT) StorageSizeInWords() int  { return 1 }
func (t FlagT) AbiType() AbiType         { return AbiType(fmt.Sprintf("uint%d", ((len(t.Members)+7)/8)*8)) }

// InterfaceMethod is one method exposed by an InterfaceT.
type InterfaceMethod struct {
	Name    string
	Args    []VyperType
	Returns []VyperType
	Mutable bool
}

// InterfaceT is an address with method metadata, used to type-check and
// lower external calls.
type InterfaceT struct {
	Name    string
	Methods []InterfaceMethod
}

func (t InterfaceT) vyperType()             {}
func (t InterfaceT) String() string         { return t.Name }
func (t InterfaceT) IsPrimWord() bool       { return true } // an interface value is just an address
func (t InterfaceT) MemoryBytesRequired() int { return 32 }
func (t InterfaceT) StorageSizeInWords() int  { return 1 }
func (t InterfaceT) AbiType() AbiType         { return "address" }

// Method looks up a method by name.
func (t InterfaceT) Method(name string) (InterfaceMethod, bool) {
	for _, m := range t.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return InterfaceMethod{}, false
}
