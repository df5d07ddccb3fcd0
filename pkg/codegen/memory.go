package codegen

import (
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// AllocateBuffer emits an alloca for sizeBytes and returns the Buffer
// recording that allocation. Every memory Ptr the
// codegen package hands out must trace back to one of these.
func (c *Context) AllocateBuffer(sizeBytes int, annotation string) *Buffer {
	v := c.Builder.Alloca(venom.LitFromUint64(uint64(sizeBytes)))
	return &Buffer{Operand: v, Size: sizeBytes, Annotation: annotation}
}

// NewTemporaryValue allocates a buffer sized for typ and wraps it as a
// located VyperValue, for intermediate results that don't fit in a
// single stack slot.
func (c *Context) NewTemporaryValue(typ vytype.VyperType, annotation string) VyperValue {
	if typ.IsPrimWord() {
		return StackValue(c.Builder.NewVariable(), typ)
	}
	buf := c.AllocateBuffer(typ.MemoryBytesRequired(), annotation)
	return MemoryValue(buf.Operand, buf, typ)
}

// CopyMemory emits the fixed-size word-at-a-time (or mcopy, when
// available) copy from src to dst for a statically known sizeBytes.
// Overlapping src/dst is legal; mcopy handles that natively and this
// implementation therefore always goes through it rather than picking
// an unrolled loop, matching how Vyper's own lowering treats all memory
// copies as overlap-safe.
func (c *Context) CopyMemory(dst, src venom.Operand, sizeBytes int) {
	if sizeBytes == 0 {
		return
	}
	c.Builder.MCopy(dst, src, venom.LitFromUint64(uint64(sizeBytes)))
}

// CopyMemoryDynamic emits a copy whose size is only known at runtime
// (e.g. a dynamic array's current length), via the same mcopy opcode.
func (c *Context) CopyMemoryDynamic(dst, src, size venom.Operand) {
	c.Builder.MCopy(dst, src, size)
}

// SlotToMemory reads a single storage/transient word and materializes it
// in a fresh one-word memory buffer, for builtins that need a memory
// pointer (e.g. keccak256 of a storage value).
func (c *Context) SlotToMemory(loc ast.Location, slot venom.Operand) *Buffer {
	var word venom.Variable
	switch loc {
	case ast.LocStorage:
		word = c.Builder.SLoad(slot)
	case ast.LocTransient:
		word = c.Builder.TLoad(slot)
	default:
		panic("SlotToMemory: location must be storage or transient")
	}
	buf := c.AllocateBuffer(32, "slot_to_memory")
	c.Builder.MStore(buf.Operand, word)
	return buf
}

// LoadStorage/StoreStorage wrap sload/sstore; constancy is checked by the
// caller.
func (c *Context) LoadStorage(slot venom.Operand) venom.Variable {
	return c.Builder.SLoad(slot)
}

func (c *Context) StoreStorage(slot, val venom.Operand) {
	c.Builder.SStore(slot, val)
}

// LoadTransient/StoreTransient wrap tload/tstore (EIP-1153).
func (c *Context) LoadTransient(slot venom.Operand) venom.Variable {
	return c.Builder.TLoad(slot)
}

func (c *Context) StoreTransient(slot, val venom.Operand) {
	c.Builder.TStore(slot, val)
}

// LoadImmutable/StoreImmutable address immutables via the data section:
// StoreImmutable only ever runs in the deploy Context, LoadImmutable only
// in the runtime Context, where the constructor-computed bytes are
// spliced into the tail of the deployed code. name is the immutable's declared name, used as the data
// label so every reference agrees.
func (c *Context) LoadImmutable(name string, sizeBytes int) *Buffer {
	label := "immutable." + name
	buf := &Buffer{Operand: venom.Label{Name: label}, Size: sizeBytes, Annotation: "immutable:" + name}
	return buf
}

func (c *Context) StoreImmutable(name string, value venom.Operand, sizeBytes int) {
	label := "immutable." + name
	if c.Module.Deploy != nil {
		c.Module.Deploy.Data[label] = make([]byte, sizeBytes)
	}
	dst := venom.Label{Name: label}
	c.Builder.MStore(dst, value)
}

// dynArrayLengthOffset is 0: a DArrayT's length word precedes its
// elements in both memory and storage layout.
const dynArrayLengthOffset = 0

// GetDynArrayLength reads the length word at the head of a DArrayT's
// located value.
func (c *Context) GetDynArrayLength(arr Ptr) venom.Variable {
	switch arr.Location {
	case ast.LocStorage:
		return c.Builder.SLoad(arr.Operand)
	case ast.LocTransient:
		return c.Builder.TLoad(arr.Operand)
	default:
		return c.Builder.MLoad(arr.Operand)
	}
}

// SetDynArrayLength writes the length word; callers are responsible for
// having already checked the new length against the array's MaxLen.
func (c *Context) SetDynArrayLength(arr Ptr, newLen venom.Operand) {
	switch arr.Location {
	case ast.LocStorage:
		c.Builder.SStore(arr.Operand, newLen)
	case ast.LocTransient:
		c.Builder.TStore(arr.Operand, newLen)
	default:
		c.Builder.MStore(arr.Operand, newLen)
	}
}

// ArrayElemPtr computes the address of element idx within an array whose
// base is base. The stride depends on where the array lives: storage and
// transient arrays are addressed in words (StorageSizeInWords per
// element, plus one word for a dynamic array's length slot); memory,
// calldata, and code arrays are addressed in bytes (ceil32 of the
// element footprint, plus 32 bytes for the length head). Callers have
// already bounds-checked idx.
func (c *Context) ArrayElemPtr(base Ptr, elem vytype.VyperType, idx venom.Operand, dynamic bool) Ptr {
	var stride, dataOffset uint64
	switch base.Location {
	case ast.LocStorage, ast.LocTransient:
		stride = uint64(elem.StorageSizeInWords())
		if dynamic {
			dataOffset = 1
		}
	default:
		stride = uint64(ceil32(elem.MemoryBytesRequired()))
		if dynamic {
			dataOffset = 32
		}
	}
	byteOffset := c.Builder.Mul(idx, venom.LitFromUint64(stride))
	start := base.Operand
	if dataOffset != 0 {
		start = c.Builder.Add(start, venom.LitFromUint64(dataOffset))
	}
	return Ptr{Operand: c.Builder.Add(start, byteOffset), Location: base.Location, Buf: base.Buf}
}

// EmitRevertWithReturnData reverts the current path unless success holds,
// copying the callee's return data into memory first so callers observe
// the original error.
func (c *Context) EmitRevertWithReturnData(success venom.Operand) {
	ok := c.Builder.CreateBlock("call.ok")
	fail := c.Builder.CreateBlock("call.fail")
	c.Builder.Jnz(success, ok, fail)

	c.Builder.AppendBlock(fail)
	c.Builder.SetBlock(fail)
	size := c.Builder.ReturnDataSize()
	buf := c.AllocateBuffer(32, "returndata")
	c.Builder.ReturnDataCopy(buf.Operand, venom.LitFromUint64(0), size)
	c.Builder.Revert(buf.Operand, size)

	c.Builder.AppendBlock(ok)
	c.Builder.SetBlock(ok)
}

// Unwrap loads a located primitive-word value onto the stack, the
// inverse of wrapping a stack value into a one-word buffer. For a located value whose type is not a primitive
// word, there is nothing to load onto the stack — instead it returns the
// operand of a fresh memory buffer holding the value, materializing it
// out of storage/transient/calldata first if it isn't in memory already.
// Built-ins that need a memory pointer regardless of
// a value's declared location (keccak256, slice, concat, abi_encode, ...)
// go through this rather than assuming their argument is already in
// memory.
func (c *Context) Unwrap(v VyperValue) venom.Variable {
	if v.IsStack {
		if variable, ok := v.Stack.(venom.Variable); ok {
			return variable
		}
		return c.materializeOperand(v.Stack)
	}
	if !v.Type.IsPrimWord() {
		return c.materializeOperand(c.Materialize(v).Operand)
	}
	switch v.Located.Location {
	case ast.LocStorage:
		return c.Builder.SLoad(v.Located.Operand)
	case ast.LocTransient:
		return c.Builder.TLoad(v.Located.Operand)
	case ast.LocCalldata:
		return c.Builder.CallDataLoad(v.Located.Operand)
	default:
		return c.Builder.MLoad(v.Located.Operand)
	}
}

// Materialize returns v's located value as a pointer into memory,
// copying it there first if it currently lives in storage, transient
// storage, or calldata. A value already in memory is returned
// as-is — its existing Buffer provenance carries over unchanged.
func (c *Context) Materialize(v VyperValue) *Buffer {
	if v.IsStack {
		panic("Materialize: called on a stack value")
	}
	src := v.Located
	if src.Location == ast.LocMemory {
		return src.Buf
	}
	dst := c.AllocateBuffer(v.Type.MemoryBytesRequired(), "materialize")
	dstPtr := Ptr{Operand: dst.Operand, Location: ast.LocMemory, Buf: dst}
	c.copyCrossLocation(dstPtr, src, v.Type)
	return dst
}

// materializeOperand lifts a non-Variable stack operand (a Literal or
// Label) into a real Variable so callers that need an SSA value can rely
// on one uniformly.
func (c *Context) materializeOperand(op venom.Operand) venom.Variable {
	return c.Builder.Add(op, venom.LitFromUint64(0))
}

// BytesDataPtr returns the pointer to the first data byte of a BytesT/
// StringT located value, skipping the 32-byte length head.
func (c *Context) BytesDataPtr(v Ptr) venom.Variable {
	switch v.Location {
	case ast.LocStorage, ast.LocTransient:
		return c.Builder.Add(v.Operand, venom.LitFromUint64(1))
	default:
		return c.Builder.Add(v.Operand, venom.LitFromUint64(32))
	}
}

// BytestringLength reads the length head of a BytesT/StringT located
// value.
func (c *Context) BytestringLength(v Ptr) venom.Variable {
	switch v.Location {
	case ast.LocStorage:
		return c.Builder.SLoad(v.Operand)
	case ast.LocTransient:
		return c.Builder.TLoad(v.Operand)
	case ast.LocCalldata:
		return c.Builder.CallDataLoad(v.Operand)
	default:
		return c.Builder.MLoad(v.Operand)
	}
}

// BytesLikeDataPtrAndLen returns a memory data pointer and length for a
// bytes/string/dynamic-array argument, materializing it out of storage,
// transient storage, or calldata first if it isn't already in memory.
// Built-ins that feed their source
// argument straight into a memory-only opcode (mcopy, mload, sha3) must
// go through this rather than calling BytesDataPtr/BytestringLength
// directly on a value that might be a storage slot or calldata offset —
// those are not memory addresses, and passing one to mcopy/mload/sha3
// reads unrelated memory instead of the actual argument.
func (c *Context) BytesLikeDataPtrAndLen(v VyperValue) (venom.Operand, venom.Operand) {
	src := v.Located
	if src.Location != ast.LocMemory {
		buf := c.Materialize(v)
		src = Ptr{Operand: buf.Operand, Location: ast.LocMemory, Buf: buf}
	}
	return c.BytesDataPtr(src), c.BytestringLength(src)
}
