package codegen

import (
	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/abi"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/builtins"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// builtinConcat copies each argument's bytes into a fresh buffer back to
// back and writes the combined length head.
func (c *Context) builtinConcat(args []VyperValue, resultType vytype.VyperType) (VyperValue, error) {
	buf := c.AllocateBuffer(resultType.MemoryBytesRequired(), "concat")
	dataBase := c.Builder.Add(buf.Operand, venom.LitFromUint64(32))
	cursor := venom.Operand(dataBase)
	totalLen := venom.Operand(venom.LitFromUint64(0))
	for _, a := range args {
		srcPtr, srcLen := c.BytesLikeDataPtrAndLen(a)
		c.CopyMemoryDynamic(cursor, srcPtr, srcLen)
		cursor = c.Builder.Add(cursor, srcLen)
		totalLen = c.Builder.Add(totalLen, srcLen)
	}
	c.Builder.MStore(buf.Operand, totalLen)
	return MemoryValue(buf.Operand, buf, resultType), nil
}

// builtinSlice copies count bytes starting at start from src into a
// fresh buffer; out-of-range reverts.
func (c *Context) builtinSlice(src, start, count VyperValue, resultType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	startVal, countVal := c.Unwrap(start), c.Unwrap(count)
	srcDataPtr, srcLen := c.BytesLikeDataPtrAndLen(src)
	end := c.Builder.Add(startVal, countVal)
	// end >= start rules out wraparound in the addition itself; end <=
	// len(src) rules out reading past the source.
	noWrap := c.Builder.IsZero(c.Builder.Lt(end, startVal))
	inRange := c.Builder.IsZero(c.Builder.Gt(end, srcLen))
	c.emitRevertUnless(c.Builder.And(noWrap, inRange), pos)

	buf := c.AllocateBuffer(resultType.MemoryBytesRequired(), "slice")
	c.Builder.MStore(buf.Operand, countVal)
	srcPtr := c.Builder.Add(srcDataPtr, startVal)
	dstPtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(32))
	c.CopyMemoryDynamic(dstPtr, srcPtr, countVal)
	return MemoryValue(buf.Operand, buf, resultType), nil
}

// builtinExtract32 reads a fixed 32-byte window from a Bytes value and
// reinterprets it as output_type, with the same per-type clamping the
// ABI decoder applies to words off the wire.
func (c *Context) builtinExtract32(src, index VyperValue, resultType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	idx := c.Unwrap(index)
	srcDataPtr, srcLen := c.BytesLikeDataPtrAndLen(src)
	end := c.Builder.Add(idx, venom.LitFromUint64(32))
	noWrap := c.Builder.IsZero(c.Builder.Lt(end, idx))
	inRange := c.Builder.IsZero(c.Builder.Gt(end, srcLen))
	c.emitRevertUnless(c.Builder.And(noWrap, inRange), pos)
	ptr := c.Builder.Add(srcDataPtr, idx)
	word := c.Builder.MLoad(ptr)
	return c.clampDecodedWord(word, resultType, pos)
}

// builtinAbiEncode lays out args per pkg/abi.Layout and writes the head/
// tail region directly. Dynamic elements'
// tails are appended in argument order immediately after the head.
func (c *Context) builtinAbiEncode(n *ast.Call, args []VyperValue) (VyperValue, error) {
	types := make([]vytype.VyperType, len(args))
	for i, a := range args {
		types[i] = a.Type
	}
	layout := abi.Layout(types)
	headSize := abi.HeadSize(types)

	prependSelector := 0
	var selectorWord *uint256.Int
	if methodIDExpr, ok := n.Keywords["method_id"]; ok {
		var sel [4]byte
		switch lit := methodIDExpr.(type) {
		case *ast.BytesLiteral:
			copy(sel[:], lit.Value)
		case *ast.IntLiteral:
			b := lit.Value.Bytes32()
			copy(sel[:], b[28:])
		default:
			return VyperValue{}, compileerr.Argument(astPos(n.Pos), c.stack(), "abi_encode's method_id must be a literal")
		}
		selectorWord = selectorAsWord(sel)
		prependSelector = 4
	}

	buf := c.AllocateBuffer(32+prependSelector+headSize+dynamicTailBudget(args), "abi-encode")
	base := c.Builder.Add(buf.Operand, venom.LitFromUint64(32))
	if selectorWord != nil {
		// The selector word is written first so the head words that
		// follow may safely overwrite its 28 zero tail bytes.
		c.Builder.MStore(base, venom.LitFromBig(selectorWord))
	}
	headBase := base
	if prependSelector != 0 {
		headBase = c.Builder.Add(base, venom.LitFromUint64(uint64(prependSelector)))
	}
	cursor := c.Builder.Add(headBase, venom.LitFromUint64(uint64(headSize)))
	totalLen := venom.Operand(venom.LitFromUint64(uint64(prependSelector + headSize)))

	for i, el := range layout {
		headPtr := c.Builder.Add(headBase, venom.LitFromUint64(uint64(el.HeadOffset)))
		if !el.Dynamic {
			c.writeStaticValue(headPtr, args[i])
			continue
		}
		// Tail offsets are relative to the head start, past any
		// prepended selector.
		offset := c.Builder.Sub(cursor, headBase)
		c.Builder.MStore(headPtr, offset)
		tailDataPtr, tailLen := c.BytesLikeDataPtrAndLen(args[i])
		c.Builder.MStore(cursor, tailLen)
		dataPtr := c.Builder.Add(cursor, venom.LitFromUint64(32))
		c.CopyMemoryDynamic(dataPtr, tailDataPtr, tailLen)
		advance := c.Builder.Add(tailLen, venom.LitFromUint64(32))
		cursor = c.Builder.Add(cursor, advance)
		totalLen = c.Builder.Add(totalLen, advance)
	}
	c.Builder.MStore(buf.Operand, totalLen)
	resultType := n.Type
	if resultType == nil {
		resultType = vytype.BytesT{MaxLen: prependSelector + headSize + dynamicTailBudget(args)}
	}
	return MemoryValue(buf.Operand, buf, resultType), nil
}

// dynamicTailBudget is a conservative upper bound reserved for dynamic
// tails; the analyzer's MaxLen annotations give an exact figure in the
// full type-checked pipeline, so this only needs to be "big enough" for
// the core's own bookkeeping.
func dynamicTailBudget(args []VyperValue) int {
	total := 0
	for _, a := range args {
		if !a.IsStack && a.Located.Buf != nil {
			total += a.Located.Buf.Size
		}
	}
	return total
}

func (c *Context) writeStaticValue(dst venom.Operand, v VyperValue) {
	if v.IsStack {
		c.Builder.MStore(dst, c.Unwrap(v))
		return
	}
	c.CopyMemory(dst, v.Located.Operand, v.Type.MemoryBytesRequired())
}

// builtinAbiDecode reads a value back out of an ABI-encoded blob. The buffer's length is validated
// against the target type's [MinSize, MaxSize] window before any head
// word is read; primitive results are additionally clamped so malicious
// out-of-range words cannot masquerade as well-typed values.
func (c *Context) builtinAbiDecode(data VyperValue, resultType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	base, blobLen := c.BytesLikeDataPtrAndLen(data)

	minSize := abi.MinSize(resultType)
	maxSize := abi.MaxSize(resultType)
	aboveMin := c.Builder.IsZero(c.Builder.Lt(blobLen, venom.LitFromUint64(uint64(minSize))))
	belowMax := c.Builder.IsZero(c.Builder.Gt(blobLen, venom.LitFromUint64(uint64(maxSize))))
	c.emitRevertUnless(c.Builder.And(aboveMin, belowMax), pos)

	if resultType.IsPrimWord() {
		word := c.Builder.MLoad(base)
		return c.clampDecodedWord(word, resultType, pos)
	}

	switch t := resultType.(type) {
	case vytype.BytesT, vytype.StringT:
		offset := c.Builder.MLoad(base)
		tailPtr := c.Builder.Add(base, offset)
		length := c.Builder.MLoad(tailPtr)
		// Re-validate the dynamic read against the blob's own bounds and
		// the declared MaxLen before copying a byte.
		tailEnd := c.Builder.Add(c.Builder.Add(offset, venom.LitFromUint64(32)), length)
		inBlob := c.Builder.IsZero(c.Builder.Gt(tailEnd, blobLen))
		var maxLen int
		if bt, ok := t.(vytype.BytesT); ok {
			maxLen = bt.MaxLen
		} else {
			maxLen = t.(vytype.StringT).MaxLen
		}
		underMax := c.Builder.IsZero(c.Builder.Gt(length, venom.LitFromUint64(uint64(maxLen))))
		c.emitRevertUnless(c.Builder.And(inBlob, underMax), pos)

		out := c.AllocateBuffer(resultType.MemoryBytesRequired(), "abi-decode")
		c.Builder.MStore(out.Operand, length)
		srcData := c.Builder.Add(tailPtr, venom.LitFromUint64(32))
		dstData := c.Builder.Add(out.Operand, venom.LitFromUint64(32))
		c.CopyMemoryDynamic(dstData, srcData, length)
		return MemoryValue(out.Operand, out, resultType), nil
	case vytype.DArrayT:
		offset := c.Builder.MLoad(base)
		tailPtr := c.Builder.Add(base, offset)
		length := c.Builder.MLoad(tailPtr)
		underMax := c.Builder.IsZero(c.Builder.Gt(length, venom.LitFromUint64(uint64(t.MaxLen))))
		elemSize := uint64(ceil32(t.Elem.MemoryBytesRequired()))
		dataBytes := c.Builder.Mul(length, venom.LitFromUint64(elemSize))
		tailEnd := c.Builder.Add(c.Builder.Add(offset, venom.LitFromUint64(32)), dataBytes)
		inBlob := c.Builder.IsZero(c.Builder.Gt(tailEnd, blobLen))
		c.emitRevertUnless(c.Builder.And(inBlob, underMax), pos)

		out := c.AllocateBuffer(resultType.MemoryBytesRequired(), "abi-decode")
		c.Builder.MStore(out.Operand, length)
		srcData := c.Builder.Add(tailPtr, venom.LitFromUint64(32))
		dstData := c.Builder.Add(out.Operand, venom.LitFromUint64(32))
		c.CopyMemoryDynamic(dstData, srcData, dataBytes)
		return MemoryValue(out.Operand, out, resultType), nil
	default:
		// Static composite (struct/tuple/sarray of statics): the wire
		// layout matches Vyper's own packed word layout, a straight copy.
		out := c.AllocateBuffer(resultType.MemoryBytesRequired(), "abi-decode")
		c.CopyMemory(out.Operand, base, resultType.MemoryBytesRequired())
		return MemoryValue(out.Operand, out, resultType), nil
	}
}

// clampDecodedWord applies the per-type validation every primitive word
// read off the wire needs.
func (c *Context) clampDecodedWord(word venom.Variable, t vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	switch v := t.(type) {
	case vytype.BoolT:
		c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(word, venom.LitFromUint64(1))), pos)
		return StackValue(word, t), nil
	case vytype.AddressT:
		high, _ := uint256.FromHex("0xffffffffffffffffffffffffffffffffffffffff")
		c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(word, venom.LitFromBig(high))), pos)
		return StackValue(word, t), nil
	case vytype.IntegerT:
		if v.Bits == 256 {
			return StackValue(word, t), nil
		}
		return c.clampToBounds(word, v, v.Signed, pos)
	case vytype.BytesMT:
		if v.M == 32 {
			return StackValue(word, t), nil
		}
		// bytesM is left-aligned; the unused low bytes must be zero.
		tail := c.Builder.Shl(venom.LitFromUint64(uint64(8*v.M)), word)
		c.emitRevertUnless(c.Builder.IsZero(tail), pos)
		return StackValue(word, t), nil
	case vytype.DecimalT:
		low, high := vytype.DecimalBounds()
		withinHigh := c.Builder.IsZero(c.Builder.SGt(word, venom.LitFromBig(high)))
		withinLow := c.Builder.IsZero(c.Builder.SLt(word, venom.LitFromBig(low)))
		c.emitRevertUnless(c.Builder.And(withinHigh, withinLow), pos)
		return StackValue(word, t), nil
	default:
		return StackValue(word, t), nil
	}
}

// builtinConvert implements the explicit conversion matrix: integer widening/narrowing, int <-> decimal rescaling,
// bytesM <-> integer shift alignment, bytesM downcasts with the
// zero-low-bits "bytes clamp", bool and address legs. Narrowing
// conversions clamp-check at runtime; widening is free.
func (c *Context) builtinConvert(v VyperValue, target vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	val := c.Unwrap(v)
	switch dst := target.(type) {
	case vytype.BoolT:
		return StackValue(c.Builder.IsZero(c.Builder.IsZero(val)), target), nil
	case vytype.IntegerT:
		return c.convertToInteger(val, v.Type, dst, pos)
	case vytype.DecimalT:
		return c.convertToDecimal(val, v.Type, pos)
	case vytype.AddressT:
		return c.convertToAddress(val, v.Type, pos)
	case vytype.BytesMT:
		return c.convertToBytesM(val, v.Type, dst, pos)
	case vytype.FlagT:
		// A flag is a word-sized bitset; only the bits of declared
		// members may be set.
		if len(dst.Members) < 256 {
			var mask uint256.Int
			mask.Lsh(uint256.NewInt(1), uint(len(dst.Members)))
			mask.SubUint64(&mask, 1)
			c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(val, venom.LitFromBig(&mask))), pos)
		}
		return StackValue(val, target), nil
	default:
		return VyperValue{}, compileerr.TypeCheck(pos, c.stack(), "unsupported convert() target %s", target)
	}
}

func (c *Context) convertToInteger(val venom.Operand, srcType vytype.VyperType, dst vytype.IntegerT, pos compileerr.SourcePos) (VyperValue, error) {
	switch src := srcType.(type) {
	case vytype.DecimalT:
		// decimal -> integer: truncate toward zero (SDiv already
		// truncates toward zero for EVM's two's-complement division),
		// then clamp to the TARGET integer type's bounds.
		truncated := c.Builder.SDiv(val, venom.LitFromBig(vytype.Divisor))
		return c.clampToBounds(truncated, dst, true, pos)
	case vytype.BytesMT:
		// bytesM is left-aligned; shift down into the integer's
		// right-aligned position, then clamp if the target is narrower
		// than the source's bit width.
		shifted := venom.Operand(val)
		if src.M < 32 {
			shifted = c.Builder.Shr(venom.LitFromUint64(uint64(8*(32-src.M))), val)
		}
		if dst.Bits < 8*src.M || dst.Signed {
			return c.clampToBounds(shifted, dst, false, pos)
		}
		return StackValue(shifted, dst), nil
	case vytype.IntegerT:
		if src.Signed == dst.Signed && dst.Bits >= src.Bits {
			return StackValue(val, dst), nil
		}
		return c.clampToBounds(val, dst, src.Signed, pos)
	case vytype.BoolT, vytype.AddressT, vytype.FlagT:
		return c.clampToBounds(val, dst, false, pos)
	default:
		return c.clampToBounds(val, dst, false, pos)
	}
}

func (c *Context) convertToAddress(val venom.Operand, srcType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	if src, ok := srcType.(vytype.BytesMT); ok && src.M <= 20 {
		// bytes20 (or shorter) is left-aligned; realign to the address's
		// low 160 bits.
		shifted := c.Builder.Shr(venom.LitFromUint64(uint64(8*(32-src.M))), val)
		return StackValue(shifted, vytype.AddressT{}), nil
	}
	var high uint256.Int
	high.Lsh(uint256.NewInt(1), 160)
	high.SubUint64(&high, 1)
	c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(val, venom.LitFromBig(&high))), pos)
	return StackValue(val, vytype.AddressT{}), nil
}

func (c *Context) convertToBytesM(val venom.Operand, srcType vytype.VyperType, dst vytype.BytesMT, pos compileerr.SourcePos) (VyperValue, error) {
	switch src := srcType.(type) {
	case vytype.BytesMT:
		if src.M <= dst.M {
			// Widening keeps the left alignment; nothing moves.
			return StackValue(val, dst), nil
		}
		// Downcast: the bytes beyond the target width must already be
		// zero (the "bytes clamp" behavior), then the value truncates in
		// place since both are left-aligned.
		tail := c.Builder.Shl(venom.LitFromUint64(uint64(8*dst.M)), val)
		c.emitRevertUnless(c.Builder.IsZero(tail), pos)
		return StackValue(val, dst), nil
	case vytype.IntegerT:
		// Right-aligned integer -> left-aligned bytesM: the value must
		// fit in M bytes, then shifts up into alignment.
		if dst.M < 32 {
			var high uint256.Int
			high.Lsh(uint256.NewInt(1), uint(8*dst.M))
			high.SubUint64(&high, 1)
			c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(val, venom.LitFromBig(&high))), pos)
			shifted := c.Builder.Shl(venom.LitFromUint64(uint64(8*(32-dst.M))), val)
			return StackValue(shifted, dst), nil
		}
		return StackValue(val, dst), nil
	case vytype.AddressT:
		if dst.M != 20 {
			return VyperValue{}, compileerr.TypeCheck(pos, c.stack(), "address converts only to bytes20, not bytes%d", dst.M)
		}
		shifted := c.Builder.Shl(venom.LitFromUint64(96), val)
		return StackValue(shifted, dst), nil
	default:
		return StackValue(val, dst), nil
	}
}

func (c *Context) convertToDecimal(val venom.Operand, srcType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	srcInt, ok := srcType.(vytype.IntegerT)
	if !ok {
		return VyperValue{}, compileerr.TypeCheck(pos, c.stack(), "convert to decimal from non-integer type %s", srcType)
	}
	scaled := c.Builder.Mul(val, venom.LitFromBig(vytype.Divisor))
	low, high := vytype.DecimalBounds()
	var inBounds venom.Variable
	if srcInt.Signed {
		inBounds = c.Builder.And(
			c.Builder.IsZero(c.Builder.SGt(scaled, venom.LitFromBig(high))),
			c.Builder.IsZero(c.Builder.SLt(scaled, venom.LitFromBig(low))),
		)
	} else {
		inBounds = c.Builder.IsZero(c.Builder.Gt(scaled, venom.LitFromBig(high)))
	}
	c.emitRevertUnless(inBounds, pos)
	return StackValue(scaled, vytype.DecimalT{}), nil
}

// clampToBounds reverts unless val is within dst's representable range,
// comparing with signed or unsigned opcodes depending on srcSigned.
func (c *Context) clampToBounds(val venom.Operand, dst vytype.IntegerT, srcSigned bool, pos compileerr.SourcePos) (VyperValue, error) {
	low, high := dst.IntBounds()
	var inBounds venom.Variable
	if srcSigned {
		inBounds = c.Builder.And(
			c.Builder.IsZero(c.Builder.SGt(val, venom.LitFromBig(high))),
			c.Builder.IsZero(c.Builder.SLt(val, venom.LitFromBig(low))),
		)
	} else {
		inBounds = c.Builder.IsZero(c.Builder.Gt(val, venom.LitFromBig(high)))
	}
	c.emitRevertUnless(inBounds, pos)
	return StackValue(val, dst), nil
}

// leftAlignedWord packs up to 32 bytes into a left-aligned 256-bit word
// the way MSTORE expects prefix/suffix code fragments.
func leftAlignedWord(b []byte) *uint256.Int {
	var padded [32]byte
	copy(padded[:], b)
	var w uint256.Int
	w.SetBytes(padded[:])
	return &w
}

// builtinCreateMinimalProxy assembles the 54-byte EIP-1167 initcode in
// memory around the target address and issues a create/create2. Three
// stores, in order: the 19 bytes through the PUSH20 opcode, the left-aligned
// target address, then the 15-byte epilogue — each store's zero tail is
// overwritten by the next.
func (c *Context) builtinCreateMinimalProxy(target VyperValue, keywords map[string]ast.Expr, pos compileerr.SourcePos) (VyperValue, error) {
	if err := c.CheckIsNotConstant(pos); err != nil {
		return VyperValue{}, err
	}
	prologue := append(append([]byte(nil), builtins.ProxyInitPrologue...), builtins.ProxyRuntimePrefix...)
	addrOffset := uint64(len(prologue))            // 19
	epilogueOffset := addrOffset + 20              // 39
	initSize := epilogueOffset + uint64(len(builtins.ProxyRuntimeSuffix)) // 54

	buf := c.AllocateBuffer(int(ceil32(int(initSize))), "proxy-initcode")
	c.Builder.MStore(buf.Operand, venom.LitFromBig(leftAlignedWord(prologue)))
	addrPtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(addrOffset))
	c.Builder.MStore(addrPtr, c.Builder.Shl(venom.LitFromUint64(96), c.Unwrap(target)))
	epiloguePtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(epilogueOffset))
	c.Builder.MStore(epiloguePtr, venom.LitFromBig(leftAlignedWord(builtins.ProxyRuntimeSuffix)))

	return c.finishCreate(buf.Operand, venom.LitFromUint64(initSize), keywords, pos)
}

// builtinCreateCopyOf deploys a verbatim copy of the target account's
// runtime code: an 11-byte preamble that codecopies everything after
// itself and returns it, followed by the target's code fetched with
// extcodecopy.
func (c *Context) builtinCreateCopyOf(target VyperValue, keywords map[string]ast.Expr, pos compileerr.SourcePos) (VyperValue, error) {
	if err := c.CheckIsNotConstant(pos); err != nil {
		return VyperValue{}, err
	}
	addr := c.Unwrap(target)
	codeSize := c.Builder.ExtCodeSize(addr)
	// An account with no code is not a deployable source.
	c.emitRevertUnless(c.Builder.Gt(codeSize, venom.LitFromUint64(0)), pos)

	preambleLen := uint64(len(builtins.CopyOfPreamble))
	buf := c.AllocateBuffer(24576+int(preambleLen), "copyof-initcode")
	c.Builder.MStore(buf.Operand, venom.LitFromBig(leftAlignedWord(builtins.CopyOfPreamble)))
	codePtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(preambleLen))
	c.Builder.ExtCodeCopy(addr, codePtr, venom.LitFromUint64(0), codeSize)

	initSize := c.Builder.Add(codeSize, venom.LitFromUint64(preambleLen))
	return c.finishCreate(buf.Operand, initSize, keywords, pos)
}

// builtinCreateFromBlueprint deploys from an EIP-5202 blueprint
// contract's runtime code, skipping its fixed preamble and appending the
// ABI-encoded constructor arguments after the copied initcode.
func (c *Context) builtinCreateFromBlueprint(args []VyperValue, keywords map[string]ast.Expr, pos compileerr.SourcePos) (VyperValue, error) {
	if err := c.CheckIsNotConstant(pos); err != nil {
		return VyperValue{}, err
	}
	blueprintAddr := c.Unwrap(args[0])
	codeOffset := uint64(builtins.BlueprintCodeOffset)
	if co, ok := keywords["code_offset"]; ok {
		if lit, isLit := co.(*ast.IntLiteral); isLit {
			codeOffset = lit.Value.Uint64()
		}
	}
	extSize := c.Builder.ExtCodeSize(blueprintAddr)
	// The blueprint must at least contain its preamble.
	c.emitRevertUnless(c.Builder.Gt(extSize, venom.LitFromUint64(codeOffset)), pos)
	size := c.Builder.Sub(extSize, venom.LitFromUint64(codeOffset))

	ctorArgs := args[1:]
	argBytes := 0
	for _, a := range ctorArgs {
		argBytes += ceil32(a.Type.MemoryBytesRequired())
	}
	buf := c.AllocateBuffer(24576+argBytes, "blueprint-initcode")
	c.Builder.ExtCodeCopy(blueprintAddr, buf.Operand, venom.LitFromUint64(codeOffset), size)

	// Constructor args follow the initcode, word-packed in the same
	// static ABI layout the constructor's calldata decoder expects.
	cursor := venom.Operand(c.Builder.Add(buf.Operand, size))
	for _, a := range ctorArgs {
		c.writeStaticValue(cursor, a)
		cursor = c.Builder.Add(cursor, venom.LitFromUint64(uint64(ceil32(a.Type.MemoryBytesRequired()))))
	}
	initSize := c.Builder.Add(size, venom.LitFromUint64(uint64(argBytes)))
	return c.finishCreate(buf.Operand, initSize, keywords, pos)
}

// builtinRawCreate deploys caller-supplied initcode, with constructor
// arguments appended the same way create_from_blueprint appends them.
func (c *Context) builtinRawCreate(args []VyperValue, keywords map[string]ast.Expr, pos compileerr.SourcePos) (VyperValue, error) {
	if err := c.CheckIsNotConstant(pos); err != nil {
		return VyperValue{}, err
	}
	codeDataPtr, codeLen := c.BytesLikeDataPtrAndLen(args[0])

	ctorArgs := args[1:]
	argBytes := 0
	for _, a := range ctorArgs {
		argBytes += ceil32(a.Type.MemoryBytesRequired())
	}
	if argBytes == 0 {
		return c.finishCreate(codeDataPtr, codeLen, keywords, pos)
	}

	maxCode := 24576
	if bt, ok := args[0].Type.(vytype.BytesT); ok {
		maxCode = ceil32(bt.MaxLen)
	}
	buf := c.AllocateBuffer(maxCode+argBytes, "rawcreate-initcode")
	c.CopyMemoryDynamic(buf.Operand, codeDataPtr, codeLen)
	cursor := venom.Operand(c.Builder.Add(buf.Operand, codeLen))
	for _, a := range ctorArgs {
		c.writeStaticValue(cursor, a)
		cursor = c.Builder.Add(cursor, venom.LitFromUint64(uint64(ceil32(a.Type.MemoryBytesRequired()))))
	}
	initSize := c.Builder.Add(codeLen, venom.LitFromUint64(uint64(argBytes)))
	return c.finishCreate(buf.Operand, initSize, keywords, pos)
}

func (c *Context) keywordOrZero(keywords map[string]ast.Expr, name string, pos compileerr.SourcePos) venom.Operand {
	expr, ok := keywords[name]
	if !ok {
		return venom.LitFromUint64(0)
	}
	v, err := c.LowerExpr(expr)
	if err != nil {
		return venom.LitFromUint64(0)
	}
	return c.Unwrap(v)
}

// finishCreate issues create/create2 (salt present selects create2) and,
// unless revert_on_failure=False, treats a zero result address as
// failure, bubbling the initcode's revert data.
func (c *Context) finishCreate(codePtr, codeSize venom.Operand, keywords map[string]ast.Expr, pos compileerr.SourcePos) (VyperValue, error) {
	value := c.keywordOrZero(keywords, "value", pos)
	var addr venom.Variable
	if saltExpr, ok := keywords["salt"]; ok {
		saltVal, err := c.LowerExpr(saltExpr)
		if err != nil {
			return VyperValue{}, err
		}
		addr = c.Builder.Create2(value, codePtr, codeSize, c.Unwrap(saltVal))
	} else {
		addr = c.Builder.Create(value, codePtr, codeSize)
	}
	c.checkCallSuccess(addr, keywords, pos)
	return StackValue(addr, vytype.AddressT{}), nil
}

// builtinRawCall emits a raw CALL/DELEGATECALL/STATICCALL with an
// explicit memory-resident calldata buffer.
func (c *Context) builtinRawCall(target, data VyperValue, keywords map[string]ast.Expr, resultType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	if isTrueKeyword(keywords, "is_delegate_call") && isTrueKeyword(keywords, "is_static_call") {
		return VyperValue{}, compileerr.Argument(pos, c.stack(), "is_delegate_call and is_static_call are mutually exclusive")
	}
	if !isTrueKeyword(keywords, "is_static_call") {
		if err := c.CheckIsNotConstant(pos); err != nil {
			return VyperValue{}, err
		}
	}
	addr := c.Unwrap(target)
	argsPtr, argsSize := c.BytesLikeDataPtrAndLen(data)

	maxOutsize := uint64(0)
	if mo, ok := keywords["max_outsize"]; ok {
		if lit, isLit := mo.(*ast.IntLiteral); isLit {
			maxOutsize = lit.Value.Uint64()
		}
	}
	retBuf := c.AllocateBuffer(32+int(ceil32(int(maxOutsize))), "rawcall-ret")
	retDataPtr := c.Builder.Add(retBuf.Operand, venom.LitFromUint64(32))

	gas := venom.Operand(c.Builder.Gas())
	if g, ok := keywords["gas"]; ok {
		v, err := c.LowerExpr(g)
		if err != nil {
			return VyperValue{}, err
		}
		gas = c.Unwrap(v)
	}

	var success venom.Variable
	if isTrueKeyword(keywords, "is_delegate_call") {
		success = c.Builder.DelegateCall(gas, addr, argsPtr, argsSize, retDataPtr, venom.LitFromUint64(maxOutsize))
	} else if isTrueKeyword(keywords, "is_static_call") {
		success = c.Builder.StaticCall(gas, addr, argsPtr, argsSize, retDataPtr, venom.LitFromUint64(maxOutsize))
	} else {
		value := c.keywordOrZero(keywords, "value", pos)
		success = c.Builder.Call(gas, addr, value, argsPtr, argsSize, retDataPtr, venom.LitFromUint64(maxOutsize))
	}
	c.checkCallSuccess(success, keywords, pos)

	c.Builder.MStore(retBuf.Operand, c.Builder.ReturnDataSize())
	return MemoryValue(retBuf.Operand, retBuf, resultType), nil
}

func isTrueKeyword(keywords map[string]ast.Expr, name string) bool {
	expr, ok := keywords[name]
	if !ok {
		return false
	}
	lit, ok := expr.(*ast.IntLiteral)
	return ok && !lit.Value.IsZero()
}

// builtinSend forwards all remaining gas and asserts the transfer
// succeeded.
func (c *Context) builtinSend(target, amount VyperValue, pos compileerr.SourcePos) error {
	if err := c.CheckIsNotConstant(pos); err != nil {
		return err
	}
	addr, value := c.Unwrap(target), c.Unwrap(amount)
	success := c.Builder.Call(c.Builder.Gas(), addr, value, venom.LitFromUint64(0), venom.LitFromUint64(0), venom.LitFromUint64(0), venom.LitFromUint64(0))
	c.EmitRevertWithReturnData(success)
	return nil
}

// builtinRawLog emits an anonymous log with up to 4 caller-supplied
// topics and an arbitrary data blob.
func (c *Context) builtinRawLog(topics, data VyperValue, pos compileerr.SourcePos) error {
	if err := c.CheckIsNotConstant(pos); err != nil {
		return err
	}
	dataPtr, dataLen := c.BytesLikeDataPtrAndLen(data)

	arrType, ok := topics.Type.(vytype.SArrayT)
	if !ok {
		return compileerr.TypeCheck(pos, c.stack(), "raw_log's first argument must be a static array of topics")
	}
	topicVals := make([]venom.Operand, arrType.N)
	for i := 0; i < arrType.N; i++ {
		ptr := c.Builder.Add(topics.Located.Operand, venom.LitFromUint64(uint64(i*32)))
		topicVals[i] = c.Builder.MLoad(ptr)
	}
	c.Builder.LogN(dataPtr, dataLen, topicVals...)
	return nil
}
