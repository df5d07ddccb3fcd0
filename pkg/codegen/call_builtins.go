package codegen

import (
	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/builtins"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// lowerBuiltinCall implements the built-ins that arrive with pre-lowered
// argument values, one case per such pkg/builtins registry entry;
// append, pop, convert and abi_decode are intercepted in call_adhoc.go
// and never reach this switch.
func (c *Context) lowerBuiltinCall(name string, n *ast.Call, args []VyperValue, pos compileerr.SourcePos) (VyperValue, error) {
	if err := builtins.CheckArity(name, len(args)); err != nil {
		return VyperValue{}, compileerr.Argument(pos, c.stack(), "%s", err)
	}
	switch name {
	case "floor":
		return c.builtinFloor(args[0], n.Type)
	case "ceil":
		return c.builtinCeil(args[0], n.Type)
	case "abs":
		return c.builtinAbs(args[0], pos)
	case "min":
		return c.builtinMinMax(args[0], args[1], n.Type, true)
	case "max":
		return c.builtinMinMax(args[0], args[1], n.Type, false)
	case "len":
		return c.builtinLen(args[0])
	case "empty":
		return c.builtinEmpty(n.Type), nil
	case "as_wei_value":
		return c.builtinAsWeiValue(args[0], n.Args[1], n.Type, pos)
	case "uint2str":
		return c.builtinUint2Str(args[0], n.Type)

	case "unsafe_add":
		return StackValue(c.Builder.Add(c.Unwrap(args[0]), c.Unwrap(args[1])), n.Type), nil
	case "unsafe_sub":
		return StackValue(c.Builder.Sub(c.Unwrap(args[0]), c.Unwrap(args[1])), n.Type), nil
	case "unsafe_mul":
		return StackValue(c.Builder.Mul(c.Unwrap(args[0]), c.Unwrap(args[1])), n.Type), nil
	case "unsafe_div":
		return c.builtinUnsafeDiv(args[0], args[1], n.Type)
	case "pow_mod256":
		return StackValue(c.Builder.Exp(c.Unwrap(args[0]), c.Unwrap(args[1])), n.Type), nil
	case "uint256_addmod":
		modulus := c.Unwrap(args[2])
		c.revertIfZero(modulus, pos)
		return StackValue(c.Builder.AddMod(c.Unwrap(args[0]), c.Unwrap(args[1]), modulus), n.Type), nil
	case "uint256_mulmod":
		modulus := c.Unwrap(args[2])
		c.revertIfZero(modulus, pos)
		return StackValue(c.Builder.MulMod(c.Unwrap(args[0]), c.Unwrap(args[1]), modulus), n.Type), nil
	case "shift":
		return c.builtinShift(args[0], args[1], n.Type)

	case "keccak256":
		return c.builtinHash(args[0], true)
	case "sha256":
		return c.builtinHash(args[0], false)
	case "method_id":
		return c.builtinMethodID(n, pos)

	case "concat":
		return c.builtinConcat(args, n.Type)
	case "slice":
		return c.builtinSlice(args[0], args[1], args[2], n.Type, pos)
	case "extract32":
		return c.builtinExtract32(args[0], args[1], n.Type, pos)

	case "abi_encode":
		return c.builtinAbiEncode(n, args)

	case "raw_create":
		return c.builtinRawCreate(args, n.Keywords, pos)
	case "create_minimal_proxy_to", "create_forwarder_to":
		return c.builtinCreateMinimalProxy(args[0], n.Keywords, pos)
	case "create_copy_of":
		return c.builtinCreateCopyOf(args[0], n.Keywords, pos)
	case "create_from_blueprint":
		return c.builtinCreateFromBlueprint(args, n.Keywords, pos)

	case "raw_call":
		return c.builtinRawCall(args[0], args[1], n.Keywords, n.Type, pos)
	case "send":
		return VyperValue{}, c.builtinSend(args[0], args[1], pos)
	case "raw_log":
		return VyperValue{}, c.builtinRawLog(args[0], args[1], pos)
	case "raw_revert":
		dataPtr, dataLen := c.BytesLikeDataPtrAndLen(args[0])
		c.Builder.Revert(dataPtr, dataLen)
		return VyperValue{}, nil
	case "selfdestruct":
		if err := c.CheckIsNotConstant(pos); err != nil {
			return VyperValue{}, err
		}
		c.Builder.SelfDestruct(c.Unwrap(args[0]))
		return VyperValue{}, nil

	default:
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "unregistered built-in %q reached codegen", name)
	}
}

func (c *Context) builtinFloor(v VyperValue, resultType vytype.VyperType) (VyperValue, error) {
	val := c.Unwrap(v)
	q := c.Builder.SDiv(val, venom.LitFromBig(vytype.Divisor))
	rem := c.Builder.SMod(val, venom.LitFromBig(vytype.Divisor))
	remNeg := c.Builder.SLt(rem, venom.LitFromUint64(0))
	remNonzero := c.Builder.IsZero(c.Builder.IsZero(rem))
	adjust := c.Builder.And(remNeg, remNonzero)
	adjusted := c.Builder.Sub(q, adjust)
	return StackValue(adjusted, resultType), nil
}

func (c *Context) builtinCeil(v VyperValue, resultType vytype.VyperType) (VyperValue, error) {
	val := c.Unwrap(v)
	q := c.Builder.SDiv(val, venom.LitFromBig(vytype.Divisor))
	rem := c.Builder.SMod(val, venom.LitFromBig(vytype.Divisor))
	remPos := c.Builder.SGt(rem, venom.LitFromUint64(0))
	adjusted := c.Builder.Add(q, remPos)
	return StackValue(adjusted, resultType), nil
}

// builtinAbs negates a negative signed value in place, reverting on the
// one input with no positive counterpart.
func (c *Context) builtinAbs(v VyperValue, pos compileerr.SourcePos) (VyperValue, error) {
	val := c.Unwrap(v)
	intT, ok := v.Type.(vytype.IntegerT)
	if !ok {
		intT = vytype.IntegerT{Bits: 168, Signed: true}
	}
	low, _ := intT.IntBounds()
	notMin := c.Builder.IsZero(c.Builder.Eq(val, venom.LitFromBig(low)))
	c.emitRevertUnless(notMin, pos)
	isNeg := c.Builder.SLt(val, venom.LitFromUint64(0))
	negated := c.Builder.Sub(venom.LitFromUint64(0), val)
	return StackValue(c.Builder.Select(isNeg, negated, val), v.Type), nil
}

func (c *Context) builtinMinMax(a, b VyperValue, resultType vytype.VyperType, wantMin bool) (VyperValue, error) {
	left, right := c.Unwrap(a), c.Unwrap(b)
	signed := false
	if intT, ok := a.Type.(vytype.IntegerT); ok {
		signed = intT.Signed
	}
	if _, ok := a.Type.(vytype.DecimalT); ok {
		signed = true
	}
	var aIsSmaller venom.Variable
	if signed {
		aIsSmaller = c.Builder.SLt(left, right)
	} else {
		aIsSmaller = c.Builder.Lt(left, right)
	}
	if wantMin {
		return StackValue(c.Builder.Select(aIsSmaller, left, right), resultType), nil
	}
	return StackValue(c.Builder.Select(aIsSmaller, right, left), resultType), nil
}

// builtinLen reads the length head of a Bytes/String/DynArray value.
func (c *Context) builtinLen(v VyperValue) (VyperValue, error) {
	return StackValue(c.BytestringLength(v.Located), vytype.IntegerT{Bits: 256, Signed: false}), nil
}

// builtinEmpty materializes the zero value of resultType: the literal 0
// for a primitive word, or a freshly zeroed buffer otherwise (memory
// returned by `alloca` is not guaranteed pre-zeroed by every downstream
// allocator, so this explicitly clears it).
func (c *Context) builtinEmpty(resultType vytype.VyperType) VyperValue {
	if resultType.IsPrimWord() {
		return StackValue(venom.LitFromUint64(0), resultType)
	}
	buf := c.AllocateBuffer(resultType.MemoryBytesRequired(), "empty")
	c.zeroFill(buf)
	return MemoryValue(buf.Operand, buf, resultType)
}

func (c *Context) zeroFill(buf *Buffer) {
	for off := 0; off < buf.Size; off += 32 {
		ptr := c.Builder.Add(buf.Operand, venom.LitFromUint64(uint64(off)))
		c.Builder.MStore(ptr, venom.LitFromUint64(0))
	}
}

// builtinAsWeiValue scales an integer/decimal amount by the named unit;
// the unit, passed as the second positional argument, is a string literal the
// analyzer has already validated, so only a fixed set reaches here.
func (c *Context) builtinAsWeiValue(amount VyperValue, unitExpr ast.Expr, resultType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	lit, ok := unitExpr.(*ast.BytesLiteral)
	if !ok {
		return VyperValue{}, compileerr.Argument(pos, c.stack(), "as_wei_value's unit must be a string literal")
	}
	factor, ok := weiUnits[string(lit.Value)]
	if !ok {
		return VyperValue{}, compileerr.Argument(pos, c.stack(), "unknown wei unit %q", string(lit.Value))
	}
	val := c.Unwrap(amount)
	result := c.Builder.Mul(val, venom.LitFromUint64(factor))
	return StackValue(result, resultType), nil
}

var weiUnits = map[string]uint64{
	"wei":    1,
	"gwei":   1_000_000_000,
	"ether":  1_000_000_000_000_000_000,
}

func (c *Context) builtinUnsafeDiv(a, b VyperValue, resultType vytype.VyperType) (VyperValue, error) {
	left, right := c.Unwrap(a), c.Unwrap(b)
	if intT, ok := resultType.(vytype.IntegerT); ok && intT.Signed {
		return StackValue(c.Builder.SDiv(left, right), resultType), nil
	}
	return StackValue(c.Builder.Div(left, right), resultType), nil
}

// builtinHash handles keccak256/sha256 over a bytes-like or
// primitive-word argument.
func (c *Context) builtinHash(v VyperValue, keccak bool) (VyperValue, error) {
	var ptr, size venom.Operand
	if v.IsStack {
		buf := c.AllocateBuffer(32, "hash-scratch")
		c.Builder.MStore(buf.Operand, c.Unwrap(v))
		ptr, size = buf.Operand, venom.LitFromUint64(32)
	} else {
		ptr, size = c.BytesLikeDataPtrAndLen(v)
	}
	if keccak {
		return StackValue(c.Builder.Sha3(ptr, size), vytype.BytesMT{M: 32}), nil
	}
	// sha256 has no dedicated opcode; it is invoked as a precompile at
	// address 0x2.
	retBuf := c.AllocateBuffer(32, "sha256-ret")
	c.Builder.StaticCall(c.Builder.Gas(), venom.LitFromUint64(2), ptr, size, retBuf.Operand, venom.LitFromUint64(32))
	return StackValue(c.Builder.MLoad(retBuf.Operand), vytype.BytesMT{M: 32}), nil
}

// builtinShift is shift(x, n): a left shift for positive n, a right
// shift for negative n, both logical (shl/shr, never sar) regardless of
// x's declared signedness — the pinned unsafe-category semantics, no
// overflow assertions.
func (c *Context) builtinShift(x, n VyperValue, resultType vytype.VyperType) (VyperValue, error) {
	val, amount := c.Unwrap(x), c.Unwrap(n)
	negAmount := c.Builder.Sub(venom.LitFromUint64(0), amount)
	left := c.Builder.Shl(amount, val)
	right := c.Builder.Shr(negAmount, val)
	isNeg := c.Builder.SLt(amount, venom.LitFromUint64(0))
	return StackValue(c.Builder.Select(isNeg, right, left), resultType), nil
}

// maxUintDigits is the decimal digit count of 2^256 - 1, the widest
// string uint2str can produce.
const maxUintDigits = 78

// builtinUint2Str renders an unsigned integer as its decimal string at
// runtime: digits are peeled off least-significant-first into the tail
// of a scratch region, then the populated suffix is copied into a fresh
// String buffer behind its length word.
func (c *Context) builtinUint2Str(v VyperValue, resultType vytype.VyperType) (VyperValue, error) {
	scratch := c.AllocateBuffer(ceil32(maxUintDigits), "uint2str-scratch")
	end := c.Builder.Add(scratch.Operand, venom.LitFromUint64(maxUintDigits))

	val := c.Builder.NewVariable()
	c.Builder.AssignTo(c.Unwrap(v), val)
	count := c.Builder.NewVariable()
	c.Builder.AssignTo(venom.LitFromUint64(0), count)

	headBB := c.Builder.CreateBlock("uint2str.head")
	bodyBB := c.Builder.CreateBlock("uint2str.body")
	zeroBB := c.Builder.CreateBlock("uint2str.zero")
	doneBB := c.Builder.CreateBlock("uint2str.done")

	c.Builder.Jmp(headBB)
	c.Builder.AppendBlock(headBB)
	c.Builder.SetBlock(headBB)
	c.Builder.Jnz(val, bodyBB, zeroBB)

	c.Builder.AppendBlock(bodyBB)
	c.Builder.SetBlock(bodyBB)
	digit := c.Builder.Mod(val, venom.LitFromUint64(10))
	char := c.Builder.Add(digit, venom.LitFromUint64('0'))
	nextCount := c.Builder.Add(count, venom.LitFromUint64(1))
	pos := c.Builder.Sub(end, nextCount)
	c.Builder.MStore8(pos, char)
	c.Builder.AssignTo(nextCount, count)
	c.Builder.AssignTo(c.Builder.Div(val, venom.LitFromUint64(10)), val)
	c.Builder.Jmp(headBB)

	// The loop never runs for an input of zero, which still renders as
	// the one-character string "0".
	c.Builder.AppendBlock(zeroBB)
	c.Builder.SetBlock(zeroBB)
	isEmpty := c.Builder.IsZero(count)
	firstPos := c.Builder.Sub(end, venom.LitFromUint64(1))
	writeZero := c.Builder.CreateBlock("uint2str.writezero")
	c.Builder.Jnz(isEmpty, writeZero, doneBB)
	c.Builder.AppendBlock(writeZero)
	c.Builder.SetBlock(writeZero)
	c.Builder.MStore8(firstPos, venom.LitFromUint64('0'))
	c.Builder.AssignTo(venom.LitFromUint64(1), count)
	c.Builder.Jmp(doneBB)

	c.Builder.AppendBlock(doneBB)
	c.Builder.SetBlock(doneBB)
	out := c.AllocateBuffer(resultType.MemoryBytesRequired(), "uint2str")
	c.Builder.MStore(out.Operand, count)
	dataStart := c.Builder.Sub(end, count)
	dst := c.Builder.Add(out.Operand, venom.LitFromUint64(32))
	c.CopyMemoryDynamic(dst, dataStart, count)
	return MemoryValue(out.Operand, out, resultType), nil
}

// builtinMethodID exposes pkg/builtins.Selector as a standalone
// expression builtin: `method_id("foo(uint256)")`.
func (c *Context) builtinMethodID(n *ast.Call, pos compileerr.SourcePos) (VyperValue, error) {
	lit, ok := n.Args[0].(*ast.BytesLiteral)
	if !ok {
		return VyperValue{}, compileerr.Argument(pos, c.stack(), "method_id requires a string literal signature")
	}
	sel := builtins.SelectorFromSignature(string(lit.Value))
	var word uint256.Int
	word.SetBytes(sel[:])
	return StackValue(venom.LitFromBig(&word), n.Type), nil
}
