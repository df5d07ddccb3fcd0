package codegen

import (
	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// lowerBinOp dispatches arithmetic and bitwise binary operators. Unsafe forms
// (unsafe_add and friends) skip the overflow/underflow clamp entirely;
// every other numeric op gets one, sized to the operand type.
func (c *Context) lowerBinOp(n *ast.BinOp) (VyperValue, error) {
	pos := astPos(n.Pos)
	lv, err := c.LowerExpr(n.Left)
	if err != nil {
		return VyperValue{}, err
	}
	rv, err := c.LowerExpr(n.Right)
	if err != nil {
		return VyperValue{}, err
	}
	left, right := c.Unwrap(lv), c.Unwrap(rv)

	if flag, ok := n.Type.(vytype.FlagT); ok {
		return c.lowerFlagBinOp(n.Op, left, right, flag), nil
	}
	if _, ok := n.Type.(vytype.DecimalT); ok {
		return c.lowerDecimalBinOp(n.Op, left, right, n.Unsafe, pos)
	}
	intT, ok := n.Type.(vytype.IntegerT)
	if !ok {
		return VyperValue{}, compileerr.TypeCheck(pos, c.stack(), "binop on non-numeric type %s", n.Type)
	}
	if n.Op == ast.BinPow && !n.Unsafe {
		return c.lowerPow(n, left, right, intT, pos)
	}
	return c.lowerIntBinOp(n.Op, left, right, intT, n.Unsafe, pos)
}

// lowerPow emits safe exponentiation: when
// one operand is a literal, the bound on the other is computed at
// compile time — largest base such that base^exp <= type_max, or the
// largest exponent the literal base tolerates — and asserted before the
// exp runs. With neither operand literal, the conservative recompute-
// and-compare guard applies after the fact.
func (c *Context) lowerPow(n *ast.BinOp, left, right venom.Operand, t vytype.IntegerT, pos compileerr.SourcePos) (VyperValue, error) {
	_, high := t.IntBounds()
	if expLit, ok := n.Right.(*ast.IntLiteral); ok && expLit.Value.IsUint64() {
		exp := expLit.Value.Uint64()
		if exp > 1 {
			maxBase := largestBaseFor(exp, high)
			if t.Signed {
				c.emitRevertUnless(c.Builder.IsZero(c.Builder.SGt(left, venom.LitFromBig(maxBase))), pos)
				// A negative base's magnitude obeys the same bound; check
				// it from below as -maxBase.
				negBound := new(uint256.Int).Sub(new(uint256.Int), maxBase)
				c.emitRevertUnless(c.Builder.IsZero(c.Builder.SLt(left, venom.LitFromBig(negBound))), pos)
			} else {
				c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(left, venom.LitFromBig(maxBase))), pos)
			}
		}
		result := c.Builder.Exp(left, right)
		if t.Bits < 256 {
			c.clampArithResult(result, t, pos)
		}
		return StackValue(result, t), nil
	}
	if baseLit, ok := n.Left.(*ast.IntLiteral); ok {
		maxExp := largestExpFor(baseLit.Value, high)
		c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(right, venom.LitFromUint64(maxExp))), pos)
		result := c.Builder.Exp(left, right)
		if t.Bits < 256 {
			c.clampArithResult(result, t, pos)
		}
		return StackValue(result, t), nil
	}
	result := c.Builder.Exp(left, right)
	c.checkPowOverflow(left, right, result, t, pos)
	return StackValue(result, t), nil
}

// largestBaseFor computes the largest base with base^exp <= max, by
// binary search over the base using overflow-checked multiplication.
// The initial upper bound is clamped to 2^(256/exp + 1) so the
// midpoint sum below can never wrap at 2^256.
func largestBaseFor(exp uint64, max *uint256.Int) *uint256.Int {
	lo, hi := uint256.NewInt(1), new(uint256.Int).Set(max)
	if exp < 256 {
		cap256 := new(uint256.Int).Lsh(uint256.NewInt(1), uint(256/exp)+1)
		if hi.Cmp(cap256) > 0 {
			hi.Set(cap256)
		}
	} else {
		hi = uint256.NewInt(1)
	}
	for lo.Cmp(hi) < 0 {
		mid := new(uint256.Int).Add(lo, hi)
		mid.Add(mid, uint256.NewInt(1))
		mid.Rsh(mid, 1)
		if powFits(mid, exp, max) {
			lo = mid
		} else {
			hi = new(uint256.Int).SubUint64(mid, 1)
		}
	}
	return lo
}

// largestExpFor computes the largest exp with base^exp <= max by
// repeated overflow-checked multiplication; a base of 0 or 1 never
// overflows, reported as the exp opcode's practical ceiling of 2^256-1
// collapsed to max uint64.
func largestExpFor(base *uint256.Int, max *uint256.Int) uint64 {
	if base.LtUint64(2) {
		return ^uint64(0)
	}
	acc := uint256.NewInt(1)
	var exp uint64
	for {
		var next uint256.Int
		if _, overflow := next.MulOverflow(acc, base); overflow || next.Cmp(max) > 0 {
			return exp
		}
		acc.Set(&next)
		exp++
	}
}

// powFits reports base^exp <= max without ever overflowing 256 bits.
func powFits(base *uint256.Int, exp uint64, max *uint256.Int) bool {
	acc := uint256.NewInt(1)
	for i := uint64(0); i < exp; i++ {
		var next uint256.Int
		if _, overflow := next.MulOverflow(acc, base); overflow || next.Cmp(max) > 0 {
			return false
		}
		acc.Set(&next)
	}
	return true
}

func (c *Context) lowerFlagBinOp(op ast.BinOpKind, left, right venom.Operand, flag vytype.FlagT) VyperValue {
	switch op {
	case ast.BinBitAnd:
		return StackValue(c.Builder.And(left, right), flag)
	case ast.BinBitOr:
		return StackValue(c.Builder.Or(left, right), flag)
	case ast.BinBitXor:
		return StackValue(c.Builder.Xor(left, right), flag)
	default:
		panic("lowerFlagBinOp: unsupported op for FlagT")
	}
}

// lowerIntBinOp applies the per-operator safe-arithmetic clamps.
func (c *Context) lowerIntBinOp(op ast.BinOpKind, left, right venom.Operand, t vytype.IntegerT, unsafe bool, pos compileerr.SourcePos) (VyperValue, error) {
	switch op {
	case ast.BinAdd:
		result := c.Builder.Add(left, right)
		if !unsafe {
			c.checkAddOverflow(left, right, result, t, pos)
		}
		return StackValue(result, t), nil
	case ast.BinSub:
		result := c.Builder.Sub(left, right)
		if !unsafe {
			c.checkSubUnderflow(left, right, result, t, pos)
		}
		return StackValue(result, t), nil
	case ast.BinMul:
		result := c.Builder.Mul(left, right)
		if !unsafe {
			c.checkMulOverflow(left, right, result, t, pos)
		}
		return StackValue(result, t), nil
	case ast.BinDiv:
		c.revertIfZero(right, pos)
		if t.Signed {
			if !unsafe {
				// MIN_INT / -1 has no representable quotient; sdiv wraps
				// it back to MIN_INT instead of trapping.
				low, _ := t.IntBounds()
				minTimesNegOne := c.Builder.And(
					c.Builder.Eq(left, venom.LitFromBig(low)),
					c.Builder.Eq(right, venom.LitFromBig(negOneWord())),
				)
				c.emitRevertUnless(c.Builder.IsZero(minTimesNegOne), pos)
			}
			return StackValue(c.Builder.SDiv(left, right), t), nil
		}
		return StackValue(c.Builder.Div(left, right), t), nil
	case ast.BinMod:
		c.revertIfZero(right, pos)
		if t.Signed {
			return StackValue(c.Builder.SMod(left, right), t), nil
		}
		return StackValue(c.Builder.Mod(left, right), t), nil
	case ast.BinPow:
		result := c.Builder.Exp(left, right)
		if !unsafe {
			c.checkPowOverflow(left, right, result, t, pos)
		}
		return StackValue(result, t), nil
	case ast.BinBitAnd:
		return StackValue(c.Builder.And(left, right), t), nil
	case ast.BinBitOr:
		return StackValue(c.Builder.Or(left, right), t), nil
	case ast.BinBitXor:
		return StackValue(c.Builder.Xor(left, right), t), nil
	default:
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "unhandled BinOpKind %d", op)
	}
}

// lowerDecimalBinOp handles fixed-point arithmetic: add/sub are plain
// signed int168 arithmetic (same bit width, no scale change); mul
// rescales the raw product down by Divisor in two DivisorSqrt steps,
// and div scales the dividend up by the full Divisor before dividing.
func (c *Context) lowerDecimalBinOp(op ast.BinOpKind, left, right venom.Operand, unsafe bool, pos compileerr.SourcePos) (VyperValue, error) {
	dec := vytype.DecimalT{}
	asInt := vytype.IntegerT{Bits: 168, Signed: true}
	switch op {
	case ast.BinAdd:
		result := c.Builder.Add(left, right)
		if !unsafe {
			c.checkAddOverflow(left, right, result, asInt, pos)
		}
		return StackValue(result, dec), nil
	case ast.BinSub:
		result := c.Builder.Sub(left, right)
		if !unsafe {
			c.checkSubUnderflow(left, right, result, asInt, pos)
		}
		return StackValue(result, dec), nil
	case ast.BinMul:
		raw := c.Builder.Mul(left, right)
		if !unsafe {
			c.checkMulOverflow(left, right, raw, vytype.IntegerT{Bits: 256, Signed: true}, pos)
		}
		// Rescale in two sqrt(divisor) steps, halving the intermediate's
		// bit width.
		half := c.Builder.SDiv(raw, venom.LitFromBig(vytype.DivisorSqrt))
		result := c.Builder.SDiv(half, venom.LitFromBig(vytype.DivisorSqrt))
		if !unsafe {
			c.clampDecimalResult(result, pos)
		}
		return StackValue(result, dec), nil
	case ast.BinDiv:
		c.revertIfZero(right, pos)
		scaled := c.Builder.Mul(left, venom.LitFromBig(vytype.Divisor))
		if !unsafe {
			c.checkMulOverflow(left, venom.LitFromBig(vytype.Divisor), scaled, vytype.IntegerT{Bits: 256, Signed: true}, pos)
		}
		result := c.Builder.SDiv(scaled, right)
		if !unsafe {
			c.clampDecimalResult(result, pos)
		}
		return StackValue(result, dec), nil
	default:
		return VyperValue{}, compileerr.TypeCheck(pos, c.stack(), "unsupported decimal operator")
	}
}

// clampDecimalResult asserts a rescaled decimal still fits the scaled
// int168 representation.
func (c *Context) clampDecimalResult(result venom.Operand, pos compileerr.SourcePos) {
	low, high := vytype.DecimalBounds()
	withinHigh := c.Builder.IsZero(c.Builder.SGt(result, venom.LitFromBig(high)))
	withinLow := c.Builder.IsZero(c.Builder.SLt(result, venom.LitFromBig(low)))
	c.emitRevertUnless(c.Builder.And(withinHigh, withinLow), pos)
}

func (c *Context) revertIfZero(v venom.Operand, pos compileerr.SourcePos) {
	isZero := c.Builder.IsZero(v)
	c.emitRevertUnless(c.Builder.IsZero(isZero), pos)
}

// emitRevertUnless reverts the current path unless cond holds.
func (c *Context) emitRevertUnless(cond venom.Operand, pos compileerr.SourcePos) {
	ok := c.Builder.CreateBlock("check.ok")
	fail := c.Builder.CreateBlock("check.fail")
	c.Builder.Jnz(cond, ok, fail)

	c.Builder.AppendBlock(fail)
	c.Builder.SetBlock(fail)
	c.Builder.Revert(venom.LitFromUint64(0), venom.LitFromUint64(0))

	c.Builder.AppendBlock(ok)
	c.Builder.SetBlock(ok)
}

// clampArithResult asserts result falls within t's [lo, hi]. Only valid for t.Bits < 256: at
// Bits == 256, hi/lo already span the full two's-complement range, so
// addOne(hi)/subOne(lo) wrap around and this comparison would be
// meaningless (see checkAddOverflow/checkSubUnderflow's 256-bit paths).
func (c *Context) clampArithResult(result venom.Operand, t vytype.IntegerT, pos compileerr.SourcePos) {
	low, high := t.IntBounds()
	if !t.Signed {
		c.emitRevertUnless(c.Builder.IsZero(c.Builder.Gt(result, venom.LitFromBig(high))), pos)
		return
	}
	withinHigh := c.Builder.SLt(result, venom.LitFromBig(addOne(high)))
	withinLow := c.Builder.SLt(venom.LitFromBig(subOne(low)), result)
	c.emitRevertUnless(c.Builder.And(withinHigh, withinLow), pos)
}

// signConsistentAdd checks the signed-add overflow rule directly by
// sign comparison rather than a magnitude bound — the only formulation
// that is safe at Bits == 256, where the type's own low/high bounds span
// the full representable range and a magnitude clamp would need a
// literal one past the type's max, which for int256 wraps back to its
// min: sign(left) = sign(right) must imply sign(result) = sign(left).
func (c *Context) signConsistentAdd(left, right, result venom.Operand) venom.Variable {
	zero := venom.LitFromUint64(0)
	leftNeg := c.Builder.SLt(left, zero)
	rightNeg := c.Builder.SLt(right, zero)
	resultNeg := c.Builder.SLt(result, zero)
	sameSign := c.Builder.Eq(leftNeg, rightNeg)
	resultMatchesLeft := c.Builder.Eq(resultNeg, leftNeg)
	return c.Builder.Or(c.Builder.IsZero(sameSign), resultMatchesLeft)
}

// checkAddOverflow asserts result did not wrap past t's upper bound
// (unsigned) or flip sign incorrectly (signed). Unsigned
// widths below 256 bits never trip the 256-bit wraparound check (the
// underlying `add` only wraps once the mathematical sum exceeds
// 2^256 - 1), so they additionally need the explicit [lo, hi] clamp for
// sub-256-bit widths.
func (c *Context) checkAddOverflow(left, right, result venom.Operand, t vytype.IntegerT, pos compileerr.SourcePos) {
	if !t.Signed {
		c.emitRevertUnless(c.Builder.IsZero(c.Builder.Lt(result, left)), pos)
		if t.Bits < 256 {
			c.clampArithResult(result, t, pos)
		}
		return
	}
	if t.Bits == 256 {
		c.emitRevertUnless(c.signConsistentAdd(left, right, result), pos)
		return
	}
	c.clampArithResult(result, t, pos)
}

// checkSubUnderflow is checkAddOverflow's dual. Unsigned sub can't
// overflow t's upper bound (the difference never exceeds left, which is
// already in range), only underflow below zero, so no extra sub-256
// clamp is needed there. Signed sub at Bits == 256 uses the same
// sign-comparison approach as add: left and right must have opposite
// signs before a signed subtraction can overflow, and when they do, the
// result's sign must still match left's.
func (c *Context) checkSubUnderflow(left, right, result venom.Operand, t vytype.IntegerT, pos compileerr.SourcePos) {
	if !t.Signed {
		c.emitRevertUnless(c.Builder.IsZero(c.Builder.Lt(left, right)), pos)
		return
	}
	if t.Bits == 256 {
		zero := venom.LitFromUint64(0)
		leftNeg := c.Builder.SLt(left, zero)
		rightNeg := c.Builder.SLt(right, zero)
		resultNeg := c.Builder.SLt(result, zero)
		oppositeSign := c.Builder.IsZero(c.Builder.Eq(leftNeg, rightNeg))
		resultMatchesLeft := c.Builder.Eq(resultNeg, leftNeg)
		ok := c.Builder.Or(c.Builder.IsZero(oppositeSign), resultMatchesLeft)
		c.emitRevertUnless(ok, pos)
		return
	}
	c.clampArithResult(result, t, pos)
}

// checkMulOverflow re-derives the other operand via division and compares
// against what was actually passed in. That quotient check alone misses
// two cases: sub-256-bit widths never wrap at the
// 256-bit level, so an out-of-range product whose quotient still happens
// to match (e.g. int8 MIN_INT * -1 raw-computes to 128, and
// sdiv(128, -128) == -1 == right) sails through — closed by the same
// clampArithResult used for add/sub; and at Bits == 256, multiplying by -1
// is the one case where dividing back by -1 doesn't recover the original
// operand (EVM's SDIV(MIN_INT256, -1) wraps back to MIN_INT256 instead of
// trapping), so MIN_INT * -1 at full width needs its own explicit guard.
func (c *Context) checkMulOverflow(left, right, result venom.Operand, t vytype.IntegerT, pos compileerr.SourcePos) {
	leftIsZero := c.Builder.IsZero(left)
	var quotOK venom.Variable
	if t.Signed {
		quotOK = c.Builder.Eq(c.Builder.SDiv(result, left), right)
	} else {
		quotOK = c.Builder.Eq(c.Builder.Div(result, left), right)
	}
	ok := c.Builder.Or(leftIsZero, quotOK)
	if t.Signed && t.Bits == 256 {
		low, _ := t.IntBounds()
		minInt := venom.LitFromBig(low)
		negOne := venom.LitFromBig(negOneWord())
		minTimesNegOne := c.Builder.Or(
			c.Builder.And(c.Builder.Eq(left, minInt), c.Builder.Eq(right, negOne)),
			c.Builder.And(c.Builder.Eq(left, negOne), c.Builder.Eq(right, minInt)),
		)
		ok = c.Builder.And(ok, c.Builder.IsZero(minTimesNegOne))
	}
	c.emitRevertUnless(ok, pos)
	if t.Bits < 256 {
		c.clampArithResult(result, t, pos)
	}
}

// checkPowOverflow re-derives the base from the result via an
// appropriately-rooted comparison; exponentiation by squaring's exact
// bound depends on both operands, so this emits the generic
// "recompute and compare" guard rather than a closed-form bound.
func (c *Context) checkPowOverflow(base, exp, result venom.Operand, t vytype.IntegerT, pos compileerr.SourcePos) {
	baseIsSmall := c.Builder.Lt(base, venom.LitFromUint64(2))
	expIsSmall := c.Builder.IsZero(exp)
	_, high := t.IntBounds()
	resultInBounds := c.Builder.Lt(result, venom.LitFromBig(addOne(high)))
	c.emitRevertUnless(c.Builder.Or(c.Builder.Or(baseIsSmall, expIsSmall), resultInBounds), pos)
}

// negOneWord is -1 represented as the all-ones two's-complement uint256.
func negOneWord() *uint256.Int { return new(uint256.Int).Sub(new(uint256.Int), uint256.NewInt(1)) }

func addOne(v *uint256.Int) *uint256.Int { return new(uint256.Int).AddUint64(v, 1) }
func subOne(v *uint256.Int) *uint256.Int {
	if v.Sign() == 0 {
		return new(uint256.Int).Sub(v, uint256.NewInt(1))
	}
	return new(uint256.Int).SubUint64(v, 1)
}

// lowerUnaryOp implements `not`, `~`, and unary `-`. Negating a signed type's minimum value is the one unsafe
// case: it has no positive counterpart, so it is clamp-checked like any
// other safe-arithmetic operator.
func (c *Context) lowerUnaryOp(n *ast.UnaryOp) (VyperValue, error) {
	pos := astPos(n.Pos)
	v, err := c.LowerExpr(n.Operand)
	if err != nil {
		return VyperValue{}, err
	}
	val := c.Unwrap(v)
	switch n.Op {
	case ast.UnaryNot:
		return StackValue(c.Builder.IsZero(val), vytype.BoolT{}), nil
	case ast.UnaryInvert:
		return StackValue(c.Builder.Not(val), n.Type), nil
	case ast.UnaryUSub:
		zero := venom.LitFromUint64(0)
		result := c.Builder.Sub(zero, val)
		if intT, ok := n.Type.(vytype.IntegerT); ok {
			low, _ := intT.IntBounds()
			notMin := c.Builder.IsZero(c.Builder.Eq(val, venom.LitFromBig(low)))
			c.emitRevertUnless(notMin, pos)
		}
		return StackValue(result, n.Type), nil
	default:
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "unhandled UnaryOpKind %d", n.Op)
	}
}

// lowerBoolOp short-circuits `and`/`or` over two or more boolean
// expressions by branching rather than eagerly evaluating every operand
// — later operands may have side
// effects or be arbitrarily expensive.
func (c *Context) lowerBoolOp(n *ast.BoolOp) (VyperValue, error) {
	pos := astPos(n.Pos)
	result := c.AllocateBuffer(32, "boolop")

	join := c.Builder.CreateBlock("boolop.join")
	for i, operand := range n.Values {
		v, err := c.LowerExpr(operand)
		if err != nil {
			return VyperValue{}, err
		}
		val := c.Unwrap(v)
		c.Builder.MStore(result.Operand, val)

		last := i == len(n.Values)-1
		if last {
			c.Builder.Jmp(join)
			break
		}
		cont := c.Builder.CreateBlock("boolop.next")
		if n.Op == ast.BoolAnd {
			c.Builder.Jnz(val, cont, join)
		} else {
			c.Builder.Jnz(val, join, cont)
		}
		c.Builder.AppendBlock(cont)
		c.Builder.SetBlock(cont)
	}
	c.Builder.AppendBlock(join)
	c.Builder.SetBlock(join)
	_ = pos
	return StackValue(c.Builder.MLoad(result.Operand), n.Type), nil
}

// lowerCompare lowers comparison operators, including flag membership
// (`flag_value in FlagSet`) as a bitwise-AND test.
func (c *Context) lowerCompare(n *ast.Compare) (VyperValue, error) {
	pos := astPos(n.Pos)
	if n.Op == ast.CmpIn || n.Op == ast.CmpNotIn {
		if _, isFlag := n.Right.ExprType().(vytype.FlagT); isFlag {
			return c.lowerFlagMembership(n)
		}
	}
	lv, err := c.LowerExpr(n.Left)
	if err != nil {
		return VyperValue{}, err
	}
	rv, err := c.LowerExpr(n.Right)
	if err != nil {
		return VyperValue{}, err
	}
	left, right := c.Unwrap(lv), c.Unwrap(rv)
	signed := false
	if intT, ok := lv.Type.(vytype.IntegerT); ok {
		signed = intT.Signed
	}
	if _, ok := lv.Type.(vytype.DecimalT); ok {
		signed = true
	}

	var result venom.Variable
	switch n.Op {
	case ast.CmpEq:
		result = c.Builder.Eq(left, right)
	case ast.CmpNotEq:
		result = c.Builder.IsZero(c.Builder.Eq(left, right))
	case ast.CmpLt:
		if signed {
			result = c.Builder.SLt(left, right)
		} else {
			result = c.Builder.Lt(left, right)
		}
	case ast.CmpGt:
		if signed {
			result = c.Builder.SGt(left, right)
		} else {
			result = c.Builder.Gt(left, right)
		}
	case ast.CmpLtE:
		var gt venom.Variable
		if signed {
			gt = c.Builder.SGt(left, right)
		} else {
			gt = c.Builder.Gt(left, right)
		}
		result = c.Builder.IsZero(gt)
	case ast.CmpGtE:
		var lt venom.Variable
		if signed {
			lt = c.Builder.SLt(left, right)
		} else {
			lt = c.Builder.Lt(left, right)
		}
		result = c.Builder.IsZero(lt)
	default:
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "unhandled CompareOpKind %d", n.Op)
	}
	return StackValue(result, vytype.BoolT{}), nil
}

func (c *Context) lowerFlagMembership(n *ast.Compare) (VyperValue, error) {
	lv, err := c.LowerExpr(n.Left)
	if err != nil {
		return VyperValue{}, err
	}
	rv, err := c.LowerExpr(n.Right)
	if err != nil {
		return VyperValue{}, err
	}
	anded := c.Builder.And(c.Unwrap(lv), c.Unwrap(rv))
	member := c.Builder.IsZero(c.Builder.IsZero(anded))
	if n.Op == ast.CmpNotIn {
		return StackValue(c.Builder.IsZero(member), vytype.BoolT{}), nil
	}
	return StackValue(member, vytype.BoolT{}), nil
}

// lowerTernary implements `a if c else b`. Primitive-word results use the branchless select;
// located results (structs, arrays, byte strings) need to materialize
// into a shared buffer on each branch since a single `select` can't copy
// a variable-sized value.
func (c *Context) lowerTernary(n *ast.Ternary) (VyperValue, error) {
	testVal, err := c.LowerExpr(n.Test)
	if err != nil {
		return VyperValue{}, err
	}
	cond := c.Unwrap(testVal)

	if n.Type.IsPrimWord() {
		bodyVal, err := c.LowerExpr(n.Body)
		if err != nil {
			return VyperValue{}, err
		}
		elseVal, err := c.LowerExpr(n.OrElse)
		if err != nil {
			return VyperValue{}, err
		}
		result := c.Builder.Select(cond, c.Unwrap(bodyVal), c.Unwrap(elseVal))
		return StackValue(result, n.Type), nil
	}

	dst := c.AllocateBuffer(n.Type.MemoryBytesRequired(), "ternary")
	thenBB := c.Builder.CreateBlock("ternary.then")
	elseBB := c.Builder.CreateBlock("ternary.else")
	join := c.Builder.CreateBlock("ternary.join")
	c.Builder.Jnz(cond, thenBB, elseBB)

	c.Builder.AppendBlock(thenBB)
	c.Builder.SetBlock(thenBB)
	bodyVal, err := c.LowerExpr(n.Body)
	if err != nil {
		return VyperValue{}, err
	}
	c.copyValueInto(dst, bodyVal)
	c.Builder.Jmp(join)

	c.Builder.AppendBlock(elseBB)
	c.Builder.SetBlock(elseBB)
	elseVal, err := c.LowerExpr(n.OrElse)
	if err != nil {
		return VyperValue{}, err
	}
	c.copyValueInto(dst, elseVal)
	c.Builder.Jmp(join)

	c.Builder.AppendBlock(join)
	c.Builder.SetBlock(join)
	return MemoryValue(dst.Operand, dst, n.Type), nil
}

// copyValueInto materializes v (already located in memory, or a stack
// primitive) into dst.
func (c *Context) copyValueInto(dst *Buffer, v VyperValue) {
	if v.IsStack {
		c.Builder.MStore(dst.Operand, c.Unwrap(v))
		return
	}
	c.CopyMemory(dst.Operand, v.Located.Operand, v.Type.MemoryBytesRequired())
}

// lowerListLiteral materializes an inline list as an SArrayT in a fresh
// buffer, used for for-loop iterables and inline static-array literals.
func (c *Context) lowerListLiteral(n *ast.ListLiteral) (VyperValue, error) {
	elemType := n.Type.(vytype.SArrayT).Elem
	elemSize := ceil32(elemType.MemoryBytesRequired())
	buf := c.AllocateBuffer(len(n.Elems)*elemSize, "list-literal")
	for i, elemExpr := range n.Elems {
		v, err := c.LowerExpr(elemExpr)
		if err != nil {
			return VyperValue{}, err
		}
		ptr := c.Builder.Add(buf.Operand, venom.LitFromUint64(uint64(i*elemSize)))
		if v.IsStack {
			c.Builder.MStore(ptr, c.Unwrap(v))
		} else {
			c.CopyMemory(ptr, v.Located.Operand, elemType.MemoryBytesRequired())
		}
	}
	return MemoryValue(buf.Operand, buf, n.Type), nil
}
