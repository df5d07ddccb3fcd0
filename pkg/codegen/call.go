package codegen

import (
	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/builtins"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
)

// lowerCall dispatches a call expression to one of the three call
// families: a built-in, an internal function (invoke),
// or an external interface method (an actual CALL/STATICCALL/
// DELEGATECALL with ABI encode/decode either side).
func (c *Context) lowerCall(n *ast.Call) (VyperValue, error) {
	pos := astPos(n.Pos)
	if n.FuncType == nil {
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "call %q has no resolved FuncType", n.FuncName)
	}
	if n.FuncType.Kind == ast.FuncBuiltin {
		// A few built-ins consume their arguments structurally rather
		// than as values (slice over msg.data/code, dyn-array methods),
		// so they must see the raw AST before anything is lowered.
		if v, handled, err := c.lowerAdhocBuiltin(n, pos); handled {
			return v, err
		}
	}
	args := make([]VyperValue, len(n.Args))
	for i, a := range n.Args {
		v, err := c.LowerExpr(a)
		if err != nil {
			return VyperValue{}, err
		}
		args[i] = v
	}

	switch n.FuncType.Kind {
	case ast.FuncBuiltin:
		return c.dispatchBuiltin(n, args, pos)
	case ast.FuncInternal:
		return c.lowerInternalCall(n, args, pos)
	case ast.FuncExternal:
		return c.lowerExternalCall(n, args, pos)
	default:
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "unknown FuncKind %d", n.FuncType.Kind)
	}
}

// lowerInternalCall pushes args onto a fresh parameter buffer, invokes
// the callee's entry block, and wraps the (possibly tuple) result.
func (c *Context) lowerInternalCall(n *ast.Call, args []VyperValue, pos compileerr.SourcePos) (VyperValue, error) {
	fn, ok := c.dataSection().Functions[n.FuncType.Label]
	if !ok {
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "internal function %q has no registered label", n.FuncType.Name)
	}
	operands := make([]venom.Operand, len(args))
	for i, a := range args {
		if a.Type.IsPrimWord() {
			operands[i] = c.Unwrap(a)
			continue
		}
		// Complex arguments travel through a calloca region the caller
		// populates and the callee reads by pointer.
		region := c.Builder.Calloca(venom.LitFromUint64(uint64(a.Type.MemoryBytesRequired())))
		if err := c.storeInto(Ptr{Operand: region, Location: ast.LocMemory}, a.Type, a); err != nil {
			return VyperValue{}, err
		}
		operands[i] = region
	}
	numReturns := 0
	if n.FuncType.Returns != nil {
		numReturns = 1
	}
	result := c.Builder.Invoke(fn.Entry, numReturns, operands...)
	if result == nil {
		return VyperValue{}, nil
	}
	return StackValue(*result, n.FuncType.Returns), nil
}

// lowerExternalCall ABI-encodes the call, issues the CALL/STATICCALL/
// DELEGATECALL, and ABI-decodes the return data.
func (c *Context) lowerExternalCall(n *ast.Call, args []VyperValue, pos compileerr.SourcePos) (VyperValue, error) {
	if n.FuncType.Mutable {
		if err := c.CheckIsNotConstant(pos); err != nil {
			return VyperValue{}, err
		}
	}
	recv, err := c.LowerExpr(n.Func)
	if err != nil {
		return VyperValue{}, err
	}
	addr := c.Unwrap(recv)

	argBuf := c.AllocateBuffer(32+len(args)*32, "extcall-args")
	selector := builtins.Selector(n.FuncType.Name, n.FuncType.Args)
	var selWord uint256.Int
	selWord.SetBytes(selector[:])
	// The selector value is stored right-aligned, so it occupies the last
	// 4 bytes of the first word; pointing the call 28 bytes in makes it
	// lead the call data, immediately followed by the argument words
	// stored from argBuf.Operand+32 on.
	c.Builder.MStore(argBuf.Operand, venom.LitFromBig(&selWord))
	argsPtr := c.Builder.Add(argBuf.Operand, venom.LitFromUint64(28))
	headPtr := c.Builder.Add(argBuf.Operand, venom.LitFromUint64(32))
	for i, a := range args {
		wordPtr := c.Builder.Add(headPtr, venom.LitFromUint64(uint64(i*32)))
		c.Builder.MStore(wordPtr, c.Unwrap(a))
	}

	value := venom.Operand(venom.LitFromUint64(0))
	if valExpr, ok := n.Keywords["value"]; ok {
		v, err := c.LowerExpr(valExpr)
		if err != nil {
			return VyperValue{}, err
		}
		value = c.Unwrap(v)
	}
	gas := venom.Operand(c.Builder.Gas())
	if gasExpr, ok := n.Keywords["gas"]; ok {
		v, err := c.LowerExpr(gasExpr)
		if err != nil {
			return VyperValue{}, err
		}
		gas = c.Unwrap(v)
	}

	retBuf := c.AllocateBuffer(32, "extcall-ret")
	argsSize := venom.LitFromUint64(uint64(4 + len(args)*32))

	var success venom.Variable
	if n.FuncType.Mutable {
		success = c.Builder.Call(gas, addr, value, argsPtr, argsSize, retBuf.Operand, venom.LitFromUint64(32))
	} else {
		success = c.Builder.StaticCall(gas, addr, argsPtr, argsSize, retBuf.Operand, venom.LitFromUint64(32))
	}
	c.checkCallSuccess(success, n.Keywords, pos)

	if n.FuncType.Returns == nil {
		return VyperValue{}, nil
	}
	if n.FuncType.Returns.IsPrimWord() {
		return StackValue(c.Builder.MLoad(retBuf.Operand), n.FuncType.Returns), nil
	}
	return MemoryValue(retBuf.Operand, retBuf, n.FuncType.Returns), nil
}

func (c *Context) checkCallSuccess(success venom.Operand, keywords map[string]ast.Expr, pos compileerr.SourcePos) {
	if revertExpr, ok := keywords["revert_on_failure"]; ok {
		if lit, isLit := revertExpr.(*ast.IntLiteral); isLit && lit.Value.IsZero() {
			return // revert_on_failure=False: caller inspects `success` itself
		}
	}
	// Bubble the callee's own revert data up rather than swallowing it
	// behind a bare revert(0,0).
	c.EmitRevertWithReturnData(success)
}

// selectorAsWord left-aligns sel's 4 bytes by shifting them to bits
// [224:256), so that a memory store of the word places the selector at
// the store address's first 4 bytes. Used where the selector must sit at
// the very start of a buffer (abi_encode's method_id prefix); call
// encoding instead stores the unshifted value and reads 28 bytes in.
func selectorAsWord(sel [4]byte) *uint256.Int {
	var word uint256.Int
	word.SetBytes(sel[:])
	return word.Lsh(&word, 224)
}

// dispatchBuiltin routes to the handler table in call_builtins.go; kept
// in its own file so the (large) per-builtin switch doesn't crowd the
// call-site glue above.
func (c *Context) dispatchBuiltin(n *ast.Call, args []VyperValue, pos compileerr.SourcePos) (VyperValue, error) {
	return c.lowerBuiltinCall(n.FuncName, n, args, pos)
}
