package codegen

import (
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/builtins"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// adhocSource classifies the three special slice() sources:
// msg.data (calldatacopy), self.code (codecopy), and
// <address>.code (extcodecopy). None of them is an ordinary value — each
// is a (copy-opcode, length-opcode) pair usable only inside slice/len.
type adhocSource int

const (
	adhocNone adhocSource = iota
	adhocMsgData
	adhocSelfCode
	adhocAddrCode
)

func classifyAdhocSource(e ast.Expr) (adhocSource, ast.Expr) {
	attr, ok := e.(*ast.Attribute)
	if !ok {
		return adhocNone, nil
	}
	if base, isName := attr.Value.(*ast.Name); isName && base.VarInfo == nil {
		if base.Ident == "msg" && attr.Attr == "data" {
			return adhocMsgData, nil
		}
		if base.Ident == "self" && attr.Attr == "code" {
			return adhocSelfCode, nil
		}
	}
	if attr.Attr == "code" {
		if _, isAddr := attr.Value.ExprType().(vytype.AddressT); isAddr {
			return adhocAddrCode, attr.Value
		}
	}
	return adhocNone, nil
}

// lowerAdhocBuiltin intercepts the built-in calls that must see raw AST:
// slice over an adhoc source, len(msg.data), and the dynamic-array
// method calls append/pop whose receiver is the Call's Func attribute.
// Returns handled=false when the ordinary pre-lowered dispatch applies.
func (c *Context) lowerAdhocBuiltin(n *ast.Call, pos compileerr.SourcePos) (VyperValue, bool, error) {
	switch n.FuncName {
	case "slice":
		if len(n.Args) == 3 {
			if src, addrExpr := classifyAdhocSource(n.Args[0]); src != adhocNone {
				v, err := c.builtinSliceAdhoc(src, addrExpr, n.Args[1], n.Args[2], n.Type, pos)
				return v, true, err
			}
		}
		return VyperValue{}, false, nil
	case "len":
		if len(n.Args) == 1 {
			if src, _ := classifyAdhocSource(n.Args[0]); src == adhocMsgData {
				return StackValue(c.Builder.CallDataSize(), vytype.IntegerT{Bits: 256, Signed: false}), true, nil
			}
		}
		return VyperValue{}, false, nil
	case "convert":
		// The second source-level argument is a type name, carried on the
		// Call's own Type annotation by the analyzer — never a value to
		// lower.
		if len(n.Args) < 1 {
			return VyperValue{}, true, compileerr.Argument(pos, c.stack(), "convert requires a value argument")
		}
		v, err := c.LowerExpr(n.Args[0])
		if err != nil {
			return VyperValue{}, true, err
		}
		out, err := c.builtinConvert(v, n.Type, pos)
		return out, true, err
	case "abi_decode":
		// Same shape as convert: the target type rides on n.Type.
		if len(n.Args) < 1 {
			return VyperValue{}, true, compileerr.Argument(pos, c.stack(), "abi_decode requires a data argument")
		}
		v, err := c.LowerExpr(n.Args[0])
		if err != nil {
			return VyperValue{}, true, err
		}
		out, err := c.builtinAbiDecode(v, n.Type, pos)
		return out, true, err
	case "append", "pop":
		attr, ok := n.Func.(*ast.Attribute)
		if !ok {
			return VyperValue{}, true, compileerr.Panic(pos, c.stack(), "%s called without a dynamic-array receiver", n.FuncName)
		}
		if err := builtins.CheckArity(n.FuncName, len(n.Args)); err != nil {
			return VyperValue{}, true, compileerr.Argument(pos, c.stack(), "%s", err)
		}
		recv, err := c.LowerExpr(attr.Value)
		if err != nil {
			return VyperValue{}, true, err
		}
		arrT, ok := recv.Type.(vytype.DArrayT)
		if !ok {
			return VyperValue{}, true, compileerr.TypeCheck(pos, c.stack(), "%s on non-DynArray type %s", n.FuncName, recv.Type)
		}
		if n.FuncName == "append" {
			elem, err := c.LowerExpr(n.Args[0])
			if err != nil {
				return VyperValue{}, true, err
			}
			return VyperValue{}, true, c.builtinAppend(recv, arrT, elem, pos)
		}
		v, err := c.builtinPop(recv, arrT, pos)
		return v, true, err
	default:
		return VyperValue{}, false, nil
	}
}

// builtinSliceAdhoc copies [start, start+count) out of calldata, the
// running contract's own code, or another account's code, using the
// dedicated copy opcode for each.
func (c *Context) builtinSliceAdhoc(src adhocSource, addrExpr, startExpr, countExpr ast.Expr, resultType vytype.VyperType, pos compileerr.SourcePos) (VyperValue, error) {
	startVal, err := c.LowerExpr(startExpr)
	if err != nil {
		return VyperValue{}, err
	}
	countVal, err := c.LowerExpr(countExpr)
	if err != nil {
		return VyperValue{}, err
	}
	start, count := c.Unwrap(startVal), c.Unwrap(countVal)

	var srcLen venom.Operand
	var addr venom.Operand
	switch src {
	case adhocMsgData:
		srcLen = c.Builder.CallDataSize()
	case adhocSelfCode:
		srcLen = c.Builder.CodeSize()
	case adhocAddrCode:
		addrVal, err := c.LowerExpr(addrExpr)
		if err != nil {
			return VyperValue{}, err
		}
		addr = c.Unwrap(addrVal)
		srcLen = c.Builder.ExtCodeSize(addr)
	}

	end := c.Builder.Add(start, count)
	// end >= start rules out wraparound in the addition; end <= srcLen
	// rules out reading past the source.
	noWrap := c.Builder.IsZero(c.Builder.Lt(end, start))
	inRange := c.Builder.IsZero(c.Builder.Gt(end, srcLen))
	c.emitRevertUnless(c.Builder.And(noWrap, inRange), pos)

	buf := c.AllocateBuffer(resultType.MemoryBytesRequired(), "slice-adhoc")
	c.Builder.MStore(buf.Operand, count)
	dst := c.Builder.Add(buf.Operand, venom.LitFromUint64(32))
	switch src {
	case adhocMsgData:
		c.Builder.CallDataCopy(dst, start, count)
	case adhocSelfCode:
		c.Builder.CodeCopy(dst, start, count)
	case adhocAddrCode:
		c.Builder.ExtCodeCopy(addr, dst, start, count)
	}
	return MemoryValue(buf.Operand, buf, resultType), nil
}

// builtinAppend grows a dynamic array by one element: bounds-check
// against MaxLen, write the element at the current length's slot, bump
// the length word.
func (c *Context) builtinAppend(recv VyperValue, arrT vytype.DArrayT, elem VyperValue, pos compileerr.SourcePos) error {
	if recv.Located.Location == ast.LocStorage || recv.Located.Location == ast.LocTransient {
		if err := c.CheckIsNotConstant(pos); err != nil {
			return err
		}
	}
	length := c.GetDynArrayLength(recv.Located)
	c.emitRevertUnless(c.Builder.Lt(length, venom.LitFromUint64(uint64(arrT.MaxLen))), pos)

	slot := c.ArrayElemPtr(recv.Located, arrT.Elem, length, true)
	if err := c.storeInto(slot, arrT.Elem, elem); err != nil {
		return err
	}
	c.SetDynArrayLength(recv.Located, c.Builder.Add(length, venom.LitFromUint64(1)))
	return nil
}

// builtinPop shrinks a dynamic array by one element and returns the
// removed value; popping an empty array reverts.
func (c *Context) builtinPop(recv VyperValue, arrT vytype.DArrayT, pos compileerr.SourcePos) (VyperValue, error) {
	if recv.Located.Location == ast.LocStorage || recv.Located.Location == ast.LocTransient {
		if err := c.CheckIsNotConstant(pos); err != nil {
			return VyperValue{}, err
		}
	}
	length := c.GetDynArrayLength(recv.Located)
	c.emitRevertUnless(c.Builder.Gt(length, venom.LitFromUint64(0)), pos)

	newLen := c.Builder.Sub(length, venom.LitFromUint64(1))
	slot := c.ArrayElemPtr(recv.Located, arrT.Elem, newLen, true)
	var out VyperValue
	if arrT.Elem.IsPrimWord() {
		out = StackValue(c.readWord(slot, venom.LitFromUint64(0)), arrT.Elem)
	} else {
		buf := c.AllocateBuffer(arrT.Elem.MemoryBytesRequired(), "pop-value")
		dst := Ptr{Operand: buf.Operand, Location: ast.LocMemory, Buf: buf}
		if err := c.copyCrossLocation(dst, slot, arrT.Elem); err != nil {
			return VyperValue{}, err
		}
		out = MemoryValue(buf.Operand, buf, arrT.Elem)
	}
	c.SetDynArrayLength(recv.Located, newLen)
	return out, nil
}
