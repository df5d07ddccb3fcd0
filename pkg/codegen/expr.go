package codegen

import (
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// LowerExpr dispatches on the dynamic type of e, one case per
// expression node kind. The node's source position stays on the source-context
// stack for the duration, so nested lowering failures report the full
// trail from statement down to leaf expression.
func (c *Context) LowerExpr(e ast.Expr) (VyperValue, error) {
	release := c.Builder.SourceContext(astPos(ast.NodePos(e)))
	defer release()
	switch n := e.(type) {
	case *ast.IntLiteral:
		return c.lowerIntLiteral(n)
	case *ast.BytesLiteral:
		return c.lowerBytesLiteral(n)
	case *ast.Name:
		return c.lowerName(n)
	case *ast.Attribute:
		return c.lowerAttribute(n)
	case *ast.Subscript:
		return c.lowerSubscript(n)
	case *ast.BinOp:
		return c.lowerBinOp(n)
	case *ast.UnaryOp:
		return c.lowerUnaryOp(n)
	case *ast.BoolOp:
		return c.lowerBoolOp(n)
	case *ast.Compare:
		return c.lowerCompare(n)
	case *ast.Ternary:
		return c.lowerTernary(n)
	case *ast.Call:
		return c.lowerCall(n)
	case *ast.ListLiteral:
		return c.lowerListLiteral(n)
	default:
		return VyperValue{}, compileerr.Panic(c.currentSourcePos(), c.stack(), "unhandled expression node %T", e)
	}
}

// currentSourcePos reports the position SourceContext last pushed, or
// the zero value if none is active.
func (c *Context) currentSourcePos() compileerr.SourcePos {
	if p := c.Builder.Function().SourceStackSnapshot(); len(p) > 0 {
		return p[len(p)-1]
	}
	return compileerr.SourcePos{}
}

func (c *Context) stack() []compileerr.SourcePos {
	return c.Builder.Function().SourceStackSnapshot()
}

func astPos(p ast.Pos) compileerr.SourcePos {
	return compileerr.SourcePos{Line: p.Line, Col: p.Col}
}

func (c *Context) lowerIntLiteral(n *ast.IntLiteral) (VyperValue, error) {
	return StackValue(venom.LitFromBig(n.Value), n.Type), nil
}

// lowerBytesLiteral pools the constant in the owning venom.Context's data
// section and materializes a memory copy of it (length word + data),
// since Bytes/String literals are always used by value.
func (c *Context) lowerBytesLiteral(n *ast.BytesLiteral) (VyperValue, error) {
	label := c.dataSection().AddData(n.Value)
	buf := c.AllocateBuffer(n.Type.MemoryBytesRequired(), "bytes-literal")
	c.Builder.MStore(buf.Operand, venom.LitFromUint64(uint64(len(n.Value))))
	dataPtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(32))
	c.Builder.CodeCopy(dataPtr, venom.Label{Name: label}, venom.LitFromUint64(uint64(len(n.Value))))
	return MemoryValue(buf.Operand, buf, n.Type), nil
}

// dataSection picks the Venom Context the current function belongs to;
// both deploy and runtime funcs can pool literal data, each into its own
// Context.
func (c *Context) dataSection() *venom.Context {
	if c.IsCtor {
		return c.Module.Deploy
	}
	return c.Module.Runtime
}

// lowerName resolves a bare identifier: `self` (the running contract's
// own address), a declared local (found in the symbol table), or a
// storage/immutable reference carried on VarInfo. The other environment
// bases (msg/block/tx/chain) never appear bare — they are always the
// Value of an Attribute, so reaching here with one is a compiler bug.
func (c *Context) lowerName(n *ast.Name) (VyperValue, error) {
	if n.Ident == "self" && n.VarInfo == nil {
		return StackValue(c.Builder.Address(), vytype.AddressT{}), nil
	}
	if rec := c.LookupVariable(n.Ident); rec != nil {
		if rec.IsRegister {
			return StackValue(rec.Ptr, rec.Type), nil
		}
		located := LocatedValue(Ptr{Operand: rec.Ptr, Location: rec.Location}, rec.Type)
		if rec.Type.IsPrimWord() {
			return StackValue(c.Unwrap(located), rec.Type), nil
		}
		return located, nil
	}
	if n.VarInfo != nil {
		return c.lowerVarInfoRef(n.VarInfo, astPos(n.Pos))
	}
	return VyperValue{}, compileerr.Panic(astPos(n.Pos), c.stack(), "unresolved name %q", n.Ident)
}

// lowerVarInfoRef builds the located value a resolved storage/immutable
// reference points at.
func (c *Context) lowerVarInfoRef(info *ast.VarInfo, pos compileerr.SourcePos) (VyperValue, error) {
	switch info.Location {
	case ast.LocStorage:
		slot := venom.LitFromUint64(uint64(info.Position))
		if info.Type.IsPrimWord() {
			return StackValue(c.Builder.SLoad(slot), info.Type), nil
		}
		return LocatedValue(Ptr{Operand: slot, Location: ast.LocStorage}, info.Type), nil
	case ast.LocTransient:
		slot := venom.LitFromUint64(uint64(info.Position))
		if info.Type.IsPrimWord() {
			return StackValue(c.Builder.TLoad(slot), info.Type), nil
		}
		return LocatedValue(Ptr{Operand: slot, Location: ast.LocTransient}, info.Type), nil
	case ast.LocCode:
		buf := c.LoadImmutable(info.Name, info.Type.MemoryBytesRequired())
		if info.Type.IsPrimWord() {
			return StackValue(c.Builder.MLoad(buf.Operand), info.Type), nil
		}
		return MemoryValue(buf.Operand, buf, info.Type), nil
	default:
		return VyperValue{}, compileerr.Panic(pos, c.stack(), "unsupported VarInfo location %s", info.Location)
	}
}

// lowerAttribute handles three families: environment attributes
// (msg/block/tx/chain.*), address properties, and storage/struct field
// access.
func (c *Context) lowerAttribute(n *ast.Attribute) (VyperValue, error) {
	pos := astPos(n.Pos)
	if base, ok := n.Value.(*ast.Name); ok && base.VarInfo == nil {
		if v, handled, err := c.lowerEnvAttribute(base.Ident, n.Attr, n.Type, pos); handled {
			return v, err
		}
		if base.Ident == "self" && n.VarInfo != nil {
			return c.lowerVarInfoRef(n.VarInfo, pos)
		}
	}

	recv, err := c.LowerExpr(n.Value)
	if err != nil {
		return VyperValue{}, err
	}
	if addrProp, handled := c.lowerAddressProperty(recv, n.Attr); handled {
		return addrProp, nil
	}
	if _, isAddr := recv.Type.(vytype.AddressT); isAddr && n.Attr == "code" {
		return VyperValue{}, compileerr.TypeCheck(pos, c.stack(), "<address>.code is only usable as a slice() source")
	}
	structT, ok := recv.Type.(vytype.StructT)
	if !ok {
		return VyperValue{}, compileerr.TypeCheck(pos, c.stack(), "attribute access on non-struct type %s", recv.Type)
	}
	fieldPtr, fieldType, err := c.structFieldPtr(recv.Located, structT, n.Attr, pos)
	if err != nil {
		return VyperValue{}, err
	}
	if fieldType.IsPrimWord() {
		return StackValue(c.Unwrap(LocatedValue(fieldPtr, fieldType)), fieldType), nil
	}
	return LocatedValue(fieldPtr, fieldType), nil
}

// structFieldPtr offsets a struct's base pointer to the named field,
// using the word stride for storage/transient bases and the byte stride
// for everything else.
func (c *Context) structFieldPtr(recv Ptr, structT vytype.StructT, field string, pos compileerr.SourcePos) (Ptr, vytype.VyperType, error) {
	offset := 0
	for _, f := range structT.Fields {
		if f.Name == field {
			p := Ptr{Operand: c.Builder.Add(recv.Operand, venom.LitFromUint64(uint64(offset))), Location: recv.Location, Buf: recv.Buf}
			return p, f.Type, nil
		}
		switch recv.Location {
		case ast.LocStorage, ast.LocTransient:
			offset += f.Type.StorageSizeInWords()
		default:
			offset += f.Type.MemoryBytesRequired()
		}
	}
	return Ptr{}, nil, compileerr.Panic(pos, c.stack(), "struct %s has no field %q", structT.Name, field)
}

func (c *Context) lowerEnvAttribute(base, attr string, typ vytype.VyperType, pos compileerr.SourcePos) (VyperValue, bool, error) {
	key := base + "." + attr
	switch key {
	case "self.balance":
		return StackValue(c.Builder.SelfBalance(), typ), true, nil
	case "msg.sender":
		return StackValue(c.Builder.Caller(), typ), true, nil
	case "msg.value":
		return StackValue(c.Builder.CallValue(), typ), true, nil
	case "msg.gas":
		return StackValue(c.Builder.Gas(), typ), true, nil
	case "msg.data":
		// Only reachable outside the slice()/len() special paths, which
		// intercept the raw AST before this attribute is ever lowered.
		return VyperValue{}, true, compileerr.TypeCheck(pos, c.stack(), "msg.data is only usable as a slice() or len() argument")
	case "block.timestamp":
		return StackValue(c.Builder.Timestamp(), typ), true, nil
	case "block.number":
		return StackValue(c.Builder.Number(), typ), true, nil
	case "block.coinbase":
		return StackValue(c.Builder.Coinbase(), typ), true, nil
	case "block.difficulty", "block.prevrandao":
		return StackValue(c.Builder.PrevRandao(), typ), true, nil
	case "block.gaslimit":
		return StackValue(c.Builder.GasLimit(), typ), true, nil
	case "block.basefee":
		return StackValue(c.Builder.BaseFee(), typ), true, nil
	case "block.blobbasefee":
		return StackValue(c.Builder.BlobBaseFee(), typ), true, nil
	case "block.prevhash":
		one := c.Builder.Sub(c.Builder.Number(), venom.LitFromUint64(1))
		return StackValue(c.Builder.BlockHash(one), typ), true, nil
	case "tx.origin":
		return StackValue(c.Builder.Origin(), typ), true, nil
	case "tx.gasprice":
		return StackValue(c.Builder.GasPrice(), typ), true, nil
	case "chain.id":
		return StackValue(c.Builder.ChainID(), typ), true, nil
	default:
		return VyperValue{}, false, nil
	}
}

func (c *Context) lowerAddressProperty(recv VyperValue, attr string) (VyperValue, bool) {
	if _, ok := recv.Type.(vytype.AddressT); !ok {
		return VyperValue{}, false
	}
	addr := c.Unwrap(recv)
	switch attr {
	case "balance":
		return StackValue(c.Builder.Balance(addr), vytype.IntegerT{Bits: 256, Signed: false}), true
	case "codehash":
		return StackValue(c.Builder.ExtCodeHash(addr), vytype.BytesMT{M: 32}), true
	case "codesize":
		return StackValue(c.Builder.ExtCodeSize(addr), vytype.IntegerT{Bits: 256, Signed: false}), true
	case "is_contract":
		sz := c.Builder.ExtCodeSize(addr)
		gt := c.Builder.Gt(sz, venom.LitFromUint64(0))
		return StackValue(gt, vytype.BoolT{}), true
	default:
		return VyperValue{}, false
	}
}

// lowerSubscript handles SArrayT/DArrayT indexing and HashMapT lookup.
// Bounds checks revert; the unsafe/internal
// fast path this core assumes the analyzer has already proven safe is
// out of scope (the core always emits the check).
func (c *Context) lowerSubscript(n *ast.Subscript) (VyperValue, error) {
	ptr, elem, err := c.subscriptPtr(n)
	if err != nil {
		return VyperValue{}, err
	}
	if elem.IsPrimWord() {
		if ptr.Location == ast.LocStorage || ptr.Location == ast.LocTransient {
			return StackValue(c.readWord(ptr, venom.LitFromUint64(0)), elem), nil
		}
		return StackValue(c.Unwrap(LocatedValue(ptr, elem)), elem), nil
	}
	return LocatedValue(ptr, elem), nil
}

// subscriptPtr resolves an index expression down to the element's
// address without loading through it, shared by the rvalue path above
// and the assignment-target path in stmt.go.
func (c *Context) subscriptPtr(n *ast.Subscript) (Ptr, vytype.VyperType, error) {
	pos := astPos(n.Pos)
	recv, err := c.LowerExpr(n.Value)
	if err != nil {
		return Ptr{}, nil, err
	}

	if hm, ok := recv.Type.(vytype.HashMapT); ok {
		slot, err := c.mappingSlot(recv, hm, n.Index, pos)
		if err != nil {
			return Ptr{}, nil, err
		}
		return Ptr{Operand: slot, Location: ast.LocStorage}, hm.Value, nil
	}

	idxVal, err := c.LowerExpr(n.Index)
	if err != nil {
		return Ptr{}, nil, err
	}
	idx := c.Unwrap(idxVal)

	switch t := recv.Type.(type) {
	case vytype.SArrayT:
		c.emitBoundsCheck(idx, venom.LitFromUint64(uint64(t.N)), pos)
		return c.ArrayElemPtr(recv.Located, t.Elem, idx, false), t.Elem, nil
	case vytype.DArrayT:
		length := c.GetDynArrayLength(recv.Located)
		c.emitBoundsCheck(idx, length, pos)
		return c.ArrayElemPtr(recv.Located, t.Elem, idx, true), t.Elem, nil
	default:
		return Ptr{}, nil, compileerr.TypeCheck(pos, c.stack(), "subscript on non-indexable type %s", recv.Type)
	}
}

func ceil32(n int) int { return (n + 31) / 32 * 32 }

// emitBoundsCheck reverts unless idx < length.
func (c *Context) emitBoundsCheck(idx, length venom.Operand, pos compileerr.SourcePos) {
	inBounds := c.Builder.Lt(idx, length)
	ok := c.Builder.CreateBlock("bounds.ok")
	fail := c.Builder.CreateBlock("bounds.fail")
	c.Builder.Jnz(inBounds, ok, fail)

	c.Builder.AppendBlock(fail)
	c.Builder.SetBlock(fail)
	c.Builder.Revert(venom.LitFromUint64(0), venom.LitFromUint64(0))

	c.Builder.AppendBlock(ok)
	c.Builder.SetBlock(ok)
}

// mappingSlot computes slot = keccak256(key ++ base_slot). Both hashed operands fit in a word here (a non-primitive
// key is first hashed down to its keccak256 by this function), so this
// is always the two-word sha3_64 shape.
func (c *Context) mappingSlot(recv VyperValue, hm vytype.HashMapT, indexExpr ast.Expr, pos compileerr.SourcePos) (venom.Operand, error) {
	keyVal, err := c.LowerExpr(indexExpr)
	if err != nil {
		return nil, err
	}
	var keyWord venom.Operand
	if hm.Key.IsPrimWord() {
		keyWord = c.Unwrap(keyVal)
	} else {
		ptr, size := c.BytesLikeDataPtrAndLen(keyVal)
		keyWord = c.Builder.Sha3(ptr, size)
	}
	scratch := c.AllocateBuffer(64, "mapping-key")
	c.Builder.MStore(scratch.Operand, keyWord)
	slotOffset := c.Builder.Add(scratch.Operand, venom.LitFromUint64(32))
	c.Builder.MStore(slotOffset, recv.Located.Operand)
	return c.Builder.Sha3(scratch.Operand, venom.LitFromUint64(64)), nil
}
