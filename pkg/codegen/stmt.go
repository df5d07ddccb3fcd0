package codegen

import (
	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/builtins"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// LowerStmt dispatches on the dynamic type of s, mirroring
// LowerExpr's shape. Each statement's source position is pushed for the
// duration of its lowering so every instruction it emits can name its
// origin.
func (c *Context) LowerStmt(s ast.Stmt) error {
	release := c.Builder.SourceContext(astPos(ast.NodePos(s)))
	defer release()
	switch n := s.(type) {
	case *ast.ExprStmt:
		_, err := c.LowerExpr(n.Value)
		return err
	case *ast.AnnAssign:
		return c.lowerAnnAssign(n)
	case *ast.Assign:
		return c.lowerAssign(n)
	case *ast.AugAssign:
		return c.lowerAugAssign(n)
	case *ast.TupleAssign:
		return c.lowerTupleAssign(n)
	case *ast.If:
		return c.lowerIf(n)
	case *ast.ForRange:
		return c.lowerForRange(n)
	case *ast.ForIn:
		return c.lowerForIn(n)
	case *ast.While:
		return c.lowerWhile(n)
	case *ast.Break:
		return c.lowerBreak(n)
	case *ast.Continue:
		return c.lowerContinue(n)
	case *ast.Return:
		return c.lowerReturn(n)
	case *ast.Assert:
		return c.lowerAssert(n)
	case *ast.Raise:
		return c.lowerRaise(n)
	case *ast.Log:
		return c.lowerLog(n)
	default:
		return compileerr.Panic(c.currentSourcePos(), c.stack(), "unhandled statement node %T", s)
	}
}

func (c *Context) lowerBlock(body []ast.Stmt) error {
	release := c.BlockScope()
	defer release()
	for _, s := range body {
		if err := c.LowerStmt(s); err != nil {
			return err
		}
		if c.Builder.CurrentBlock().Terminated() {
			break
		}
	}
	return nil
}

// lowerAnnAssign allocates storage for a new local and, if initialized,
// stores the value into it.
func (c *Context) lowerAnnAssign(n *ast.AnnAssign) error {
	if n.Type.IsPrimWord() {
		reg := c.Builder.NewVariable()
		init := venom.Operand(venom.LitFromUint64(0))
		if n.Value != nil {
			val, err := c.LowerExpr(n.Value)
			if err != nil {
				return err
			}
			init = c.Unwrap(val)
		}
		c.Builder.AssignTo(init, reg)
		c.DeclareRegister(n.Name, reg, n.Type, true)
		return nil
	}

	buf := c.AllocateBuffer(n.Type.MemoryBytesRequired(), "local:"+n.Name)
	c.DeclareVariable(n.Name, buf.Operand, n.Type, true)
	if n.Value == nil {
		c.zeroFill(buf)
		return nil
	}
	val, err := c.LowerExpr(n.Value)
	if err != nil {
		return err
	}
	return c.storeInto(Ptr{Operand: buf.Operand, Location: ast.LocMemory}, n.Type, val)
}

// storeInto writes val into dst, either a single MSTORE for a
// primitive word or a full-width copy otherwise. Writes to persistent
// locations are rejected while lowering a Constant (view) function.
func (c *Context) storeInto(dst Ptr, dstType vytype.VyperType, val VyperValue) error {
	if dst.Location == ast.LocStorage || dst.Location == ast.LocTransient {
		if err := c.CheckIsNotConstant(c.currentSourcePos()); err != nil {
			return err
		}
	}
	switch dst.Location {
	case ast.LocStorage:
		if dstType.IsPrimWord() {
			c.Builder.SStore(dst.Operand, c.Unwrap(val))
			return nil
		}
		return c.copyLocatedInto(dst, dstType, val)
	case ast.LocTransient:
		if dstType.IsPrimWord() {
			c.Builder.TStore(dst.Operand, c.Unwrap(val))
			return nil
		}
		return c.copyLocatedInto(dst, dstType, val)
	default:
		if dstType.IsPrimWord() {
			c.Builder.MStore(dst.Operand, c.Unwrap(val))
			return nil
		}
		return c.copyLocatedInto(dst, dstType, val)
	}
}

// copyLocatedInto copies a non-primitive value field-by-field (struct/
// tuple/array) or via a flat byte copy (bytes/string), checking that
// src and dst do not overlap when both are memory locations.
func (c *Context) copyLocatedInto(dst Ptr, dstType vytype.VyperType, val VyperValue) error {
	if val.IsStack {
		c.Builder.MStore(dst.Operand, c.Unwrap(val))
		return nil
	}
	src := val.Located
	if dst.Location == ast.LocMemory && src.Location == ast.LocMemory {
		c.emitOverlapCheck(dst.Operand, src.Operand, dstType.MemoryBytesRequired())
	}
	switch dst.Location {
	case ast.LocStorage:
		return c.copyCrossLocation(dst, src, dstType)
	case ast.LocTransient:
		return c.copyCrossLocation(dst, src, dstType)
	default:
		if src.Location == ast.LocMemory {
			c.CopyMemory(dst.Operand, src.Operand, dstType.MemoryBytesRequired())
			return nil
		}
		return c.copyCrossLocation(dst, src, dstType)
	}
}

// copyCrossLocation copies word-by-word between two different
// locations (storage<->memory, transient<->memory, etc.), since mcopy
// only moves memory-to-memory.
func (c *Context) copyCrossLocation(dst, src Ptr, t vytype.VyperType) error {
	words := (t.MemoryBytesRequired() + 31) / 32
	for i := 0; i < words; i++ {
		off := venom.LitFromUint64(uint64(i * 32))
		word := c.readWord(src, off)
		c.writeWord(dst, off, word)
	}
	return nil
}

func (c *Context) readWord(p Ptr, off venom.Operand) venom.Variable {
	ptr := c.Builder.Add(p.Operand, off)
	switch p.Location {
	case ast.LocStorage:
		return c.Builder.SLoad(ptr)
	case ast.LocTransient:
		return c.Builder.TLoad(ptr)
	case ast.LocCalldata:
		return c.Builder.CallDataLoad(ptr)
	default:
		return c.Builder.MLoad(ptr)
	}
}

func (c *Context) writeWord(p Ptr, off venom.Operand, val venom.Operand) {
	ptr := c.Builder.Add(p.Operand, off)
	switch p.Location {
	case ast.LocStorage:
		c.Builder.SStore(ptr, val)
	case ast.LocTransient:
		c.Builder.TStore(ptr, val)
	default:
		c.Builder.MStore(ptr, val)
	}
}

// emitOverlapCheck reverts if [dst, dst+size) and [src, src+size)
// overlap: `a = a` through an aliased pointer,
// or structural assignment between two overlapping slices, would
// otherwise read already-overwritten bytes partway through the copy.
func (c *Context) emitOverlapCheck(dst, src venom.Operand, size int) {
	sz := venom.LitFromUint64(uint64(size))
	dstEnd := c.Builder.Add(dst, sz)
	srcEnd := c.Builder.Add(src, sz)
	dstBeforeSrc := c.Builder.IsZero(c.Builder.Gt(dstEnd, src))
	srcBeforeDst := c.Builder.IsZero(c.Builder.Gt(srcEnd, dst))
	noOverlap := c.Builder.Or(dstBeforeSrc, srcBeforeDst)
	c.emitRevertUnless(noOverlap, compileerr.SourcePos{})
}

// lowerAssign resolves the target's location and stores the evaluated
// value into it.
func (c *Context) lowerAssign(n *ast.Assign) error {
	val, err := c.LowerExpr(n.Value)
	if err != nil {
		return err
	}
	dst, err := c.lowerAssignTarget(n.Target)
	if err != nil {
		return err
	}
	return c.storeIntoTarget(dst, n.Target.ExprType(), val)
}

// assignTarget is the mirror image of LowerExpr for the subset of
// expressions that can appear on an assignment's left side (Name,
// Attribute, Subscript): either a register (a primword local bound
// directly to a reassignable SSA variable) or a located Ptr.
type assignTarget struct {
	IsRegister bool
	Register   venom.Variable
	Ptr        Ptr
}

// lowerAssignTarget evaluates an lvalue expression down to the register
// or Ptr it refers to, without loading through it. Only Name, Attribute,
// and Subscript can appear on an assignment's left side.
func (c *Context) lowerAssignTarget(e ast.Expr) (assignTarget, error) {
	switch n := e.(type) {
	case *ast.Name:
		pos := astPos(n.Pos)
		if c.ForVars[n.Ident] {
			return assignTarget{}, compileerr.TypeCheck(pos, c.stack(), "cannot assign to loop variable %q", n.Ident)
		}
		if rec := c.LookupVariable(n.Ident); rec != nil {
			if !rec.Mutable {
				return assignTarget{}, compileerr.TypeCheck(pos, c.stack(), "cannot assign to immutable binding %q", n.Ident)
			}
			if rec.IsRegister {
				return assignTarget{IsRegister: true, Register: rec.Ptr.(venom.Variable)}, nil
			}
			return assignTarget{Ptr: Ptr{Operand: rec.Ptr, Location: rec.Location}}, nil
		}
		if n.VarInfo != nil {
			return c.varInfoTarget(n.VarInfo, pos)
		}
		return assignTarget{}, compileerr.Panic(pos, c.stack(), "assignment to unresolved name %q", n.Ident)
	case *ast.Attribute:
		pos := astPos(n.Pos)
		if n.VarInfo != nil {
			return c.varInfoTarget(n.VarInfo, pos)
		}
		recv, err := c.LowerExpr(n.Value)
		if err != nil {
			return assignTarget{}, err
		}
		structT, ok := recv.Type.(vytype.StructT)
		if !ok {
			return assignTarget{}, compileerr.TypeCheck(pos, c.stack(), "field assignment on non-struct type %s", recv.Type)
		}
		fieldPtr, _, err := c.structFieldPtr(recv.Located, structT, n.Attr, pos)
		if err != nil {
			return assignTarget{}, err
		}
		return assignTarget{Ptr: fieldPtr}, nil
	case *ast.Subscript:
		ptr, _, err := c.subscriptPtr(n)
		if err != nil {
			return assignTarget{}, err
		}
		return assignTarget{Ptr: ptr}, nil
	default:
		return assignTarget{}, compileerr.TypeCheck(c.currentSourcePos(), c.stack(), "invalid assignment target %T", e)
	}
}

// varInfoTarget builds the Ptr a resolved storage/transient/immutable
// variable reference writes through. Immutables may only be written from
// the constructor context.
func (c *Context) varInfoTarget(info *ast.VarInfo, pos compileerr.SourcePos) (assignTarget, error) {
	if info.IsConstant {
		return assignTarget{}, compileerr.TypeCheck(pos, c.stack(), "cannot assign to constant %q", info.Name)
	}
	switch info.Location {
	case ast.LocStorage:
		return assignTarget{Ptr: Ptr{Operand: venom.LitFromUint64(uint64(info.Position)), Location: ast.LocStorage}}, nil
	case ast.LocTransient:
		return assignTarget{Ptr: Ptr{Operand: venom.LitFromUint64(uint64(info.Position)), Location: ast.LocTransient}}, nil
	case ast.LocCode:
		if !c.IsCtor {
			return assignTarget{}, compileerr.StateAccess(pos, c.stack(), "immutable %q may only be written in the constructor", info.Name)
		}
		return assignTarget{Ptr: Ptr{Operand: venom.Label{Name: "immutable." + info.Name}, Location: ast.LocCode}}, nil
	default:
		return assignTarget{}, compileerr.Panic(pos, c.stack(), "assignment through unsupported location %s", info.Location)
	}
}

// storeIntoTarget dispatches a store through an assignTarget: a
// register reassignment via the `assign` opcode, or the existing
// Ptr-based storeInto for everything else.
func (c *Context) storeIntoTarget(dst assignTarget, dstType vytype.VyperType, val VyperValue) error {
	if dst.IsRegister {
		c.Builder.AssignTo(c.Unwrap(val), dst.Register)
		return nil
	}
	return c.storeInto(dst.Ptr, dstType, val)
}

// lowerAugAssign is `target op= value`; re-reads the target, computes
// the binary op, and stores back — there is no dedicated compound-
// assignment opcode.
func (c *Context) lowerAugAssign(n *ast.AugAssign) error {
	synthetic := &ast.BinOp{Op: n.Op, Left: n.Target, Right: n.Value, Type: n.Target.ExprType(), Pos: n.Pos}
	result, err := c.LowerExpr(synthetic)
	if err != nil {
		return err
	}
	dst, err := c.lowerAssignTarget(n.Target)
	if err != nil {
		return err
	}
	return c.storeIntoTarget(dst, n.Target.ExprType(), result)
}

// lowerTupleAssign evaluates value once (a multi-return Invoke result
// or a literal tuple) and distributes its fields across the targets.
func (c *Context) lowerTupleAssign(n *ast.TupleAssign) error {
	val, err := c.LowerExpr(n.Value)
	if err != nil {
		return err
	}
	tupleT, ok := n.Value.ExprType().(vytype.TupleT)
	if !ok {
		return compileerr.TypeCheck(astPos(n.Pos), c.stack(), "tuple-assign's value is not a tuple type")
	}
	for i, target := range n.Targets {
		offset := tupleT.FieldOffset(i)
		fieldType := tupleT.Elems[i]
		fieldPtr := c.Builder.Add(val.Located.Operand, venom.LitFromUint64(uint64(offset)))
		var fieldVal VyperValue
		if fieldType.IsPrimWord() {
			fieldVal = StackValue(c.Builder.MLoad(fieldPtr), fieldType)
		} else {
			fieldVal = MemoryValue(fieldPtr, val.Located.Buf, fieldType)
		}
		dst, err := c.lowerAssignTarget(target)
		if err != nil {
			return err
		}
		if err := c.storeIntoTarget(dst, fieldType, fieldVal); err != nil {
			return err
		}
	}
	return nil
}

// lowerIf lowers an if/elif/else chain.
func (c *Context) lowerIf(n *ast.If) error {
	testVal, err := c.LowerExpr(n.Test)
	if err != nil {
		return err
	}
	cond := c.Unwrap(testVal)

	thenBB := c.Builder.CreateBlock("if.then")
	elseBB := c.Builder.CreateBlock("if.else")
	c.Builder.Jnz(cond, thenBB, elseBB)

	c.Builder.AppendBlock(thenBB)
	c.Builder.SetBlock(thenBB)
	if err := c.lowerBlock(n.Body); err != nil {
		return err
	}
	thenTerminated := c.Builder.CurrentBlock().Terminated()

	c.Builder.AppendBlock(elseBB)
	c.Builder.SetBlock(elseBB)
	if err := c.lowerBlock(n.OrElse); err != nil {
		return err
	}
	elseTerminated := c.Builder.CurrentBlock().Terminated()

	if thenTerminated && elseTerminated {
		return nil
	}
	join := c.Builder.CreateBlock("if.join")
	c.jumpToJoinIfOpen(thenBB, join)
	c.jumpToJoinIfOpen(elseBB, join)
	c.Builder.AppendBlock(join)
	c.Builder.SetBlock(join)
	return nil
}

// jumpToJoinIfOpen appends an unconditional jump to join at the end of
// bb, unless bb already ends in a terminator.
func (c *Context) jumpToJoinIfOpen(bb, join *venom.BasicBlock) {
	if bb.Terminated() {
		return
	}
	c.Builder.SetBlock(bb)
	c.Builder.Jmp(join)
}

// lowerForRange lowers the three range() shapes onto a standard
// counting loop: init, test, body, increment.
func (c *Context) lowerForRange(n *ast.ForRange) error {
	var start venom.Operand = venom.LitFromUint64(0)
	if n.Start != nil {
		sv, err := c.LowerExpr(n.Start)
		if err != nil {
			return err
		}
		start = c.Unwrap(sv)
	}
	var bound venom.Operand
	stopVal, err := c.LowerExpr(n.Stop)
	if err != nil {
		return err
	}
	switch n.Form {
	case ast.RangeN:
		bound = c.Unwrap(stopVal)
	case ast.RangeAB:
		bound = c.Unwrap(stopVal)
	case ast.RangeABoundedN:
		bound = c.Builder.Add(start, c.Unwrap(stopVal))
	}

	counterPtr := c.Builder.NewVariable()
	c.Builder.AssignTo(start, counterPtr)
	c.DeclareRegister(n.Var, counterPtr, vytype.IntegerT{Bits: 256, Signed: false}, false)

	headBB := c.Builder.CreateBlock("forrange.head")
	bodyBB := c.Builder.CreateBlock("forrange.body")
	incBB := c.Builder.CreateBlock("forrange.inc")
	exitBB := c.Builder.CreateBlock("forrange.exit")

	c.Builder.Jmp(headBB)
	c.Builder.AppendBlock(headBB)
	c.Builder.SetBlock(headBB)
	cond := c.Builder.Lt(counterPtr, bound)
	c.Builder.Jnz(cond, bodyBB, exitBB)

	c.Builder.AppendBlock(bodyBB)
	c.Builder.SetBlock(bodyBB)
	c.ForVars[n.Var] = true
	release := c.LoopScope(exitBB, incBB)
	err = c.lowerBlock(n.Body)
	release()
	delete(c.ForVars, n.Var)
	if err != nil {
		return err
	}
	if !c.Builder.CurrentBlock().Terminated() {
		c.Builder.Jmp(incBB)
	}

	c.Builder.AppendBlock(incBB)
	c.Builder.SetBlock(incBB)
	next := c.Builder.Add(counterPtr, venom.LitFromUint64(1))
	c.Builder.AssignTo(next, counterPtr)
	c.Builder.Jmp(headBB)

	c.Builder.AppendBlock(exitBB)
	c.Builder.SetBlock(exitBB)
	return nil
}

// lowerForIn iterates a static/dynamic array or list literal by index,
// binding n.Var to each element in turn.
func (c *Context) lowerForIn(n *ast.ForIn) error {
	iterVal, err := c.LowerExpr(n.Iterable)
	if err != nil {
		return err
	}
	var elem vytype.VyperType
	var length venom.Operand
	var base venom.Operand
	switch t := n.Iterable.ExprType().(type) {
	case vytype.SArrayT:
		elem = t.Elem
		length = venom.LitFromUint64(uint64(t.N))
		base = iterVal.Located.Operand
	case vytype.DArrayT:
		elem = t.Elem
		length = c.GetDynArrayLength(iterVal.Located)
		base = c.Builder.Add(iterVal.Located.Operand, venom.LitFromUint64(32))
	default:
		return compileerr.TypeCheck(astPos(n.Pos), c.stack(), "for-in over non-array type %s", n.Iterable.ExprType())
	}
	elemSize := ceil32(elem.MemoryBytesRequired())

	idxPtr := c.Builder.NewVariable()
	c.Builder.AssignTo(venom.LitFromUint64(0), idxPtr)

	headBB := c.Builder.CreateBlock("forin.head")
	bodyBB := c.Builder.CreateBlock("forin.body")
	incBB := c.Builder.CreateBlock("forin.inc")
	exitBB := c.Builder.CreateBlock("forin.exit")

	c.Builder.Jmp(headBB)
	c.Builder.AppendBlock(headBB)
	c.Builder.SetBlock(headBB)
	cond := c.Builder.Lt(idxPtr, length)
	c.Builder.Jnz(cond, bodyBB, exitBB)

	c.Builder.AppendBlock(bodyBB)
	c.Builder.SetBlock(bodyBB)
	byteOffset := c.Builder.Mul(idxPtr, venom.LitFromUint64(uint64(elemSize)))
	elemPtr := c.Builder.Add(base, byteOffset)
	release := c.BlockScope()
	if elem.IsPrimWord() {
		word := c.Unwrap(LocatedValue(Ptr{Operand: elemPtr, Location: iterVal.Located.Location}, elem))
		c.DeclareRegister(n.Var, word, elem, false)
	} else {
		c.DeclareLocatedVariable(n.Var, elemPtr, elem, false, iterVal.Located.Location)
	}
	c.ForVars[n.Var] = true
	loopRelease := c.LoopScope(exitBB, incBB)
	err = c.lowerBlock(n.Body)
	loopRelease()
	release()
	delete(c.ForVars, n.Var)
	if err != nil {
		return err
	}
	if !c.Builder.CurrentBlock().Terminated() {
		c.Builder.Jmp(incBB)
	}

	c.Builder.AppendBlock(incBB)
	c.Builder.SetBlock(incBB)
	next := c.Builder.Add(idxPtr, venom.LitFromUint64(1))
	c.Builder.AssignTo(next, idxPtr)
	c.Builder.Jmp(headBB)

	c.Builder.AppendBlock(exitBB)
	c.Builder.SetBlock(exitBB)
	return nil
}

// lowerWhile is the three-block form: head (test), body, exit.
func (c *Context) lowerWhile(n *ast.While) error {
	headBB := c.Builder.CreateBlock("while.head")
	bodyBB := c.Builder.CreateBlock("while.body")
	exitBB := c.Builder.CreateBlock("while.exit")

	c.Builder.Jmp(headBB)
	c.Builder.AppendBlock(headBB)
	c.Builder.SetBlock(headBB)
	testVal, err := c.LowerExpr(n.Test)
	if err != nil {
		return err
	}
	c.Builder.Jnz(c.Unwrap(testVal), bodyBB, exitBB)

	c.Builder.AppendBlock(bodyBB)
	c.Builder.SetBlock(bodyBB)
	release := c.LoopScope(exitBB, headBB)
	err = c.lowerBlock(n.Body)
	release()
	if err != nil {
		return err
	}
	if !c.Builder.CurrentBlock().Terminated() {
		c.Builder.Jmp(headBB)
	}

	c.Builder.AppendBlock(exitBB)
	c.Builder.SetBlock(exitBB)
	return nil
}

func (c *Context) lowerBreak(n *ast.Break) error {
	if c.BreakTarget == nil {
		return compileerr.TypeCheck(astPos(n.Pos), c.stack(), "break outside a loop")
	}
	c.Builder.Jmp(c.BreakTarget)
	return nil
}

func (c *Context) lowerContinue(n *ast.Continue) error {
	if c.ContinueTarget == nil {
		return compileerr.TypeCheck(astPos(n.Pos), c.stack(), "continue outside a loop")
	}
	c.Builder.Jmp(c.ContinueTarget)
	return nil
}

// lowerReturn stores the value (if any) into the function's return
// buffer and jumps to its return label, or emits the terminator
// directly for a void external function.
func (c *Context) lowerReturn(n *ast.Return) error {
	if n.Value == nil {
		if c.ReturnLabel != nil {
			c.Builder.Jmp(c.ReturnLabel)
			return nil
		}
		c.Builder.Ret()
		return nil
	}
	val, err := c.LowerExpr(n.Value)
	if err != nil {
		return err
	}
	if c.ReturnBuffer != nil {
		if err := c.storeInto(Ptr{Operand: c.ReturnBuffer.Operand, Location: ast.LocMemory}, c.FuncT.ReturnType, val); err != nil {
			return err
		}
	}
	if c.ReturnLabel != nil {
		c.Builder.Jmp(c.ReturnLabel)
		return nil
	}
	c.Builder.Ret(c.Unwrap(val))
	return nil
}

// lowerAssert lowers `assert cond[, reason]`:
// branch to a revert/invalid tail unless cond holds.
func (c *Context) lowerAssert(n *ast.Assert) error {
	testVal, err := c.LowerExpr(n.Test)
	if err != nil {
		return err
	}
	ok := c.Builder.CreateBlock("assert.ok")
	fail := c.Builder.CreateBlock("assert.fail")
	c.Builder.Jnz(c.Unwrap(testVal), ok, fail)

	c.Builder.AppendBlock(fail)
	c.Builder.SetBlock(fail)
	if err := c.emitFailureTail(n.Reason, n.Kind); err != nil {
		return err
	}

	c.Builder.AppendBlock(ok)
	c.Builder.SetBlock(ok)
	return nil
}

// lowerRaise is unconditional; it always takes the failure tail.
func (c *Context) lowerRaise(n *ast.Raise) error {
	return c.emitFailureTail(n.Reason, n.Kind)
}

func (c *Context) emitFailureTail(reason ast.Expr, kind ast.AssertKind) error {
	if kind == ast.AssertUnreachable {
		c.Builder.Invalid()
		return nil
	}
	if reason == nil {
		c.Builder.Revert(venom.LitFromUint64(0), venom.LitFromUint64(0))
		return nil
	}
	reasonVal, err := c.LowerExpr(reason)
	if err != nil {
		return err
	}
	// Error(string) ABI-wraps the reason: selector + offset + length +
	// data, matching how a plain Solidity-style require(...,"msg")
	// revert payload looks to an off-chain caller. The selector is stored
	// right-aligned in the first word and the revert starts 28 bytes in,
	// so the payload leads with exactly those 4 bytes.
	reasonDataPtr, reasonLen := c.BytesLikeDataPtrAndLen(reasonVal)
	buf := c.AllocateBuffer(96+ceil32(reasonVal.Type.MemoryBytesRequired()), "revert-reason")
	c.Builder.MStore(buf.Operand, venom.LitFromUint64(0x08c379a0)) // Error(string)
	offsetPtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(32))
	c.Builder.MStore(offsetPtr, venom.LitFromUint64(32))
	lenPtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(64))
	c.Builder.MStore(lenPtr, reasonLen)
	dataPtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(96))
	c.CopyMemoryDynamic(dataPtr, reasonDataPtr, reasonLen)

	revertPtr := c.Builder.Add(buf.Operand, venom.LitFromUint64(28))
	totalSize := c.Builder.Add(venom.LitFromUint64(4+64), reasonLen)
	c.Builder.Revert(revertPtr, totalSize)
	return nil
}

// lowerLog ABI-encodes indexed args as topics (topic0 is the event
// signature hash) and the rest as the log's data blob.
func (c *Context) lowerLog(n *ast.Log) error {
	if err := c.CheckIsNotConstant(astPos(n.Pos)); err != nil {
		return err
	}
	var topics []venom.Operand
	if n.EventSig != "" {
		topic0 := builtins.EventTopic0(n.EventSig)
		var word uint256.Int
		word.SetBytes(topic0[:])
		topics = append(topics, venom.LitFromBig(&word))
	}
	var dataArgs []VyperValue
	for _, arg := range n.Args {
		v, err := c.LowerExpr(arg.Value)
		if err != nil {
			return err
		}
		if arg.Indexed {
			topics = append(topics, c.Unwrap(v))
		} else {
			dataArgs = append(dataArgs, v)
		}
	}
	if len(dataArgs) == 0 {
		c.Builder.LogN(venom.LitFromUint64(0), venom.LitFromUint64(0), topics...)
		return nil
	}
	totalSize := 0
	for _, v := range dataArgs {
		totalSize += ceil32(v.Type.MemoryBytesRequired())
	}
	buf := c.AllocateBuffer(totalSize, "log-data")
	offset := 0
	for _, v := range dataArgs {
		ptr := c.Builder.Add(buf.Operand, venom.LitFromUint64(uint64(offset)))
		c.writeStaticValue(ptr, v)
		offset += ceil32(v.Type.MemoryBytesRequired())
	}
	c.Builder.LogN(buf.Operand, venom.LitFromUint64(uint64(totalSize)), topics...)
	return nil
}
