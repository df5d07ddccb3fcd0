package venom

import "github.com/vyperlang/venom-core/pkg/compileerr"

// Builder is the sole construction interface for Venom IR.
// It owns the current-block cursor and exposes one method per opcode;
// methods that produce a result mint a fresh SSA variable and return it,
// void methods return nothing. Attempting to emit into a terminated
// block is a CompilerPanic — it indicates a bug in the lowering code,
// never something a user's source can trigger.
//
// Every opcode gets its own typed method, but emit() stays the one
// place that actually appends to a block.
type Builder struct {
	fn      *Function
	current *BasicBlock
}

// NewBuilder creates a Builder positioned at fn's entry block.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn, current: fn.Entry}
}

// Function returns the function this builder is emitting into.
func (b *Builder) Function() *Function { return b.fn }

// CurrentBlock returns the block the cursor currently points to.
func (b *Builder) CurrentBlock() *BasicBlock { return b.current }

// CreateBlock mints a fresh block without appending it to the function,
// so a lowering pattern (if/else, loops) can reserve forward-jump labels
// before either branch's body is lowered.
func (b *Builder) CreateBlock(suffix string) *BasicBlock {
	return b.fn.NewBlock(suffix)
}

// AppendBlock inserts bb into the function's block list, in the order
// given — this is the order downstream tooling sees.
func (b *Builder) AppendBlock(bb *BasicBlock) {
	b.fn.AppendBlock(bb)
}

// SetBlock moves the cursor to bb. Subsequent emission methods append to
// bb until the cursor moves again.
func (b *Builder) SetBlock(bb *BasicBlock) {
	b.current = bb
}

// SourceContext pushes pos as the active AST source position and
// returns a release function that restores the prior state; every
// instruction emitted before release is called captures pos for later
// diagnostics and source maps. Use it as:
//
//	release := b.SourceContext(pos)
//	defer release()
//
// so release always runs, including when a panic unwinds through the
// deferred call.
func (b *Builder) SourceContext(pos compileerr.SourcePos) func() {
	b.fn.pushSource(pos)
	return b.fn.popSource
}

// emit is the single append point every opcode method funnels through.
func (b *Builder) emit(op Opcode, hasOutput bool, operands ...Operand) *Variable {
	if b.current.Terminated() {
		panic(compileerr.Panic(
			b.currentPos(), b.fn.SourceStackSnapshot(),
			"attempted to emit %s into already-terminated block %s", op, b.current.Label,
		))
	}
	ins := Instruction{Opcode: op, Operands: operands, Source: b.fn.currentSource()}
	var out *Variable
	if hasOutput {
		v := b.fn.NewVariable()
		ins.Output = &v
		out = &v
	}
	b.current.append(ins)
	return out
}

func (b *Builder) currentPos() compileerr.SourcePos {
	if p := b.fn.currentSource(); p != nil {
		return *p
	}
	return compileerr.SourcePos{}
}

// emitC emits a commutative binary op in natural operand order.
func (b *Builder) emitC(op Opcode, a, c Operand) Variable {
	return *b.emit(op, true, a, c)
}

// emitNC emits a non-commutative binary op. Operands are stored reversed
// from the caller's natural left-to-right order — [right, left] — so
// that a downstream stack-scheduling pass can push them in that order
// and have `left` land on top, matching how the EVM's own non-commutative
// opcodes (SUB, DIV, LT, ...) consume their two operands. Nothing in this module interprets the order
// itself; it is a documented contract with that (out-of-scope) pass.
func (b *Builder) emitNC(op Opcode, left, right Operand) Variable {
	return *b.emit(op, true, right, left)
}

// ---- Arithmetic ----

func (b *Builder) Add(a, c Operand) Variable { return b.emitC(OpAdd, a, c) }
func (b *Builder) Sub(left, right Operand) Variable { return b.emitNC(OpSub, left, right) }
func (b *Builder) Mul(a, c Operand) Variable { return b.emitC(OpMul, a, c) }
func (b *Builder) Div(left, right Operand) Variable  { return b.emitNC(OpDiv, left, right) }
func (b *Builder) SDiv(left, right Operand) Variable { return b.emitNC(OpSDiv, left, right) }
func (b *Builder) Mod(left, right Operand) Variable  { return b.emitNC(OpMod, left, right) }
func (b *Builder) SMod(left, right Operand) Variable { return b.emitNC(OpSMod, left, right) }
func (b *Builder) AddMod(a, c, n Operand) Variable {
	return *b.emit(OpAddMod, true, n, c, a)
}
func (b *Builder) MulMod(a, c, n Operand) Variable {
	return *b.emit(OpMulMod, true, n, c, a)
}
func (b *Builder) Exp(base, exp Operand) Variable { return b.emitNC(OpExp, base, exp) }
func (b *Builder) SignExtend(numBytesLessOne, value Operand) Variable {
	return b.emitNC(OpSignExtend, value, numBytesLessOne)
}

// ---- Comparison / bitwise ----

func (b *Builder) Lt(left, right Operand) Variable  { return b.emitNC(OpLt, left, right) }
func (b *Builder) Gt(left, right Operand) Variable  { return b.emitNC(OpGt, left, right) }
func (b *Builder) SLt(left, right Operand) Variable { return b.emitNC(OpSLt, left, right) }
func (b *Builder) SGt(left, right Operand) Variable { return b.emitNC(OpSGt, left, right) }
func (b *Builder) Eq(a, c Operand) Variable         { return b.emitC(OpEq, a, c) }
func (b *Builder) IsZero(a Operand) Variable        { return *b.emit(OpIsZero, true, a) }
func (b *Builder) And(a, c Operand) Variable        { return b.emitC(OpAnd, a, c) }
func (b *Builder) Or(a, c Operand) Variable         { return b.emitC(OpOr, a, c) }
func (b *Builder) Xor(a, c Operand) Variable        { return b.emitC(OpXor, a, c) }
func (b *Builder) Not(a Operand) Variable           { return *b.emit(OpNot, true, a) }
func (b *Builder) Byte(index, word Operand) Variable {
	return b.emitNC(OpByte, word, index)
}
func (b *Builder) Shl(shift, value Operand) Variable { return b.emitNC(OpShl, value, shift) }
func (b *Builder) Shr(shift, value Operand) Variable { return b.emitNC(OpShr, value, shift) }
func (b *Builder) Sar(shift, value Operand) Variable { return b.emitNC(OpSar, value, shift) }

// ---- Keccak ----

func (b *Builder) Sha3(offset, size Operand) Variable {
	return *b.emit(OpSha3, true, offset, size)
}

// ---- Environment / block context ----

func (b *Builder) Address() Variable     { return *b.emit(OpAddress, true) }
func (b *Builder) Balance(addr Operand) Variable { return *b.emit(OpBalance, true, addr) }
func (b *Builder) SelfBalance() Variable { return *b.emit(OpSelfBalance, true) }
func (b *Builder) Origin() Variable      { return *b.emit(OpOrigin, true) }
func (b *Builder) Caller() Variable      { return *b.emit(OpCaller, true) }
func (b *Builder) CallValue() Variable   { return *b.emit(OpCallValue, true) }
func (b *Builder) CallDataSize() Variable { return *b.emit(OpCallDataSize, true) }
func (b *Builder) CallDataLoad(offset Operand) Variable {
	return *b.emit(OpCallDataLoad, true, offset)
}
func (b *Builder) CallDataCopy(dst, offset, size Operand) {
	b.emit(OpCallDataCopy, false, size, offset, dst)
}
func (b *Builder) CodeSize() Variable { return *b.emit(OpCodeSize, true) }
func (b *Builder) CodeCopy(dst, offset, size Operand) {
	b.emit(OpCodeCopy, false, size, offset, dst)
}
func (b *Builder) ExtCodeSize(addr Operand) Variable { return *b.emit(OpExtCodeSize, true, addr) }
func (b *Builder) ExtCodeCopy(addr, dst, offset, size Operand) {
	b.emit(OpExtCodeCopy, false, size, offset, dst, addr)
}
func (b *Builder) ExtCodeHash(addr Operand) Variable { return *b.emit(OpExtCodeHash, true, addr) }
func (b *Builder) GasPrice() Variable                { return *b.emit(OpGasPrice, true) }
func (b *Builder) BlockHash(num Operand) Variable    { return *b.emit(OpBlockHash, true, num) }
func (b *Builder) Coinbase() Variable                { return *b.emit(OpCoinbase, true) }
func (b *Builder) Timestamp() Variable               { return *b.emit(OpTimestamp, true) }
func (b *Builder) Number() Variable                  { return *b.emit(OpNumber, true) }
func (b *Builder) Difficulty() Variable              { return *b.emit(OpDifficulty, true) }
func (b *Builder) PrevRandao() Variable              { return *b.emit(OpPrevRandao, true) }
func (b *Builder) GasLimit() Variable                { return *b.emit(OpGasLimit, true) }
func (b *Builder) ChainID() Variable                  { return *b.emit(OpChainID, true) }
func (b *Builder) BaseFee() Variable                  { return *b.emit(OpBaseFee, true) }
func (b *Builder) BlobBaseFee() Variable              { return *b.emit(OpBlobBaseFee, true) }
func (b *Builder) BlobHash(idx Operand) Variable      { return *b.emit(OpBlobHash, true, idx) }
func (b *Builder) Gas() Variable                      { return *b.emit(OpGas, true) }

// ---- Memory / storage / transient ----

func (b *Builder) MLoad(ptr Operand) Variable { return *b.emit(OpMLoad, true, ptr) }
func (b *Builder) MStore(ptr, val Operand)    { b.emit(OpMStore, false, val, ptr) }
func (b *Builder) MStore8(ptr, val Operand)   { b.emit(OpMStore8, false, val, ptr) }
func (b *Builder) MCopy(dst, src, size Operand) {
	b.emit(OpMCopy, false, size, src, dst)
}
func (b *Builder) MSize() Variable { return *b.emit(OpMSize, true) }

func (b *Builder) SLoad(slot Operand) Variable { return *b.emit(OpSLoad, true, slot) }
func (b *Builder) SStore(slot, val Operand)    { b.emit(OpSStore, false, val, slot) }
func (b *Builder) TLoad(slot Operand) Variable { return *b.emit(OpTLoad, true, slot) }
func (b *Builder) TStore(slot, val Operand)    { b.emit(OpTStore, false, val, slot) }

// Alloca abstractly allocates size bytes of memory and returns a pointer
// operand; the concrete offset is chosen by a later pass.
func (b *Builder) Alloca(size Operand) Variable { return *b.emit(OpAlloca, true, size) }

// Calloca is alloca's internal-calling-convention counterpart, used to
// pass complex-typed arguments to Invoke.
func (b *Builder) Calloca(size Operand) Variable { return *b.emit(OpCalloca, true, size) }

// ---- Control flow / terminators ----

// Jmp unconditionally jumps to target.
func (b *Builder) Jmp(target *BasicBlock) {
	b.emit(OpJmp, false, Label{Name: target.Label})
}

// JmpTo unconditionally jumps to a label that is not (or not yet) backed
// by a *BasicBlock in this function — a sibling function's entry in the
// selector dispatcher, say. Prefer Jmp when the target block is in hand.
func (b *Builder) JmpTo(label string) {
	b.emit(OpJmp, false, Label{Name: label})
}

// Jnz jumps to then when cond != 0, else to els.
func (b *Builder) Jnz(cond Operand, then, els *BasicBlock) {
	b.emit(OpJnz, false, cond, Label{Name: then.Label}, Label{Name: els.Label})
}

// Djmp is a dynamic jump whose target must equal one of labels (used
// for internal-function returns).
func (b *Builder) Djmp(target Operand, labels ...*BasicBlock) {
	operands := make([]Operand, 0, len(labels)+1)
	operands = append(operands, target)
	for _, l := range labels {
		operands = append(operands, Label{Name: l.Label})
	}
	b.emit(OpDjmp, false, operands...)
}

// Ret returns from an internal function with zero or more values.
func (b *Builder) Ret(values ...Operand) {
	b.emit(OpRet, false, values...)
}

// Return is the EVM RETURN opcode.
func (b *Builder) Return(offset, size Operand) {
	b.emit(OpReturn, false, size, offset)
}

// Revert halts execution, returning [offset, size) as revert data.
func (b *Builder) Revert(offset, size Operand) {
	b.emit(OpRevert, false, size, offset)
}

// Invalid halts with the INVALID opcode (used for UNREACHABLE asserts).
func (b *Builder) Invalid() { b.emit(OpInvalid, false) }

// Stop halts with no return data.
func (b *Builder) Stop() { b.emit(OpStop, false) }

// SelfDestruct halts, sending the contract's balance to addr.
func (b *Builder) SelfDestruct(addr Operand) {
	b.emit(OpSelfDestruct, false, addr)
}

// Param declares one formal parameter in an internal function's entry
// block; call it once per parameter, in declaration order,
// before emitting any other instruction into the entry block.
func (b *Builder) Param() Variable {
	v := *b.emit(OpParam, true)
	b.fn.Params = append(b.fn.Params, v)
	return v
}

// Invoke calls an internal function. numReturns determines the shape of
// the result: 0 returns nil, 1 returns a single primitive-word variable,
// >1 returns a pointer to a tuple-typed memory region populated by the
// callee.
func (b *Builder) Invoke(target *BasicBlock, numReturns int, args ...Operand) *Variable {
	operands := make([]Operand, 0, len(args)+1)
	operands = append(operands, Label{Name: target.Label})
	operands = append(operands, args...)
	return b.emit(OpInvoke, numReturns > 0, operands...)
}

// ---- Calls / creation ----

func (b *Builder) Call(gas, addr, value, argsOffset, argsSize, retOffset, retSize Operand) Variable {
	return *b.emit(OpCall, true, retSize, retOffset, argsSize, argsOffset, value, addr, gas)
}

func (b *Builder) StaticCall(gas, addr, argsOffset, argsSize, retOffset, retSize Operand) Variable {
	return *b.emit(OpStaticCall, true, retSize, retOffset, argsSize, argsOffset, addr, gas)
}

func (b *Builder) DelegateCall(gas, addr, argsOffset, argsSize, retOffset, retSize Operand) Variable {
	return *b.emit(OpDelegateCall, true, retSize, retOffset, argsSize, argsOffset, addr, gas)
}

func (b *Builder) Create(value, offset, size Operand) Variable {
	return *b.emit(OpCreate, true, size, offset, value)
}

func (b *Builder) Create2(value, offset, size, salt Operand) Variable {
	return *b.emit(OpCreate2, true, salt, size, offset, value)
}

func (b *Builder) ReturnDataSize() Variable { return *b.emit(OpReturnDataSize, true) }
func (b *Builder) ReturnDataCopy(dst, offset, size Operand) {
	b.emit(OpReturnDataCopy, false, size, offset, dst)
}

// ---- Logging ----

// LogN emits logN with the given topics (0..4 of them) over [offset,size).
func (b *Builder) LogN(offset, size Operand, topics ...Operand) {
	if len(topics) > 4 {
		panic(compileerr.Panic(b.currentPos(), b.fn.SourceStackSnapshot(), "log with %d topics, max is 4", len(topics)))
	}
	operands := append([]Operand{size, offset}, topics...)
	b.emit(LogOpcode(len(topics)), false, operands...)
}

// ---- High-level helpers ----

// Select implements a branchless `cond ? a : b` as
// xor(b, mul(cond, xor(a,b))), relying on the invariant that Vyper
// comparisons produce exactly 0 or 1.
func (b *Builder) Select(cond, a, c Operand) Variable {
	axorc := b.Xor(a, c)
	masked := b.Mul(cond, axorc)
	return b.Xor(c, masked)
}

// AssignTo writes val into the existing variable target, used for loop
// counters and ternary results where SSA's single-assignment rule is
// relaxed via the explicit `assign` opcode.
func (b *Builder) AssignTo(val Operand, target Variable) {
	ins := Instruction{Opcode: OpAssign, Operands: []Operand{val}, Output: &target, Source: b.fn.currentSource()}
	if b.current.Terminated() {
		panic(compileerr.Panic(b.currentPos(), b.fn.SourceStackSnapshot(), "attempted to emit assign into already-terminated block %s", b.current.Label))
	}
	b.current.append(ins)
}

// NewVariable mints a fresh SSA variable without emitting an
// instruction, for patterns (ternary, loop accumulators) that need a
// target to AssignTo from multiple predecessor paths before any of them
// has run.
func (b *Builder) NewVariable() Variable {
	return b.fn.NewVariable()
}
