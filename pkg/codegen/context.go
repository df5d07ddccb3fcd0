package codegen

import (
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// Constancy is the view/mutating split.
type Constancy int

const (
	Mutable Constancy = iota
	Constant
)

// VarRecord is one entry of the per-function symbol table:
// Ptr is the alloca result holding the variable's address, Scopes is the
// set of block_scope ids this declaration is visible in.
type VarRecord struct {
	Ptr     venom.Operand
	Type    vytype.VyperType
	Mutable bool
	Scopes  map[int]bool
	// IsRegister is true for a primitive-word local whose current value
	// lives directly in the SSA variable Ptr holds (reassigned via the
	// `assign` opcode), rather than behind a memory address. Only
	// non-primword locals (and every storage/immutable/transient
	// reference, which is always addressed by slot) use Ptr as a real
	// location.
	IsRegister bool
	// Location is the address space Ptr points into when IsRegister is
	// false. Locals declared through DeclareVariable are always Memory;
	// a for-loop binding over a storage/calldata array inherits the
	// array's own location instead.
	Location ast.Location
}

// Context is the per-in-progress-function codegen state. One Context is
// created per function, destroyed when that function is fully lowered.
type Context struct {
	Builder *venom.Builder
	Module  *ModuleContext

	Variables map[string]*VarRecord
	scopeID   int
	scopes    map[int]bool

	BreakTarget    *venom.BasicBlock
	ContinueTarget *venom.BasicBlock

	ReturnLabel  *venom.BasicBlock
	ReturnBuffer *Buffer // nil for a void-returning function

	FuncT *ast.FunctionDef

	Constancy  Constancy
	IsCtor     bool
	ForVars    map[string]bool
}

// ModuleContext carries the handful of module-wide facts lowering needs
// that are not per-function: both Venom Contexts (deploy and runtime).
type ModuleContext struct {
	Deploy  *venom.Context
	Runtime *venom.Context
}

// NewFunctionContext creates a Context for lowering fn into bb's
// builder. is_ctor_context and constancy are derived from fn.
func NewFunctionContext(mod *ModuleContext, builder *venom.Builder, fn *ast.FunctionDef) *Context {
	constancy := Mutable
	if !fn.Mutable {
		constancy = Constant
	}
	return &Context{
		Builder:   builder,
		Module:    mod,
		Variables: make(map[string]*VarRecord),
		scopes:    make(map[int]bool),
		FuncT:     fn,
		Constancy: constancy,
		IsCtor:    fn.IsCtor,
		ForVars:   make(map[string]bool),
	}
}

// DeclareVariable registers name in the symbol table, visible in every
// currently-open scope (so it survives until the innermost enclosing
// block_scope exits).
func (c *Context) DeclareVariable(name string, ptr venom.Operand, typ vytype.VyperType, mutable bool) {
	c.declare(name, ptr, typ, mutable, false, ast.LocMemory)
}

// DeclareLocatedVariable is DeclareVariable for a binding whose address
// space is not Memory (a for-in loop variable over a storage or
// calldata array, say).
func (c *Context) DeclareLocatedVariable(name string, ptr venom.Operand, typ vytype.VyperType, mutable bool, loc ast.Location) {
	c.declare(name, ptr, typ, mutable, false, loc)
}

// DeclareRegister is DeclareVariable for a primitive-word local backed
// by a reassignable SSA variable rather than a memory address.
func (c *Context) DeclareRegister(name string, reg venom.Variable, typ vytype.VyperType, mutable bool) {
	c.declare(name, reg, typ, mutable, true, ast.LocMemory)
}

func (c *Context) declare(name string, ptr venom.Operand, typ vytype.VyperType, mutable, isRegister bool, loc ast.Location) {
	scopes := make(map[int]bool, len(c.scopes))
	for id := range c.scopes {
		scopes[id] = true
	}
	c.Variables[name] = &VarRecord{Ptr: ptr, Type: typ, Mutable: mutable, Scopes: scopes, IsRegister: isRegister, Location: loc}
}

// LookupVariable returns the record for name, or nil if undeclared.
func (c *Context) LookupVariable(name string) *VarRecord {
	return c.Variables[name]
}

// CheckIsNotConstant raises a StateAccessViolation if the enclosing
// function is Constant.
func (c *Context) CheckIsNotConstant(pos compileerr.SourcePos) error {
	if c.Constancy == Constant {
		return compileerr.StateAccess(pos, c.Builder.Function().SourceStackSnapshot(),
			"mutating operation attempted in a view/pure function")
	}
	return nil
}

// BlockScope pushes a fresh scope id and returns a release function that
// removes every variable whose Scopes set includes that id — the
// block-scoped cleanup of local declarations, implemented as a
// scoped-acquisition guard rather than relying on an unwind path
// alone.
//
//	release := ctx.BlockScope()
//	defer release()
func (c *Context) BlockScope() func() {
	id := c.scopeID
	c.scopeID++
	c.scopes[id] = true
	return func() {
		delete(c.scopes, id)
		for name, rec := range c.Variables {
			if rec.Scopes[id] {
				delete(rec.Scopes, id)
				if len(rec.Scopes) == 0 {
					delete(c.Variables, name)
				}
			}
		}
	}
}

// LoopScope saves the prior break/continue targets, installs breakBB/
// continueBB as the new ones, and returns a release function that
// restores the prior targets unconditionally — callers additionally wrap
// the loop body in BlockScope.
func (c *Context) LoopScope(breakBB, continueBB *venom.BasicBlock) func() {
	prevBreak, prevContinue := c.BreakTarget, c.ContinueTarget
	c.BreakTarget, c.ContinueTarget = breakBB, continueBB
	return func() {
		c.BreakTarget, c.ContinueTarget = prevBreak, prevContinue
	}
}
