package codegen

import (
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/venom"
)

// LowerFunction is the top-level per-function driver: it creates the
// Venom Function for fn, wires up its Context, lowers every parameter
// and body statement, and emits the epilogue at ReturnLabel. One call
// per Vyper function.
//
// External functions decode their arguments out of calldata into a fresh
// memory buffer and terminate with `return`; internal
// functions receive arguments as `param` SSA values or a `calloca` region
// and terminate with `ret`.
func LowerFunction(mod *ModuleContext, fn *ast.FunctionDef) (*venom.Function, error) {
	ctxKind := venom.ContextRuntime
	if fn.IsCtor {
		ctxKind = venom.ContextDeploy
	}
	target := mod.Runtime
	if ctxKind == venom.ContextDeploy {
		target = mod.Deploy
	}

	label := fn.Name
	if fn.IsCtor {
		label = "__init__"
	}
	venomFn := target.NewFunction(label, !fn.External)
	builder := venom.NewBuilder(venomFn)
	ctx := NewFunctionContext(mod, builder, fn)

	if fn.External {
		if err := ctx.bindExternalArgs(fn); err != nil {
			return nil, err
		}
	} else {
		ctx.bindInternalArgs(fn)
	}

	if fn.ReturnType != nil {
		ctx.ReturnBuffer = ctx.AllocateBuffer(fn.ReturnType.MemoryBytesRequired(), "return-value")
	}
	ctx.ReturnLabel = builder.CreateBlock("return")

	release := ctx.BlockScope()
	if err := ctx.lowerBlock(fn.Body); err != nil {
		release()
		return nil, err
	}
	release()

	ctx.jumpToJoinIfOpen(builder.CurrentBlock(), ctx.ReturnLabel)

	builder.AppendBlock(ctx.ReturnLabel)
	builder.SetBlock(ctx.ReturnLabel)
	ctx.emitEpilogue(fn)

	return venomFn, nil
}

// bindExternalArgs decodes fn's declared parameters out of the calldata
// buffer at the conventional offset and registers each as a
// local variable.
func (c *Context) bindExternalArgs(fn *ast.FunctionDef) error {
	if len(fn.Args) == 0 {
		return nil
	}
	// Calldata layout: 4-byte selector, then the head region for fn's
	// argument types.
	offset := 4
	for _, arg := range fn.Args {
		argPtr := venom.Operand(venom.LitFromUint64(uint64(offset)))
		if arg.Type.IsPrimWord() {
			word := c.Builder.CallDataLoad(argPtr)
			reg := c.Builder.NewVariable()
			c.Builder.AssignTo(word, reg)
			c.DeclareRegister(arg.Name, reg, arg.Type, true)
		} else {
			dst := c.AllocateBuffer(arg.Type.MemoryBytesRequired(), "arg-"+arg.Name)
			c.Builder.CallDataCopy(dst.Operand, argPtr, venom.LitFromUint64(uint64(arg.Type.MemoryBytesRequired())))
			c.DeclareVariable(arg.Name, dst.Operand, arg.Type, true)
		}
		offset += 32
	}
	return nil
}

// bindInternalArgs declares one `param` formal per argument: primitives bind directly to the param SSA value, complex types
// arrive through a calloca region the caller populated.
func (c *Context) bindInternalArgs(fn *ast.FunctionDef) {
	for _, arg := range fn.Args {
		if arg.Type.IsPrimWord() {
			reg := c.Builder.Param()
			c.DeclareRegister(arg.Name, reg, arg.Type, true)
			continue
		}
		ptr := c.Builder.Param()
		c.DeclareVariable(arg.Name, ptr, arg.Type, true)
	}
}

// emitEpilogue terminates the function at ReturnLabel: `return(size,
// offset)` for an external function, `ret(values...)` for an internal one.
func (c *Context) emitEpilogue(fn *ast.FunctionDef) {
	if fn.External {
		if c.ReturnBuffer == nil {
			c.Builder.Stop()
			return
		}
		c.Builder.Return(c.ReturnBuffer.Operand, venom.LitFromUint64(uint64(fn.ReturnType.MemoryBytesRequired())))
		return
	}
	if c.ReturnBuffer == nil {
		c.Builder.Ret()
		return
	}
	if fn.ReturnType.IsPrimWord() {
		c.Builder.Ret(c.Builder.MLoad(c.ReturnBuffer.Operand))
		return
	}
	c.Builder.Ret(c.ReturnBuffer.Operand)
}
