package codegen

import (
	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/builtins"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// LowerModule drives a whole compilation unit: every function in mod is
// lowered into its Context (the constructor into deploy, everything else
// into runtime), then the runtime Context gets its selector-dispatch
// entry prepended. The two Contexts returned are what the
// downstream assembler consumes.
func LowerModule(m *ast.Module) (*ModuleContext, error) {
	mod := &ModuleContext{
		Deploy:  venom.NewContext(venom.ContextDeploy),
		Runtime: venom.NewContext(venom.ContextRuntime),
	}

	// The dispatcher is created first so it leads the runtime Context's
	// function order, but its blocks are filled in only once every
	// external function's entry label exists.
	dispatch := mod.Runtime.NewFunction("selector_dispatch", false)
	var entries []dispatchEntry

	for _, fn := range m.Functions {
		lowered, err := LowerFunction(mod, fn)
		if err != nil {
			return nil, err
		}
		if fn.External && !fn.IsCtor {
			argTypes := make([]vytype.VyperType, len(fn.Args))
			for i, a := range fn.Args {
				argTypes[i] = a.Type
			}
			entries = append(entries, dispatchEntry{
				selector: builtins.Selector(fn.Name, argTypes),
				label:    lowered.Label,
			})
		}
	}

	emitSelectorDispatch(dispatch, entries)
	return mod, nil
}

type dispatchEntry struct {
	selector [4]byte
	label    string
}

// emitSelectorDispatch fills the dispatcher: load the first calldata
// word, shift the 4-byte selector down from its top, then compare
// against each external function's selector in declaration order,
// jumping to the match. No match falls through to a bare revert — the
// fallback-function form is a declaration-level feature the analyzer
// lowers to an ordinary external function before codegen sees it.
func emitSelectorDispatch(fn *venom.Function, entries []dispatchEntry) {
	b := venom.NewBuilder(fn)
	word := b.CallDataLoad(venom.LitFromUint64(0))
	selector := b.Shr(venom.LitFromUint64(224), word)

	for _, e := range entries {
		var sel uint256.Int
		sel.SetBytes(e.selector[:])
		match := b.Eq(selector, venom.LitFromBig(&sel))
		target := b.CreateBlock("match")
		next := b.CreateBlock("next")
		b.Jnz(match, target, next)

		b.AppendBlock(target)
		b.SetBlock(target)
		b.JmpTo(e.label)

		b.AppendBlock(next)
		b.SetBlock(next)
	}
	b.Revert(venom.LitFromUint64(0), venom.LitFromUint64(0))
}
