package venom

import (
	"strings"

	"github.com/vyperlang/venom-core/pkg/compileerr"
)

// Function owns an entry BasicBlock, any additional blocks, a
// fresh-variable counter, and a source-position stack used for
// diagnostics. Each Function's variable ids are independent
// of every other function's — ids may repeat across functions by design.
type Function struct {
	Label  string
	Entry  *BasicBlock
	Blocks []*BasicBlock // includes Entry at index 0

	nextVarID int
	ctx       *Context

	// sourceStack backs Builder.SourceContext: a stack of AST source
	// positions, topmost active when instructions are currently being
	// emitted.
	sourceStack []compileerr.SourcePos

	// IsInternal distinguishes functions called via invoke/ret from
	// external entry points that terminate with `return`/`revert`.
	IsInternal bool
	// Params are the formal parameters of an internal function,
	// declared via `param` pseudo-instructions in the entry block.
	Params []Variable
}

// NewVariable mints a fresh, never-reused SSA variable id for this
// function.
func (f *Function) NewVariable() Variable {
	v := Variable{ID: f.nextVarID}
	f.nextVarID++
	return v
}

// NewBlock creates a detached block labeled "<fn.Label>.<suffix>" (or a
// numbered label if suffix is empty) without appending it to the
// function — see Builder.CreateBlock for the caller-facing entry point.
func (f *Function) NewBlock(suffix string) *BasicBlock {
	label := f.ctx.freshBlockLabel(f.Label, suffix)
	return &BasicBlock{Label: label, fn: f}
}

// AppendBlock inserts bb into this function's block list. It does not
// move any cursor; Builder.AppendBlock does both.
func (f *Function) AppendBlock(bb *BasicBlock) {
	f.Blocks = append(f.Blocks, bb)
}

// pushSource pushes pos as the active source position and returns the
// previous stack snapshot, restorable via popSource — see
// Builder.SourceContext for the scoped-acquisition wrapper.
func (f *Function) pushSource(pos compileerr.SourcePos) {
	f.sourceStack = append(f.sourceStack, pos)
}

func (f *Function) popSource() {
	f.sourceStack = f.sourceStack[:len(f.sourceStack)-1]
}

// currentSource returns the top of the source stack, or nil if empty.
func (f *Function) currentSource() *compileerr.SourcePos {
	if len(f.sourceStack) == 0 {
		return nil
	}
	pos := f.sourceStack[len(f.sourceStack)-1]
	return &pos
}

// SourceStackSnapshot copies the current source stack, used by
// compileerr to attach the full lowering-stack trail to an error.
func (f *Function) SourceStackSnapshot() []compileerr.SourcePos {
	return append([]compileerr.SourcePos(nil), f.sourceStack...)
}

// String renders every block in append order.
func (f *Function) String() string {
	var sb strings.Builder
	sb.WriteString("function ")
	sb.WriteString(f.Label)
	sb.WriteString(":\n")
	for _, bb := range f.Blocks {
		sb.WriteString(bb.String())
	}
	return sb.String()
}
