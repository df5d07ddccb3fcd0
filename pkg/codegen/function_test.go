package codegen

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

func newModule() *ModuleContext {
	return &ModuleContext{
		Deploy:  venom.NewContext(venom.ContextDeploy),
		Runtime: venom.NewContext(venom.ContextRuntime),
	}
}

// assertEverySSAVarAssignedOnce checks the SSA invariant: every
// Variable is the Output of exactly one instruction across the
// function. The explicit mutable-assignment form (`assign`) is exempt —
// it deliberately re-targets one variable from multiple predecessors
// and is lifted to φ-form by a later pass.
func assertEverySSAVarAssignedOnce(t *testing.T, fn *venom.Function) {
	t.Helper()
	seen := map[int]bool{}
	assigned := map[int]bool{}
	for _, bb := range fn.Blocks {
		for _, ins := range bb.Instructions {
			if ins.Output == nil {
				continue
			}
			if ins.Opcode == venom.OpAssign {
				assigned[ins.Output.ID] = true
				continue
			}
			id := ins.Output.ID
			if seen[id] {
				t.Fatalf("variable %%%d assigned more than once", id)
			}
			seen[id] = true
		}
	}
	for id := range assigned {
		if seen[id] {
			t.Fatalf("variable %%%d is both an SSA definition and an assign target", id)
		}
	}
}

// assertEveryReachableBlockTerminatedExactlyOnce checks the block
// termination invariant.
func assertEveryReachableBlockTerminatedExactlyOnce(t *testing.T, fn *venom.Function) {
	t.Helper()
	for _, bb := range fn.Blocks {
		if len(bb.Instructions) == 0 {
			t.Fatalf("block %s has no instructions (every appended block must be emitted into)", bb.Label)
		}
		last := bb.Instructions[len(bb.Instructions)-1]
		if !last.Opcode.IsTerminator() {
			t.Fatalf("block %s does not end in a terminator (last opcode %s)", bb.Label, last.Opcode)
		}
		for _, ins := range bb.Instructions[:len(bb.Instructions)-1] {
			if ins.Opcode.IsTerminator() {
				t.Fatalf("block %s has a non-tail terminator %s", bb.Label, ins.Opcode)
			}
		}
	}
}

// TestLowerFunctionSafeAddEmitsOverflowClamp: uint8 addition must
// assert the sum does not wrap before returning.
func TestLowerFunctionSafeAddEmitsOverflowClamp(t *testing.T) {
	u8 := vytype.IntegerT{Bits: 8, Signed: false}
	x := &ast.Name{Ident: "x", Type: u8}
	y := &ast.Name{Ident: "y", Type: u8}
	fnDef := &ast.FunctionDef{
		Name:       "safe_add",
		Args:       []ast.FunctionArg{{Name: "x", Type: u8}, {Name: "y", Type: u8}},
		ReturnType: u8,
		External:   true,
		Body: []ast.Stmt{
			&ast.Return{Value: &ast.BinOp{Op: ast.BinAdd, Left: x, Right: y, Type: u8}},
		},
	}

	fn, err := LowerFunction(newModule(), fnDef)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	assertEveryReachableBlockTerminatedExactlyOnce(t, fn)
	assertEverySSAVarAssignedOnce(t, fn)

	var sawAdd, sawClampBranch bool
	for _, bb := range fn.Blocks {
		for _, ins := range bb.Instructions {
			if ins.Opcode == venom.OpAdd {
				sawAdd = true
			}
			if ins.Opcode == venom.OpJnz {
				sawClampBranch = true
			}
		}
	}
	if !sawAdd {
		t.Fatal("expected an add instruction")
	}
	if !sawClampBranch {
		t.Fatal("expected a conditional branch guarding the overflow clamp")
	}

	var sawRevert bool
	for _, bb := range fn.Blocks {
		for _, ins := range bb.Instructions {
			if ins.Opcode == venom.OpRevert {
				sawRevert = true
			}
		}
	}
	if !sawRevert {
		t.Fatal("expected the clamp's failure path to revert")
	}
}

// TestLowerFunctionUnsafeAddSkipsClamp exercises the unsafe_add path:
// unsafe-math built-ins never emit an overflow assertion.
func TestLowerFunctionUnsafeAddSkipsClamp(t *testing.T) {
	u8 := vytype.IntegerT{Bits: 8, Signed: false}
	x := &ast.Name{Ident: "x", Type: u8}
	y := &ast.Name{Ident: "y", Type: u8}
	fnDef := &ast.FunctionDef{
		Name:       "unsafe_add_fn",
		Args:       []ast.FunctionArg{{Name: "x", Type: u8}, {Name: "y", Type: u8}},
		ReturnType: u8,
		External:   true,
		Body: []ast.Stmt{
			&ast.Return{Value: &ast.BinOp{Op: ast.BinAdd, Left: x, Right: y, Unsafe: true, Type: u8}},
		},
	}

	fn, err := LowerFunction(newModule(), fnDef)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	for _, bb := range fn.Blocks {
		for _, ins := range bb.Instructions {
			if ins.Opcode == venom.OpRevert {
				t.Fatal("unsafe_add must not emit an overflow clamp")
			}
		}
	}
}

// TestLowerFunctionForRangeBreak exercises the for-range block
// structure plus break routing to the loop's exit block.
func TestLowerFunctionForRangeBreak(t *testing.T) {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	total := &ast.Name{Ident: "total", Type: u256}
	i := &ast.Name{Ident: "i", Type: u256}
	five := &ast.IntLiteral{Value: uint256.NewInt(5), Type: u256}

	loop := &ast.ForRange{
		Var:  "i",
		Form: ast.RangeN,
		Stop: &ast.IntLiteral{Value: uint256.NewInt(10), Type: u256},
		Body: []ast.Stmt{
			&ast.If{
				Test: &ast.Compare{Op: ast.CmpGt, Left: i, Right: five, Type: vytype.BoolT{}},
				Body: []ast.Stmt{&ast.Break{}},
			},
			&ast.AugAssign{Op: ast.BinAdd, Target: total, Value: i},
		},
	}
	fnDef := &ast.FunctionDef{
		Name:       "for_range_break",
		ReturnType: u256,
		External:   true,
		Body: []ast.Stmt{
			&ast.AnnAssign{Name: "total", Type: u256, Value: &ast.IntLiteral{Value: uint256.NewInt(0), Type: u256}},
			loop,
			&ast.Return{Value: &ast.Name{Ident: "total", Type: u256}},
		},
	}

	fn, err := LowerFunction(newModule(), fnDef)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	assertEveryReachableBlockTerminatedExactlyOnce(t, fn)
	assertEverySSAVarAssignedOnce(t, fn)

	var sawHead, sawBody, sawInc, sawExit bool
	for _, bb := range fn.Blocks {
		switch bb.Label {
		case "for_range_break.forrange.head":
			sawHead = true
		case "for_range_break.forrange.body":
			sawBody = true
		case "for_range_break.forrange.inc":
			sawInc = true
		case "for_range_break.forrange.exit":
			sawExit = true
		}
	}
	if !sawHead || !sawBody || !sawInc || !sawExit {
		t.Fatalf("expected the four named for-range blocks, got labels: %v", blockLabels(fn))
	}
}

func blockLabels(fn *venom.Function) []string {
	labels := make([]string, len(fn.Blocks))
	for i, bb := range fn.Blocks {
		labels[i] = bb.Label
	}
	return labels
}

// TestLowerFunctionConstancyRejectsStorageWrite: a view function
// attempting to write to storage must surface a StateAccessViolation
// rather than emit an sstore.
func TestLowerFunctionConstancyRejectsStorageWrite(t *testing.T) {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	storageVar := &ast.Name{
		Ident: "total",
		Type:  u256,
		VarInfo: &ast.VarInfo{
			Name:     "total",
			Location: ast.LocStorage,
			Position: 0,
			Type:     u256,
		},
	}
	fnDef := &ast.FunctionDef{
		Name:       "view_fn",
		ReturnType: nil,
		External:   true,
		Mutable:    false, // view
		Body: []ast.Stmt{
			&ast.Assign{Target: storageVar, Value: &ast.IntLiteral{Value: uint256.NewInt(1), Type: u256}},
		},
	}

	_, err := LowerFunction(newModule(), fnDef)
	if !compileerr.Is(err, compileerr.KindStateAccessViolation) {
		t.Fatalf("expected a StateAccessViolation lowering a storage write inside a view function, got %v", err)
	}
}
