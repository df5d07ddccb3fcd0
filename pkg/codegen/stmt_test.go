package codegen

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

func boolLit(v bool) *ast.IntLiteral {
	n := uint256.NewInt(0)
	if v {
		n = uint256.NewInt(1)
	}
	return &ast.IntLiteral{Value: n, Type: vytype.BoolT{}}
}

func TestIfElseProducesJoinBlock(t *testing.T) {
	c := newTestCtx()
	stmt := &ast.If{
		Test:   boolLit(true),
		Body:   []ast.Stmt{&ast.ExprStmt{Value: &ast.IntLiteral{Value: uint256.NewInt(1), Type: u256}}},
		OrElse: []ast.Stmt{&ast.ExprStmt{Value: &ast.IntLiteral{Value: uint256.NewInt(2), Type: u256}}},
	}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("if: %v", err)
	}
	var sawThen, sawElse, sawJoin bool
	for _, bb := range c.Builder.Function().Blocks {
		switch {
		case strings.Contains(bb.Label, "if.then"):
			sawThen = true
		case strings.Contains(bb.Label, "if.else"):
			sawElse = true
		case strings.Contains(bb.Label, "if.join"):
			sawJoin = true
		}
	}
	if !sawThen || !sawElse || !sawJoin {
		t.Fatal("if/else must produce then, else, and join blocks")
	}
	if !strings.Contains(c.Builder.CurrentBlock().Label, "if.join") {
		t.Fatal("the cursor must land on the join block")
	}
}

func TestIfWithBothBranchesTerminatedSkipsJoin(t *testing.T) {
	c := newTestCtx()
	stmt := &ast.If{
		Test:   boolLit(true),
		Body:   []ast.Stmt{&ast.Raise{}},
		OrElse: []ast.Stmt{&ast.Raise{}},
	}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("if: %v", err)
	}
	for _, bb := range c.Builder.Function().Blocks {
		if strings.Contains(bb.Label, "if.join") {
			t.Fatal("no join block should exist when both branches terminate")
		}
	}
}

func TestWhileLoopThreeBlockShape(t *testing.T) {
	c := newTestCtx()
	stmt := &ast.While{
		Test: boolLit(true),
		Body: []ast.Stmt{&ast.ExprStmt{Value: &ast.IntLiteral{Value: uint256.NewInt(1), Type: u256}}},
	}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("while: %v", err)
	}
	var sawHead, sawBody, sawExit bool
	for _, bb := range c.Builder.Function().Blocks {
		switch {
		case strings.Contains(bb.Label, "while.head"):
			sawHead = true
		case strings.Contains(bb.Label, "while.body"):
			sawBody = true
		case strings.Contains(bb.Label, "while.exit"):
			sawExit = true
		}
	}
	if !sawHead || !sawBody || !sawExit {
		t.Fatal("while must produce head, body, and exit blocks")
	}
}

func TestBreakOutsideLoopRejected(t *testing.T) {
	c := newTestCtx()
	err := c.LowerStmt(&ast.Break{})
	if !compileerr.Is(err, compileerr.KindTypeCheckFailure) {
		t.Fatalf("expected TypeCheckFailure for break outside a loop, got %v", err)
	}
}

// TestAssertWithReasonWrapsErrorString checks the Error(string) ABI
// envelope: selector 0x08c379a0 followed by offset, length, and data.
func TestAssertWithReasonWrapsErrorString(t *testing.T) {
	c := newTestCtx()
	reason := &ast.BytesLiteral{Value: []byte("nope"), IsStr: true, Type: vytype.StringT{MaxLen: 4}}
	stmt := &ast.Assert{Test: boolLit(false), Reason: reason}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("assert: %v", err)
	}
	fn := c.Builder.Function()
	counts := countOpcodes(fn)
	if counts[venom.OpRevert] == 0 {
		t.Fatal("assert's failure block must revert")
	}
	wantSelector := uint256.NewInt(0x08c379a0)
	var sawSelector bool
	for _, bb := range fn.Blocks {
		for _, ins := range bb.Instructions {
			for _, op := range ins.Operands {
				if lit, ok := op.(venom.Literal); ok && lit.Value.Eq(wantSelector) {
					sawSelector = true
				}
			}
		}
	}
	if !sawSelector {
		t.Fatal("the revert payload must lead with the Error(string) selector")
	}
}

func TestAssertUnreachableEmitsInvalid(t *testing.T) {
	c := newTestCtx()
	stmt := &ast.Assert{Test: boolLit(false), Kind: ast.AssertUnreachable}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("assert UNREACHABLE: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpInvalid] != 1 {
		t.Fatalf("assert UNREACHABLE must lower to the invalid opcode, got %d", counts[venom.OpInvalid])
	}
	if counts[venom.OpRevert] != 0 {
		t.Fatal("assert UNREACHABLE must not emit revert")
	}
}

func TestTernaryPrimitiveIsBranchless(t *testing.T) {
	c := newTestCtx()
	tern := &ast.Ternary{
		Test:   boolLit(true),
		Body:   &ast.IntLiteral{Value: uint256.NewInt(10), Type: u256},
		OrElse: &ast.IntLiteral{Value: uint256.NewInt(20), Type: u256},
		Type:   u256,
	}
	v, err := c.LowerExpr(tern)
	if err != nil {
		t.Fatalf("ternary: %v", err)
	}
	if !v.IsStack {
		t.Fatal("a primitive ternary result stays on the stack")
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpJnz] != 0 {
		t.Fatal("a primitive ternary must use the branchless select, not a branch")
	}
	if counts[venom.OpXor] < 2 || counts[venom.OpMul] < 1 {
		t.Fatal("select lowers to xor(b, mul(cond, xor(a,b)))")
	}
}

func TestAssignToForLoopVariableRejected(t *testing.T) {
	c := newTestCtx()
	loop := &ast.ForRange{
		Var:  "i",
		Form: ast.RangeN,
		Stop: &ast.IntLiteral{Value: uint256.NewInt(3), Type: u256},
		Body: []ast.Stmt{
			&ast.Assign{
				Target: &ast.Name{Ident: "i", Type: u256},
				Value:  &ast.IntLiteral{Value: uint256.NewInt(0), Type: u256},
			},
		},
	}
	err := c.LowerStmt(loop)
	if !compileerr.Is(err, compileerr.KindTypeCheckFailure) {
		t.Fatalf("expected TypeCheckFailure assigning to a loop variable, got %v", err)
	}
}

func TestAugAssignStorageReadsModifiesWrites(t *testing.T) {
	c := newTestCtx()
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
	stmt := &ast.AugAssign{
		Target: storageVar,
		Op:     ast.BinAdd,
		Value:  &ast.IntLiteral{Value: uint256.NewInt(1), Type: u256},
	}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("augassign: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpSLoad] == 0 {
		t.Fatal("x += 1 on a storage variable must load it first")
	}
	if counts[venom.OpSStore] == 0 {
		t.Fatal("x += 1 on a storage variable must store the result back")
	}
	if counts[venom.OpAdd] == 0 {
		t.Fatal("the addition itself must be emitted")
	}
}

func TestImmutableWriteOutsideConstructorRejected(t *testing.T) {
	c := newTestCtx() // not a ctor context
	imm := &ast.Name{
		Ident: "owner",
		Type:  vytype.AddressT{},
		VarInfo: &ast.VarInfo{
			Name:        "owner",
			IsImmutable: true,
			Location:    ast.LocCode,
			Type:        vytype.AddressT{},
		},
	}
	stmt := &ast.Assign{Target: imm, Value: &ast.IntLiteral{Value: uint256.NewInt(1), Type: vytype.AddressT{}}}
	err := c.LowerStmt(stmt)
	if !compileerr.Is(err, compileerr.KindStateAccessViolation) {
		t.Fatalf("expected StateAccessViolation writing an immutable outside __init__, got %v", err)
	}
}

func TestLogEmitsTopic0AndIndexedTopics(t *testing.T) {
	c := newTestCtx()
	stmt := &ast.Log{
		EventName: "Transfer",
		EventSig:  "Transfer(address,address,uint256)",
		Args: []ast.LogArg{
			{Value: &ast.IntLiteral{Value: uint256.NewInt(0xaa), Type: vytype.AddressT{}}, Indexed: true},
			{Value: &ast.IntLiteral{Value: uint256.NewInt(0xbb), Type: vytype.AddressT{}}, Indexed: true},
			{Value: &ast.IntLiteral{Value: uint256.NewInt(100), Type: u256}},
		},
	}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("log: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpLog3] != 1 {
		t.Fatalf("two indexed args plus the signature topic must emit log3, got %v", counts)
	}
}

func TestLogRejectedInViewFunction(t *testing.T) {
	mod := newModule()
	fn := mod.Runtime.NewFunction("v", false)
	b := venom.NewBuilder(fn)
	c := NewFunctionContext(mod, b, &ast.FunctionDef{Name: "v", External: true, Mutable: false})

	stmt := &ast.Log{EventName: "Ping", EventSig: "Ping()"}
	err := c.LowerStmt(stmt)
	if !compileerr.Is(err, compileerr.KindStateAccessViolation) {
		t.Fatalf("expected StateAccessViolation logging from a view function, got %v", err)
	}
}

func TestTupleAssignDistributesFields(t *testing.T) {
	c := newTestCtx()
	tupT := vytype.TupleT{Elems: []vytype.VyperType{u256, u256}}

	// Declare the targets first, then unpack a tuple-typed local into them.
	if err := c.LowerStmt(&ast.AnnAssign{Name: "a", Type: u256}); err != nil {
		t.Fatal(err)
	}
	if err := c.LowerStmt(&ast.AnnAssign{Name: "b", Type: u256}); err != nil {
		t.Fatal(err)
	}
	if err := c.LowerStmt(&ast.AnnAssign{Name: "pair", Type: tupT}); err != nil {
		t.Fatal(err)
	}
	stmt := &ast.TupleAssign{
		Targets: []ast.Expr{
			&ast.Name{Ident: "a", Type: u256},
			&ast.Name{Ident: "b", Type: u256},
		},
		Value: &ast.Name{Ident: "pair", Type: tupT},
	}
	if err := c.LowerStmt(stmt); err != nil {
		t.Fatalf("tuple assign: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpMLoad] < 2 {
		t.Fatalf("unpacking two primitive fields must load both, got %d mloads", counts[venom.OpMLoad])
	}
}
