package codegen

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

func TestSelfLowersToAddress(t *testing.T) {
	c := newTestCtx()
	v, err := c.LowerExpr(&ast.Name{Ident: "self", Type: vytype.AddressT{}})
	if err != nil {
		t.Fatalf("self: %v", err)
	}
	if !v.IsStack {
		t.Fatal("self must be a stack value")
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpAddress] != 1 {
		t.Fatalf("self must lower to address(), got %v", counts)
	}
}

func TestEnvironmentAttributes(t *testing.T) {
	cases := []struct {
		base, attr string
		want       venom.Opcode
	}{
		{"self", "balance", venom.OpSelfBalance},
		{"msg", "sender", venom.OpCaller},
		{"msg", "value", venom.OpCallValue},
		{"block", "timestamp", venom.OpTimestamp},
		{"block", "number", venom.OpNumber},
		{"block", "prevrandao", venom.OpPrevRandao},
		{"tx", "origin", venom.OpOrigin},
		{"tx", "gasprice", venom.OpGasPrice},
		{"chain", "id", venom.OpChainID},
	}
	for _, tc := range cases {
		c := newTestCtx()
		attr := &ast.Attribute{
			Value: &ast.Name{Ident: tc.base},
			Attr:  tc.attr,
			Type:  u256,
		}
		if _, err := c.LowerExpr(attr); err != nil {
			t.Fatalf("%s.%s: %v", tc.base, tc.attr, err)
		}
		counts := countOpcodes(c.Builder.Function())
		if counts[tc.want] != 1 {
			t.Errorf("%s.%s: expected one %s, got %v", tc.base, tc.attr, tc.want, counts)
		}
	}
}

func TestBlockPrevhashIsHashOfParent(t *testing.T) {
	c := newTestCtx()
	attr := &ast.Attribute{
		Value: &ast.Name{Ident: "block"},
		Attr:  "prevhash",
		Type:  vytype.BytesMT{M: 32},
	}
	if _, err := c.LowerExpr(attr); err != nil {
		t.Fatalf("block.prevhash: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpNumber] != 1 || counts[venom.OpSub] != 1 || counts[venom.OpBlockHash] != 1 {
		t.Fatalf("block.prevhash must lower to blockhash(number() - 1), got %v", counts)
	}
}

func TestMappingSubscriptHashesKeyAndSlot(t *testing.T) {
	c := newTestCtx()
	mapT := vytype.HashMapT{Key: vytype.AddressT{}, Value: u256}
	mapping := &ast.Name{
		Ident: "balances",
		Type:  mapT,
		VarInfo: &ast.VarInfo{
			Name:     "balances",
			Location: ast.LocStorage,
			Position: 2,
			Type:     mapT,
		},
	}
	sub := &ast.Subscript{
		Value: mapping,
		Index: &ast.IntLiteral{Value: uint256.NewInt(0xaa), Type: vytype.AddressT{}},
		Type:  u256,
	}
	v, err := c.LowerExpr(sub)
	if err != nil {
		t.Fatalf("mapping subscript: %v", err)
	}
	if !v.IsStack {
		t.Fatal("a uint256 mapping value loads onto the stack")
	}
	fn := c.Builder.Function()
	counts := countOpcodes(fn)
	if counts[venom.OpSha3] != 1 {
		t.Fatalf("the slot must be keccak256(key ++ base_slot), got %v", counts)
	}
	if !hasLiteralOperand(fn, venom.OpSha3, 64) {
		t.Fatal("the hashed region is the 64-byte key ++ slot scratch")
	}
	if counts[venom.OpSLoad] != 1 {
		t.Fatal("the mapped value loads with sload")
	}
}

func TestSubscriptBoundsCheckReverts(t *testing.T) {
	c := newTestCtx()
	arrT := vytype.SArrayT{Elem: u256, N: 3}
	if err := c.LowerStmt(&ast.AnnAssign{Name: "xs", Type: arrT}); err != nil {
		t.Fatal(err)
	}
	sub := &ast.Subscript{
		Value: &ast.Name{Ident: "xs", Type: arrT},
		Index: &ast.IntLiteral{Value: uint256.NewInt(1), Type: u256},
		Type:  u256,
	}
	if _, err := c.LowerExpr(sub); err != nil {
		t.Fatalf("subscript: %v", err)
	}
	fn := c.Builder.Function()
	counts := countOpcodes(fn)
	if counts[venom.OpLt] == 0 || counts[venom.OpRevert] == 0 {
		t.Fatal("indexing must bounds-check against the declared length and revert")
	}
	if !hasLiteralOperand(fn, venom.OpLt, 3) {
		t.Fatal("the static array's declared length bounds the index")
	}
}

func TestShortCircuitBoolOpBranches(t *testing.T) {
	c := newTestCtx()
	boolT := vytype.BoolT{}
	op := &ast.BoolOp{
		Op: ast.BoolAnd,
		Values: []ast.Expr{
			&ast.IntLiteral{Value: uint256.NewInt(1), Type: boolT},
			&ast.IntLiteral{Value: uint256.NewInt(0), Type: boolT},
		},
		Type: boolT,
	}
	if _, err := c.LowerExpr(op); err != nil {
		t.Fatalf("boolop: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpJnz] == 0 {
		t.Fatal("`and` must short-circuit with a conditional branch")
	}
}
