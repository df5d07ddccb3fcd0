package codegen

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/compileerr"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

var u256 = vytype.IntegerT{Bits: 256, Signed: false}

// newTestCtx builds a Context positioned inside a fresh mutable external
// function, ready for expression-level lowering tests.
func newTestCtx() *Context {
	mod := newModule()
	fn := mod.Runtime.NewFunction("t", false)
	b := venom.NewBuilder(fn)
	def := &ast.FunctionDef{Name: "t", External: true, Mutable: true}
	return NewFunctionContext(mod, b, def)
}

func builtinCall(name string, args ...ast.Expr) *ast.Call {
	return &ast.Call{
		FuncName: name,
		FuncType: &ast.FuncType{Kind: ast.FuncBuiltin, Name: name},
		Args:     args,
	}
}

func countOpcodes(fn *venom.Function) map[venom.Opcode]int {
	counts := map[venom.Opcode]int{}
	for _, bb := range fn.Blocks {
		for _, ins := range bb.Instructions {
			counts[ins.Opcode]++
		}
	}
	return counts
}

func hasLiteralOperand(fn *venom.Function, op venom.Opcode, want uint64) bool {
	for _, bb := range fn.Blocks {
		for _, ins := range bb.Instructions {
			if ins.Opcode != op {
				continue
			}
			for _, operand := range ins.Operands {
				if lit, ok := operand.(venom.Literal); ok && lit.Value.IsUint64() && lit.Value.Uint64() == want {
					return true
				}
			}
		}
	}
	return false
}

func storageDArray(maxLen int) *ast.Name {
	arrT := vytype.DArrayT{Elem: u256, MaxLen: maxLen}
	return &ast.Name{
		Ident: "arr",
		Type:  arrT,
		VarInfo: &ast.VarInfo{
			Name:     "arr",
			Location: ast.LocStorage,
			Position: 3,
			Type:     arrT,
		},
	}
}

// TestDynArrayAppendEmitsBoundsCheckAndLengthBump covers the storage
// half of the append/pop scenario: read the length slot, branch on the
// MaxLen bound, store the element, write the bumped length.
func TestDynArrayAppendEmitsBoundsCheckAndLengthBump(t *testing.T) {
	c := newTestCtx()
	arr := storageDArray(5)
	call := builtinCall("append", &ast.IntLiteral{Value: uint256.NewInt(7), Type: u256})
	call.Func = &ast.Attribute{Value: arr, Attr: "append"}

	if err := c.LowerStmt(&ast.ExprStmt{Value: call}); err != nil {
		t.Fatalf("append: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpSLoad] == 0 {
		t.Fatal("append on a storage array must read the length slot")
	}
	if counts[venom.OpJnz] == 0 || counts[venom.OpRevert] == 0 {
		t.Fatal("append must bounds-check the length against MaxLen")
	}
	if counts[venom.OpSStore] < 2 {
		t.Fatalf("append must store the element and the new length, got %d sstores", counts[venom.OpSStore])
	}
}

func TestDynArrayPopReturnsElementAndShrinks(t *testing.T) {
	c := newTestCtx()
	arr := storageDArray(5)
	call := builtinCall("pop")
	call.Func = &ast.Attribute{Value: arr, Attr: "pop"}
	call.Type = u256

	v, err := c.LowerExpr(call)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if !v.IsStack {
		t.Fatal("popping a uint256 element must yield a stack value")
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpSub] == 0 {
		t.Fatal("pop must decrement the length")
	}
	if counts[venom.OpSStore] == 0 {
		t.Fatal("pop must write the shrunk length back")
	}
}

func TestDynArrayMutationRejectedInViewFunction(t *testing.T) {
	mod := newModule()
	fn := mod.Runtime.NewFunction("v", false)
	b := venom.NewBuilder(fn)
	c := NewFunctionContext(mod, b, &ast.FunctionDef{Name: "v", External: true, Mutable: false})

	arr := storageDArray(5)
	call := builtinCall("append", &ast.IntLiteral{Value: uint256.NewInt(1), Type: u256})
	call.Func = &ast.Attribute{Value: arr, Attr: "append"}

	err := c.LowerStmt(&ast.ExprStmt{Value: call})
	if !compileerr.Is(err, compileerr.KindStateAccessViolation) {
		t.Fatalf("expected StateAccessViolation, got %v", err)
	}
}

func TestShiftEmitsBothDirections(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("shift",
		&ast.IntLiteral{Value: uint256.NewInt(2), Type: u256},
		&ast.IntLiteral{Value: uint256.NewInt(3), Type: vytype.IntegerT{Bits: 128, Signed: true}},
	)
	call.Type = u256
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("shift: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpShl] == 0 || counts[venom.OpShr] == 0 {
		t.Fatal("shift must emit both shl and shr, selected by the sign of the shift amount")
	}
	if counts[venom.OpSar] != 0 {
		t.Fatal("shift is always a logical shift, never sar")
	}
}

func TestSliceMsgDataUsesCallDataCopy(t *testing.T) {
	c := newTestCtx()
	msgData := &ast.Attribute{Value: &ast.Name{Ident: "msg"}, Attr: "data"}
	call := builtinCall("slice",
		msgData,
		&ast.IntLiteral{Value: uint256.NewInt(0), Type: u256},
		&ast.IntLiteral{Value: uint256.NewInt(4), Type: u256},
	)
	call.Type = vytype.BytesT{MaxLen: 4}
	v, err := c.LowerExpr(call)
	if err != nil {
		t.Fatalf("slice(msg.data): %v", err)
	}
	if v.IsStack {
		t.Fatal("slice must return a located Bytes value")
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpCallDataCopy] == 0 {
		t.Fatal("slice over msg.data must use calldatacopy")
	}
	if counts[venom.OpCallDataSize] == 0 {
		t.Fatal("slice over msg.data must bound against calldatasize")
	}
}

func TestSliceSelfCodeUsesCodeCopy(t *testing.T) {
	c := newTestCtx()
	selfCode := &ast.Attribute{Value: &ast.Name{Ident: "self"}, Attr: "code"}
	call := builtinCall("slice",
		selfCode,
		&ast.IntLiteral{Value: uint256.NewInt(0), Type: u256},
		&ast.IntLiteral{Value: uint256.NewInt(32), Type: u256},
	)
	call.Type = vytype.BytesT{MaxLen: 32}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("slice(self.code): %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpCodeCopy] == 0 || counts[venom.OpCodeSize] == 0 {
		t.Fatal("slice over self.code must use codecopy bounded by codesize")
	}
}

func TestLenMsgDataIsCallDataSize(t *testing.T) {
	c := newTestCtx()
	msgData := &ast.Attribute{Value: &ast.Name{Ident: "msg"}, Attr: "data"}
	call := builtinCall("len", msgData)
	call.Type = u256
	v, err := c.LowerExpr(call)
	if err != nil {
		t.Fatalf("len(msg.data): %v", err)
	}
	if !v.IsStack {
		t.Fatal("len must be a stack value")
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpCallDataSize] != 1 {
		t.Fatalf("len(msg.data) must lower to exactly one calldatasize, got %d", counts[venom.OpCallDataSize])
	}
}

func TestConvertNarrowingEmitsClamp(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("convert", &ast.IntLiteral{Value: uint256.NewInt(300), Type: u256})
	call.Type = vytype.IntegerT{Bits: 8, Signed: false}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("convert: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpJnz] == 0 || counts[venom.OpRevert] == 0 {
		t.Fatal("narrowing convert must emit a bounds clamp")
	}
}

func TestConvertBytesMDowncastChecksLowBits(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("convert", &ast.IntLiteral{Value: uint256.NewInt(1), Type: vytype.BytesMT{M: 32}})
	call.Type = vytype.BytesMT{M: 4}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("convert: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpShl] == 0 {
		t.Fatal("bytes32 -> bytes4 downcast must test the shifted-out low bits")
	}
	if counts[venom.OpRevert] == 0 {
		t.Fatal("nonzero low bits must revert")
	}
}

func TestConvertDecimalToIntTruncatesAndClamps(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("convert", &ast.IntLiteral{Value: uint256.NewInt(25_000_000_000), Type: vytype.DecimalT{}})
	call.Type = vytype.IntegerT{Bits: 8, Signed: true}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("convert: %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpSDiv] == 0 {
		t.Fatal("decimal -> integer must divide by the 10^10 divisor")
	}
	if counts[venom.OpRevert] == 0 {
		t.Fatal("the truncated value must clamp to the target type's bounds")
	}
}

func TestCreateMinimalProxyEmits54ByteCreate(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("create_minimal_proxy_to", &ast.IntLiteral{Value: uint256.NewInt(0x1111), Type: vytype.AddressT{}})
	call.Type = vytype.AddressT{}
	v, err := c.LowerExpr(call)
	if err != nil {
		t.Fatalf("create_minimal_proxy_to: %v", err)
	}
	if !v.IsStack {
		t.Fatal("creation must return the new address as a stack value")
	}
	fn := c.Builder.Function()
	counts := countOpcodes(fn)
	if counts[venom.OpCreate] != 1 {
		t.Fatalf("expected exactly one create, got %d", counts[venom.OpCreate])
	}
	if !hasLiteralOperand(fn, venom.OpCreate, 54) {
		t.Fatal("the EIP-1167 initcode passed to create must be 54 bytes")
	}
	// The address is left-aligned into its splice position with shl(96).
	if !hasLiteralOperand(fn, venom.OpShl, 96) {
		t.Fatal("the target address must be left-aligned with a 96-bit shift")
	}
}

func TestCreateWithSaltUsesCreate2(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("create_minimal_proxy_to", &ast.IntLiteral{Value: uint256.NewInt(0x2222), Type: vytype.AddressT{}})
	call.Type = vytype.AddressT{}
	call.Keywords = map[string]ast.Expr{
		"salt": &ast.IntLiteral{Value: uint256.NewInt(42), Type: vytype.BytesMT{M: 32}},
	}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("create_minimal_proxy_to(salt=): %v", err)
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpCreate2] != 1 || counts[venom.OpCreate] != 0 {
		t.Fatal("a salt keyword must select create2 over create")
	}
}

func TestRawRevertTerminatesBlock(t *testing.T) {
	c := newTestCtx()
	data := &ast.BytesLiteral{Value: []byte{0xde, 0xad}, Type: vytype.BytesT{MaxLen: 2}}
	call := builtinCall("raw_revert", data)
	if err := c.LowerStmt(&ast.ExprStmt{Value: call}); err != nil {
		t.Fatalf("raw_revert: %v", err)
	}
	if !c.Builder.CurrentBlock().Terminated() {
		t.Fatal("raw_revert must terminate the current block")
	}
}

// TestAbiEncodeUint256ProducesSingleHeadWord: abi_encode(x) for a
// uint256 writes one 32-byte head word and
// records an encoded length of exactly 32.
func TestAbiEncodeUint256ProducesSingleHeadWord(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("abi_encode", &ast.IntLiteral{Value: uint256.NewInt(42), Type: u256})
	call.Type = vytype.BytesT{MaxLen: 32}
	v, err := c.LowerExpr(call)
	if err != nil {
		t.Fatalf("abi_encode: %v", err)
	}
	if v.IsStack {
		t.Fatal("abi_encode returns a located Bytes value")
	}
	fn := c.Builder.Function()
	if !hasLiteralOperand(fn, venom.OpMStore, 32) {
		t.Fatal("the encoded blob's length word must be the literal 32")
	}
}

func TestAbiDecodeValidatesBufferLength(t *testing.T) {
	c := newTestCtx()
	data := &ast.BytesLiteral{Value: make([]byte, 32), Type: vytype.BytesT{MaxLen: 32}}
	call := builtinCall("abi_decode", data)
	call.Type = u256
	v, err := c.LowerExpr(call)
	if err != nil {
		t.Fatalf("abi_decode: %v", err)
	}
	if !v.IsStack {
		t.Fatal("decoding a uint256 yields a stack value")
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpJnz] == 0 || counts[venom.OpRevert] == 0 {
		t.Fatal("abi_decode must validate the buffer length before reading")
	}
}

func TestAbiDecodeBytesChecksMaxLen(t *testing.T) {
	c := newTestCtx()
	data := &ast.BytesLiteral{Value: make([]byte, 96), Type: vytype.BytesT{MaxLen: 96}}
	call := builtinCall("abi_decode", data)
	call.Type = vytype.BytesT{MaxLen: 10}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("abi_decode: %v", err)
	}
	// The inner length word must be compared against the declared MaxLen
	// of 10 somewhere in the guard chain.
	if !hasLiteralOperand(c.Builder.Function(), venom.OpGt, 10) {
		t.Fatal("abi_decode of Bytes[10] must clamp the decoded length against 10")
	}
}

func TestUint2StrPeelsDigits(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("uint2str", &ast.IntLiteral{Value: uint256.NewInt(123), Type: u256})
	call.Type = vytype.StringT{MaxLen: 78}
	v, err := c.LowerExpr(call)
	if err != nil {
		t.Fatalf("uint2str: %v", err)
	}
	if v.IsStack {
		t.Fatal("uint2str returns a located String value")
	}
	counts := countOpcodes(c.Builder.Function())
	if counts[venom.OpMod] == 0 || counts[venom.OpDiv] == 0 {
		t.Fatal("uint2str must peel digits with mod/div by 10")
	}
	if counts[venom.OpMStore8] == 0 {
		t.Fatal("uint2str writes digit characters byte-wise")
	}
}

func TestKeccakOfStackValueHashesScratchWord(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("keccak256", &ast.IntLiteral{Value: uint256.NewInt(7), Type: u256})
	call.Type = vytype.BytesMT{M: 32}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("keccak256: %v", err)
	}
	fn := c.Builder.Function()
	counts := countOpcodes(fn)
	if counts[venom.OpSha3] != 1 {
		t.Fatalf("expected one sha3, got %d", counts[venom.OpSha3])
	}
	if !hasLiteralOperand(fn, venom.OpSha3, 32) {
		t.Fatal("hashing a single word must cover exactly 32 bytes")
	}
}

func TestSha256UsesPrecompileStaticCall(t *testing.T) {
	c := newTestCtx()
	call := builtinCall("sha256", &ast.IntLiteral{Value: uint256.NewInt(7), Type: u256})
	call.Type = vytype.BytesMT{M: 32}
	if _, err := c.LowerExpr(call); err != nil {
		t.Fatalf("sha256: %v", err)
	}
	fn := c.Builder.Function()
	counts := countOpcodes(fn)
	if counts[venom.OpStaticCall] != 1 {
		t.Fatalf("sha256 must staticcall the precompile, got %d staticcalls", counts[venom.OpStaticCall])
	}
	if !hasLiteralOperand(fn, venom.OpStaticCall, 2) {
		t.Fatal("the sha256 precompile lives at address 0x2")
	}
}
