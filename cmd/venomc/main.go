// Command venomc is a demonstration driver for the venom-core lowering
// pipeline. It has no parser of its own (source-text parsing is out of
// scope for this core): instead it hand-constructs one annotated AST
// per built-in demo, the way the semantic analyzer would hand one to
// codegen, runs it through pkg/codegen, and prints the resulting Venom
// IR in a disassembly-like text form.
//
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/ast"
	"github.com/vyperlang/venom-core/pkg/codegen"
	"github.com/vyperlang/venom-core/pkg/venom"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		fmt.Printf("venomc version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	case "demo":
		fs := flag.NewFlagSet("demo", flag.ExitOnError)
		fs.Parse(os.Args[2:])
		name := "safe-add"
		if fs.NArg() > 0 {
			name = fs.Arg(0)
		}
		if err := runDemo(name); err != nil {
			fmt.Fprintf(os.Stderr, "venomc: %v\n", err)
			os.Exit(1)
		}
	case "list":
		for _, d := range demos {
			fmt.Println(d.name, "-", d.desc)
		}
	default:
		fmt.Fprintf(os.Stderr, "venomc: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("venomc - Venom IR lowering demonstration driver")
	fmt.Println("\nUsage:")
	fmt.Println("  venomc demo [name]   Lower one hand-built function AST and print its Venom IR")
	fmt.Println("  venomc list          List available demo names")
	fmt.Println("  venomc version       Show version")
	fmt.Println("  venomc help          Show this help")
}

type demoSpec struct {
	name string
	desc string
	fn   func() *ast.FunctionDef
}

var demos = []demoSpec{
	{"safe-add", "uint8 addition with the overflow clamp", demoSafeAdd},
	{"keccak256", "keccak256 of a string literal", demoKeccak256},
	{"for-range-break", "for i in range(10): if i > 5: break", demoForRangeBreak},
	{"append-pop", "storage DynArray append and pop", demoAppendPop},
	{"minimal-proxy", "EIP-1167 minimal proxy deployment", demoMinimalProxy},
}

func runDemo(name string) error {
	var spec *demoSpec
	for i := range demos {
		if demos[i].name == name {
			spec = &demos[i]
			break
		}
	}
	if spec == nil {
		return fmt.Errorf("no such demo %q (try `venomc list`)", name)
	}

	mod := &codegen.ModuleContext{
		Deploy:  venom.NewContext(venom.ContextDeploy),
		Runtime: venom.NewContext(venom.ContextRuntime),
	}
	fnDef := spec.fn()
	fn, err := codegen.LowerFunction(mod, fnDef)
	if err != nil {
		return err
	}
	fmt.Print(fn.String())
	return nil
}

// demoSafeAdd builds `z: uint8 = x + y` for two uint8 locals, exercising
// the unsigned-add overflow clamp.
func demoSafeAdd() *ast.FunctionDef {
	u8 := vytype.IntegerT{Bits: 8, Signed: false}
	x := &ast.Name{Ident: "x", Type: u8}
	y := &ast.Name{Ident: "y", Type: u8}
	sum := &ast.BinOp{Op: ast.BinAdd, Left: x, Right: y, Type: u8}
	body := []ast.Stmt{
		&ast.AnnAssign{Name: "z", Type: u8, Value: sum},
		&ast.Return{Value: &ast.Name{Ident: "z", Type: u8}},
	}
	return &ast.FunctionDef{
		Name:       "safe_add_demo",
		Args:       []ast.FunctionArg{{Name: "x", Type: u8}, {Name: "y", Type: u8}},
		ReturnType: u8,
		Body:       body,
		External:   true,
		Mutable:    false,
	}
}

// demoKeccak256 builds `return keccak256("abc")`, exercising the compile-
// time-materialized-literal path through the hashing built-in.
func demoKeccak256() *ast.FunctionDef {
	bytes32 := vytype.BytesMT{M: 32}
	strT := vytype.StringT{MaxLen: 3}
	lit := &ast.BytesLiteral{Value: []byte("abc"), IsStr: true, Type: strT}
	call := &ast.Call{
		FuncName: "keccak256",
		FuncType: &ast.FuncType{Kind: ast.FuncBuiltin, Name: "keccak256", Args: []vytype.VyperType{strT}, Returns: bytes32},
		Args:     []ast.Expr{lit},
		Type:     bytes32,
	}
	body := []ast.Stmt{&ast.Return{Value: call}}
	return &ast.FunctionDef{
		Name:       "keccak256_demo",
		ReturnType: bytes32,
		Body:       body,
		External:   true,
		Mutable:    false,
	}
}

func uintLit(v uint64) *uint256.Int { return uint256.NewInt(v) }

// demoForRangeBreak builds a loop that accumulates i while i <= 5,
// breaking once i exceeds it, exercising the five-block for-range
// structure plus the loop scope's break routing.
func demoForRangeBreak() *ast.FunctionDef {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	total := &ast.Name{Ident: "total", Type: u256}
	i := &ast.Name{Ident: "i", Type: u256}
	five := &ast.IntLiteral{Value: uintLit(5), Type: u256}

	ifBreak := &ast.If{
		Test: &ast.Compare{Op: ast.CmpGt, Left: i, Right: five, Type: vytype.BoolT{}},
		Body: []ast.Stmt{&ast.Break{}},
	}
	accumulate := &ast.AugAssign{Op: ast.BinAdd, Target: total, Value: i}

	loop := &ast.ForRange{
		Var:   "i",
		Form:  ast.RangeN,
		Stop:  &ast.IntLiteral{Value: uintLit(10), Type: u256},
		Body:  []ast.Stmt{ifBreak, accumulate},
	}

	body := []ast.Stmt{
		&ast.AnnAssign{Name: "total", Type: u256, Value: &ast.IntLiteral{Value: uintLit(0), Type: u256}},
		loop,
		&ast.Return{Value: &ast.Name{Ident: "total", Type: u256}},
	}
	return &ast.FunctionDef{
		Name:       "for_range_break_demo",
		ReturnType: u256,
		Body:       body,
		External:   true,
		Mutable:    false,
	}
}

// demoAppendPop builds `arr.append(7); arr.append(8); v = arr.pop()`
// over a storage DynArray[uint256, 5], exercising the length bounds
// checks and the location-aware element addressing.
func demoAppendPop() *ast.FunctionDef {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	arrT := vytype.DArrayT{Elem: u256, MaxLen: 5}
	arr := func() *ast.Name {
		return &ast.Name{
			Ident: "arr",
			Type:  arrT,
			VarInfo: &ast.VarInfo{
				Name:     "arr",
				Location: ast.LocStorage,
				Position: 0,
				Type:     arrT,
			},
		}
	}
	appendCall := func(v uint64) *ast.Call {
		return &ast.Call{
			Func:     &ast.Attribute{Value: arr(), Attr: "append"},
			FuncName: "append",
			FuncType: &ast.FuncType{Kind: ast.FuncBuiltin, Name: "append"},
			Args:     []ast.Expr{&ast.IntLiteral{Value: uintLit(v), Type: u256}},
		}
	}
	popCall := &ast.Call{
		Func:     &ast.Attribute{Value: arr(), Attr: "pop"},
		FuncName: "pop",
		FuncType: &ast.FuncType{Kind: ast.FuncBuiltin, Name: "pop"},
		Type:     u256,
	}
	body := []ast.Stmt{
		&ast.ExprStmt{Value: appendCall(7)},
		&ast.ExprStmt{Value: appendCall(8)},
		&ast.AnnAssign{Name: "v", Type: u256, Value: popCall},
		&ast.Return{Value: &ast.Name{Ident: "v", Type: u256}},
	}
	return &ast.FunctionDef{
		Name:       "append_pop_demo",
		ReturnType: u256,
		Body:       body,
		External:   true,
		Mutable:    true,
	}
}

// demoMinimalProxy builds `return create_minimal_proxy_to(target)`,
// showing the 54-byte EIP-1167 initcode assembly and the create call.
func demoMinimalProxy() *ast.FunctionDef {
	addrT := vytype.AddressT{}
	target, _ := uint256.FromHex("0x1111111111111111111111111111111111111111")
	call := &ast.Call{
		FuncName: "create_minimal_proxy_to",
		FuncType: &ast.FuncType{Kind: ast.FuncBuiltin, Name: "create_minimal_proxy_to"},
		Args:     []ast.Expr{&ast.IntLiteral{Value: target, Type: addrT}},
		Type:     addrT,
	}
	body := []ast.Stmt{&ast.Return{Value: call}}
	return &ast.FunctionDef{
		Name:       "minimal_proxy_demo",
		ReturnType: addrT,
		Body:       body,
		External:   true,
		Mutable:    true,
	}
}
