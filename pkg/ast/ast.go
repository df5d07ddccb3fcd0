// Package ast defines the annotated Abstract Syntax Tree node set the
// core consumes. It is a plain data definition — no parsing,
// no type inference, no validation lives here; every node arrives from
// the (out-of-scope) semantic analyzer already carrying its Type,
// VarInfo, and FuncType annotations.
//
// One struct per node kind, a closed interface per node category
// (Expr/Stmt) with an unexported marker method, and a short debug label
// on every node.
package ast

import (
	"github.com/holiman/uint256"
	"github.com/vyperlang/venom-core/pkg/vytype"
)

// Node is implemented by every AST node.
type Node interface {
	// Desc is a short human-readable label for diagnostics.
	Desc() string
}

// Expr is implemented by every expression node. Every Expr's Type is
// populated by the analyzer before codegen runs.
type Expr interface {
	Node
	ExprType() vytype.VyperType
	exprNode()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// VarInfo is the resolved metadata for a name reference.
type VarInfo struct {
	// Name is the declared storage/immutable variable's name, used as
	// the data-section label for LocCode references.
	Name        string
	IsConstant  bool
	IsImmutable bool
	// Position is the storage slot (for storage variables) or the byte
	// offset in the immutables data section (for immutables). Its
	// meaning depends on Location.
	Position int
	Location Location
	Type     vytype.VyperType
}

// Location is the data location tag attached to resolved names and to
// every located VyperValue the lowering code produces.
type Location int

const (
	LocMemory Location = iota
	LocStorage
	LocTransient
	LocCalldata
	LocCode
)

func (l Location) String() string {
	switch l {
	case LocMemory:
		return "memory"
	case LocStorage:
		return "storage"
	case LocTransient:
		return "transient"
	case LocCalldata:
		return "calldata"
	case LocCode:
		return "code"
	default:
		return "unknown"
	}
}

// FuncType identifies the callee of a Call node: a built-in
// identifier, an internal function reference, or an external interface
// method.
type FuncType struct {
	Kind       FuncKind
	Name       string
	Args       []vytype.VyperType
	Returns    vytype.VyperType // nil if void
	Mutable    bool
	// Label is the internal function's Venom label, populated once that
	// function has been assigned one; unused for built-ins.
	Label string
}

type FuncKind int

const (
	FuncBuiltin FuncKind = iota
	FuncInternal
	FuncExternal
)

// ---- Module-level nodes ----

// Module is the root node: a sequence of function definitions (the
// pieces that matter to this core — storage variable and struct
// declarations are carried as VarInfo/StructT metadata by the analyzer
// and do not themselves require lowering).
type Module struct {
	Functions []*FunctionDef
}

func (m *Module) Desc() string { return "module" }

// FunctionDef is one external or internal function.
type FunctionDef struct {
	Name       string
	Args       []FunctionArg
	ReturnType vytype.VyperType // nil if void
	Body       []Stmt
	External   bool
	Mutable    bool // false => view/pure (Constant), true => mutating
	IsCtor     bool // true for the constructor (__init__)
	Pos        Pos
}

func (f *FunctionDef) Desc() string { return "function " + f.Name }

// FunctionArg is one formal parameter.
type FunctionArg struct {
	Name string
	Type vytype.VyperType
}

// Pos is a lightweight source position carried by every node that can be
// the origin of a diagnostic, convertible to compileerr.SourcePos by the
// codegen package's SourceContext.
type Pos struct {
	Line, Col int
}

// ---- Expressions ----

// IntLiteral covers integer and NameConstant (True/False) literals that
// fold to a plain integer value. Decimal literals
// are pre-scaled by the analyzer's .reduced() constant folding into this
// same node with Type == DecimalT, Value already multiplied by 10^10.
type IntLiteral struct {
	Value *uint256.Int
	Type  vytype.VyperType
	Pos   Pos
}

func (n *IntLiteral) Desc() string               { return "int-literal" }
func (n *IntLiteral) exprNode()                  {}
func (n *IntLiteral) ExprType() vytype.VyperType { return n.Type }

// BytesLiteral covers Bytes/HexBytes/Str literals.
type BytesLiteral struct {
	Value []byte
	IsStr bool
	Type  vytype.VyperType
	Pos   Pos
}

func (n *BytesLiteral) Desc() string               { return "bytes-literal" }
func (n *BytesLiteral) exprNode()                  {}
func (n *BytesLiteral) ExprType() vytype.VyperType { return n.Type }

// Name is a bare identifier reference: a local variable, `self`, or one
// of the global environment bases (msg/block/tx/chain), resolved via
// VarInfo.
type Name struct {
	Ident   string
	VarInfo *VarInfo // nil for self/msg/block/tx/chain
	Type    vytype.VyperType
	Pos     Pos
}

func (n *Name) Desc() string               { return "name " + n.Ident }
func (n *Name) exprNode()                  {}
func (n *Name) ExprType() vytype.VyperType { return n.Type }

// Attribute is `<value>.<attr>` — environment attrs, address properties,
// and self.<storage var> / struct field access.
type Attribute struct {
	Value   Expr
	Attr    string
	VarInfo *VarInfo // set when this resolves to a storage/immutable var
	Type    vytype.VyperType
	Pos     Pos
}

func (n *Attribute) Desc() string               { return "attribute ." + n.Attr }
func (n *Attribute) exprNode()                  {}
func (n *Attribute) ExprType() vytype.VyperType { return n.Type }

// Subscript is `<value>[<index>]` — array/sarray/darray/mapping access.
type Subscript struct {
	Value Expr
	Index Expr
	Type  vytype.VyperType
	Pos   Pos
}

func (n *Subscript) Desc() string               { return "subscript" }
func (n *Subscript) exprNode()                  {}
func (n *Subscript) ExprType() vytype.VyperType { return n.Type }

// BinOpKind enumerates the binary arithmetic and bitwise operators.
type BinOpKind int

const (
	BinAdd BinOpKind = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
	BinBitAnd
	BinBitOr
	BinBitXor
)

// BinOp is a binary arithmetic or bitwise expression.
type BinOp struct {
	Op      BinOpKind
	Left    Expr
	Right   Expr
	Unsafe  bool // true for unsafe_add/unsafe_sub/... built-in forms
	Type    vytype.VyperType
	Pos     Pos
}

func (n *BinOp) Desc() string               { return "binop" }
func (n *BinOp) exprNode()                  {}
func (n *BinOp) ExprType() vytype.VyperType { return n.Type }

// UnaryOpKind enumerates unary operators.
type UnaryOpKind int

const (
	UnaryNot UnaryOpKind = iota
	UnaryInvert
	UnaryUSub
)

// UnaryOp is `not x`, `~x`, or `-x`.
type UnaryOp struct {
	Op      UnaryOpKind
	Operand Expr
	Type    vytype.VyperType
	Pos     Pos
}

func (n *UnaryOp) Desc() string               { return "unaryop" }
func (n *UnaryOp) exprNode()                  {}
func (n *UnaryOp) ExprType() vytype.VyperType { return n.Type }

// BoolOpKind distinguishes `and`/`or`.
type BoolOpKind int

const (
	BoolAnd BoolOpKind = iota
	BoolOr
)

// BoolOp is a short-circuiting `and`/`or` over two or more values.
type BoolOp struct {
	Op     BoolOpKind
	Values []Expr
	Type   vytype.VyperType
	Pos    Pos
}

func (n *BoolOp) Desc() string               { return "boolop" }
func (n *BoolOp) exprNode()                  {}
func (n *BoolOp) ExprType() vytype.VyperType { return n.Type }

// CompareOpKind enumerates comparison operators.
type CompareOpKind int

const (
	CmpEq CompareOpKind = iota
	CmpNotEq
	CmpLt
	CmpGt
	CmpLtE
	CmpGtE
	CmpIn // flag membership, or `x in [list of literals]`
	CmpNotIn
)

// Compare is a single comparison (Vyper, unlike Python, does not chain
// comparisons at the AST level by the time codegen sees them).
type Compare struct {
	Op    CompareOpKind
	Left  Expr
	Right Expr
	Type  vytype.VyperType
	Pos   Pos
}

func (n *Compare) Desc() string               { return "compare" }
func (n *Compare) exprNode()                  {}
func (n *Compare) ExprType() vytype.VyperType { return n.Type }

// Ternary is `a if c else b`.
type Ternary struct {
	Test, Body, OrElse Expr
	Type               vytype.VyperType
	Pos                Pos
}

func (n *Ternary) Desc() string               { return "ternary" }
func (n *Ternary) exprNode()                  {}
func (n *Ternary) ExprType() vytype.VyperType { return n.Type }

// Call is a function call: built-in, internal, or external. Keywords carries keyword arguments for built-ins that accept
// them (e.g. value=, gas=, revert_on_failure=).
type Call struct {
	Func     Expr // nil for a bare built-in identifier call; see FuncName
	FuncName string
	FuncType *FuncType
	Args     []Expr
	Keywords map[string]Expr
	Type     vytype.VyperType
	Pos      Pos
}

func (n *Call) Desc() string               { return "call " + n.FuncName }
func (n *Call) exprNode()                  {}
func (n *Call) ExprType() vytype.VyperType { return n.Type }

// ListLiteral is a literal list expression, used as a for-loop iterable
// or as an inline SArrayT value.
type ListLiteral struct {
	Elems []Expr
	Type  vytype.VyperType
	Pos   Pos
}

func (n *ListLiteral) Desc() string               { return "list-literal" }
func (n *ListLiteral) exprNode()                  {}
func (n *ListLiteral) ExprType() vytype.VyperType { return n.Type }
