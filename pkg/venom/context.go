package venom

import (
	"fmt"
	"strings"
)

// Context owns a set of Functions keyed by label, a data section for
// string/bytes constants, and a label allocator. Two
// Contexts exist per compilation: one for deploy (constructor) code, one
// for runtime code.
type Context struct {
	Kind      ContextKind
	Functions map[string]*Function
	// FuncOrder preserves the order functions were created in, since a
	// map iteration order is not the emission order downstream tooling
	// should see.
	FuncOrder []string
	// Data holds byte blobs (string/bytes constants, immutable layout
	// descriptors) keyed by label, consumed by the downstream assembler.
	Data map[string][]byte

	blockCounter map[string]int
	labelCounter int
}

// ContextKind distinguishes the deploy and runtime Contexts every
// compilation unit produces.
type ContextKind int

const (
	ContextDeploy ContextKind = iota
	ContextRuntime
)

// NewContext creates an empty Context of the given kind.
func NewContext(kind ContextKind) *Context {
	return &Context{
		Kind:         kind,
		Functions:    make(map[string]*Function),
		Data:         make(map[string][]byte),
		blockCounter: make(map[string]int),
	}
}

// NewFunction creates and registers a new Function under label. It is a
// CompilerPanic-worthy bug to register the same label twice; callers
// (one call site per lowered Vyper function) are expected to pick unique
// labels, so this simply overwrites rather than erroring.
func (c *Context) NewFunction(label string, internal bool) *Function {
	fn := &Function{Label: label, ctx: c, IsInternal: internal}
	entry := fn.NewBlock("entry")
	fn.Entry = entry
	fn.AppendBlock(entry)
	if _, exists := c.Functions[label]; !exists {
		c.FuncOrder = append(c.FuncOrder, label)
	}
	c.Functions[label] = fn
	return fn
}

// AddData registers a byte blob under a freshly minted label and returns
// it. String/bytes constants are pooled here and referenced from
// instructions by Label operand.
func (c *Context) AddData(blob []byte) string {
	label := fmt.Sprintf("data.%d", len(c.Data))
	c.Data[label] = blob
	return label
}

// freshBlockLabel mints "<fnLabel>.<suffix>" or, if suffix collides or is
// empty, "<fnLabel>.bb<N>".
func (c *Context) freshBlockLabel(fnLabel, suffix string) string {
	base := fnLabel
	if suffix != "" {
		base = fnLabel + "." + suffix
	}
	n := c.blockCounter[base]
	c.blockCounter[base] = n + 1
	if n == 0 && suffix != "" {
		return base
	}
	return fmt.Sprintf("%s.%d", base, n)
}

// String renders every function in creation order, for disassembly-style
// debugging and for cmd/venomc's output.
func (c *Context) String() string {
	var sb strings.Builder
	for _, label := range c.FuncOrder {
		sb.WriteString(c.Functions[label].String())
		sb.WriteString("\n")
	}
	return sb.String()
}
