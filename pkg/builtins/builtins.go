// Package builtins holds the context-free parts of the built-in
// function surface: the dispatch metadata table and pure
// helpers (method selector hashing, EIP-1167/EIP-5202 byte templates)
// that don't need access to a codegen.Context. The actual IR-emitting
// handlers live in pkg/codegen (call_builtins.go), which imports this
// package — keeping the dependency one-directional avoids a cycle
// between the two.
//
package builtins

import (
	"fmt"
	"strings"

	"github.com/vyperlang/venom-core/pkg/vytype"
	"golang.org/x/crypto/sha3"
)

// Category groups built-ins for diagnostics and for the argument-count
// validation CheckArity performs before a handler ever runs.
type Category int

const (
	CategoryTrivial Category = iota
	CategoryUnsafeMath
	CategoryHashing
	CategoryBytesOps
	CategoryABI
	CategoryConversion
	CategoryCreate
	CategorySystem
)

// Spec describes one built-in's calling shape, enough for CheckArity's
// generic argument-count check to run before the specific handler does;
// keyword arguments are not checked there.
type Spec struct {
	Name        string
	Category    Category
	MinArgs     int
	MaxArgs     int // -1 for unbounded (concat, abi_encode)
	Keywords    []string
}

// Registry is the full built-in dispatch table.
var Registry = map[string]Spec{
	"floor":             {Name: "floor", Category: CategoryTrivial, MinArgs: 1, MaxArgs: 1},
	"ceil":              {Name: "ceil", Category: CategoryTrivial, MinArgs: 1, MaxArgs: 1},
	"abs":               {Name: "abs", Category: CategoryTrivial, MinArgs: 1, MaxArgs: 1},
	"min":               {Name: "min", Category: CategoryTrivial, MinArgs: 2, MaxArgs: 2},
	"max":               {Name: "max", Category: CategoryTrivial, MinArgs: 2, MaxArgs: 2},
	"len":               {Name: "len", Category: CategoryTrivial, MinArgs: 1, MaxArgs: 1},
	"empty":             {Name: "empty", Category: CategoryTrivial, MinArgs: 0, MaxArgs: 0},
	"as_wei_value":      {Name: "as_wei_value", Category: CategoryTrivial, MinArgs: 2, MaxArgs: 2},
	"uint2str":          {Name: "uint2str", Category: CategoryTrivial, MinArgs: 1, MaxArgs: 1},

	// Dynamic-array methods dispatch through the same table even though
	// they arrive as attribute calls (arr.append(x)) rather than bare
	// identifiers; arity counts the call's own arguments, not the
	// receiver.
	"append": {Name: "append", Category: CategoryTrivial, MinArgs: 1, MaxArgs: 1},
	"pop":    {Name: "pop", Category: CategoryTrivial, MinArgs: 0, MaxArgs: 0},

	"unsafe_add": {Name: "unsafe_add", Category: CategoryUnsafeMath, MinArgs: 2, MaxArgs: 2},
	"unsafe_sub": {Name: "unsafe_sub", Category: CategoryUnsafeMath, MinArgs: 2, MaxArgs: 2},
	"unsafe_mul": {Name: "unsafe_mul", Category: CategoryUnsafeMath, MinArgs: 2, MaxArgs: 2},
	"unsafe_div": {Name: "unsafe_div", Category: CategoryUnsafeMath, MinArgs: 2, MaxArgs: 2},
	"pow_mod256": {Name: "pow_mod256", Category: CategoryUnsafeMath, MinArgs: 2, MaxArgs: 2},
	"uint256_addmod": {Name: "uint256_addmod", Category: CategoryUnsafeMath, MinArgs: 3, MaxArgs: 3},
	"uint256_mulmod":  {Name: "uint256_mulmod", Category: CategoryUnsafeMath, MinArgs: 3, MaxArgs: 3},
	"shift":           {Name: "shift", Category: CategoryUnsafeMath, MinArgs: 2, MaxArgs: 2},

	"keccak256": {Name: "keccak256", Category: CategoryHashing, MinArgs: 1, MaxArgs: 1},
	"sha256":    {Name: "sha256", Category: CategoryHashing, MinArgs: 1, MaxArgs: 1},
	"method_id": {Name: "method_id", Category: CategoryHashing, MinArgs: 1, MaxArgs: 2},

	"concat":    {Name: "concat", Category: CategoryBytesOps, MinArgs: 2, MaxArgs: -1},
	"slice":     {Name: "slice", Category: CategoryBytesOps, MinArgs: 3, MaxArgs: 3},
	"extract32": {Name: "extract32", Category: CategoryBytesOps, MinArgs: 2, MaxArgs: 2, Keywords: []string{"output_type"}},

	"abi_encode": {Name: "abi_encode", Category: CategoryABI, MinArgs: 1, MaxArgs: -1, Keywords: []string{"method_id", "ensure_tuple"}},
	"abi_decode": {Name: "abi_decode", Category: CategoryABI, MinArgs: 2, MaxArgs: 2, Keywords: []string{"unwrap_tuple"}},

	"convert": {Name: "convert", Category: CategoryConversion, MinArgs: 2, MaxArgs: 2},

	"raw_create":              {Name: "raw_create", Category: CategoryCreate, MinArgs: 1, MaxArgs: -1, Keywords: []string{"value", "salt", "revert_on_failure"}},
	"create_minimal_proxy_to": {Name: "create_minimal_proxy_to", Category: CategoryCreate, MinArgs: 1, MaxArgs: 1, Keywords: []string{"value", "salt", "revert_on_failure"}},
	"create_forwarder_to":     {Name: "create_forwarder_to", Category: CategoryCreate, MinArgs: 1, MaxArgs: 1, Keywords: []string{"value", "salt", "revert_on_failure"}},
	"create_copy_of":          {Name: "create_copy_of", Category: CategoryCreate, MinArgs: 1, MaxArgs: 1, Keywords: []string{"value", "salt", "revert_on_failure"}},
	"create_from_blueprint":   {Name: "create_from_blueprint", Category: CategoryCreate, MinArgs: 1, MaxArgs: -1, Keywords: []string{"value", "salt", "raw_args", "code_offset", "revert_on_failure"}},

	"raw_call": {Name: "raw_call", Category: CategorySystem, MinArgs: 2, MaxArgs: 2, Keywords: []string{"max_outsize", "value", "gas", "is_delegate_call", "is_static_call", "revert_on_failure"}},
	"send":     {Name: "send", Category: CategorySystem, MinArgs: 2, MaxArgs: 2},
	"raw_log":  {Name: "raw_log", Category: CategorySystem, MinArgs: 2, MaxArgs: 2},
	"raw_revert":   {Name: "raw_revert", Category: CategorySystem, MinArgs: 1, MaxArgs: 1},
	"selfdestruct": {Name: "selfdestruct", Category: CategorySystem, MinArgs: 1, MaxArgs: 1},
}

// CheckArity validates a call's argument count against its Spec,
// surfacing the ArgumentException shape as a plain error the caller
// wraps with a SourcePos.
func CheckArity(name string, numArgs int) error {
	spec, ok := Registry[name]
	if !ok {
		return fmt.Errorf("unknown built-in %q", name)
	}
	if numArgs < spec.MinArgs || (spec.MaxArgs >= 0 && numArgs > spec.MaxArgs) {
		return fmt.Errorf("%q takes %d..%s arguments, got %d", name, spec.MinArgs, maxArgsLabel(spec.MaxArgs), numArgs)
	}
	return nil
}

func maxArgsLabel(max int) string {
	if max < 0 {
		return "inf"
	}
	return fmt.Sprintf("%d", max)
}

// Selector computes the 4-byte function selector
// keccak256(signature)[:4] used for external call encoding and dispatch
// metadata.
func Selector(name string, argTypes []vytype.VyperType) [4]byte {
	return SelectorFromSignature(CanonicalSignature(name, argTypes))
}

// CanonicalSignature renders "name(type1,type2,...)" the way the ABI
// encoding requires for selector hashing.
func CanonicalSignature(name string, argTypes []vytype.VyperType) string {
	parts := make([]string, len(argTypes))
	for i, t := range argTypes {
		parts[i] = string(t.AbiType())
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ","))
}

// SelectorFromSignature hashes an already-rendered signature string.
func SelectorFromSignature(sig string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	sum := h.Sum(nil)
	var sel [4]byte
	copy(sel[:], sum[:4])
	return sel
}

// EventTopic0 hashes an event's canonical signature the same way, for
// the `log` statement's topic0.
func EventTopic0(signature string) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var topic [32]byte
	copy(topic[:], h.Sum(nil))
	return topic
}

// EIP-1167 minimal proxy bytecode pieces. The deployed runtime code is
// ProxyRuntimePrefix || target address || ProxyRuntimeSuffix (45 bytes);
// the deployment initcode prepends ProxyInitPrologue for a 54-byte
// total: PUSH1 45, RETURNDATASIZE, DUP2, PUSH1 9, RETURNDATASIZE,
// CODECOPY, RETURN, then the runtime follows inline.
var (
	ProxyInitPrologue  = []byte{0x60, 0x2d, 0x3d, 0x81, 0x60, 0x09, 0x3d, 0x39, 0xf3}
	ProxyRuntimePrefix = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d, 0x73}
	ProxyRuntimeSuffix = []byte{0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d, 0x91, 0x60, 0x2b, 0x57, 0xfd, 0x5b, 0xf3}
)

// ProxyAddrOffset is the byte offset of the target address within the
// deployed proxy runtime code.
const ProxyAddrOffset = 10

// ProxyRuntime renders the 45-byte deployed proxy code for target.
func ProxyRuntime(target [20]byte) []byte {
	out := make([]byte, 0, 45)
	out = append(out, ProxyRuntimePrefix...)
	out = append(out, target[:]...)
	return append(out, ProxyRuntimeSuffix...)
}

// ProxyInitCode renders the 54-byte deployment initcode for target.
func ProxyInitCode(target [20]byte) []byte {
	out := make([]byte, 0, 54)
	out = append(out, ProxyInitPrologue...)
	return append(out, ProxyRuntime(target)...)
}

// CopyOfPreamble is the 11-byte initcode preamble create_copy_of puts in
// front of the target's runtime code: PUSH1 11, CODESIZE, SUB, DUP1,
// PUSH1 11, RETURNDATASIZE, CODECOPY, RETURNDATASIZE, RETURN — it copies
// everything after itself and returns it as the deployed code.
var CopyOfPreamble = []byte{0x60, 0x0b, 0x38, 0x03, 0x80, 0x60, 0x0b, 0x3d, 0x39, 0x3d, 0xf3}

// BlueprintCodeOffset is the length of the fixed ERC-5202 preamble
// (0xFE7100) create_from_blueprint skips by default; a code_offset
// keyword overrides it for non-standard blueprint layouts.
const BlueprintCodeOffset = 3
