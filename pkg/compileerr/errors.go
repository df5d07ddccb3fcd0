// Package compileerr defines the error taxonomy used across the core.
//
// Every user-visible error carries the source-position range of the AST
// node that triggered it, threaded through from a SourcePos stack that
// lowering pushes and pops as it descends the tree (see pkg/codegen's
// SourceContext). Four kinds cover the whole of the core's failure modes:
//
//   CompilerPanic        an invariant codegen assumed does not hold
//   TypeCheckFailure      a type combination the analyzer should have rejected
//   StateAccessViolation  a mutating op attempted in a Constant function
//   ArgumentException     a built-in invoked with bad keyword arguments
//
// None of these is a runtime (on-chain) failure: those are lowered as IR
// (asserts, reverts) rather than represented as Go errors at all. This
// package only covers compile-time diagnostics and compiler bugs.
package compileerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SourcePos identifies the AST origin of an instruction or diagnostic.
// Line/Col are 1-based; File may be empty when the AST was synthesized
// (e.g. in tests) rather than parsed from text.
type SourcePos struct {
	File string
	Line int
	Col  int
}

func (p SourcePos) String() string {
	if p.Line == 0 {
		return "<unknown>"
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Kind distinguishes the four members of the error taxonomy.
type Kind int

const (
	// KindCompilerPanic means an invariant assumed by codegen does not
	// hold. Always indicates a bug in the compiler or the analyzer
	// feeding it; never caused by user source alone.
	KindCompilerPanic Kind = iota
	// KindTypeCheckFailure means a type combination arose in codegen
	// that the (out-of-scope) semantic analyzer should have rejected.
	KindTypeCheckFailure
	// KindStateAccessViolation means a mutating operation was attempted
	// while lowering a function whose constancy is Constant (view).
	KindStateAccessViolation
	// KindArgumentException means a built-in call supplied a keyword
	// argument combination that is missing or mutually exclusive.
	KindArgumentException
)

func (k Kind) String() string {
	switch k {
	case KindCompilerPanic:
		return "CompilerPanic"
	case KindTypeCheckFailure:
		return "TypeCheckFailure"
	case KindStateAccessViolation:
		return "StateAccessViolation"
	case KindArgumentException:
		return "ArgumentException"
	default:
		return "UnknownError"
	}
}

// Error is the single error type the core returns. Lowering code never
// constructs one directly; use the Panic/TypeCheck/StateAccess/Argument
// constructors below so every site attaches the same shape of context.
type Error struct {
	Kind    Kind
	Message string
	Pos     SourcePos
	// Stack is the chain of enclosing AST nodes active when the error
	// was raised, outermost first, built from lowering's source-context
	// stack.
	Stack []SourcePos
	cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s: %s", e.Kind, e.Pos, e.Message)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %s", e.cause)
	}
	if len(e.Stack) > 0 {
		b.WriteString("\n\nlowering stack:")
		for i := len(e.Stack) - 1; i >= 0; i-- {
			fmt.Fprintf(&b, "\n  at %s", e.Stack[i])
		}
	}
	return b.String()
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As and
// github.com/pkg/errors.Cause keep working across this boundary.
func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, pos SourcePos, stack []SourcePos, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
		Stack:   append([]SourcePos(nil), stack...),
		cause:   cause,
	}
}

// Panic builds a CompilerPanic. Use it for invariants that, if violated,
// mean the compiler itself (or the analyzer upstream of it) has a bug —
// never for anything a user's source text could legitimately trigger.
func Panic(pos SourcePos, stack []SourcePos, format string, args ...interface{}) *Error {
	return newErr(KindCompilerPanic, pos, stack, nil, format, args...)
}

// PanicWrap is Panic with an underlying cause preserved via
// github.com/pkg/errors, so the original failure survives in the chain
// for %+v-style stack-trace printing at the top of the compiler binary.
func PanicWrap(cause error, pos SourcePos, stack []SourcePos, format string, args ...interface{}) *Error {
	return newErr(KindCompilerPanic, pos, stack, errors.WithStack(cause), format, args...)
}

// TypeCheck builds a TypeCheckFailure: codegen encountered a type
// combination that should have been rejected before it ever reached
// lowering.
func TypeCheck(pos SourcePos, stack []SourcePos, format string, args ...interface{}) *Error {
	return newErr(KindTypeCheckFailure, pos, stack, nil, format, args...)
}

// StateAccess builds a StateAccessViolation: a mutating operation was
// attempted while the enclosing function's constancy is Constant.
func StateAccess(pos SourcePos, stack []SourcePos, format string, args ...interface{}) *Error {
	return newErr(KindStateAccessViolation, pos, stack, nil, format, args...)
}

// Argument builds an ArgumentException: a built-in call's keyword
// arguments are missing, extra, or mutually exclusive.
func Argument(pos SourcePos, stack []SourcePos, format string, args ...interface{}) *Error {
	return newErr(KindArgumentException, pos, stack, nil, format, args...)
}

// Is reports whether err is a *Error of the given kind, unwrapping
// through any github.com/pkg/errors wrapping along the way.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
