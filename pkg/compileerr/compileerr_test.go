package compileerr

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestSourcePosString(t *testing.T) {
	cases := []struct {
		name string
		pos  SourcePos
		want string
	}{
		{"zero value", SourcePos{}, "<unknown>"},
		{"no file", SourcePos{Line: 3, Col: 7}, "3:7"},
		{"with file", SourcePos{File: "token.vy", Line: 3, Col: 7}, "token.vy:3:7"},
	}
	for _, tc := range cases {
		if got := tc.pos.String(); got != tc.want {
			t.Errorf("%s: SourcePos.String() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{KindCompilerPanic, "CompilerPanic"},
		{KindTypeCheckFailure, "TypeCheckFailure"},
		{KindStateAccessViolation, "StateAccessViolation"},
		{KindArgumentException, "ArgumentException"},
		{Kind(99), "UnknownError"},
	}
	for _, tc := range cases {
		if got := tc.k.String(); got != tc.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tc.k, got, tc.want)
		}
	}
}

func TestConstructorsSetKind(t *testing.T) {
	pos := SourcePos{Line: 1, Col: 1}
	cases := []struct {
		name string
		err  *Error
		want Kind
	}{
		{"Panic", Panic(pos, nil, "bad invariant"), KindCompilerPanic},
		{"TypeCheck", TypeCheck(pos, nil, "mismatched types"), KindTypeCheckFailure},
		{"StateAccess", StateAccess(pos, nil, "storage write in view fn"), KindStateAccessViolation},
		{"Argument", Argument(pos, nil, "missing keyword"), KindArgumentException},
	}
	for _, tc := range cases {
		if tc.err.Kind != tc.want {
			t.Errorf("%s: Kind = %v, want %v", tc.name, tc.err.Kind, tc.want)
		}
	}
}

func TestErrorMessageIncludesKindPositionAndMessage(t *testing.T) {
	pos := SourcePos{File: "a.vy", Line: 4, Col: 2}
	err := TypeCheck(pos, nil, "expected %s got %s", "uint256", "bool")
	msg := err.Error()
	if !strings.Contains(msg, "TypeCheckFailure") {
		t.Errorf("message missing kind: %q", msg)
	}
	if !strings.Contains(msg, "a.vy:4:2") {
		t.Errorf("message missing position: %q", msg)
	}
	if !strings.Contains(msg, "expected uint256 got bool") {
		t.Errorf("message missing formatted text: %q", msg)
	}
}

func TestErrorMessageRendersStackOutermostLast(t *testing.T) {
	stack := []SourcePos{
		{Line: 1, Col: 1},
		{Line: 2, Col: 1},
	}
	err := Panic(SourcePos{Line: 3, Col: 1}, stack, "boom")
	msg := err.Error()
	idxOuter := strings.Index(msg, "at 1:1")
	idxInner := strings.Index(msg, "at 2:1")
	if idxOuter == -1 || idxInner == -1 || idxOuter > idxInner {
		t.Fatalf("expected outermost frame (1:1) to print before innermost (2:1), got: %q", msg)
	}
}

func TestPanicWrapPreservesCauseInMessageAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := PanicWrap(cause, SourcePos{Line: 1, Col: 1}, nil, "wrapping")
	if !strings.Contains(err.Error(), "underlying failure") {
		t.Fatalf("expected wrapped cause in message, got %q", err.Error())
	}
	if errors.Cause(err) == nil {
		t.Fatal("expected errors.Cause to find a cause through the wrap")
	}
}

func TestIsUnwrapsThroughPkgErrorsWrapping(t *testing.T) {
	base := StateAccess(SourcePos{Line: 1, Col: 1}, nil, "storage write in view fn")
	wrapped := errors.Wrap(base, "while lowering assignment")
	if !Is(wrapped, KindStateAccessViolation) {
		t.Fatal("expected Is to find the StateAccessViolation through the pkg/errors wrap")
	}
	if Is(wrapped, KindArgumentException) {
		t.Fatal("expected Is to reject a non-matching kind")
	}
}

func TestStackIsCopiedNotAliased(t *testing.T) {
	stack := []SourcePos{{Line: 1, Col: 1}}
	err := Panic(SourcePos{Line: 2, Col: 1}, stack, "boom")
	stack[0].Line = 99
	if err.Stack[0].Line == 99 {
		t.Fatal("Error.Stack must be an independent copy of the caller's slice")
	}
}
