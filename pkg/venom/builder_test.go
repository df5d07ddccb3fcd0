package venom

import (
	"testing"

	"github.com/vyperlang/venom-core/pkg/compileerr"
)

func newTestBuilder() (*Context, *Function, *Builder) {
	ctx := NewContext(ContextRuntime)
	fn := ctx.NewFunction("test_fn", false)
	return ctx, fn, NewBuilder(fn)
}

func TestBuilderEmitAssignsFreshVariables(t *testing.T) {
	_, _, b := newTestBuilder()
	v1 := b.Add(LitFromUint64(1), LitFromUint64(2))
	v2 := b.Add(LitFromUint64(3), LitFromUint64(4))
	if v1.ID == v2.ID {
		t.Fatalf("expected distinct variable ids, got %d twice", v1.ID)
	}
}

func TestBuilderSubOperandOrderIsReversed(t *testing.T) {
	_, _, b := newTestBuilder()
	left, right := LitFromUint64(10), LitFromUint64(3)
	b.Sub(left, right)
	ins := b.CurrentBlock().Instructions[0]
	if ins.Opcode != OpSub {
		t.Fatalf("expected sub, got %s", ins.Opcode)
	}
	got, ok := ins.Operands[0].(Literal)
	if !ok || got.Value.Uint64() != 3 {
		t.Fatalf("expected first stored operand to be the reversed (right) operand 3, got %v", ins.Operands[0])
	}
}

func TestTerminatedBlockRejectsFurtherEmission(t *testing.T) {
	_, _, b := newTestBuilder()
	b.Stop()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic when emitting into a terminated block")
		}
	}()
	b.Add(LitFromUint64(1), LitFromUint64(2))
}

func TestCreateBlockDoesNotAppendUntilAppendBlockCalled(t *testing.T) {
	_, fn, b := newTestBuilder()
	bb := b.CreateBlock("then")
	if len(fn.Blocks) != 1 {
		t.Fatalf("expected CreateBlock not to append, got %d blocks", len(fn.Blocks))
	}
	b.AppendBlock(bb)
	if len(fn.Blocks) != 2 {
		t.Fatalf("expected 2 blocks after AppendBlock, got %d", len(fn.Blocks))
	}
}

func TestJnzTerminatesBlock(t *testing.T) {
	_, fn, b := newTestBuilder()
	then := b.CreateBlock("then")
	els := b.CreateBlock("else")
	b.AppendBlock(then)
	b.AppendBlock(els)

	b.Jnz(LitFromUint64(1), then, els)
	if !b.CurrentBlock().Terminated() {
		t.Fatal("expected block to be terminated after Jnz")
	}
	_ = fn
}

func TestSelectEmitsBranchlessTernary(t *testing.T) {
	_, _, b := newTestBuilder()
	result := b.Select(LitFromUint64(1), LitFromUint64(10), LitFromUint64(20))
	block := b.CurrentBlock()
	if len(block.Instructions) != 3 {
		t.Fatalf("expected 3 instructions (xor, mul, xor), got %d", len(block.Instructions))
	}
	last := block.Instructions[len(block.Instructions)-1]
	if last.Output == nil || last.Output.ID != result.ID {
		t.Fatalf("expected Select's return value to be the last instruction's output")
	}
}

func TestSourceContextPushPop(t *testing.T) {
	_, fn, b := newTestBuilder()
	pos := compileerr.SourcePos{Line: 10, Col: 2}
	release := b.SourceContext(pos)
	v := b.Add(LitFromUint64(1), LitFromUint64(1))
	release()

	ins := b.CurrentBlock().Instructions[0]
	if ins.Source == nil || ins.Source.Line != 10 {
		t.Fatalf("expected instruction to capture source position, got %v", ins.Source)
	}
	if len(fn.sourceStack) != 0 {
		t.Fatalf("expected source stack to be empty after release, got %d entries", len(fn.sourceStack))
	}
	_ = v
}
