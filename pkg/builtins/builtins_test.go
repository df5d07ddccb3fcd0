package builtins

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/vyperlang/venom-core/pkg/vytype"
)

func TestCheckArityRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name    string
		numArgs int
		wantErr bool
	}{
		{"len", 1, false},
		{"len", 0, true},
		{"len", 2, true},
		{"concat", 2, false},
		{"concat", 10, false}, // unbounded max
		{"concat", 1, true},
		{"empty", 0, false},
		{"empty", 1, true},
		{"nonexistent_builtin", 1, true},
	}
	for _, tc := range cases {
		err := CheckArity(tc.name, tc.numArgs)
		if (err != nil) != tc.wantErr {
			t.Errorf("CheckArity(%q, %d): err=%v, wantErr=%v", tc.name, tc.numArgs, err, tc.wantErr)
		}
	}
}

func TestSelectorMatchesKnownSignature(t *testing.T) {
	// transfer(address,uint256) => 0xa9059cbb, the canonical ERC20 selector.
	sel := Selector("transfer", []vytype.VyperType{
		vytype.AddressT{},
		vytype.IntegerT{Bits: 256, Signed: false},
	})
	want := [4]byte{0xa9, 0x05, 0x9c, 0xbb}
	if sel != want {
		t.Fatalf("Selector(transfer(address,uint256)) = %x, want %x", sel, want)
	}
}

func TestCanonicalSignatureRendersAbiTypes(t *testing.T) {
	sig := CanonicalSignature("foo", []vytype.VyperType{
		vytype.IntegerT{Bits: 256, Signed: false},
		vytype.BoolT{},
	})
	if sig != "foo(uint256,bool)" {
		t.Fatalf("CanonicalSignature = %q", sig)
	}
}

func TestEIP1167ProxyLayout(t *testing.T) {
	var target [20]byte
	for i := range target {
		target[i] = 0x11
	}
	runtime := ProxyRuntime(target)
	if len(runtime) != 45 {
		t.Fatalf("EIP-1167 runtime proxy must be 45 bytes, got %d", len(runtime))
	}
	wantHex := "363d3d373d3d3d363d73" +
		"1111111111111111111111111111111111111111" +
		"5af43d82803e903d91602b57fd5bf3"
	if got := hex.EncodeToString(runtime); got != wantHex {
		t.Fatalf("proxy runtime = %s, want %s", got, wantHex)
	}

	init := ProxyInitCode(target)
	if len(init) != 54 {
		t.Fatalf("EIP-1167 initcode must be 54 bytes, got %d", len(init))
	}
	if !bytes.Equal(init[9:], runtime) {
		t.Fatal("initcode must carry the runtime code verbatim after its 9-byte prologue")
	}
	if !bytes.Equal(runtime[ProxyAddrOffset:ProxyAddrOffset+20], target[:]) {
		t.Fatalf("ProxyAddrOffset = %d does not line up with the spliced address", ProxyAddrOffset)
	}
}

func TestCopyOfPreambleLength(t *testing.T) {
	if len(CopyOfPreamble) != 11 {
		t.Fatalf("create_copy_of preamble must be 11 bytes, got %d", len(CopyOfPreamble))
	}
}
