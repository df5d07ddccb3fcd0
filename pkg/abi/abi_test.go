package abi

import (
	"testing"

	"github.com/vyperlang/venom-core/pkg/vytype"
)

func TestIsDynamicClassifiesTypes(t *testing.T) {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	cases := []struct {
		name string
		t    vytype.VyperType
		want bool
	}{
		{"uint256", u256, false},
		{"bool", vytype.BoolT{}, false},
		{"bytes", vytype.BytesT{MaxLen: 32}, true},
		{"string", vytype.StringT{MaxLen: 32}, true},
		{"darray", vytype.DArrayT{Elem: u256, MaxLen: 4}, true},
		{"sarray of static", vytype.SArrayT{Elem: u256, N: 3}, false},
		{"sarray of dynamic", vytype.SArrayT{Elem: vytype.BytesT{MaxLen: 4}, N: 3}, true},
		{"tuple all static", vytype.TupleT{Elems: []vytype.VyperType{u256, vytype.BoolT{}}}, false},
		{"tuple with dynamic", vytype.TupleT{Elems: []vytype.VyperType{u256, vytype.StringT{MaxLen: 4}}}, true},
	}
	for _, tc := range cases {
		if got := IsDynamic(tc.t); got != tc.want {
			t.Errorf("IsDynamic(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHeadWordsStaticArrayIsPerElement(t *testing.T) {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	sarr := vytype.SArrayT{Elem: u256, N: 4}
	if got := HeadWords(sarr); got != 4 {
		t.Fatalf("HeadWords(uint256[4]) = %d, want 4", got)
	}
}

func TestHeadWordsDynamicTypeIsOneOffsetWord(t *testing.T) {
	if got := HeadWords(vytype.BytesT{MaxLen: 64}); got != 1 {
		t.Fatalf("HeadWords(Bytes[64]) = %d, want 1 (an offset pointer)", got)
	}
}

func TestLayoutPlacesEachElementAfterThePrevious(t *testing.T) {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	elems := Layout([]vytype.VyperType{u256, vytype.StringT{MaxLen: 32}, u256})
	want := []int{0, 32, 64}
	for i, e := range elems {
		if e.HeadOffset != want[i] {
			t.Errorf("element %d: HeadOffset = %d, want %d", i, e.HeadOffset, want[i])
		}
	}
	if elems[1].Dynamic != true || elems[0].Dynamic || elems[2].Dynamic {
		t.Fatalf("expected only the middle (String) element to be marked Dynamic, got %+v", elems)
	}
	if got := HeadSize([]vytype.VyperType{u256, vytype.StringT{MaxLen: 32}, u256}); got != 96 {
		t.Fatalf("HeadSize = %d, want 96 (3 head words)", got)
	}
}

func TestMinMaxSizeWindows(t *testing.T) {
	u256 := vytype.IntegerT{Bits: 256, Signed: false}
	cases := []struct {
		name    string
		t       vytype.VyperType
		wantMin int
		wantMax int
	}{
		{"uint256", u256, 32, 32},
		{"bool", vytype.BoolT{}, 32, 32},
		{"Bytes[100]", vytype.BytesT{MaxLen: 100}, 64, 64 + 128},
		{"String[5]", vytype.StringT{MaxLen: 5}, 64, 64 + 32},
		{"DynArray[uint256, 5]", vytype.DArrayT{Elem: u256, MaxLen: 5}, 64, 64 + 160},
		{"uint256[3]", vytype.SArrayT{Elem: u256, N: 3}, 96, 96},
		{"(uint256, bool)", vytype.TupleT{Elems: []vytype.VyperType{u256, vytype.BoolT{}}}, 64, 64},
	}
	for _, tc := range cases {
		if got := MinSize(tc.t); got != tc.wantMin {
			t.Errorf("MinSize(%s) = %d, want %d", tc.name, got, tc.wantMin)
		}
		if got := MaxSize(tc.t); got != tc.wantMax {
			t.Errorf("MaxSize(%s) = %d, want %d", tc.name, got, tc.wantMax)
		}
	}
}

func TestMethodIDMatchesKnownSelector(t *testing.T) {
	sel := MethodID("transfer", []vytype.VyperType{
		vytype.AddressT{},
		vytype.IntegerT{Bits: 256, Signed: false},
	})
	want := [4]byte{0xa9, 0x05, 0x9c, 0xbb}
	if sel != want {
		t.Fatalf("MethodID(transfer(address,uint256)) = %x, want %x", sel, want)
	}
}
