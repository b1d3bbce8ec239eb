package codec

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeBalanceOf(t *testing.T) {
	holder := common.HexToAddress("0xDAFEA492D9c6733ae3d56b7Ed1ADB60692c98Bc5")
	data := EncodeBalanceOf(holder)

	if len(data) != 36 {
		t.Fatalf("expected 36 bytes, got %d", len(data))
	}
	if data[0] != 0x70 || data[1] != 0xa0 || data[2] != 0x82 || data[3] != 0x31 {
		t.Fatalf("unexpected selector: %x", data[:4])
	}
	for _, b := range data[4:16] {
		if b != 0 {
			t.Fatalf("expected padding zero, got %x", data[4:16])
		}
	}
	if got := common.BytesToAddress(data[16:36]); got != holder {
		t.Fatalf("expected holder %s, got %s", holder, got)
	}
}

func TestWordFromBytes(t *testing.T) {
	if got := WordFromBytes(nil); got != (common.Hash{}) {
		t.Fatalf("expected zero word for empty input, got %s", got)
	}
	raw := make([]byte, 40)
	raw[31] = 0x09
	raw[39] = 0xff
	got := WordFromBytes(raw)
	want := common.Hash{}
	want[31] = 0x09
	if got != want {
		t.Fatalf("expected first 32 bytes only, got %s want %s", got, want)
	}
}

func TestU8FromBytes(t *testing.T) {
	if U8FromBytes(nil) != 0 {
		t.Fatalf("expected 0 for empty input")
	}
	if U8FromBytes([]byte{0x01, 0x02, 0x12}) != 0x12 {
		t.Fatalf("expected final byte")
	}
}

func TestRatioZeroDenominator(t *testing.T) {
	if r := Ratio(big.NewInt(123), big.NewInt(0), 0); !math.IsInf(r, 1) {
		t.Fatalf("expected +Inf, got %v", r)
	}
}

func TestRatioExactInteger(t *testing.T) {
	y := big.NewInt(1_000_000)
	k := int64(7)
	x := new(big.Int).Mul(y, big.NewInt(k))
	if r := Ratio(x, y, 0); r != float64(k) {
		t.Fatalf("expected %v, got %v", k, r)
	}
}

func TestRatioOverflowReturnsInf(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	one := big.NewInt(1)
	if r := Ratio(huge, one, 10_000); !math.IsInf(r, 1) {
		t.Fatalf("expected +Inf on overflow, got %v", r)
	}
}
