// Package codec holds the pure byte<->value conversions the rest of the
// module needs: balanceOf calldata construction and word/byte decoding.
package codec

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// balanceOfSelector is the 4-byte function selector for balanceOf(address).
var balanceOfSelector = [4]byte{0x70, 0xa0, 0x82, 0x31}

// EncodeBalanceOf builds the 36-byte calldata for balanceOf(holder): the
// 4-byte selector followed by holder left-padded to a 32-byte word.
func EncodeBalanceOf(holder common.Address) []byte {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector[:]...)
	data = append(data, common.LeftPadBytes(holder.Bytes(), 32)...)
	return data
}

// WordFromBytes takes the first 32 bytes of b as a storage word. An empty
// input (e.g. a call to a non-existent contract) decodes as the zero word,
// since an eth_call return value for balanceOf is always either empty or a
// single 32-byte word.
func WordFromBytes(b []byte) common.Hash {
	if len(b) == 0 {
		return common.Hash{}
	}
	n := len(b)
	if n > 32 {
		n = 32
	}
	var w common.Hash
	copy(w[:], b[:n])
	return w
}

// U8FromBytes returns the final byte of b, or 0 if b is empty, e.g. for a
// decimals() return value. Neither the discovery core nor the service
// adapter calls it.
func U8FromBytes(b []byte) uint8 {
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1]
}

// defaultPrecisionMul is the scaling factor ratio computations use when the
// caller doesn't specify one.
const defaultPrecisionMul = 10_000

// Ratio computes (numerator*precisionMul)/denominator in widened arithmetic
// and narrows the result to a float64 by dividing back out the scaling
// factor. denominator == 0 or a quotient too large to represent in 128 bits
// both yield +Inf rather than panicking or silently overflowing — numerator
// can be within a hair of 2^256, so the intermediate product routinely
// exceeds 256 bits.
func Ratio(numerator, denominator *big.Int, precisionMul int64) float64 {
	if precisionMul <= 0 {
		precisionMul = defaultPrecisionMul
	}
	if denominator == nil || denominator.Sign() == 0 {
		return math.Inf(1)
	}

	scaled := new(big.Int).Mul(numerator, big.NewInt(precisionMul))
	quotient := new(big.Int).Quo(scaled, denominator)

	maxUint128 := new(big.Int).Lsh(big.NewInt(1), 128)
	if quotient.Cmp(maxUint128) >= 0 || quotient.Sign() < 0 {
		return math.Inf(1)
	}

	ratio := new(big.Float).SetInt(quotient)
	ratio.Quo(ratio, big.NewFloat(float64(precisionMul)))
	f, _ := ratio.Float64()
	return f
}
