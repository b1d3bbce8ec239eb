// Package evmword converts between the two fixed-width values the rest of
// this module passes around: 20-byte addresses and 32-byte storage words.
package evmword

import "github.com/ethereum/go-ethereum/common"

// AddressToWord left-pads an address with twelve zero bytes, the layout the
// EVM uses whenever an address is used as a mapping key or pushed to the
// stack as a full word.
func AddressToWord(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// WordToAddress takes the low 20 bytes of a word, discarding any bytes
// beyond the 20-byte suffix. Used when a stack value is known to carry an
// address (e.g. the callee operand of CALL/STATICCALL).
func WordToAddress(w common.Hash) common.Address {
	return common.BytesToAddress(w.Bytes())
}
