// Package faketrace synthesizes rpcclient.TraceStep sequences (SHA3 + SLOAD
// + CALL/DELEGATECALL framing) so traceparser and slotfinder are testable
// offline, without a live node's debug_traceCall.
package faketrace

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/evmtoolkit/slotfind/evmword"
	"github.com/evmtoolkit/slotfind/rpcclient"
)

// Word converts a small integer into a Word, left-padded with zeros.
func Word(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

// SHA3 builds a KECCAK256 step hashing the 64-byte buffer h0||h1, with the
// stack carrying [length=64, offset=0] (top last).
func SHA3(depth int, h0, h1 common.Hash) rpcclient.TraceStep {
	mem := append(append([]byte{}, h0[:]...), h1[:]...)
	return rpcclient.TraceStep{
		Op:     "SHA3",
		Depth:  depth,
		Stack:  []common.Hash{Word(64), Word(0)},
		Memory: mem,
	}
}

// SLOAD builds a storage-read step for the given hash-derived slot index.
func SLOAD(depth int, slotIdx common.Hash) rpcclient.TraceStep {
	return rpcclient.TraceStep{Op: "SLOAD", Depth: depth, Stack: []common.Hash{slotIdx}}
}

// Call builds a CALL or STATICCALL step transitioning into callee. The
// callee address is the second-from-top stack entry (gas is conventionally
// topmost), matching parseCall's Stack[len-2] read.
func Call(op string, depth int, callee common.Address) rpcclient.TraceStep {
	return rpcclient.TraceStep{
		Op:    op,
		Depth: depth,
		Stack: []common.Hash{evmword.AddressToWord(callee), {}},
	}
}

// DelegateCall builds a DELEGATECALL step (callee is irrelevant; the parser
// propagates the caller's own storage context).
func DelegateCall(depth int) rpcclient.TraceStep {
	return rpcclient.TraceStep{Op: "DELEGATECALL", Depth: depth, Stack: []common.Hash{{}, {}}}
}
