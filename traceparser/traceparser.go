// Package traceparser recovers candidate (storage-contract, slot, dialect)
// triples from a stepwise trace of one balanceOf call, by correlating
// KECCAK256 pre-images against subsequent SLOADs that read the resulting
// hash. See DESIGN.md for the grounding: this mirrors
// original_source/src/slot_finder/trace_parser.rs opcode for opcode.
package traceparser

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/evmtoolkit/slotfind/dialect"
	"github.com/evmtoolkit/slotfind/evmword"
	"github.com/evmtoolkit/slotfind/rpcclient"
)

// Candidate is one plausible (storage-contract, slot, dialect) triple the
// parser has extracted from a trace.
type Candidate struct {
	Contract common.Address
	Slot     common.Hash
	Dialect  dialect.Dialect
}

// preimage is the ordered pair of 32-byte halves a KECCAK256 step hashed.
type preimage struct {
	h0, h1 common.Hash
}

// Parse scans steps in order and returns the deduplicated set of candidates
// it observed, in first-observation order. A malformed step for an opcode
// that requires stack/memory data it doesn't have is a hard error; a clean
// parse that finds nothing is not — it returns an empty, non-nil slice.
func Parse(steps []rpcclient.TraceStep, token common.Address, holder common.Address) ([]Candidate, error) {
	holderWord := evmword.AddressToWord(holder)

	depthToContract := map[int]common.Address{1: token}
	hashes := map[common.Hash]preimage{}

	var order []Candidate
	seen := map[Candidate]struct{}{}

	emit := func(c Candidate) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		order = append(order, c)
	}

	for i, step := range steps {
		switch step.Op {
		case "KECCAK256", "SHA3":
			if err := parseKeccak(step, hashes); err != nil {
				return nil, fmt.Errorf("traceparser: step %d: %w", i, err)
			}
		case "SLOAD":
			c, ok, err := parseSload(step, depthToContract, hashes, holderWord)
			if err != nil {
				return nil, fmt.Errorf("traceparser: step %d: %w", i, err)
			}
			if ok {
				emit(c)
			}
		case "CALL", "STATICCALL":
			if err := parseCall(step, depthToContract); err != nil {
				return nil, fmt.Errorf("traceparser: step %d: %w", i, err)
			}
		case "DELEGATECALL":
			if err := parseDelegateCall(step, depthToContract); err != nil {
				return nil, fmt.Errorf("traceparser: step %d: %w", i, err)
			}
		}
	}

	if order == nil {
		order = []Candidate{}
	}
	return order, nil
}

// parseKeccak records the 64-byte pre-image of a storage-mapping hash. Only
// 64-byte inputs are interesting — any other length is some other use of the
// opcode (ABI encoding, dynamic-array hashing, etc.) and is ignored.
func parseKeccak(step rpcclient.TraceStep, hashes map[common.Hash]preimage) error {
	if len(step.Stack) < 2 {
		return fmt.Errorf("KECCAK256/SHA3: stack underflow")
	}
	top := step.Stack[len(step.Stack)-1]
	next := step.Stack[len(step.Stack)-2]
	offset := top.Big().Uint64()
	length := next.Big().Uint64()

	if length != 64 {
		return nil
	}
	if uint64(len(step.Memory)) < offset+length {
		return fmt.Errorf("KECCAK256/SHA3: memory window [%d:%d] exceeds buffer of length %d", offset, offset+length, len(step.Memory))
	}

	window := step.Memory[offset : offset+length]
	var h0, h1 common.Hash
	copy(h0[:], window[:32])
	copy(h1[:], window[32:64])

	hash := crypto.Keccak256Hash(window)
	hashes[hash] = preimage{h0: h0, h1: h1}
	return nil
}

// parseSload classifies a storage read against previously observed hash
// pre-images. It returns ok=false when the load's address wasn't derived
// from any recorded KECCAK256, i.e. this SLOAD is on some unrelated mapping.
func parseSload(
	step rpcclient.TraceStep,
	depthToContract map[int]common.Address,
	hashes map[common.Hash]preimage,
	holderWord common.Hash,
) (Candidate, bool, error) {
	if len(step.Stack) < 1 {
		return Candidate{}, false, fmt.Errorf("SLOAD: stack underflow")
	}
	slotIdx := step.Stack[len(step.Stack)-1]

	pre, ok := hashes[slotIdx]
	if !ok {
		return Candidate{}, false, nil
	}

	var slot common.Hash
	var d dialect.Dialect
	switch {
	case pre.h0 == holderWord:
		// Dialect A: keccak256(key ‖ slot) — key (h0) is the holder, h1 is the slot index.
		slot, d = pre.h1, dialect.A
	case pre.h1 == holderWord:
		// Dialect B: keccak256(slot ‖ key) — slot (h0) is the index, key (h1) is the holder.
		slot, d = pre.h0, dialect.B
	default:
		return Candidate{}, false, nil
	}

	contract, ok := depthToContract[step.Depth]
	if !ok {
		return Candidate{}, false, fmt.Errorf("SLOAD: no contract resolved for depth %d", step.Depth)
	}

	return Candidate{Contract: contract, Slot: slot, Dialect: d}, true, nil
}

// parseCall tracks the callee address a CALL/STATICCALL transitions into,
// since execution may SLOAD in a contract other than the token entry point
// (proxies, storage satellites).
func parseCall(step rpcclient.TraceStep, depthToContract map[int]common.Address) error {
	if len(step.Stack) < 2 {
		return fmt.Errorf("CALL/STATICCALL: stack underflow")
	}
	callee := evmword.WordToAddress(step.Stack[len(step.Stack)-2])
	depthToContract[step.Depth+1] = callee
	return nil
}

// parseDelegateCall propagates the caller's own storage context, since
// DELEGATECALL executes in the caller's storage.
func parseDelegateCall(step rpcclient.TraceStep, depthToContract map[int]common.Address) error {
	caller, ok := depthToContract[step.Depth]
	if !ok {
		return fmt.Errorf("DELEGATECALL: no contract resolved for depth %d", step.Depth)
	}
	depthToContract[step.Depth+1] = caller
	return nil
}
