// Package dialect encodes the two storage-mapping address conventions common
// EVM compilers emit: Solidity's keccak256(key ‖ slot) and Vyper's
// keccak256(slot ‖ key). Which one a given contract uses is only knowable by
// observation (see traceparser), so both live side by side here rather than
// one being treated as the default.
package dialect

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Dialect identifies which operand order a contract's compiler used when
// hashing a mapping key together with its slot index.
type Dialect uint8

const (
	// A is keccak256(key ‖ slot) — the ordering solc emits for Solidity mappings.
	A Dialect = iota
	// B is keccak256(slot ‖ key) — the ordering Vyper's compiler emits.
	B
)

// MappingLocation computes the storage key at which holder's entry in the
// mapping rooted at slot lives, in d's byte order.
func MappingLocation(d Dialect, slot common.Hash, holder common.Hash) common.Hash {
	var buf [64]byte
	switch d {
	case A:
		copy(buf[:32], holder[:])
		copy(buf[32:], slot[:])
	case B:
		copy(buf[:32], slot[:])
		copy(buf[32:], holder[:])
	}
	return crypto.Keccak256Hash(buf[:])
}

// Parse accepts case-insensitive labels for the two dialects. Anything else
// is an error.
func Parse(label string) (Dialect, error) {
	switch strings.ToLower(label) {
	case "a", "solidity":
		return A, nil
	case "b", "vyper":
		return B, nil
	default:
		return 0, fmt.Errorf("dialect: unknown label %q", label)
	}
}

// Label returns the canonical string form of d, as surfaced in SlotResult.
func (d Dialect) Label() string {
	switch d {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return "unknown"
	}
}

func (d Dialect) String() string { return d.Label() }
