package slotfinder

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/evmtoolkit/slotfind/dialect"
	"github.com/evmtoolkit/slotfind/internal/fakerpc"
	"github.com/evmtoolkit/slotfind/internal/faketrace"
	"github.com/evmtoolkit/slotfind/rpcclient"
)

var (
	token  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	holder = SentinelHolder
)

// preimageHash computes the KECCAK256 of h0||h1, the same way a real trace's
// SHA3 step output (and thus the SLOAD slot index derived from it) would.
func preimageHash(h0, h1 common.Hash) common.Hash {
	return crypto.Keccak256Hash(append(append([]byte{}, h0[:]...), h1[:]...))
}

func mappingBalance(slot, mapLoc common.Hash, pristine int64) fakerpc.BalanceFunc {
	return func(_ common.Address, overrides rpcclient.Overrides) common.Hash {
		for _, ov := range overrides {
			if v, ok := ov.StateDiff[mapLoc]; ok {
				return v
			}
		}
		return faketrace.Word(uint64(pristine))
	}
}

func TestFindSlotDialectAOneToOne(t *testing.T) {
	slot := faketrace.Word(9)
	holderWord := common.BytesToHash(holder.Bytes())
	mapLoc := preimageHash(holderWord, slot)

	trace := []rpcclient.TraceStep{
		faketrace.SHA3(1, holderWord, slot),
		faketrace.SLOAD(1, mapLoc),
	}

	client := &fakerpc.Client{
		Trace:   trace,
		Balance: mappingBalance(slot, mapLoc, 1_000_000),
	}

	result, err := FindSlot(context.Background(), client, token, common.Address{})
	if err != nil {
		t.Fatalf("FindSlot: %v", err)
	}
	if result.Contract != token || result.Slot != slot || result.Dialect != dialect.A {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.UpdateRatio != 1.0 {
		t.Fatalf("expected unit ratio, got %v", result.UpdateRatio)
	}
}

func TestFindSlotNoCandidates(t *testing.T) {
	client := &fakerpc.Client{
		Trace:   []rpcclient.TraceStep{{Op: "ADD", Depth: 1}},
		Balance: func(common.Address, rpcclient.Overrides) common.Hash { return common.Hash{} },
	}

	_, err := FindSlot(context.Background(), client, token, common.Address{})
	if !Is(err, KindNoCandidates) {
		t.Fatalf("expected KindNoCandidates, got %v", err)
	}
}

func TestFindSlotNoValidSlot(t *testing.T) {
	slot := faketrace.Word(9)
	holderWord := common.BytesToHash(holder.Bytes())
	mapLoc := preimageHash(holderWord, slot)

	trace := []rpcclient.TraceStep{
		faketrace.SHA3(1, holderWord, slot),
		faketrace.SLOAD(1, mapLoc),
	}
	client := &fakerpc.Client{
		Trace:   trace,
		Balance: func(common.Address, rpcclient.Overrides) common.Hash { return faketrace.Word(7) }, // never moves
	}

	_, err := FindSlot(context.Background(), client, token, common.Address{})
	if !Is(err, KindNoValidSlot) {
		t.Fatalf("expected KindNoValidSlot, got %v", err)
	}
}

func TestFindSlotTraceFailedPropagates(t *testing.T) {
	client := &fakerpc.Client{TraceErr: rpcclient.NewTraceFailedError(errors.New("execution reverted"))}

	_, err := FindSlot(context.Background(), client, token, common.Address{})
	if !Is(err, KindTraceFailed) {
		t.Fatalf("expected KindTraceFailed, got %v", err)
	}
}

func TestFindSlotSelectsClosestToUnitRatio(t *testing.T) {
	slotA := faketrace.Word(9)
	slotB := faketrace.Word(10)
	holderWord := common.BytesToHash(holder.Bytes())

	mapLocA := preimageHash(holderWord, slotA)
	mapLocB := preimageHash(holderWord, slotB)

	trace := []rpcclient.TraceStep{
		faketrace.SHA3(1, holderWord, slotA),
		faketrace.SLOAD(1, mapLocA),
		faketrace.SHA3(1, holderWord, slotB),
		faketrace.SLOAD(1, mapLocB),
	}

	client := &fakerpc.Client{
		Trace: trace,
		Balance: func(_ common.Address, overrides rpcclient.Overrides) common.Hash {
			for _, ov := range overrides {
				if v, ok := ov.StateDiff[mapLocA]; ok {
					return v // slotA: unit ratio
				}
				if v, ok := ov.StateDiff[mapLocB]; ok {
					doubled := new(big.Int).Mul(v.Big(), big.NewInt(2))
					return common.BigToHash(doubled)
				}
			}
			return faketrace.Word(1_000_000)
		},
	}

	result, err := FindSlot(context.Background(), client, token, common.Address{})
	if err != nil {
		t.Fatalf("FindSlot: %v", err)
	}
	if result.Slot != slotA {
		t.Fatalf("expected slotA (unit ratio) to win, got slot %s ratio %v", result.Slot, result.UpdateRatio)
	}
}
