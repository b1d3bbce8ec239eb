package gethrpc

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/eth/tracers/logger"

	"github.com/evmtoolkit/slotfind/rpcclient"
)

func strPtr(ss []string) *[]string { return &ss }

func TestStepsFromStructLogs(t *testing.T) {
	logs := []logger.StructLogRes{
		{
			Op:    "SLOAD",
			Depth: 2,
			Stack: strPtr([]string{"0x9", "0x0"}),
			Memory: strPtr([]string{
				"0000000000000000000000000000000000000000000000000000000000000001",
				"0000000000000000000000000000000000000000000000000000000000000002",
			}),
		},
	}

	steps, err := stepsFromStructLogs(logs)
	if err != nil {
		t.Fatalf("stepsFromStructLogs: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	s := steps[0]
	if s.Op != "SLOAD" || s.Depth != 2 {
		t.Fatalf("unexpected step: %+v", s)
	}
	if len(s.Stack) != 2 || s.Stack[0] != common.HexToHash("0x9") || s.Stack[1] != common.HexToHash("0x0") {
		t.Fatalf("unexpected stack: %+v", s.Stack)
	}
	if len(s.Memory) != 64 {
		t.Fatalf("expected 64-byte memory buffer, got %d", len(s.Memory))
	}
}

func TestToCallMsg(t *testing.T) {
	req := rpcclient.CallRequest{
		From:     common.HexToAddress("0x1"),
		To:       common.HexToAddress("0x2"),
		Data:     []byte{0xde, 0xad},
		GasLimit: 200_000,
	}
	msg := toCallMsg(req)
	if msg.From != req.From || *msg.To != req.To || msg.Gas != req.GasLimit {
		t.Fatalf("unexpected call msg: %+v", msg)
	}
}

func TestToGethOverrides(t *testing.T) {
	contract := common.HexToAddress("0x3")
	slot := common.HexToHash("0x9")
	value := common.HexToHash("0x2a")

	overrides := rpcclient.Overrides{
		contract: {StateDiff: map[common.Hash]common.Hash{slot: value}},
	}

	got := toGethOverrides(overrides)
	ov, ok := got[contract]
	if !ok {
		t.Fatalf("expected override entry for %s", contract)
	}
	if ov.StateDiff[slot] != value {
		t.Fatalf("expected state diff to carry through, got %+v", ov.StateDiff)
	}
}
