// Package gethrpc implements rpcclient.Client against a real (or forked)
// node: plain and state-overridden eth_call via go-ethereum's own
// ethclient/gethclient, and a stepwise trace via the node's native
// debug_traceCall struct-log tracer. This is the §4.3(a) backend; localtracer
// is the in-process alternative.
package gethrpc

import (
	"context"
	"errors"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/eth/tracers/logger"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/evmtoolkit/slotfind/rpcclient"
)

// Client wraps a single JSON-RPC connection to one chain's node.
type Client struct {
	rpc  *rpc.Client
	geth *gethclient.Client
}

// Dial connects to endpoint and returns a ready Client.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rc, geth: gethclient.New(rc)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() { c.rpc.Close() }

var _ rpcclient.Client = (*Client)(nil)

func (c *Client) Call(ctx context.Context, req rpcclient.CallRequest) ([]byte, error) {
	ret, err := c.geth.CallContract(ctx, toCallMsg(req), nil, nil)
	if err != nil {
		return nil, rpcclient.NewTransportError(err)
	}
	return ret, nil
}

func (c *Client) CallWithOverrides(ctx context.Context, req rpcclient.CallRequest, overrides rpcclient.Overrides) ([]byte, error) {
	ov := toGethOverrides(overrides)
	ret, err := c.geth.CallContract(ctx, toCallMsg(req), nil, &ov)
	if err != nil {
		return nil, rpcclient.NewTransportError(err)
	}
	return ret, nil
}

// traceCallObject is the debug_traceCall call-object parameter: the same
// shape as eth_call's, but with hex-string fields since it's marshaled
// straight to JSON-RPC rather than through ethclient's typed CallMsg.
type traceCallObject struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Data string `json:"data,omitempty"`
	Gas  string `json:"gas,omitempty"`
}

// traceConfig requests a plain struct-log trace: stack and memory captured,
// no named tracer (so the reply decodes as logger.ExecutionResult), storage
// snapshots skipped since traceparser never needs them (see DESIGN.md).
type traceConfig struct {
	DisableStorage bool `json:"disableStorage"`
	EnableMemory   bool `json:"enableMemory"`
}

func (c *Client) TraceCall(ctx context.Context, req rpcclient.CallRequest) ([]rpcclient.TraceStep, error) {
	obj := traceCallObject{
		From: req.From.Hex(),
		To:   req.To.Hex(),
		Data: hexutil.Encode(req.Data),
		Gas:  hexutil.EncodeUint64(req.GasLimit),
	}
	cfg := traceConfig{DisableStorage: true, EnableMemory: true}

	var result logger.ExecutionResult
	if err := c.rpc.CallContext(ctx, &result, "debug_traceCall", obj, "latest", cfg); err != nil {
		return nil, rpcclient.NewTransportError(err)
	}
	if result.Failed {
		return nil, rpcclient.NewTraceFailedError(errors.New("balanceOf call reverted"))
	}
	return stepsFromStructLogs(result.StructLogs)
}

func toCallMsg(req rpcclient.CallRequest) geth.CallMsg {
	return geth.CallMsg{
		From:     req.From,
		To:       &req.To,
		Gas:      req.GasLimit,
		GasPrice: nil,
		Value:    nil,
		Data:     req.Data,
	}
}

func toGethOverrides(overrides rpcclient.Overrides) map[common.Address]gethclient.OverrideAccount {
	out := make(map[common.Address]gethclient.OverrideAccount, len(overrides))
	for addr, ov := range overrides {
		out[addr] = gethclient.OverrideAccount{StateDiff: ov.StateDiff}
	}
	return out
}

// stepsFromStructLogs converts the node's hex-encoded struct-log rows into
// TraceSteps, the shape traceparser expects.
func stepsFromStructLogs(logs []logger.StructLogRes) ([]rpcclient.TraceStep, error) {
	steps := make([]rpcclient.TraceStep, len(logs))
	for i, l := range logs {
		steps[i] = rpcclient.TraceStep{
			Op:     l.Op,
			Depth:  l.Depth,
			Stack:  wordsFromHexStack(l.Stack),
			Memory: bytesFromHexMemory(l.Memory),
		}
	}
	return steps, nil
}

// wordsFromHexStack decodes struct-log stack entries. Unlike memory, these
// are emitted as trimmed hex (e.g. "0x9", not left-padded to 32 bytes), so
// common.HexToHash (which left-pads odd-length hex itself) is used instead
// of hexutil.Decode, which requires an even number of hex digits.
func wordsFromHexStack(stack *[]string) []common.Hash {
	if stack == nil {
		return nil
	}
	words := make([]common.Hash, len(*stack))
	for i, s := range *stack {
		words[i] = common.HexToHash(s)
	}
	return words
}

func bytesFromHexMemory(memory *[]string) []byte {
	if memory == nil {
		return nil
	}
	buf := make([]byte, 0, len(*memory)*32)
	for _, chunk := range *memory {
		buf = append(buf, common.HexToHash(chunk).Bytes()...)
	}
	return buf
}
