// Package rpcclient defines the capability surface the discovery core
// requires of an external EVM node: a plain call, a call with transient
// storage overrides, and a stepwise execution trace. Two concrete
// implementations exist in this module — gethrpc (a real node) and
// localtracer (an in-process interpreter) — but the core only ever depends
// on this interface, never on either concrete type.
package rpcclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// CallRequest is the shape of every eth_call variant the core issues. The
// core always sets GasLimit; an unbounded gas ceiling would let a
// pathological token (branching on missing state, looping on a revert path)
// run for an unacceptably long time under trace instrumentation.
type CallRequest struct {
	From     common.Address
	To       common.Address
	Data     []byte
	GasLimit uint64
}

// AccountOverride is the transient state-diff applied to one account for the
// duration of a single call. Persistent state is never touched.
type AccountOverride struct {
	StateDiff map[common.Hash]common.Hash
}

// Overrides maps accounts to the storage slots to override for one call.
type Overrides map[common.Address]AccountOverride

// TraceStep is one instruction of a stepwise execution trace. Only a closed
// set of opcodes carries meaning to the trace parser: SLOAD, KECCAK256 (named
// SHA3 in older trace schemas — both spellings are accepted), CALL,
// STATICCALL, and DELEGATECALL. Every other opcode is present in a real trace
// but ignored here.
type TraceStep struct {
	// Op is the opcode mnemonic, e.g. "SLOAD", "SHA3"/"KECCAK256", "CALL".
	Op string
	// Depth is the call-stack depth this step executed at; depth 1 is the
	// outermost call (the token entry point).
	Depth int
	// Stack is ordered with the top of stack last.
	Stack []common.Hash
	// Memory is the full contiguous memory buffer visible at this step.
	Memory []byte
	// Storage is an optional snapshot of touched storage; the parser does
	// not require it (see traceparser), so backends may leave it nil.
	Storage map[common.Hash]common.Hash
}

// Kind classifies the sentinel errors a Client may return.
type Kind int

const (
	// KindTransport covers I/O failures talking to the backing node.
	KindTransport Kind = iota
	// KindTraceFailed means the traced call reverted inside the token.
	KindTraceFailed
)

// Error wraps a Kind with the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTraceFailed:
		return fmt.Sprintf("trace failed: %v", e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrTraceFailed is the cause a KindTraceFailed Error carries when
// NewTraceFailedError is given a nil err; errors.Is matches it only then.
// IsTraceFailed matches every KindTraceFailed Error.
var ErrTraceFailed = errors.New("trace call reverted")

// NewTransportError wraps err as a KindTransport Error. A nil err returns nil.
func NewTransportError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransport, Err: err}
}

// NewTraceFailedError wraps err (or, if nil, ErrTraceFailed) as a KindTraceFailed Error.
func NewTraceFailedError(err error) error {
	if err == nil {
		err = ErrTraceFailed
	}
	return &Error{Kind: KindTraceFailed, Err: err}
}

// IsTraceFailed reports whether err (or something it wraps) is a KindTraceFailed Error.
func IsTraceFailed(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTraceFailed
	}
	return false
}

// Client is the capability surface the discovery core requires of an
// external node. All methods must be safe for concurrent use: the core
// shares one Client across an arbitrary number of in-flight requests and,
// within one request, across concurrently validated candidates.
type Client interface {
	// Call performs a standard eth_call against the latest observable state.
	Call(ctx context.Context, req CallRequest) ([]byte, error)

	// CallWithOverrides performs an eth_call whose execution observes the
	// given per-account storage overrides without persisting them.
	CallWithOverrides(ctx context.Context, req CallRequest, overrides Overrides) ([]byte, error)

	// TraceCall returns a stepwise execution trace of req against the
	// latest observable state, with stack and memory capture enabled.
	TraceCall(ctx context.Context, req CallRequest) ([]TraceStep, error)
}
