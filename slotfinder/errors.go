package slotfinder

import (
	"errors"
	"fmt"
)

// Kind is the closed set of outcome kinds the discovery pipeline and its
// callers (server) reason about. It spans both orchestrator-level failures
// (NoCandidates, NoValidSlot, TraceFailed) and the boundary-level failures
// server.go maps onto it (InvalidToken, UnknownChain, ProviderUnavailable,
// Timeout), so the whole call chain can be inspected with one errors.As.
type Kind int

const (
	// KindTransport is an RPC/network failure talking to the backing node.
	KindTransport Kind = iota
	// KindTraceFailed means the initial balanceOf call reverted inside the token.
	KindTraceFailed
	// KindNoCandidates means the trace parser found no holder-derived SLOAD.
	KindNoCandidates
	// KindNoValidSlot means no candidate's override perturbed the reflected balance.
	KindNoValidSlot
	// KindInvalidToken means the token address failed to parse.
	KindInvalidToken
	// KindUnknownChain means the chain label is not in the recognized set.
	KindUnknownChain
	// KindProviderUnavailable means the chain is recognized but has no bound RpcClient.
	KindProviderUnavailable
	// KindTimeout means the per-request deadline expired before a result was produced.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindTraceFailed:
		return "TraceFailed"
	case KindNoCandidates:
		return "NoCandidates"
	case KindNoValidSlot:
		return "NoValidSlot"
	case KindInvalidToken:
		return "InvalidToken"
	case KindUnknownChain:
		return "UnknownChain"
	case KindProviderUnavailable:
		return "ProviderUnavailable"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error pairs a Kind with the underlying cause, if any.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newErr builds a *Error, defaulting Err to a bare sentinel for the Kind when err is nil.
func newErr(kind Kind, err error) error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Err: err}
}

// NewKindError builds a Kind-tagged error for callers outside this package
// (the server adapter, which reasons about boundary-only kinds like
// InvalidToken and UnknownChain that the orchestrator itself never raises).
func NewKindError(kind Kind, err error) error { return newErr(kind, err) }

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrNoValidSlot is the sentinel matched against a cached negative result.
var ErrNoValidSlot = newErr(KindNoValidSlot, nil)
