// Package slotvalidator checks a single trace-derived candidate by writing a
// randomized value to its mapping location under a state override and
// comparing the reflected balanceOf against the pristine one. See
// DESIGN.md: grounded on original_source/src/slot_finder/slot_finder.rs
// (slot_update_to_bal_ratio), with the override/real calls run concurrently
// via errgroup the way original_source's two-future join does.
package slotvalidator

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/evmtoolkit/slotfind/codec"
	"github.com/evmtoolkit/slotfind/dialect"
	"github.com/evmtoolkit/slotfind/evmword"
	"github.com/evmtoolkit/slotfind/rpcclient"
	"github.com/evmtoolkit/slotfind/traceparser"
)

// Kind classifies the sentinel errors Validate may return, distinct from
// rpcclient.Kind since NotReflected has no transport analogue.
type Kind int

const (
	// KindTransport propagates an underlying rpcclient transport failure.
	KindTransport Kind = iota
	// KindNotReflected means the override left the reported balance unchanged.
	KindNotReflected
)

// ErrNotReflected is the sentinel wrapped by a KindNotReflected Error.
var ErrNotReflected = errors.New("override did not change reflected balance")

// Error pairs a Kind with its cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsNotReflected reports whether err (or something it wraps) is a KindNotReflected Error.
func IsNotReflected(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindNotReflected
	}
	return false
}

// Result is the outcome of validating one candidate: the update ratio
// between the randomized override and the balance it produced.
type Result struct {
	Candidate traceparser.Candidate
	Ratio     float64
}

// gasLimit bounds every balanceOf probe call, per the CallReq contract.
const gasLimit = 200_000

// Validate mutates c's mapping location under a call-scoped override and
// compares the resulting balance against the unmodified one, returning the
// multiplicative ratio between the randomized write and the balance it
// produced.
func Validate(ctx context.Context, client rpcclient.Client, c traceparser.Candidate, token, holder common.Address) (Result, error) {
	mapLoc := dialect.MappingLocation(c.Dialect, c.Slot, evmword.AddressToWord(holder))

	r := randomWord()

	req := rpcclient.CallRequest{
		From:     holder,
		To:       token,
		Data:     codec.EncodeBalanceOf(holder),
		GasLimit: gasLimit,
	}
	overrides := rpcclient.Overrides{
		c.Contract: {StateDiff: map[common.Hash]common.Hash{mapLoc: r}},
	}

	var overrideRaw, realRaw []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := client.CallWithOverrides(gctx, req, overrides)
		if err != nil {
			return err
		}
		overrideRaw = raw
		return nil
	})
	g.Go(func() error {
		raw, err := client.Call(gctx, req)
		if err != nil {
			return err
		}
		realRaw = raw
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, &Error{Kind: KindTransport, Err: err}
	}

	overrideBalance := codec.WordFromBytes(overrideRaw)
	realBalance := codec.WordFromBytes(realRaw)
	if overrideBalance == realBalance {
		return Result{}, &Error{Kind: KindNotReflected, Err: ErrNotReflected}
	}

	ratio := codec.Ratio(overrideBalance.Big(), r.Big(), 0)
	return Result{Candidate: c, Ratio: ratio}, nil
}

// randomWord draws a random 128-bit value, widened into a 32-byte Word with
// the top 16 bytes zero.
func randomWord() common.Hash {
	var buf [16]byte
	for i := 0; i < 16; i += 8 {
		v := rand.Uint64()
		for j := 0; j < 8; j++ {
			buf[i+j] = byte(v >> (56 - 8*j))
		}
	}
	var w common.Hash
	copy(w[16:], buf[:])
	return w
}
