// Package slotfinder orchestrates the discovery pipeline end to end: trace
// the balanceOf call, parse candidates from the trace, validate every
// candidate concurrently, and select the one whose update ratio is closest
// to 1.0. See DESIGN.md: grounded on original_source/src/slot_finder/mod.rs.
package slotfinder

import (
	"context"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/evmtoolkit/slotfind/codec"
	"github.com/evmtoolkit/slotfind/dialect"
	"github.com/evmtoolkit/slotfind/rpcclient"
	"github.com/evmtoolkit/slotfind/slotvalidator"
	"github.com/evmtoolkit/slotfind/traceparser"
)

// SentinelHolder is used as the holder address when the caller doesn't
// supply one. It must be non-zero: several tokens short-circuit balanceOf
// for the zero address with a hardcoded zero return, which would starve the
// trace of any holder-keyed SLOAD to observe.
var SentinelHolder = common.HexToAddress("0x0000000000000000000000000000000000000001")

// probeGasLimit bounds the initial traced balanceOf call.
const probeGasLimit = 200_000

// Result is the terminal payload of a successful discovery.
type Result struct {
	Contract    common.Address
	Slot        common.Hash
	UpdateRatio float64
	Dialect     dialect.Dialect
}

// FindSlot locates the storage slot backing token.balanceOf. If holder is
// the zero address, SentinelHolder is used instead.
func FindSlot(ctx context.Context, client rpcclient.Client, token common.Address, holder common.Address) (Result, error) {
	if holder == (common.Address{}) {
		holder = SentinelHolder
	}

	req := rpcclient.CallRequest{
		From:     holder,
		To:       token,
		Data:     codec.EncodeBalanceOf(holder),
		GasLimit: probeGasLimit,
	}

	trace, err := client.TraceCall(ctx, req)
	if err != nil {
		if rpcclient.IsTraceFailed(err) {
			log.Debug("balanceOf trace reverted", "token", token, "err", err)
			return Result{}, newErr(KindTraceFailed, err)
		}
		return Result{}, newErr(KindTransport, err)
	}

	candidates, err := traceparser.Parse(trace, token, holder)
	if err != nil {
		return Result{}, newErr(KindTraceFailed, err)
	}
	if len(candidates) == 0 {
		log.Debug("no holder-derived SLOAD found", "token", token)
		return Result{}, newErr(KindNoCandidates, nil)
	}
	log.Debug("trace parsed", "token", token, "candidates", len(candidates))

	results := make([]slotvalidator.Result, len(candidates))
	ok := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			r, err := slotvalidator.Validate(gctx, client, c, token, holder)
			if err != nil {
				if slotvalidator.IsNotReflected(err) {
					return nil
				}
				return err
			}
			results[i] = r
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, newErr(KindTransport, err)
	}

	best, found := selectBest(candidates, results, ok)
	if !found {
		log.Debug("no candidate override perturbed the reflected balance", "token", token, "candidates", len(candidates))
		return Result{}, newErr(KindNoValidSlot, nil)
	}
	log.Debug("slot found", "token", token, "contract", best.Candidate.Contract, "slot", best.Candidate.Slot, "ratio", best.Ratio)

	return Result{
		Contract:    best.Candidate.Contract,
		Slot:        best.Candidate.Slot,
		UpdateRatio: best.Ratio,
		Dialect:     best.Candidate.Dialect,
	}, nil
}

// selectBest picks the validated result minimizing |ratio-1.0|, breaking
// ties by first-observation (candidate) order.
func selectBest(candidates []traceparser.Candidate, results []slotvalidator.Result, ok []bool) (slotvalidator.Result, bool) {
	var best slotvalidator.Result
	bestDist := math.Inf(1)
	found := false

	for i := range candidates {
		if !ok[i] {
			continue
		}
		dist := math.Abs(results[i].Ratio - 1.0)
		if !found || dist < bestDist {
			best = results[i]
			bestDist = dist
			found = true
		}
	}
	return best, found
}
