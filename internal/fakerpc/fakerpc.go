// Package fakerpc implements rpcclient.Client in-memory for tests of
// slotvalidator, slotfinder, and server, so the discovery core is testable
// without a live node.
package fakerpc

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/evmtoolkit/slotfind/rpcclient"
)

// BalanceFunc computes the balanceOf(holder) word a Client should return for
// a given token's storage, given the per-account overrides in effect (nil
// when called without overrides).
type BalanceFunc func(token common.Address, overrides rpcclient.Overrides) common.Hash

// Client is a scriptable rpcclient.Client. Zero value is usable; set the
// exported fields before first use.
type Client struct {
	// Balance computes the balanceOf return value for Call/CallWithOverrides.
	Balance BalanceFunc
	// Trace is returned verbatim by TraceCall.
	Trace []rpcclient.TraceStep
	// TraceErr, if set, is returned by TraceCall instead of Trace.
	TraceErr error
	// CallErr, if set, is returned by Call and CallWithOverrides.
	CallErr error

	mu        sync.Mutex
	callCount int
}

// CallCount returns how many times Call or CallWithOverrides has been invoked.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCount
}

func (c *Client) countCall() {
	c.mu.Lock()
	c.callCount++
	c.mu.Unlock()
}

func (c *Client) Call(ctx context.Context, req rpcclient.CallRequest) ([]byte, error) {
	c.countCall()
	if c.CallErr != nil {
		return nil, rpcclient.NewTransportError(c.CallErr)
	}
	w := c.Balance(req.To, nil)
	return w.Bytes(), nil
}

func (c *Client) CallWithOverrides(ctx context.Context, req rpcclient.CallRequest, overrides rpcclient.Overrides) ([]byte, error) {
	c.countCall()
	if c.CallErr != nil {
		return nil, rpcclient.NewTransportError(c.CallErr)
	}
	w := c.Balance(req.To, overrides)
	return w.Bytes(), nil
}

func (c *Client) TraceCall(ctx context.Context, req rpcclient.CallRequest) ([]rpcclient.TraceStep, error) {
	if c.TraceErr != nil {
		return nil, c.TraceErr
	}
	return c.Trace, nil
}

var _ rpcclient.Client = (*Client)(nil)
