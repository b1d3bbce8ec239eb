// Package cache implements the best-effort result cache the service adapter
// consults before invoking the discovery core: an in-process tier (LRU for
// positive hits, a bloom filter guarding negative ones) plus an optional
// Redis-backed tier for the cross-process protocol. Cache writes never fail
// a request — callers log and move on.
package cache

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key builds the cache key for one (token, chain) pair: "{token-as-hex}:{chain-label}".
func Key(token common.Address, chain string) string {
	return fmt.Sprintf("%s:%s", token.Hex(), chain)
}

// Entry is the wire shape of one cache value: either a found result or an
// explicit "previously exhausted" marker. A zero Entry with Found == nil
// means the latter, matching the source protocol's Found(SearchResponse) |
// NotFound sum type.
type Entry struct {
	Found *SearchResponse `json:"found,omitempty"`
}

// SearchResponse is the discovery result shape shared with the HTTP
// adapter's response body (spec §6).
type SearchResponse struct {
	Token       string  `json:"token"`
	Contract    string  `json:"contract"`
	Slot        string  `json:"slot"`
	UpdateRatio float64 `json:"updateRatio"`
	Lang        string  `json:"lang"`
}

func (e Entry) marshal() ([]byte, error) { return json.Marshal(e) }

func unmarshalEntry(b []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(b, &e)
	return e, err
}
