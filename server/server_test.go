package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/evmtoolkit/slotfind/cache"
	"github.com/evmtoolkit/slotfind/internal/fakerpc"
	"github.com/evmtoolkit/slotfind/internal/faketrace"
	"github.com/evmtoolkit/slotfind/rpcclient"
)

// preimageHash mirrors slotfinder's test helper: the KECCAK256 of h0||h1, the
// same way a real trace's SHA3 step output (and thus the SLOAD slot index
// derived from it) would be computed.
func preimageHash(h0, h1 common.Hash) common.Hash {
	return crypto.Keccak256Hash(append(append([]byte{}, h0[:]...), h1[:]...))
}

func mappingBalance(mapLoc common.Hash, pristine common.Hash) fakerpc.BalanceFunc {
	return func(_ common.Address, overrides rpcclient.Overrides) common.Hash {
		for _, ov := range overrides {
			if v, ok := ov.StateDiff[mapLoc]; ok {
				return v
			}
		}
		return pristine
	}
}

func tokenFixture() (common.Address, *fakerpc.Client) {
	contract := common.HexToAddress("0x00000000000000000000000000000000000abc")
	holder := common.HexToAddress("0x0000000000000000000000000000000000000001")
	slot := faketrace.Word(9)

	holderWord := common.BytesToHash(holder.Bytes())
	mapLoc := preimageHash(holderWord, slot)

	client := &fakerpc.Client{
		Trace: []rpcclient.TraceStep{
			faketrace.SHA3(1, holderWord, slot),
			faketrace.SLOAD(1, mapLoc),
		},
		Balance: mappingBalance(mapLoc, faketrace.Word(1_000_000)),
	}
	return contract, client
}

func TestSearchServesAndCachesResult(t *testing.T) {
	contract, client := tokenFixture()
	store, err := cache.NewMemStore(16)
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}

	h := New(map[string]rpcclient.Client{"ethereum": client}, store, 5*time.Second)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ethereum/" + contract.Hex())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Success bool                  `json:"success"`
		Msg     *cache.SearchResponse `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Msg == nil {
		t.Fatalf("expected successful response with msg, got %+v", body)
	}
	if body.Msg.Contract != contract.Hex() {
		t.Fatalf("unexpected contract: %+v", body.Msg)
	}

	cached, hit, err := store.Get(context.Background(), cache.Key(contract, "ethereum"))
	if err != nil || !hit || cached == nil {
		t.Fatalf("expected cache to be populated after a successful lookup: hit=%v err=%v", hit, err)
	}
}

func TestSearchUnknownChainIs400(t *testing.T) {
	store, _ := cache.NewMemStore(16)
	h := New(map[string]rpcclient.Client{}, store, time.Second)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/noop/0x00000000000000000000000000000000000abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSearchRecognizedChainWithNoProviderIs400(t *testing.T) {
	store, _ := cache.NewMemStore(16)
	h := New(map[string]rpcclient.Client{}, store, time.Second)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/arbitrum/0x00000000000000000000000000000000000abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSearchInvalidTokenIs400(t *testing.T) {
	store, _ := cache.NewMemStore(16)
	client := &fakerpc.Client{}
	h := New(map[string]rpcclient.Client{"ethereum": client}, store, time.Second)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ethereum/not-an-address")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSearchNoCandidatesIs404AndCachesNegative(t *testing.T) {
	contract := common.HexToAddress("0x00000000000000000000000000000000000abc")
	store, _ := cache.NewMemStore(16)
	client := &fakerpc.Client{Trace: []rpcclient.TraceStep{{Op: "ADD", Depth: 1}}}

	h := New(map[string]rpcclient.Client{"ethereum": client}, store, time.Second)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ethereum/" + contract.Hex())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	_, hit, err := store.Get(context.Background(), cache.Key(contract, "ethereum"))
	if err != nil || !hit {
		t.Fatalf("expected negative cache entry, hit=%v err=%v", hit, err)
	}
}
