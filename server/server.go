// Package server implements the HTTP adapter in front of the discovery
// core: one route, GET /{chain}/{token}, mapping chain labels to pre-bound
// rpcclient.Clients, consulting the cache, and translating slotfinder's
// error taxonomy into the status code table spec §6 defines.
//
// Grounded on the source service's search_handler/Response/AppError
// (handlers.rs) and its AppState/Chain provider map (state.rs), reworked
// onto httprouter instead of axum's extractor-based routing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/julienschmidt/httprouter"

	"github.com/evmtoolkit/slotfind/cache"
	"github.com/evmtoolkit/slotfind/rpcclient"
	"github.com/evmtoolkit/slotfind/slotfinder"
)

// RecognizedChains is the closed set of chain labels the adapter accepts in
// the URL's {chain} segment, mirroring the source service's Chain enum
// (state.rs). A label outside this set is UnknownChain; a label inside it
// with no bound client is ProviderUnavailable — the distinction the source's
// ChainNotFound/ProviderNotFound split also draws.
var RecognizedChains = []string{"ethereum", "arbitrum", "optimism", "avalanche"}

// Handler wires a set of per-chain clients, a cache, and a per-request
// timeout into an http.Handler implementing the spec's single route.
type Handler struct {
	recognized map[string]bool
	clients    map[string]rpcclient.Client
	cache      cache.Store
	timeout    time.Duration
	mux        *httprouter.Router
}

// New builds a Handler. clients maps recognized chain labels (as accepted
// in the URL's {chain} segment) to their pre-bound RpcClient; a recognized
// label without an entry in clients is reported as ProviderUnavailable
// rather than UnknownChain.
func New(clients map[string]rpcclient.Client, store cache.Store, timeout time.Duration) *Handler {
	recognized := make(map[string]bool, len(RecognizedChains))
	for _, label := range RecognizedChains {
		recognized[label] = true
	}
	h := &Handler{recognized: recognized, clients: clients, cache: store, timeout: timeout}
	h.mux = httprouter.New()
	h.mux.GET("/:chain/:token", h.search)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

// response is the wire shape spec §6 names: { success, msg?, error? }.
type response struct {
	Success bool                  `json:"success"`
	Msg     *cache.SearchResponse `json:"msg,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	start := time.Now()
	chainLabel := ps.ByName("chain")
	tokenStr := ps.ByName("token")

	log.Info("server: request received", "chain", chainLabel, "token", tokenStr)

	result, status, err := h.handle(r.Context(), chainLabel, tokenStr)
	if err != nil {
		writeError(w, status, err)
		log.Info("server: request failed", "chain", chainLabel, "token", tokenStr,
			"status", status, "err", err, "duration", time.Since(start))
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Msg: result})
	log.Info("server: request served", "chain", chainLabel, "token", tokenStr,
		"duration", time.Since(start))
}

// handle implements spec §4.7's boundary logic: chain/token parsing, cache
// consult, deadline-bound find, negative-cache write on NoValidSlot.
func (h *Handler) handle(ctx context.Context, chainLabel, tokenStr string) (*cache.SearchResponse, int, error) {
	if !h.recognized[chainLabel] {
		return nil, http.StatusBadRequest, errUnknownChain(chainLabel)
	}
	client, ok := h.clients[chainLabel]
	if !ok {
		return nil, http.StatusBadRequest, errProviderUnavailable(chainLabel)
	}
	if !common.IsHexAddress(tokenStr) {
		return nil, http.StatusBadRequest, errInvalidToken(tokenStr)
	}
	token := common.HexToAddress(tokenStr)

	key := cache.Key(token, chainLabel)
	if cached, hit, err := h.cache.Get(ctx, key); err != nil {
		log.Debug("server: cache get failed", "key", key, "err", err)
	} else if hit {
		if cached == nil {
			return nil, http.StatusNotFound, slotfinder.ErrNoValidSlot
		}
		return cached, http.StatusOK, nil
	}

	deadline, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	result, err := slotfinder.FindSlot(deadline, client, token, common.Address{})
	if err != nil {
		if errors.Is(deadline.Err(), context.DeadlineExceeded) {
			return nil, http.StatusGatewayTimeout, slotfinder.NewKindError(slotfinder.KindTimeout, err)
		}
		if slotfinder.Is(err, slotfinder.KindNoValidSlot) || slotfinder.Is(err, slotfinder.KindNoCandidates) {
			if setErr := h.cache.SetNegative(ctx, key); setErr != nil {
				log.Debug("server: negative cache write failed", "key", key, "err", setErr)
			}
			return nil, http.StatusNotFound, err
		}
		if slotfinder.Is(err, slotfinder.KindInvalidToken) || slotfinder.Is(err, slotfinder.KindUnknownChain) ||
			slotfinder.Is(err, slotfinder.KindProviderUnavailable) {
			return nil, http.StatusBadRequest, err
		}
		return nil, http.StatusInternalServerError, err
	}

	out := toSearchResponse(token, result)
	if setErr := h.cache.SetPositive(ctx, key, out); setErr != nil {
		log.Debug("server: cache write failed", "key", key, "err", setErr)
	}
	return &out, http.StatusOK, nil
}

func toSearchResponse(token common.Address, r slotfinder.Result) cache.SearchResponse {
	return cache.SearchResponse{
		Token:       token.Hex(),
		Contract:    r.Contract.Hex(),
		Slot:        r.Slot.Big().String(),
		UpdateRatio: r.UpdateRatio,
		Lang:        r.Dialect.Label(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError redacts everything but InvalidToken/UnknownChain/
// ProviderUnavailable/NoCandidates/NoValidSlot/Timeout to a generic message, per spec
// §7's "internal errors are redacted to the caller, detailed in logs."
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("server: internal error", "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, response{Success: false, Error: msg})
}

func errUnknownChain(label string) error {
	return slotfinder.NewKindError(slotfinder.KindUnknownChain, unknownChainError{label})
}

func errProviderUnavailable(label string) error {
	return slotfinder.NewKindError(slotfinder.KindProviderUnavailable, providerUnavailableError{label})
}

func errInvalidToken(raw string) error {
	return slotfinder.NewKindError(slotfinder.KindInvalidToken, invalidTokenError{raw})
}

type unknownChainError struct{ label string }

func (e unknownChainError) Error() string { return "unknown chain: " + e.label }

type providerUnavailableError struct{ label string }

func (e providerUnavailableError) Error() string { return "no provider configured for chain: " + e.label }

type invalidTokenError struct{ raw string }

func (e invalidTokenError) Error() string { return "invalid token address: " + e.raw }
