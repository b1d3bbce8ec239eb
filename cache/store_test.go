package cache

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestKey(t *testing.T) {
	token := common.HexToAddress("0xabc")
	if got, want := Key(token, "ethereum"), token.Hex()+":ethereum"; got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestMemStoreMissThenPositiveHit(t *testing.T) {
	store, err := NewMemStore(16)
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	ctx := context.Background()
	key := "0xabc:ethereum"

	if _, hit, err := store.Get(ctx, key); err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	want := SearchResponse{Token: "0xabc", Contract: "0xdef", Slot: "1", UpdateRatio: 1.0, Lang: "A"}
	if err := store.SetPositive(ctx, key, want); err != nil {
		t.Fatalf("SetPositive: %v", err)
	}

	got, hit, err := store.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("expected positive hit, got hit=%v err=%v", hit, err)
	}
	if *got != want {
		t.Fatalf("Get() = %+v, want %+v", *got, want)
	}
}

func TestMemStoreNegativeHitReturnsNoResult(t *testing.T) {
	store, err := NewMemStore(16)
	if err != nil {
		t.Fatalf("NewMemStore: %v", err)
	}
	ctx := context.Background()
	key := "0xabc:ethereum"

	if err := store.SetNegative(ctx, key); err != nil {
		t.Fatalf("SetNegative: %v", err)
	}

	result, hit, err := store.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("expected negative hit, got hit=%v err=%v", hit, err)
	}
	if result != nil {
		t.Fatalf("expected nil result on a negative hit, got %+v", result)
	}
}

func TestLayeredPrefersRemoteThenFillsLocal(t *testing.T) {
	local, _ := NewMemStore(16)
	remote, _ := NewMemStore(16)
	ctx := context.Background()
	key := "0xabc:ethereum"

	want := SearchResponse{Token: "0xabc", Contract: "0xdef", Slot: "1", UpdateRatio: 1.0, Lang: "B"}
	if err := remote.SetPositive(ctx, key, want); err != nil {
		t.Fatalf("remote.SetPositive: %v", err)
	}

	store := NewLayeredStore(local, remote)
	got, hit, err := store.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("expected hit via remote, got hit=%v err=%v", hit, err)
	}
	if *got != want {
		t.Fatalf("Get() = %+v, want %+v", *got, want)
	}

	if _, hit, _ := local.Get(ctx, key); !hit {
		t.Fatalf("expected local tier to be warmed by the remote hit")
	}
}

func TestLayeredWithNilRemoteIsJustLocal(t *testing.T) {
	local, _ := NewMemStore(16)
	store := NewLayeredStore(local, nil)
	if store != Store(local) {
		t.Fatalf("expected NewLayeredStore(local, nil) to return local unchanged")
	}
}
