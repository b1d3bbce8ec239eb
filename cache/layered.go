package cache

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
)

// layered prefers remote (cross-process, shared across server instances) and
// falls back to local on a miss, populating local from whatever remote
// returns so a cold in-process cache warms up after the first hit.
type layered struct {
	local  Store
	remote Store
}

// NewLayeredStore combines a local tier with an optional remote one. remote
// may be nil, in which case the returned Store is just local.
func NewLayeredStore(local, remote Store) Store {
	if remote == nil {
		return local
	}
	return &layered{local: local, remote: remote}
}

func (s *layered) Get(ctx context.Context, key string) (*SearchResponse, bool, error) {
	if result, hit, err := s.remote.Get(ctx, key); err != nil {
		log.Debug("cache: remote get failed, falling back to local", "key", key, "err", err)
	} else if hit {
		if result != nil {
			_ = s.local.SetPositive(ctx, key, *result)
		} else {
			_ = s.local.SetNegative(ctx, key)
		}
		return result, true, nil
	}
	return s.local.Get(ctx, key)
}

func (s *layered) SetPositive(ctx context.Context, key string, result SearchResponse) error {
	if err := s.remote.SetPositive(ctx, key, result); err != nil {
		log.Debug("cache: remote set failed", "key", key, "err", err)
	}
	return s.local.SetPositive(ctx, key, result)
}

func (s *layered) SetNegative(ctx context.Context, key string) error {
	if err := s.remote.SetNegative(ctx, key); err != nil {
		log.Debug("cache: remote set failed", "key", key, "err", err)
	}
	return s.local.SetNegative(ctx, key)
}
