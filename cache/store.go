package cache

import (
	"context"
	"hash"
	"hash/fnv"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/bloomfilter/v2"
)

// Store is the cache handle the service adapter holds: one Get/Set pair per
// request, guarded however the concrete implementation sees fit (spec §5's
// "process-wide mutex guards the cache handle").
type Store interface {
	// Get reports a cache hit and, if the hit was positive, the stored
	// result. hit is false on a miss; hit is true with a nil result on a
	// negative ("previously exhausted") hit.
	Get(ctx context.Context, key string) (result *SearchResponse, hit bool, err error)
	SetPositive(ctx context.Context, key string, result SearchResponse) error
	SetNegative(ctx context.Context, key string) error
}

// negativeFilterBits/negativeFilterHashes size the in-process bloom filter:
// about a 0.2% false positive rate at half a million tracked negative
// entries, about 2% at a million. A false positive makes Get report a
// negative hit for a key that was never marked, so that request is answered
// as previously exhausted without a probe. Positives are always served from
// the LRU tier, never inferred from the filter.
const (
	negativeFilterBits   = 1 << 23
	negativeFilterHashes = 4
)

// memStore is the in-process tier: an ARC cache for positive results, and a
// bloom filter recording keys that previously resolved to NoValidSlot so
// repeat requests short-circuit without re-probing. Both structures are
// guarded by one mutex, matching spec §5's single-mutex cache-handle model.
type memStore struct {
	mu       sync.Mutex
	positive *lru.ARCCache
	negative *bloomfilter.Filter
}

// NewMemStore builds an in-process Store holding up to positiveSize recent
// results.
func NewMemStore(positiveSize int) (Store, error) {
	positive, err := lru.NewARC(positiveSize)
	if err != nil {
		return nil, err
	}
	negative, err := bloomfilter.New(negativeFilterBits, negativeFilterHashes)
	if err != nil {
		return nil, err
	}
	return &memStore{positive: positive, negative: negative}, nil
}

func (s *memStore) Get(_ context.Context, key string) (*SearchResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.positive.Get(key); ok {
		resp := v.(SearchResponse)
		return &resp, true, nil
	}
	if s.negative.Contains(keyHash(key)) {
		return nil, true, nil
	}
	return nil, false, nil
}

func (s *memStore) SetPositive(_ context.Context, key string, result SearchResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positive.Add(key, result)
	return nil
}

func (s *memStore) SetNegative(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negative.Add(keyHash(key))
	return nil
}

// keyHash hashes key into the hash.Hash64 the bloom filter consumes. A fresh
// hasher is built per call since Add/Contains each need an unconsumed one.
func keyHash(key string) hash.Hash64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h
}
