package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig names the connection options spec §6's configuration surface
// enumerates for the cache tier.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	TLS      bool
}

// redisStore is the cross-process tier: both positive and negative entries
// are JSON-encoded Entry values under one key, so a single GET distinguishes
// a miss (redis.Nil) from either kind of hit.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore dials cfg's endpoint. ttl of zero means entries never
// expire, matching spec §6's "no TTL is imposed by the core."
func NewRedisStore(cfg RedisConfig, ttl time.Duration) Store {
	opts := &redis.Options{
		Addr:     addrOf(cfg),
		Password: cfg.Password,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &redisStore{client: redis.NewClient(opts), ttl: ttl}
}

func addrOf(cfg RedisConfig) string {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	return host + ":" + strconv.Itoa(port)
}

func (s *redisStore) Get(ctx context.Context, key string) (*SearchResponse, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := unmarshalEntry(raw)
	if err != nil {
		return nil, false, err
	}
	return entry.Found, true, nil
}

func (s *redisStore) SetPositive(ctx context.Context, key string, result SearchResponse) error {
	return s.set(ctx, key, Entry{Found: &result})
}

func (s *redisStore) SetNegative(ctx context.Context, key string) error {
	return s.set(ctx, key, Entry{})
}

func (s *redisStore) set(ctx context.Context, key string, entry Entry) error {
	raw, err := entry.marshal()
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}
