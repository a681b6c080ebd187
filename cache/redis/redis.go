package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/kvgate/cache"
)

// Store implements cache.Store on top of go-redis.
type Store struct {
	opts   Options
	client goredis.UniversalClient
}

// NewStore builds a Redis-backed cache store. No connection is made until the
// first command.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	ro := &goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
	if cfg.TLS {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &Store{opts: cfg, client: goredis.NewClient(ro)}
}

// NewStoreWithClient wraps an existing client (useful for tests/mocks).
func NewStoreWithClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 && ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if ttl < 0 {
		ttl = 0
	}
	// go-redis sends plain SET for ttl 0, which also clears a previous expiry.
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: SET failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: DEL failed: %w", err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
