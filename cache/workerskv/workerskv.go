// Package workerskv stores entries in a Cloudflare Workers KV namespace via
// the REST API.
package workerskv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/adeilh/kvgate/cache"
	"github.com/adeilh/kvgate/httpx"
)

type Store struct {
	opts   Options
	client *httpx.Client
}

// NewStore builds a store for one namespace.
func NewStore(opts Options) (*Store, error) {
	cfg := opts.withDefaults()
	if cfg.AccountID == "" || cfg.NamespaceID == "" {
		return nil, ErrMissingNamespace
	}
	client := httpx.NewClient(
		httpx.WithBaseURL(cfg.APIURL),
		httpx.WithClientTimeout(cfg.Timeout),
		httpx.WithHeaders(map[string]string{"Accept": "*/*"}),
	)
	return &Store{opts: cfg, client: client}, nil
}

func (s *Store) valuePath(key string) string {
	return fmt.Sprintf("/accounts/%s/storage/kv/namespaces/%s/values/%s",
		url.PathEscape(s.opts.AccountID), url.PathEscape(s.opts.NamespaceID), url.PathEscape(key))
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.Get(ctx, s.valuePath(key), nil, httpx.WithBearer(s.opts.Token))
	if err != nil {
		if isStatus(err, httpx.StatusNotFound) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("workerskv: get: %w", err)
	}
	return append([]byte(nil), resp.Body()...), nil
}

// Set writes value; ttl is rounded up to MinTTL because the API rejects
// shorter expirations.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opts := []httpx.RequestOption{
		httpx.WithBearer(s.opts.Token),
		httpx.WithContentType("text/plain; charset=utf-8"),
	}
	if ttl > 0 {
		if ttl < MinTTL {
			ttl = MinTTL
		}
		seconds := int64((ttl + time.Second - 1) / time.Second)
		opts = append(opts, httpx.WithQuery(map[string]string{"expiration_ttl": strconv.FormatInt(seconds, 10)}))
	}
	if _, err := s.client.Put(ctx, s.valuePath(key), value, nil, opts...); err != nil {
		return fmt.Errorf("workerskv: put: %w", err)
	}
	return nil
}

// Delete removes key. Workers KV reports success for absent keys, so this
// backend never returns cache.ErrNotFound from Delete.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Delete(ctx, s.valuePath(key), nil, httpx.WithBearer(s.opts.Token)); err != nil {
		if isStatus(err, httpx.StatusNotFound) {
			return cache.ErrNotFound
		}
		return fmt.Errorf("workerskv: delete: %w", err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var statusErr *httpx.StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
