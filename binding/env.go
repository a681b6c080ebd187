// Package binding resolves named key-value bindings (such as KV_CACHE) to
// opened stores.
package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/adeilh/kvgate/cache"
)

var ErrBindingNotFound = errors.New("binding: not configured")

// Env maps binding names to stores. Stores open lazily on first use; a
// failed open is returned to that caller and attempted again on the next.
type Env struct {
	urls   map[string]string
	opts   Options
	open   OpenFunc
	logger *zap.Logger

	mu     sync.Mutex
	stores map[string]cache.Store
}

// NewEnv builds an Env from name -> binding URL pairs. Empty URLs count as
// unconfigured.
func NewEnv(bindings map[string]string, opts Options, logger *zap.Logger) *Env {
	if logger == nil {
		logger = zap.NewNop()
	}
	urls := make(map[string]string, len(bindings))
	for name, raw := range bindings {
		if raw != "" {
			urls[name] = raw
		}
	}
	return &Env{
		urls:   urls,
		opts:   opts,
		open:   Open,
		logger: logger,
		stores: make(map[string]cache.Store),
	}
}

// WithOpener replaces the URL opener (useful for tests/mocks).
func (e *Env) WithOpener(fn OpenFunc) *Env {
	if fn != nil {
		e.open = fn
	}
	return e
}

// Bind installs an already-open store under name.
func (e *Env) Bind(name string, store cache.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stores[name] = store
}

// KV returns the store bound to name, opening it if needed. The lock is not
// held while opening, so a slow or failing backend never queues other
// requests. Concurrent first uses may each open a store; the first one
// recorded wins and the rest are closed.
func (e *Env) KV(ctx context.Context, name string) (cache.Store, error) {
	e.mu.Lock()
	store, ok := e.stores[name]
	raw, configured := e.urls[name]
	e.mu.Unlock()
	if ok {
		return store, nil
	}
	if !configured {
		return nil, fmt.Errorf("%w: %s", ErrBindingNotFound, name)
	}

	opened, err := e.open(ctx, raw, e.opts)
	if err != nil {
		e.logger.Error("opening binding failed",
			zap.String("binding", name),
			zap.String("url", Redact(raw)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("binding: open %s: %w", name, err)
	}

	e.mu.Lock()
	if existing, ok := e.stores[name]; ok {
		e.mu.Unlock()
		if err := cache.Close(opened); err != nil {
			e.logger.Warn("closing duplicate store", zap.String("binding", name), zap.Error(err))
		}
		return existing, nil
	}
	e.stores[name] = opened
	e.mu.Unlock()

	e.logger.Info("binding opened", zap.String("binding", name), zap.String("url", Redact(raw)))
	return opened, nil
}

// Close closes every opened store.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for name, store := range e.stores {
		if err := cache.Close(store); err != nil {
			errs = append(errs, fmt.Errorf("binding: close %s: %w", name, err))
		}
		delete(e.stores, name)
	}
	return errors.Join(errs...)
}
