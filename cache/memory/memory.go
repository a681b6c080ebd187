package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adeilh/kvgate/cache"
)

const defaultSweepInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is an in-process cache.Store. Expired entries are invisible to reads
// and are swept in the background until Close is called.
type Store struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewStore starts a memory store; sweep <= 0 uses one minute.
func NewStore(sweep time.Duration) *Store {
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}
	s := &Store{
		data: make(map[string]entry),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go s.sweepLoop(sweep)
	return s
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok || e.expired(s.now()) {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return cache.ErrNotFound
	}
	delete(s.data, key)
	if e.expired(s.now()) {
		return cache.ErrNotFound
	}
	return nil
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the background sweeper.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
		}
	}
}
