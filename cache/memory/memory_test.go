package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/kvgate/cache"
)

var _ cache.Store = (*Store)(nil)

func TestStoreSetGetDelete(t *testing.T) {
	store := NewStore(0)
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	payload, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != "v" {
		t.Fatalf("Get() = %q, want %q", payload, "v")
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("second Delete() = %v, want ErrNotFound", err)
	}
}

func TestStoreTTL(t *testing.T) {
	store := NewStore(time.Hour)
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	if err := store.Set(ctx, "short", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = now.Add(2 * time.Minute)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
	if _, err := store.Get(ctx, "forever"); err != nil {
		t.Fatalf("Get(forever) error = %v", err)
	}

	store.sweep()
	if got := store.Len(); got != 1 {
		t.Fatalf("Len() after sweep = %d, want 1", got)
	}
}

func TestStoreOverwriteClearsExpiration(t *testing.T) {
	store := NewStore(time.Hour)
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_ = store.Set(ctx, "k", []byte("old"), time.Second)
	_ = store.Set(ctx, "k", []byte("new"), 0)

	now = now.Add(time.Hour)

	payload, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != "new" {
		t.Fatalf("Get() = %q, want %q", payload, "new")
	}
}

func TestStoreContextCancellation(t *testing.T) {
	store := NewStore(0)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Set(ctx, "any", []byte("value"), 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStoreConcurrentSetGet(t *testing.T) {
	store := NewStore(0)
	defer store.Close()

	const workers = 16
	const opsPerWorker = 200

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("mem:%d:%d", worker, i)
				if err := store.Set(ctx, key, []byte(key), time.Minute); err != nil {
					errCh <- err
					return
				}
				payload, err := store.Get(ctx, key)
				if err != nil {
					errCh <- err
					return
				}
				if string(payload) != key {
					errCh <- fmt.Errorf("worker %d mismatch: got %q want %q", worker, payload, key)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent op failed: %v", err)
	}
}
