package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/adeilh/kvgate/cache"
	testpg "github.com/adeilh/kvgate/internal/testutil/postgrescontainer"
)

const testTimeout = 5 * time.Second

var setupErr error

var _ cache.Store = (*EntryStore)(nil)

func TestMain(m *testing.M) {
	setupErr = testpg.Setup()
	if setupErr != nil {
		fmt.Println("postgres integration tests skipped:", setupErr)
	}
	code := m.Run()
	if setupErr == nil {
		_ = testpg.Teardown()
	}
	os.Exit(code)
}

func connectTestStore(t *testing.T, opts ...Option) *EntryStore {
	t.Helper()
	if setupErr != nil {
		t.Skipf("postgres unavailable: %v", setupErr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	opts = append([]Option{WithDSN(testpg.DSN()), WithPurgeInterval(-1)}, opts...)
	store, err := Connect(ctx, opts...)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if _, err := store.db.ExecContext(ctx, "TRUNCATE kv_entries"); err != nil {
		t.Fatalf("truncate error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMissingDSN(t *testing.T) {
	if _, err := Open(context.Background()); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("Open() error = %v, want ErrMissingDSN", err)
	}
}

func TestFromURLStripsPoolParams(t *testing.T) {
	opts, err := FromURL("postgres://u:p@db:5432/kv?sslmode=disable&max_open_conns=20&max_idle_conns=2&conn_max_lifetime=1m&purge_interval=30s")
	if err != nil {
		t.Fatalf("FromURL error: %v", err)
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxOpenConns != 20 || cfg.MaxIdleConns != 2 || cfg.ConnMaxLifetime != time.Minute || cfg.PurgeInterval != 30*time.Second {
		t.Fatalf("unexpected pool settings: %+v", cfg)
	}
	u, err := url.Parse(cfg.DSN)
	if err != nil {
		t.Fatalf("DSN not a url: %v", err)
	}
	if q := u.Query(); q.Get("sslmode") != "disable" || q.Has("max_open_conns") || q.Has("conn_max_lifetime") || q.Has("purge_interval") {
		t.Fatalf("unexpected DSN query: %s", u.RawQuery)
	}
}

func TestFromURLRejectsBadPoolParam(t *testing.T) {
	if _, err := FromURL("postgres://db/kv?max_open_conns=lots"); err == nil {
		t.Fatalf("expected error for non-numeric max_open_conns")
	}
}

func TestEntryStoreCRUD(t *testing.T) {
	store := connectTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := store.Set(ctx, "session-1", []byte("abc"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := store.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("Get = %q, want %q", got, "abc")
	}

	if err := store.Set(ctx, "session-1", []byte("def"), time.Hour); err != nil {
		t.Fatalf("overwrite Set error: %v", err)
	}
	got, err = store.Get(ctx, "session-1")
	if err != nil || string(got) != "def" {
		t.Fatalf("Get after overwrite = %q, %v", got, err)
	}

	if err := store.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Get(ctx, "session-1"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete got %v", err)
	}
	if err := store.Delete(ctx, "session-1"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing delete got %v", err)
	}
}

func TestEntryStoreExpiry(t *testing.T) {
	store := connectTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, "ttl", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	now = now.Add(2 * time.Minute)

	if _, err := store.Get(ctx, "ttl"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry got %v", err)
	}
	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("PurgeExpired = %d, want 1", purged)
	}
}

func TestPurgeIntervalOption(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{name: "default", want: 5 * time.Minute},
		{name: "custom", opts: []Option{WithPurgeInterval(time.Second)}, want: time.Second},
		{name: "disabled", opts: []Option{WithPurgeInterval(-1)}, want: -1},
		{name: "zero keeps default", opts: []Option{WithPurgeInterval(0)}, want: 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveOptions(tt.opts...).PurgeInterval; got != tt.want {
				t.Fatalf("PurgeInterval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloseWithoutPurgerOrPool(t *testing.T) {
	store := NewEntryStore(nil)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestConnectPurgesExpiredRows(t *testing.T) {
	store := connectTestStore(t, WithPurgeInterval(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := store.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := store.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		var rows int
		if err := store.db.QueryRowContext(ctx, "SELECT count(*) FROM kv_entries").Scan(&rows); err != nil {
			t.Fatalf("count error: %v", err)
		}
		if rows == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expired row still present after purge interval, rows = %d", rows)
		}
		time.Sleep(25 * time.Millisecond)
	}
	if _, err := store.Get(ctx, "forever"); err != nil {
		t.Fatalf("Get(forever) error = %v", err)
	}
}
