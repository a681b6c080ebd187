package workerskv

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/kvgate/cache"
	"github.com/adeilh/kvgate/httpx"
)

var _ cache.Store = (*Store)(nil)

// fakeNamespace mimics the Workers KV values endpoints for a single namespace.
type fakeNamespace struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]string
	tokens  []string
	failPut bool
}

func newFakeNamespace(t *testing.T) (*fakeNamespace, *httpx.TestServer) {
	t.Helper()
	ns := &fakeNamespace{values: map[string]string{}, ttls: map[string]string{}}
	server := httpx.NewServer()
	server.RegisterRoutes(func(a *httpx.App) {
		const path = "/accounts/:account/storage/kv/namespaces/:namespace/values/:key"
		httpx.RegisterRoutes(a,
			httpx.Route{Method: http.MethodGet, Path: path, Handler: ns.get},
			httpx.Route{Method: http.MethodPut, Path: path, Handler: ns.put},
			httpx.Route{Method: http.MethodDelete, Path: path, Handler: ns.del},
		)
	})
	ts := httpx.NewServerTestServer(server)
	t.Cleanup(ts.Close)
	return ns, ts
}

func (f *fakeNamespace) ttl(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

func (f *fakeNamespace) authTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func (f *fakeNamespace) record(c httpx.Context) {
	f.tokens = append(f.tokens, c.Request().Header.Get("Authorization"))
}

func (f *fakeNamespace) get(c httpx.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(c)
	v, ok := f.values[c.Param("key")]
	if !ok {
		return c.JSON(httpx.StatusNotFound, map[string]any{"success": false, "errors": []map[string]any{{"code": 10009, "message": "get: 'key not found'"}}})
	}
	return c.String(httpx.StatusOK, v)
}

func (f *fakeNamespace) put(c httpx.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(c)
	if f.failPut {
		return c.JSON(httpx.StatusInternalError, map[string]any{"success": false})
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	f.values[c.Param("key")] = string(body)
	f.ttls[c.Param("key")] = c.QueryParam("expiration_ttl")
	return c.JSON(httpx.StatusOK, map[string]any{"success": true})
}

func (f *fakeNamespace) del(c httpx.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(c)
	delete(f.values, c.Param("key"))
	return c.JSON(httpx.StatusOK, map[string]any{"success": true})
}

func newTestStore(t *testing.T, apiURL string) *Store {
	t.Helper()
	store, err := NewStore(Options{APIURL: apiURL, AccountID: "acct", NamespaceID: "ns", Token: "secret"})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestParseURL(t *testing.T) {
	opts, err := ParseURL("workerskv://acct123/ns456")
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}
	if opts.AccountID != "acct123" || opts.NamespaceID != "ns456" {
		t.Fatalf("ParseURL() = %+v", opts)
	}

	for _, raw := range []string{"workerskv://acct", "workerskv:///ns", "redis://acct/ns", "workerskv://a/b/c"} {
		if _, err := ParseURL(raw); err == nil {
			t.Errorf("ParseURL(%q) expected error", raw)
		}
	}
}

func TestStoreSetGetDelete(t *testing.T) {
	ns, ts := newFakeNamespace(t)
	store := newTestStore(t, ts.BaseURL())
	ctx := context.Background()

	if err := store.Set(ctx, "session-1", []byte("abc"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := ns.ttl("session-1"); got != "" {
		t.Fatalf("expected no expiration_ttl, got %q", got)
	}

	payload, err := store.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != "abc" {
		t.Fatalf("Get() = %q, want %q", payload, "abc")
	}

	if err := store.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "session-1"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, token := range ns.authTokens() {
		if token != "Bearer secret" {
			t.Fatalf("unexpected Authorization header %q", token)
		}
	}
}

func TestStoreTTLQuery(t *testing.T) {
	ns, ts := newFakeNamespace(t)
	store := newTestStore(t, ts.BaseURL())
	ctx := context.Background()

	if err := store.Set(ctx, "long", []byte("v"), 90*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "short", []byte("v"), 5*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got := ns.ttl("long"); got != "90" {
		t.Fatalf("expiration_ttl(long) = %q, want 90", got)
	}
	if got := ns.ttl("short"); got != "60" {
		t.Fatalf("expiration_ttl(short) = %q, want 60", got)
	}
}

func TestStorePutFailure(t *testing.T) {
	ns, ts := newFakeNamespace(t)
	ns.mu.Lock()
	ns.failPut = true
	ns.mu.Unlock()
	store := newTestStore(t, ts.BaseURL())

	err := store.Set(context.Background(), "k", []byte("v"), 0)
	if err == nil {
		t.Fatalf("expected error from failing namespace")
	}
	var statusErr *httpx.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != httpx.StatusInternalError {
		t.Fatalf("expected wrapped 500 StatusError, got %v", err)
	}
}

func TestStoreUnreachable(t *testing.T) {
	store := newTestStore(t, "http://127.0.0.1:1")
	if _, err := store.Get(context.Background(), "k"); err == nil || errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
