package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const pdfBody = "%PDF-1.4\nHello"

func newTestCache(t *testing.T, client *http.Client, maxEntries int) *Cache {
	t.Helper()
	cache, err := NewCache(t.TempDir(), client, maxEntries)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	cache.retryDelay = time.Millisecond
	return cache
}

func TestCacheReusesFreshFile(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Etag", `"v1"`)
		_, _ = w.Write([]byte(pdfBody))
	}))
	t.Cleanup(server.Close)

	cache := newTestCache(t, server.Client(), 0)
	ctx := context.Background()

	path, err := cache.Fetch(ctx, server.URL+"/reports/q3.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != pdfBody {
		t.Fatalf("cached file = %q, %v", data, err)
	}
	path2, err := cache.Fetch(ctx, server.URL+"/reports/q3.pdf")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if path != path2 {
		t.Fatalf("paths differ: %s vs %s", path, path2)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected single download, got %d hits", hits.Load())
	}
}

func TestCacheRevalidatesStaleFile(t *testing.T) {
	var conditional atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v2"` {
			conditional.Store(true)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Etag", `"v2"`)
		_, _ = w.Write([]byte("%PDF-1.4\nUpdated"))
	}))
	t.Cleanup(server.Close)

	cache := newTestCache(t, server.Client(), 0)
	ctx := context.Background()

	path, err := cache.Fetch(ctx, server.URL+"/doc.pdf")
	if err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	later := time.Now().Add(cacheTTL + time.Hour)
	cache.now = func() time.Time { return later }
	if _, err := cache.Fetch(ctx, server.URL+"/doc.pdf"); err != nil {
		t.Fatalf("conditional fetch: %v", err)
	}
	if !conditional.Load() {
		t.Fatal("expected a conditional request for the stale copy")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached pdf: %v", err)
	}
	if !strings.Contains(string(data), "Updated") {
		t.Fatalf("cached body lost after 304: %q", data)
	}
	entry, ok := readEntry(cache.slotFor(server.URL + "/doc.pdf"))
	if !ok || !entry.FetchedAt.Equal(later.UTC()) {
		t.Fatalf("304 should refresh the fetch time, got %+v", entry)
	}
}

func TestCacheServesStaleCopyWhenOffline(t *testing.T) {
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(pdfBody))
	}))
	t.Cleanup(server.Close)

	cache := newTestCache(t, server.Client(), 0)
	url := server.URL + "/offline.pdf"
	first, err := cache.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	down.Store(true)
	cache.now = func() time.Time { return time.Now().Add(2 * cacheTTL) }
	second, err := cache.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("stale copy should be served, got %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %s vs %s", first, second)
	}
}

func TestCacheRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(pdfBody))
	}))
	t.Cleanup(server.Close)

	cache := newTestCache(t, server.Client(), 0)
	if _, err := cache.Fetch(context.Background(), server.URL+"/flaky.pdf"); err != nil {
		t.Fatalf("fetch after retries: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestCacheDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(server.Close)

	cache := newTestCache(t, server.Client(), 0)
	_, err := cache.Fetch(context.Background(), server.URL+"/missing.pdf")
	if err == nil || !strings.Contains(err.Error(), "410") {
		t.Fatalf("expected a 410 error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("client errors should not be retried, got %d attempts", hits.Load())
	}
}

func TestCacheRejectsNonPDFResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Sign in to continue</body></html>"))
	}))
	t.Cleanup(server.Close)

	cache := newTestCache(t, server.Client(), 0)
	url := server.URL + "/login"
	if _, err := cache.Fetch(context.Background(), url); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
	if _, ok := readEntry(cache.slotFor(url)); ok {
		t.Fatal("a rejected download should leave no entry")
	}
}

func TestCacheEvictsLeastRecentlyOpened(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pdfBody))
	}))
	t.Cleanup(server.Close)

	cache := newTestCache(t, server.Client(), 2)
	clock := time.Now()
	cache.now = func() time.Time { return clock }
	ctx := context.Background()

	fetch := func(name string) {
		t.Helper()
		clock = clock.Add(time.Minute)
		if _, err := cache.Fetch(ctx, server.URL+"/"+name); err != nil {
			t.Fatalf("fetch %s: %v", name, err)
		}
	}
	fetch("a.pdf")
	fetch("b.pdf")
	fetch("a.pdf")
	fetch("c.pdf")

	if _, ok := readEntry(cache.slotFor(server.URL + "/b.pdf")); ok {
		t.Fatal("b.pdf was opened least recently and should be evicted")
	}
	for _, name := range []string{"a.pdf", "c.pdf"} {
		if _, ok := readEntry(cache.slotFor(server.URL + "/" + name)); !ok {
			t.Fatalf("%s should still be cached", name)
		}
	}
}

func TestNewCacheHonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(cacheEnvVar, dir)

	cache, err := NewCache("", nil, 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if cache.dir != dir || cache.maxEntries != DefaultMaxEntries {
		t.Fatalf("cache dir = %s max = %d", cache.dir, cache.maxEntries)
	}
}
