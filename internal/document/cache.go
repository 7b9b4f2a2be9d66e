package document

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	cacheEnvVar       = "PAGELENS_CACHE_DIR"
	cacheSubdir       = "pagelens/pdfs"
	cacheTTL          = 24 * time.Hour
	DefaultMaxEntries = 32
	entryFile         = "entry.json"
	documentFile      = "document.pdf"
	fetchAttempts     = 3
	fetchRetryDelay   = 500 * time.Millisecond
	fetchTimeout      = 90 * time.Second
)

// Cache keeps downloaded PDFs on disk, one directory per URL. A copy younger
// than a day is opened as is; an older one is revalidated with a conditional
// request and still served when the server cannot be reached. Once more than
// MaxEntries documents are stored the least recently opened ones are removed.
type Cache struct {
	dir        string
	client     *http.Client
	maxEntries int

	attempts   uint
	retryDelay time.Duration
	now        func() time.Time

	mu sync.Mutex
}

type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Size         int64     `json:"size"`
	FetchedAt    time.Time `json:"fetched_at"`
	OpenedAt     time.Time `json:"opened_at"`
}

// cacheSlot is the directory holding one URL's document and entry.
type cacheSlot struct {
	key string
	dir string
}

func (s cacheSlot) documentPath() string { return filepath.Join(s.dir, documentFile) }
func (s cacheSlot) entryPath() string    { return filepath.Join(s.dir, entryFile) }

// retryableError marks failures worth another attempt: transport errors, 429
// and 5xx answers.
type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// NewCache creates the cache directory. An empty dir falls back to
// $PAGELENS_CACHE_DIR and then the user cache directory. maxEntries <= 0
// selects DefaultMaxEntries.
func NewCache(dir string, client *http.Client, maxEntries int) (*Cache, error) {
	if dir == "" {
		dir = os.Getenv(cacheEnvVar)
	}
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "pagelens-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		dir:        dir,
		client:     client,
		maxEntries: maxEntries,
		attempts:   fetchAttempts,
		retryDelay: fetchRetryDelay,
		now:        time.Now,
	}, nil
}

// Fetch returns the local path of the PDF behind rawURL, downloading it when
// needed. Responses that are not PDFs fail with ErrNotPDF.
func (c *Cache) Fetch(ctx context.Context, rawURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := c.slotFor(rawURL)
	entry, cached := readEntry(slot)
	if cached && c.now().Sub(entry.FetchedAt) < cacheTTL {
		return c.markOpened(slot, entry)
	}

	fresh, err := c.refresh(ctx, slot, rawURL, entry, cached)
	switch {
	case err == nil:
		entry = fresh
	case cached && !errors.Is(err, ErrNotPDF) && ctx.Err() == nil:
		slog.Warn("pdf refresh failed, opening cached copy", "url", rawURL, "err", err)
	default:
		return "", err
	}

	path, err := c.markOpened(slot, entry)
	if err != nil {
		return "", err
	}
	c.evict(slot.key)
	return path, nil
}

func (c *Cache) slotFor(rawURL string) cacheSlot {
	sum := sha256.Sum256([]byte(rawURL))
	key := hex.EncodeToString(sum[:16])
	return cacheSlot{key: key, dir: filepath.Join(c.dir, key)}
}

func (c *Cache) refresh(ctx context.Context, slot cacheSlot, rawURL string, prev cacheEntry, conditional bool) (cacheEntry, error) {
	var fresh cacheEntry
	err := retry.Do(
		func() error {
			var err error
			fresh, err = c.get(ctx, slot, rawURL, prev, conditional)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var r retryableError
			return errors.As(err, &r)
		}),
	)
	return fresh, err
}

func (c *Cache) get(ctx context.Context, slot cacheSlot, rawURL string, prev cacheEntry, conditional bool) (cacheEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return cacheEntry{}, err
	}
	req.Header.Set("Accept", "application/pdf")
	if conditional {
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return cacheEntry{}, ctx.Err()
		}
		return cacheEntry{}, retryableError{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && conditional:
		prev.FetchedAt = c.now().UTC()
		return prev, nil
	case resp.StatusCode == http.StatusOK:
		size, err := storeDocument(slot, resp.Body)
		if err != nil {
			return cacheEntry{}, err
		}
		return cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("Etag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Size:         size,
			FetchedAt:    c.now().UTC(),
		}, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	err = fmt.Errorf("GET %s: %s (%s)", rawURL, resp.Status, snippet)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return cacheEntry{}, retryableError{err}
	}
	return cacheEntry{}, err
}

// storeDocument streams body into the slot through a temporary file so a
// failed download never replaces a good copy.
func storeDocument(slot cacheSlot, body io.Reader) (int64, error) {
	if err := os.MkdirAll(slot.dir, 0o755); err != nil {
		return 0, err
	}
	buffered := bufio.NewReaderSize(body, sniffLen)
	head, err := buffered.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, retryableError{fmt.Errorf("read response: %w", err)}
	}
	if err := sniffPDF(head); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(slot.dir, "download-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, buffered)
	if err != nil {
		tmp.Close()
		return 0, retryableError{fmt.Errorf("read response: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), slot.documentPath()); err != nil {
		return 0, err
	}
	return size, nil
}

func (c *Cache) markOpened(slot cacheSlot, entry cacheEntry) (string, error) {
	entry.OpenedAt = c.now().UTC()
	if err := writeEntry(slot, entry); err != nil {
		return "", fmt.Errorf("update cache entry: %w", err)
	}
	return slot.documentPath(), nil
}

// evict removes the least recently opened documents beyond maxEntries. The
// slot just opened is never removed.
func (c *Cache) evict(keep string) {
	dirs, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	type stored struct {
		slot   cacheSlot
		opened time.Time
	}
	var all []stored
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		slot := cacheSlot{key: d.Name(), dir: filepath.Join(c.dir, d.Name())}
		entry, _ := readEntry(slot)
		all = append(all, stored{slot: slot, opened: entry.OpenedAt})
	}
	if len(all) <= c.maxEntries {
		return
	}
	sort.Slice(all, func(i, j int) bool { return all[i].opened.After(all[j].opened) })
	for _, s := range all[c.maxEntries:] {
		if s.slot.key == keep {
			continue
		}
		if err := os.RemoveAll(s.slot.dir); err != nil {
			slog.Warn("evict cached pdf", "dir", s.slot.dir, "err", err)
		}
	}
}

// readEntry reports false when the slot has no usable document.
func readEntry(slot cacheSlot) (cacheEntry, bool) {
	data, err := os.ReadFile(slot.entryPath())
	if err != nil {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return cacheEntry{}, false
	}
	if info, err := os.Stat(slot.documentPath()); err != nil || info.Size() == 0 {
		return cacheEntry{}, false
	}
	return entry, true
}

func writeEntry(slot cacheSlot, entry cacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	tmp := slot.entryPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, slot.entryPath())
}
