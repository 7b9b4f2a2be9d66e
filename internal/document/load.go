package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// IsRemote reports whether source should be fetched over HTTP.
func IsRemote(source string) bool {
	lower := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Load opens source, which is either a local path or an http(s) URL. Remote
// files go through cache; a nil cache is created on demand.
func Load(ctx context.Context, source string, cache *Cache) (*File, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("no file provided")
	}
	if !IsRemote(source) {
		return Open(source)
	}
	if cache == nil {
		var err error
		cache, err = NewCache("", nil, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare pdf cache: %w", err)
		}
	}
	path, err := cache.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to download pdf: %w", err)
	}
	return Open(path)
}
