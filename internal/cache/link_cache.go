package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Varun5711/shortqr/internal/models"
)

const linkKeyPrefix = "url:"

func LinkKey(code string) string {
	return linkKeyPrefix + code
}

// LinkCache stores models.CachedLink projections keyed by short code.
type LinkCache struct {
	c *Cache
}

func NewLinkCache(c *Cache) *LinkCache {
	return &LinkCache{c: c}
}

// Get returns (nil, nil) on a miss.
func (lc *LinkCache) Get(ctx context.Context, code string) (*models.CachedLink, error) {
	raw, ok, err := lc.c.Get(ctx, LinkKey(code))
	if err != nil || !ok {
		return nil, err
	}

	var entry models.CachedLink
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// A corrupt entry is treated as absent so the store repopulates it.
		_ = lc.c.Delete(ctx, LinkKey(code))
		return nil, fmt.Errorf("decode cache entry %s: %w", code, err)
	}
	return &entry, nil
}

func (lc *LinkCache) Set(ctx context.Context, code string, entry *models.CachedLink) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", code, err)
	}
	return lc.c.Set(ctx, LinkKey(code), string(data))
}

func (lc *LinkCache) Delete(ctx context.Context, code string) error {
	return lc.c.Delete(ctx, LinkKey(code))
}
