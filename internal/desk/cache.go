package desk

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/goatkit/deskpilot/internal/kvstore"
)

// Cache key prefixes.
const (
	cachePrefixTickets = "tickets_"
	cachePrefixSearch  = "search_"
	cacheKeyStats      = "dashboard_stats"
)

func cacheKey(prefix string, v any) string {
	raw, _ := json.Marshal(v)
	sum := sha1.Sum(raw)
	return prefix + hex.EncodeToString(sum[:])
}

func (c *Client) cacheGet(ctx context.Context, name, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	err := kvstore.GetJSON(ctx, c.cache, key, out)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}
	c.metrics.CacheResult(name, err == nil)
	return err == nil
}

func (c *Client) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := kvstore.SetJSON(ctx, c.cache, key, v, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// InvalidateCaches drops cached lists, searches and dashboard stats so the
// next read goes to the API.
func (c *Client) InvalidateCaches(ctx context.Context) {
	if c.cache == nil {
		return
	}
	for _, prefix := range []string{cachePrefixTickets, cachePrefixSearch} {
		keys, err := c.cache.Keys(ctx, prefix)
		if err != nil {
			c.logger.Warn("cache scan failed", "prefix", prefix, "error", err)
			continue
		}
		for _, k := range keys {
			_ = c.cache.Delete(ctx, k)
		}
	}
	_ = c.cache.Delete(ctx, cacheKeyStats)
}
