package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/store"
	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	searchCacheKeyPrefix = "court_search:"
	searchCacheTTL       = 2 * time.Minute
)

// Ensure CachedCatalog implements store.CatalogStore.
var _ store.CatalogStore = (*CachedCatalog)(nil)

// CachedCatalog wraps a catalog store with a short-TTL Redis cache over
// search pages. Hint-based lookups bypass the cache (they are one-shot per
// session), and any court write flushes all cached pages. Cache failures
// degrade to the underlying store and are only logged.
type CachedCatalog struct {
	log   *zap.SugaredLogger
	inner store.CatalogStore
	rdb   *redis.Client
}

// NewCachedCatalog wraps inner with the Redis cache.
func NewCachedCatalog(inner store.CatalogStore, rdb *redis.Client) *CachedCatalog {
	return &CachedCatalog{
		log:   logger.GetLogger().Named("court_search_cache"),
		inner: inner,
		rdb:   rdb,
	}
}

// SearchCourts serves cached pages for plain term searches and delegates
// everything else.
func (c *CachedCatalog) SearchCourts(ctx context.Context, term string, offset int, hints *types.ResolutionHints) (types.CourtSearchResult, error) {
	if hints != nil {
		return c.inner.SearchCourts(ctx, term, offset, hints)
	}

	key := searchCacheKey(term, offset)
	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var result types.CourtSearchResult
		if err := json.Unmarshal(cached, &result); err == nil {
			return result, nil
		}
	} else if err != redis.Nil {
		c.log.Warnw("Search cache read failed", "key", key, "error", err)
	}

	result, err := c.inner.SearchCourts(ctx, term, offset, nil)
	if err != nil {
		return types.CourtSearchResult{}, err
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := c.rdb.Set(ctx, key, payload, searchCacheTTL).Err(); err != nil {
			c.log.Warnw("Search cache write failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// CreateCourt delegates and flushes the search cache on success.
func (c *CachedCatalog) CreateCourt(ctx context.Context, draft types.Court) (types.CourtSaveResult, error) {
	result, err := c.inner.CreateCourt(ctx, draft)
	if err == nil && result.Status == types.CourtSaveCreated {
		c.flush(ctx)
	}
	return result, err
}

// UpdateCourt delegates and flushes the search cache on success.
func (c *CachedCatalog) UpdateCourt(ctx context.Context, id string, draft types.Court) (types.CourtSaveResult, error) {
	result, err := c.inner.UpdateCourt(ctx, id, draft)
	if err == nil && result.Status == types.CourtSaveUpdated {
		c.flush(ctx)
	}
	return result, err
}

// StateMaps delegates; the conversion tables are loaded once per session and
// not worth caching here.
func (c *CachedCatalog) StateMaps(ctx context.Context) (types.StateMaps, error) {
	return c.inner.StateMaps(ctx)
}

func (c *CachedCatalog) flush(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, searchCacheKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warnw("Search cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warnw("Search cache flush failed", "error", err)
	}
}

func searchCacheKey(term string, offset int) string {
	return fmt.Sprintf("%s%s:%d", searchCacheKeyPrefix, strings.ToLower(strings.TrimSpace(term)), offset)
}
