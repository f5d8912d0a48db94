package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// DiscountCacheInterface defines read-through discount code lookups
type DiscountCacheInterface interface {
	Get(ctx context.Context, code string) (*models.DiscountCode, error)
	Invalidate(code string)
}

// notFoundSentinel marks a cached negative lookup so repeated probes for a
// bogus code do not hit the database every time.
type notFoundSentinel struct{}

// DiscountCache is a read-through cache over the discount repository.
// Validity windows and usage caps are evaluated by the caller on every
// request, so caching the row itself is safe; only times_used can go stale,
// and the redemption insert re-checks that atomically.
type DiscountCache struct {
	cache *gocache.Cache
	store repository.DiscountDataSource
}

// NewDiscountCache creates a new discount cache
func NewDiscountCache(store repository.DiscountDataSource, ttl time.Duration) *DiscountCache {
	return &DiscountCache{
		cache: gocache.New(ttl, 2*ttl),
		store: store,
	}
}

// Get returns a discount code from cache or the database. A missing code is
// cached too and surfaces as ErrNotFound.
func (dc *DiscountCache) Get(ctx context.Context, code string) (*models.DiscountCode, error) {
	key := models.NormalizeCode(code)

	if data, found := dc.cache.Get(key); found {
		metrics.CacheHits.WithLabelValues("discounts").Inc()
		if _, missing := data.(notFoundSentinel); missing {
			return nil, apperrors.ErrNotFound
		}
		if d, ok := data.(*models.DiscountCode); ok {
			return d, nil
		}
		logger.Error("Invalid discount cache data type", zap.String("code", key))
		dc.cache.Delete(key)
	}

	metrics.CacheMisses.WithLabelValues("discounts").Inc()

	d, err := dc.store.GetByCode(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			dc.cache.SetDefault(key, notFoundSentinel{})
		}
		return nil, err
	}

	dc.cache.SetDefault(key, d)
	return d, nil
}

// Invalidate drops one code from the cache, used after redemption so the
// usage counter is re-read promptly.
func (dc *DiscountCache) Invalidate(code string) {
	dc.cache.Delete(models.NormalizeCode(code))
}
