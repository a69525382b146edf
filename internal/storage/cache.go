package storage

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/radiusdt/recovery-analytics/internal/models"
)

// negative is stored for tenants without a connection.
type negative struct{}

// CachedAdsConnectionRepo keeps recent connection lookups in process memory.
// Misses are cached too, so a dashboard polling a tenant that never
// connected does not hit Postgres on every request.
type CachedAdsConnectionRepo struct {
	next  AdsConnectionRepo
	cache *cache.Cache
}

// NewCachedAdsConnectionRepo wraps next with a cache whose entries live for ttl.
func NewCachedAdsConnectionRepo(next AdsConnectionRepo, ttl time.Duration) *CachedAdsConnectionRepo {
	return &CachedAdsConnectionRepo{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *CachedAdsConnectionRepo) GetAdsConnection(ctx context.Context, userID string) (*models.AdsConnection, error) {
	if v, ok := r.cache.Get(userID); ok {
		switch c := v.(type) {
		case negative:
			return nil, ErrNotFound
		case models.AdsConnection:
			return &c, nil
		}
	}

	c, err := r.next.GetAdsConnection(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		r.cache.SetDefault(userID, negative{})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	r.cache.SetDefault(userID, *c)
	return c, nil
}

// Invalidate drops any cached entry for userID.
func (r *CachedAdsConnectionRepo) Invalidate(userID string) {
	r.cache.Delete(userID)
}
