package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

// Interface guard
var _ Directory = (*CachedDirectory)(nil)

// CachedDirectory wraps a Directory with a cache-aside TTL'd LRU for profile
// lookups. Profiles change rarely and are read on every fallback rendering,
// so the hot path should not hit the platform. The responder roster is never
// cached: an emergency must see the roster as it is now.
type CachedDirectory struct {
	next  Directory
	cache *expirable.LRU[uuid.UUID, model.Profile]
}

func NewCachedDirectory(next Directory, size int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: expirable.NewLRU[uuid.UUID, model.Profile](size, nil, ttl),
	}
}

func (d *CachedDirectory) Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	if cached, ok := d.cache.Get(userID); ok {
		return cached, nil
	}
	profile, err := d.next.Profile(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	d.cache.Add(userID, profile)
	return profile, nil
}

func (d *CachedDirectory) Responders(ctx context.Context) ([]model.Profile, error) {
	return d.next.Responders(ctx)
}
