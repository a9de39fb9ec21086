package report

import (
	"context"
	"errors"
	"strconv"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// CachedResolver wraps a CategoryResolver with an LRU+TTL cache. Negative
// results are cached too, so repeated lookups of a dangling category id do
// not hammer the store.
type CachedResolver struct {
	next  CategoryResolver
	cache *cache.LRUCache[cachedName]
}

type cachedName struct {
	name  string
	found bool
}

func NewCachedResolver(next CategoryResolver, size int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		cache: cache.NewLRUCache[cachedName](size, ttl),
	}
}

func (r *CachedResolver) CategoryName(ctx context.Context, id int64) (string, error) {
	key := strconv.FormatInt(id, 10)
	if hit, ok := r.cache.Get(key); ok {
		if !hit.found {
			return "", core.ErrNotFound
		}
		return hit.name, nil
	}

	name, err := r.next.CategoryName(ctx, id)
	switch {
	case err == nil:
		r.cache.Set(key, cachedName{name: name, found: true})
		return name, nil
	case errors.Is(err, core.ErrNotFound):
		r.cache.Set(key, cachedName{})
		return "", core.ErrNotFound
	default:
		return "", err
	}
}

// Invalidate drops a single id from the cache, e.g. after a category edit.
func (r *CachedResolver) Invalidate(id int64) {
	r.cache.Delete(strconv.FormatInt(id, 10))
}
