package middleware

import (
	"context"
	"time"

	"github.com/charlesng35/jobboard/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// NewMemoryRateStore keeps counters in process memory.
func NewMemoryRateStore() RateStore {
	return NewCacheRateStore(cache.NewMemoryStore())
}

// NewCacheRateStore counts requests in a shared cache so every instance
// behind a load balancer sees the same totals.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &cacheRateStore{store: store}
}

type cacheRateStore struct {
	store cache.Store
}

func (s *cacheRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
