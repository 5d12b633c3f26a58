package rate

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/gideon-vouchers/voucher-server/pkg/cache"
)

// Per key buckets beyond this are evicted least recently used first.
const maxTrackedKeys = 1024

// Limiter limits operations per key, such as a metadata host.
type Limiter interface {
	// Allow reports whether an operation for key may happen now.
	Allow(key string) (bool, error)

	// Wait blocks until an operation for key is allowed, or ctx is done.
	Wait(ctx context.Context, key string) error
}

type localRateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets cache.Cache[*rate.Limiter]
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second for each key, with a burst of the same size.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &localRateLimiter{
		limit:   limit,
		burst:   burst,
		buckets: cache.NewCache[*rate.Limiter](maxTrackedKeys),
	}
}

func (l *localRateLimiter) Allow(key string) (bool, error) {
	return l.bucket(key).Allow(), nil
}

func (l *localRateLimiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

func (l *localRateLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.buckets.Retrieve(key); ok {
		return bucket
	}

	bucket := rate.NewLimiter(l.limit, l.burst)
	l.buckets.Upsert(key, bucket, 1)
	return bucket
}

// NoLimiter never limits operations.
type NoLimiter struct{}

func (n *NoLimiter) Allow(string) (bool, error) {
	return true, nil
}

// Wait only fails once ctx is done.
func (n *NoLimiter) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
