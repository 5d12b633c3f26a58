package rate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	l := &NoLimiter{}
	for i := 0; i < 1000; i++ {
		allowed, err := l.Allow("")
		require.NoError(t, err)
		require.True(t, allowed)
	}
	assert.NoError(t, l.Wait(context.Background(), ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, l.Wait(ctx, ""))
}

func TestLocalRateLimiter_Allow(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(2))

	for _, key := range []string{"a.example.com", "b.example.com"} {
		var allowed int
		for i := 0; i < 3; i++ {
			ok, err := l.Allow(key)
			require.NoError(t, err)
			if ok {
				allowed++
			}
		}
		assert.Equal(t, 2, allowed, key)
	}
}

func TestLocalRateLimiter_Wait(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(1))

	require.NoError(t, l.Wait(context.Background(), "host"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "host"))

	require.NoError(t, l.Wait(context.Background(), "other"))
}

func TestLocalRateLimiter_BoundedKeys(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(1)).(*localRateLimiter)

	for i := 0; i < maxTrackedKeys+10; i++ {
		_, err := l.Allow(fmt.Sprintf("host-%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, maxTrackedKeys, l.buckets.GetWeight())
}
