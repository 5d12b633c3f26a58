package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitFor(t *testing.T) {
	var checks int32
	err := WaitFor(time.Second, 5*time.Millisecond, func() bool {
		return atomic.AddInt32(&checks, 1) >= 3
	})
	assert.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&checks))

	start := time.Now()
	err = WaitFor(30*time.Millisecond, 10*time.Millisecond, func() bool { return false })
	assert.Error(t, err)
	assert.True(t, time.Since(start) >= 30*time.Millisecond)

	for _, tc := range []struct{ timeout, interval time.Duration }{
		{50 * time.Millisecond, 100 * time.Millisecond},
		{time.Second, 0},
	} {
		assert.Error(t, WaitFor(tc.timeout, tc.interval, func() bool { return true }))
	}
}
