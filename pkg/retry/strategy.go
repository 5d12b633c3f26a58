package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
)

// Strategy decides whether an action should be retried after attempts
// failures. Strategies may block, e.g. to back off.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts attempts in total.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, err error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of retriableErrors.
func RetriableErrors(retriableErrors ...error) Strategy {
	return RetryIf(func(err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	})
}

// NonRetriableErrors retries every error except those matching one of
// nonRetriableErrors.
func NonRetriableErrors(nonRetriableErrors ...error) Strategy {
	return RetryIf(func(err error) bool {
		for _, e := range nonRetriableErrors {
			if errors.Is(err, e) {
				return false
			}
		}
		return true
	})
}

// RetryIf only retries errors matching the predicate.
func RetryIf(predicate func(error) bool) Strategy {
	return func(attempts uint, err error) bool {
		return predicate(err)
	}
}

// Context stops retrying once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(attempts uint, err error) bool {
		return ctx.Err() == nil
	}
}

// Backoff sleeps for the strategy's delay, capped at maxBackoff, before the
// next attempt.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, err error) bool {
		sleeperImpl.Sleep(capped(strategy, attempts, maxBackoff))
		return true
	}
}

// BackoffWithJitter is Backoff with the capped delay shifted randomly by up
// to +/- jitter of itself. For example, 100ms with a jitter of 0.1 sleeps
// between 90ms and 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, err error) bool {
		sleeperImpl.Sleep(withJitter(capped(strategy, attempts, maxBackoff), jitter))
		return true
	}
}

// BackoffContext is Backoff, but the sleep ends early when ctx is done, in
// which case no further attempt is made.
func BackoffContext(ctx context.Context, strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, err error) bool {
		timer := time.NewTimer(capped(strategy, attempts, maxBackoff))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
}

func capped(strategy backoff.Strategy, attempts uint, maxBackoff time.Duration) time.Duration {
	if delay := strategy(attempts); delay < maxBackoff {
		return delay
	}
	return maxBackoff
}

func withJitter(delay time.Duration, jitter float64) time.Duration {
	return time.Duration(float64(delay) * (1 + (jitterSource()*2-1)*jitter))
}

type sleeper interface {
	Sleep(time.Duration)
}

type realSleeper struct{}

func (r *realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var (
	sleeperImpl  sleeper = &realSleeper{}
	jitterSource         = rand.Float64
)
