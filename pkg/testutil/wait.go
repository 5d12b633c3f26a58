package testutil

import (
	"time"

	"github.com/pkg/errors"
)

// WaitFor checks condition immediately and then on every tick of interval,
// giving up once timeout has elapsed.
func WaitFor(timeout, interval time.Duration, condition func() bool) error {
	if interval <= 0 || timeout < interval {
		return errors.Errorf("invalid wait: timeout %v, interval %v", timeout, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	expired := time.After(timeout)
	for !condition() {
		select {
		case <-ticker.C:
		case <-expired:
			if condition() {
				return nil
			}
			return errors.Errorf("condition not met within %v", timeout)
		}
	}
	return nil
}
