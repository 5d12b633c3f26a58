package sync

import (
	base "sync"
)

const (
	ringReplicasPerStripe = 500
)

// StripedLock maps an unbounded key space, such as mint addresses, onto a
// fixed set of locks. Equal keys always share a lock, and unrelated keys
// usually don't.
type StripedLock struct {
	locks []base.RWMutex
	ring  *ring
}

// NewStripedLock returns a StripedLock with a static number of stripes. At
// least one stripe is always allocated.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks: make([]base.RWMutex, stripes),
		ring:  newRing(stripes, ringReplicasPerStripe),
	}
}

// Get returns the lock guarding key.
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.ring.shard(key)]
}
