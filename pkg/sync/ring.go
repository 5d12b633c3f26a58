package sync

import (
	"encoding/binary"
	"strconv"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over stripe indexes. Each stripe is placed
// on the ring replicas times to even out the key distribution.
type ring struct {
	points *treemap.Map

	// first is the stripe at the lowest point, where keys hashing past the
	// last point wrap around to. treemap.Map.Min is O(log n).
	first int
}

func newRing(stripes, replicas uint) *ring {
	points := treemap.NewWith(utils.UInt64Comparator)

	for stripe := 0; stripe < int(stripes); stripe++ {
		seed, _ := murmur3.Sum128([]byte("stripe" + strconv.Itoa(stripe)))

		buf := make([]byte, 12)
		binary.LittleEndian.PutUint64(buf, seed)
		for replica := uint32(0); replica < uint32(replicas); replica++ {
			binary.LittleEndian.PutUint32(buf[8:], replica)
			point, _ := murmur3.Sum128(buf)
			points.Put(point, stripe)
		}
	}

	r := &ring{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(int)
	}
	return r
}

// shard returns the stripe owning key: the first point at or after the key's
// hash.
func (r *ring) shard(key []byte) int {
	hash, _ := murmur3.Sum128(key)
	if _, stripe := r.points.Ceiling(hash); stripe != nil {
		return stripe.(int)
	}
	return r.first
}
